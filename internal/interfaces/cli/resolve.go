package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/pathway-overlay/internal/application/catalog"
	"github.com/turtacn/pathway-overlay/internal/application/eventloop"
	"github.com/turtacn/pathway-overlay/internal/application/events"
	"github.com/turtacn/pathway-overlay/internal/application/loader"
	"github.com/turtacn/pathway-overlay/internal/application/overlay"
	"github.com/turtacn/pathway-overlay/internal/config"
	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/internal/domain/viewport"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/contentservice"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/diagram"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

type resolveOptions struct {
	diagramPath     string
	interactorsPath string
	resource        string
	anchors         []int64
	cap             int
}

// NewResolveCmd classifies the interactors of a saved diagram without a
// server: the layout comes from a diagram file and the records from a saved
// ContentService response.
func NewResolveCmd() *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve interactors of a saved diagram offline",
		Example: `  overlay resolve --diagram R-HSA-69620.yaml --interactors static.json
  overlay resolve --diagram R-HSA-69620.yaml --interactors intact.json --resource IntAct --anchor 42 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
			defer cancel()

			report, err := runResolve(ctx, cliCtx.Config, cliCtx.Logger, opts)
			if err != nil {
				return err
			}
			return PrintResult(cmd, report)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.diagramPath, "diagram", "", "diagram layout file (required)")
	f.StringVar(&opts.interactorsPath, "interactors", "", "ContentService interactor response file (required)")
	f.StringVar(&opts.resource, "resource", "", "resource the records belong to (default: interactors.initial_resource)")
	f.Int64SliceVar(&opts.anchors, "anchor", nil, "diagram entity ids to resolve (default: every entity with records)")
	f.IntVar(&opts.cap, "cap", -1, "disclosure cap override")
	_ = cmd.MarkFlagRequired("diagram")
	_ = cmd.MarkFlagRequired("interactors")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────
// Report
// ─────────────────────────────────────────────────────────────────────────────

// ResolveReport is the outcome of an offline resolution.
type ResolveReport struct {
	DiagramID string         `json:"diagram_id"`
	Resource  string         `json:"resource"`
	Records   int            `json:"records"`
	Skipped   int            `json:"skipped"`
	Anchors   []AnchorReport `json:"anchors"`
}

// AnchorReport is the classification of one anchor's interactors.
type AnchorReport struct {
	Anchor    int64          `json:"anchor"`
	Accession string         `json:"accession"`
	Result    overlay.Result `json:"result"`
	Links     []LinkReport   `json:"links"`
}

// LinkReport describes one created link.
type LinkReport struct {
	Kind          interactor.PrimitiveKind `json:"kind"`
	Key           string                   `json:"key"`
	InteractionID int64                    `json:"interaction_id"`
	Score         float64                  `json:"score"`
	Partner       string                   `json:"partner"`
}

func (r *ResolveReport) TableHeaders() []string {
	return []string{"ANCHOR", "ACCESSION", "STATIC", "LOOP", "DYNAMIC", "NEW ENTITIES", "CANDIDATES"}
}

func (r *ResolveReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Anchors))
	for _, a := range r.Anchors {
		rows = append(rows, []string{
			strconv.FormatInt(a.Anchor, 10),
			a.Accession,
			strconv.Itoa(a.Result.StaticLinks),
			strconv.Itoa(a.Result.LoopLinks),
			strconv.Itoa(a.Result.Dynamic),
			strconv.Itoa(a.Result.NewEntities),
			strconv.Itoa(a.Result.Candidates),
		})
	}
	return rows
}

func (r *ResolveReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "diagram %s, resource %s: %d records (%d skipped), %d anchors\n",
		r.DiagramID, r.Resource, r.Records, r.Skipped, len(r.Anchors))
	for _, a := range r.Anchors {
		fmt.Fprintf(&sb, "  %d %s: %d static, %d loop, %d dynamic of %d candidates\n",
			a.Anchor, a.Accession, a.Result.StaticLinks, a.Result.LoopLinks, a.Result.Dynamic, a.Result.Candidates)
		for _, l := range a.Links {
			fmt.Fprintf(&sb, "    %-12s %-10s score=%.3f  %s\n", l.Kind, l.Partner, l.Score, l.Key)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func linkReport(l interactor.Link) LinkReport {
	out := LinkReport{Kind: l.Kind(), Key: l.Key(), InteractionID: l.InteractionID(), Score: l.Score()}
	switch t := l.(type) {
	case *interactor.StaticLink:
		out.Partner = t.Target().Accession
	case *interactor.LoopLink:
		out.Partner = t.Anchor().Accession
	case *interactor.DynamicLink:
		out.Partner = t.Entity().Alias()
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Offline engine
// ─────────────────────────────────────────────────────────────────────────────

type fileLayout struct{ layout *diagram.Layout }

func (s fileLayout) Load(context.Context, string) (*diagram.Layout, error) {
	return s.layout, nil
}

type filePayload struct{ payload *interactor.Payload }

func (f filePayload) FetchInteractions(_ context.Context, resource, diagramID string) (*interactor.Payload, error) {
	p := *f.payload
	p.Resource, p.DiagramID = resource, diagramID
	return &p, nil
}

// runResolve drives the same loader, catalog and overlay manager the daemon
// uses, then resolves the requested anchors on a private event loop.
func runResolve(ctx context.Context, cfg *config.Config, logger logging.Logger, opts *resolveOptions) (*ResolveReport, error) {
	layout, err := diagram.ReadFile(opts.diagramPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(opts.interactorsPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeResourceLoad, "reading interactors file").WithDetail(opts.interactorsPath)
	}
	payload, skipped, err := contentservice.DecodePayload(data)
	if err != nil {
		return nil, err
	}

	resource := opts.resource
	if resource == "" {
		resource = cfg.Interactors.InitialResource
	}
	if resource == "" {
		resource = contentservice.StaticResource
	}
	diagramID := layout.ID
	if diagramID == "" {
		diagramID = "offline"
	}

	settings := overlay.SettingsFromConfig(cfg)
	settings.InitialResource = resource
	if opts.cap >= 0 {
		settings.DisclosureCap = opts.cap
	}

	loop := eventloop.New(logger)
	bus := events.NewBus()
	vp := viewport.New(cfg.Viewport.Width, cfg.Viewport.Height,
		viewport.WithZoomLimits(cfg.Viewport.MinZoom, cfg.Viewport.MaxZoom))
	cat := catalog.New(filePayload{payload: payload}, loop, bus, logger)
	manager := overlay.NewManager(settings, overlay.Dependencies{Records: cat, Viewport: vp, Bus: bus, Logger: logger})
	defer manager.Close()
	pipeline := loader.New(fileLayout{layout: layout}, cat, loop, bus, logger, loader.Options{
		InitialResource: resource,
		Frame:           cfg.Viewport.Frame,
		Viewport:        vp,
	})
	defer pipeline.Close()

	ready := make(chan error, 1)
	notify := func(err error) {
		select {
		case ready <- err:
		default:
		}
	}
	defer events.Subscribe(bus, func(e events.CatalogLoaded) {
		if e.Resource == resource {
			notify(nil)
		}
	})()
	defer events.Subscribe(bus, func(e events.ResourceLoadError) {
		notify(errors.New(errors.ErrCodeResourceLoad, e.Message).WithDetail(e.Resource))
	})()
	defer events.Subscribe(bus, func(e events.DiagramError) {
		notify(errors.New(errors.ErrCodeDiagramNotFound, e.Message).WithDetail(e.DiagramID))
	})()

	loopCtx, stop := context.WithCancel(ctx)
	defer func() {
		stop()
		<-loop.Stopped()
	}()
	go func() { _ = loop.Run(loopCtx) }()

	loop.Post(func() { pipeline.Load(diagramID) })
	select {
	case err := <-ready:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "offline resolution timed out")
	}

	report := &ResolveReport{DiagramID: diagramID, Resource: resource, Records: payload.Records(), Skipped: skipped}
	var resolveErr error
	err = loop.Do(ctx, func() {
		anchors, err := selectAnchors(manager, cat, resource, opts.anchors)
		if err != nil {
			resolveErr = err
			return
		}
		for _, anchor := range anchors {
			res := manager.Resolve(anchor, true)
			ar := AnchorReport{Anchor: anchor.ID, Accession: anchor.Accession, Result: res, Links: []LinkReport{}}
			for _, l := range manager.InteractorLinks(resource, anchor) {
				ar.Links = append(ar.Links, linkReport(l))
			}
			report.Anchors = append(report.Anchors, ar)
		}
	})
	if err != nil {
		return nil, err
	}
	if resolveErr != nil {
		return nil, resolveErr
	}
	return report, nil
}

// selectAnchors returns the requested anchors, or every entity with records
// in resource when ids is empty.  It runs on the loop.
func selectAnchors(m *overlay.Manager, cat *catalog.Catalog, resource string, ids []int64) ([]*interactor.DiagramEntity, error) {
	if len(ids) > 0 {
		out := make([]*interactor.DiagramEntity, 0, len(ids))
		for _, id := range ids {
			a, err := m.Anchor(id)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}

	ctx := m.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeNoDiagramContext, "no diagram loaded")
	}
	var out []*interactor.DiagramEntity
	for _, e := range ctx.Entities {
		if len(cat.Get(resource, e.Accession)) > 0 {
			out = append(out, e)
		}
	}
	return out, nil
}
