package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/pathway-overlay/internal/application/catalog"
	"github.com/turtacn/pathway-overlay/internal/application/eventloop"
	"github.com/turtacn/pathway-overlay/internal/application/events"
	"github.com/turtacn/pathway-overlay/internal/application/loader"
	"github.com/turtacn/pathway-overlay/internal/application/overlay"
	"github.com/turtacn/pathway-overlay/internal/config"
	"github.com/turtacn/pathway-overlay/internal/domain/viewport"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/contentservice"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/database/redis"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/diagram"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/pathway-overlay/internal/interfaces/http"
	"github.com/turtacn/pathway-overlay/internal/interfaces/http/handlers"
	"github.com/turtacn/pathway-overlay/internal/interfaces/http/middleware"
)

// NewServeCmd runs the overlay daemon until SIGINT or SIGTERM.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the overlay HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cliCtx)
		},
	}
}

// daemon is the wired service.  Close releases what build acquired.
type daemon struct {
	loop      *eventloop.Loop
	manager   *overlay.Manager
	pipeline  *loader.Pipeline
	server    *httpserver.Server
	publisher *kafka.Publisher
	closers   []func() error
}

func (d *daemon) Close(logger logging.Logger) {
	d.pipeline.Close()
	d.manager.Close()
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Warn("shutdown step failed", logging.Err(err))
		}
	}
}

func runServe(ctx context.Context, cc *CLIContext) error {
	logger := cc.Logger
	defer func() { _ = logger.Sync() }()

	d, err := buildDaemon(cc.Config, logger)
	if err != nil {
		return err
	}
	defer d.Close(logger)

	if cc.ConfigPath != "" {
		watchConfig(cc.ConfigPath, d, logger)
	}

	logger.Info("starting overlay service",
		logging.String("version", Version),
		logging.String("addr", cc.Config.Server.Addr()),
		logging.String(logging.FieldResource, cc.Config.Interactors.InitialResource))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.loop.Run(gctx) })
	g.Go(func() error { return d.server.Run(gctx) })
	if d.publisher != nil {
		g.Go(func() error { return d.publisher.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		logger.Error("overlay service stopped with error", logging.Err(err))
		return err
	}
	logger.Info("overlay service stopped")
	return nil
}

// buildDaemon wires every component from cfg.  Optional infrastructure is
// only dialled when enabled.
func buildDaemon(cfg *config.Config, logger logging.Logger) (*daemon, error) {
	d := &daemon{}
	fail := func(err error) (*daemon, error) {
		for i := len(d.closers) - 1; i >= 0; i-- {
			_ = d.closers[i]()
		}
		return nil, err
	}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
		EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
	}, logger)
	if err != nil {
		return fail(err)
	}
	metrics := prometheus.NewOverlayMetrics(collector)

	client, err := contentservice.NewFromConfig(cfg.Interactors, logger)
	if err != nil {
		return fail(err)
	}

	d.loop = eventloop.New(logger)
	checks := []handlers.HealthChecker{
		handlers.CheckFunc{Label: "eventloop", Fn: func(ctx context.Context) error {
			return d.loop.Do(ctx, func() {})
		}},
	}

	var fetcher catalog.Fetcher = client
	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			return fail(err)
		}
		d.closers = append(d.closers, rc.Close)
		fetcher = redis.NewPayloadCache(rc, client, logger,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithTTL(cfg.Redis.DefaultTTL),
			redis.WithFetchTimeout(cfg.Interactors.Timeout),
			redis.WithMetrics(metrics))
		checks = append(checks, handlers.CheckFunc{Label: "redis", Fn: rc.Ping})
	}

	bus := events.NewBus()
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return fail(err)
		}
		d.publisher = kafka.NewPublisher(producer, bus, logger, kafka.WithMetrics(metrics))
		d.closers = append(d.closers, d.publisher.Close)
	}

	vp := viewport.New(cfg.Viewport.Width, cfg.Viewport.Height,
		viewport.WithZoomLimits(cfg.Viewport.MinZoom, cfg.Viewport.MaxZoom))
	cat := catalog.New(fetcher, d.loop, bus, logger,
		catalog.WithTimeout(cfg.Interactors.Timeout),
		catalog.WithMetrics(metrics))
	d.manager = overlay.NewManager(overlay.SettingsFromConfig(cfg), overlay.Dependencies{
		Records:  cat,
		Viewport: vp,
		Bus:      bus,
		Logger:   logger,
		Metrics:  metrics,
	})

	store := diagram.NewFileStore(cfg.Diagrams.Dir, logger)
	d.pipeline = loader.New(store, cat, d.loop, bus, logger, loader.Options{
		InitialResource: cfg.Interactors.InitialResource,
		Frame:           cfg.Viewport.Frame,
		Viewport:        vp,
		Timeout:         cfg.Interactors.Timeout,
	})

	router := httpserver.NewRouter(httpserver.RouterConfig{
		DiagramHandler:   handlers.NewDiagramHandler(d.loop, d.pipeline, store, logger),
		OverlayHandler:   handlers.NewOverlayHandler(d.loop, d.manager, client, logger),
		ViewportHandler:  handlers.NewViewportHandler(d.loop, vp, d.pipeline, cfg.Viewport.Frame),
		HealthHandler:    handlers.NewHealthHandler(Version, checks...),
		Logger:           logger,
		MetricsCollector: collector,
		Metrics:          metrics,
		Logging:          middleware.DefaultLoggingConfig(),
	})
	d.server = httpserver.NewServer(cfg.Server, router, logger)
	return d, nil
}

// watchConfig applies disclosure cap changes from the config file on the
// loop.  Other settings need a restart.
func watchConfig(path string, d *daemon, logger logging.Logger) {
	err := config.Watch(path, func(next *config.Config) {
		n := next.Interactors.DisclosureCap
		if !d.loop.Post(func() { d.manager.SetDisclosureCap(n) }) {
			logger.Debug("config change after shutdown ignored")
		}
	}, func(err error) {
		logger.Warn("ignoring invalid config revision", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}
