package diagram

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

var extensions = []string{".yaml", ".yml"}

// FileStore serves layouts from <dir>/<diagramID>.yaml.
type FileStore struct {
	dir    string
	logger logging.Logger
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string, logger logging.Logger) *FileStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FileStore{dir: dir, logger: logger.Named("diagrams")}
}

// Load reads and parses the layout of diagramID.
func (s *FileStore) Load(ctx context.Context, diagramID string) (*Layout, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "diagram load abandoned")
	}
	if !validID(diagramID) {
		return nil, errors.InvalidParam("invalid diagram id").WithDetail(diagramID)
	}
	for _, ext := range extensions {
		path := filepath.Join(s.dir, diagramID+ext)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "reading diagram file").WithDetail(path)
		}
		l, err := Parse(data)
		if err != nil {
			return nil, err
		}
		if l.ID != diagramID {
			s.logger.Warn("diagram id differs from file name",
				logging.String(logging.FieldDiagram, diagramID),
				logging.String("declared", l.ID))
			l.ID = diagramID
		}
		return l, nil
	}
	return nil, errors.New(errors.ErrCodeDiagramNotFound, "diagram not found").WithDetail(diagramID)
}

// List returns the ids of every diagram file, sorted.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "listing diagrams").WithDetail(s.dir)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, ext := range extensions {
			if id, ok := strings.CutSuffix(e.Name(), ext); ok {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ReadFile parses the layout at path.
func ReadFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeDiagramNotFound, "diagram file not found").WithDetail(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "reading diagram file").WithDetail(path)
	}
	return Parse(data)
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
