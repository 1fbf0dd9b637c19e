package service

import (
	"context"
	"io"

	"github.com/clubops/querycsv/internal/engine"
	"github.com/clubops/querycsv/internal/registry"
	"github.com/clubops/querycsv/internal/spreadsheet"
	"github.com/clubops/querycsv/pkg/metrics"
)

// CollectionService serves the read side of collections: CSV export and
// upload templates.
type CollectionService struct {
	registry *registry.Registry
}

func NewCollectionService(r *registry.Registry) *CollectionService {
	return &CollectionService{registry: r}
}

func (s *CollectionService) List(ctx context.Context) []string {
	return s.registry.Names()
}

// Export streams every record of the collection as CSV.
func (s *CollectionService) Export(ctx context.Context, name string, w io.Writer) error {
	entry, err := s.registry.Get(name)
	if err != nil {
		return NewErrCollectionNotFound(name)
	}

	records, err := entry.Lister.List(ctx)
	if err != nil {
		return err
	}
	if err := entry.Engine.DownloadTo(ctx, records, w); err != nil {
		return err
	}

	metrics.IncreaseDownloadsTotalMetric(name)
	return nil
}

// Template streams a header-only CSV listing the collection's flat field
// keys for the selected field set.
func (s *CollectionService) Template(ctx context.Context, name string, which engine.TemplateFields, w io.Writer) error {
	entry, err := s.registry.Get(name)
	if err != nil {
		return NewErrCollectionNotFound(name)
	}
	return spreadsheet.WriteCSVTo(w, entry.Engine.Template(which), nil)
}
