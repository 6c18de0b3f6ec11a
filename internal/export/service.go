package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/housing-reconciler/constants"
	"github.com/joseph-ayodele/housing-reconciler/internal/repository"
	"github.com/joseph-ayodele/housing-reconciler/internal/services/reconcile"
	"github.com/joseph-ayodele/housing-reconciler/internal/spreadsheet"
)

// IDHeader is the trailing column holding the store identifier. The
// reconciler ignores it on re-import.
const IDHeader = "Document ID"

// Service renders a collection back into the spreadsheet layout it is
// reconciled from.
type Service struct {
	store  repository.Store
	specs  map[constants.Collection]reconcile.CollectionSpec
	logger *slog.Logger
}

func NewService(store repository.Store, specs map[constants.Collection]reconcile.CollectionSpec, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if specs == nil {
		specs = reconcile.BuiltinSpecs()
	}
	return &Service{store: store, specs: specs, logger: logger}
}

// ExportXLSX returns an XLSX workbook (as bytes) with one row per document,
// in store order, under the first header spelling of every column.
func (s *Service) ExportXLSX(ctx context.Context, collection constants.Collection) ([]byte, error) {
	start := time.Now()
	spec, ok := s.specs[collection]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	docs, err := s.store.List(ctx, string(collection))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	header := make([]string, 0, len(spec.Columns)+1)
	for _, col := range spec.Columns {
		header = append(header, col.Headers[0])
	}
	header = append(header, IDHeader)

	rows := make([][]any, 0, len(docs))
	for _, d := range docs {
		row := make([]any, 0, len(header))
		for _, col := range spec.Columns {
			row = append(row, d.Fields[col.Field])
		}
		rows = append(rows, append(row, d.ID))
	}

	b, err := spreadsheet.WriteXLSX(string(collection), header, rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.xlsx.ok",
		"collection", collection,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}
