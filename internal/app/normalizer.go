package app

import (
	"context"
	"fmt"

	"github.com/okian/hoopsrank/internal/domain/catalog"
	"github.com/okian/hoopsrank/internal/domain/model"
	"github.com/okian/hoopsrank/internal/domain/zscore"
)

// catalogNormalizer adapts zscore.NormalizeSource to worker.Normalizer by
// resolving the source descriptor from the catalog.
type catalogNormalizer struct {
	catalog *catalog.Catalog
}

func (n catalogNormalizer) Normalize(_ context.Context, source, date string, rows []model.RawRow) ([]model.TeamMetricRow, []model.Dimension, error) {
	src, ok := n.catalog.Lookup(source)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", catalog.ErrUnknownSource, source)
	}
	return zscore.NormalizeSource(src, date, rows)
}
