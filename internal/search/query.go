package search

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/models"
	"github.com/hyperjump/kagami/internal/vector"
)

// SimilarImages returns the q.K nearest images to q.Vector under the catalog's metric.
func (e *Engine) SimilarImages(ctx context.Context, name string, q *models.VectorQuery) (*models.SearchResponse, error) {
	start := time.Now()
	col, err := e.Collection(name)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(e.cfg.Search.DefaultLimit, e.cfg.Search.MaxLimit); err != nil {
		return nil, err
	}
	res, err := col.index.Search(ctx, q.Vector, q.K)
	if err != nil {
		return nil, err
	}
	return e.searchResponse(col, res, start)
}

// Categories returns the q.K catalog entries closest to q.Vector by cosine distance,
// reported by category label. Entries of the same category are not merged.
func (e *Engine) Categories(ctx context.Context, name string, q *models.VectorQuery) (*models.CategoryResponse, error) {
	start := time.Now()
	col, err := e.Collection(name)
	if err != nil {
		return nil, err
	}
	if err := q.Validate(col.ranker.DefaultLimit(), e.cfg.Search.MaxLimit); err != nil {
		return nil, err
	}
	res, err := col.ranker.RankCategories(ctx, q.Vector, q.K)
	if err != nil {
		return nil, err
	}
	out := &models.CategoryResponse{
		QueryID:           uuid.New().String(),
		Catalog:           res.Catalog,
		Categories:        make([]*models.CategoryHit, len(res.Hits)),
		Total:             len(res.Hits),
		Degraded:          res.Degraded,
		QueryDimensions:   res.QueryDimensions,
		CatalogDimensions: res.CatalogDimensions,
	}
	for i, h := range res.Hits {
		out.Categories[i] = &models.CategoryHit{
			Rank:       i + 1,
			Index:      h.Index,
			CategoryID: h.CategoryID,
			Label:      h.Label,
			Distance:   h.Distance,
		}
	}
	out.QueryTime = time.Since(start).Milliseconds()
	return out, nil
}

// Text ranks the catalog by cosine distance to a text query. A pre-encoded q.Vector is
// used as is; otherwise q.Text is encoded, which needs an encoder on the catalog.
func (e *Engine) Text(ctx context.Context, name string, q *models.VectorQuery) (*models.SearchResponse, error) {
	start := time.Now()
	col, err := e.Collection(name)
	if err != nil {
		return nil, err
	}
	if err := q.ValidateText(col.text.DefaultLimit(), e.cfg.Search.MaxLimit); err != nil {
		return nil, err
	}
	var res *vector.Result
	if len(q.Vector) > 0 {
		res, err = col.text.SearchByTextVector(ctx, q.Vector, q.K)
	} else {
		res, err = col.text.SearchByText(ctx, q.Text, q.K)
	}
	if err != nil {
		return nil, err
	}
	return e.searchResponse(col, res, start)
}

func (e *Engine) searchResponse(col *Collection, res *vector.Result, start time.Time) (*models.SearchResponse, error) {
	c := res.Catalog
	out := &models.SearchResponse{
		QueryID:           uuid.New().String(),
		Catalog:           c.Name(),
		Metric:            res.Metric.String(),
		Hits:              make([]*models.Hit, len(res.Neighbors)),
		Total:             len(res.Neighbors),
		Degraded:          res.Degraded,
		QueryDimensions:   res.QueryDimensions,
		CatalogDimensions: res.CatalogDimensions,
	}
	for i, n := range res.Neighbors {
		id, err := c.CategoryIDAt(n.Index)
		if err != nil {
			return nil, err
		}
		path, err := col.resolver.PathIn(c, n.Index)
		if err != nil {
			return nil, err
		}
		out.Hits[i] = &models.Hit{
			Rank:       i + 1,
			Index:      n.Index,
			CategoryID: id,
			Label:      e.labels.Label(id),
			Distance:   n.Distance,
			Path:       path,
		}
	}
	out.QueryTime = time.Since(start).Milliseconds()
	return out, nil
}

// Item describes the record at index, including its resolved image path.
func (e *Engine) Item(name string, index int) (*models.Item, error) {
	col, err := e.Collection(name)
	if err != nil {
		return nil, err
	}
	return e.describe(col, col.handle.Current(), index)
}

func (e *Engine) describe(col *Collection, c *catalog.Catalog, index int) (*models.Item, error) {
	id, err := c.CategoryIDAt(index)
	if err != nil {
		return nil, err
	}
	ord, err := c.Ordinal(index)
	if err != nil {
		return nil, err
	}
	path, err := col.resolver.PathIn(c, index)
	if err != nil {
		return nil, err
	}
	return &models.Item{
		Catalog:    c.Name(),
		Index:      index,
		CategoryID: id,
		Label:      e.labels.Label(id),
		Ordinal:    ord,
		Path:       path,
	}, nil
}

// SearchLabels finds categories whose label matches text. limit <= 0 uses the default limit.
func (e *Engine) SearchLabels(ctx context.Context, text string, limit int) (*models.LabelResponse, error) {
	if limit <= 0 {
		limit = e.cfg.Search.DefaultLimit
	}
	if maxLimit := e.cfg.Search.MaxLimit; maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	e.labelMu.RLock()
	defer e.labelMu.RUnlock()
	if e.labelIndex == nil {
		return nil, errors.New("label index closed")
	}
	results, err := e.labelIndex.Search(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	out := &models.LabelResponse{
		Query:  text,
		Labels: make([]*models.LabelHit, len(results)),
		Total:  len(results),
	}
	for i, r := range results {
		out.Labels[i] = &models.LabelHit{CategoryID: r.CategoryID, Label: r.Label, Score: r.Score}
	}
	return out, nil
}
