package ranking

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/labels"
	"github.com/hyperjump/kagami/internal/vector"
)

// CategoryRanker ranks the whole catalog by cosine distance and maps each hit to its label.
// Query dimension mismatches are coerced (truncate or zero-pad) and flagged as degraded.
type CategoryRanker struct {
	source catalog.Source
	labels labels.Resolver
	config *Config
	logger *zap.Logger
}

// Option configures a CategoryRanker.
type Option func(*CategoryRanker)

// WithLogger sets the ranker logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *CategoryRanker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConfig sets the ranker configuration.
func WithConfig(cfg *Config) Option {
	return func(r *CategoryRanker) {
		if cfg != nil {
			r.config = cfg
		}
	}
}

// NewCategoryRanker returns a ranker over source. labels may be nil, in which case
// every hit is labeled labels.Unknown.
func NewCategoryRanker(source catalog.Source, resolver labels.Resolver, opts ...Option) *CategoryRanker {
	r := &CategoryRanker{
		source: source,
		labels: resolver,
		config: DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.config.ApplyDefaults()
	if r.config.Workers <= 0 {
		r.config.Workers = runtime.GOMAXPROCS(0)
	}
	return r
}

// DefaultLimit is the k used when the caller does not ask for one.
func (r *CategoryRanker) DefaultLimit() int { return r.config.DefaultLimit }

// RankCategories returns the min(k, N) closest entries by cosine distance, labeled.
// Duplicate labels are kept: five nearest entries of one category yield five hits.
func (r *CategoryRanker) RankCategories(ctx context.Context, query []float32, k int) (*CategoryResult, error) {
	res, err := vector.Rank(ctx, r.source.Current(), query, k, vector.MetricCosine, vector.PolicyCoerce, r.config.Workers)
	if err != nil {
		return nil, fmt.Errorf("rank categories: %w", err)
	}
	vector.LogDegraded(r.logger, res)

	c := res.Catalog
	out := &CategoryResult{
		Catalog:           c.Name(),
		Hits:              make([]CategoryHit, len(res.Neighbors)),
		Degraded:          res.Degraded,
		QueryDimensions:   res.QueryDimensions,
		CatalogDimensions: res.CatalogDimensions,
	}
	for i, n := range res.Neighbors {
		id, err := c.CategoryIDAt(n.Index)
		if err != nil {
			return nil, err
		}
		out.Hits[i] = CategoryHit{
			Index:      n.Index,
			CategoryID: id,
			Label:      r.label(id),
			Distance:   n.Distance,
		}
	}
	return out, nil
}

func (r *CategoryRanker) label(id string) string {
	if r.labels == nil {
		return labels.Unknown
	}
	l := r.labels.Label(id)
	if l == labels.Unknown {
		r.logger.Debug("unknown category label", zap.String("category_id", id))
	}
	return l
}
