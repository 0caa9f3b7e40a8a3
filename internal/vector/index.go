package vector

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/hyperjump/kagami/internal/catalog"
)

// DimensionPolicy decides what happens when a query does not have the catalog dimension.
type DimensionPolicy int

const (
	// PolicyStrict rejects the query with a *catalog.DimensionMismatchError.
	PolicyStrict DimensionPolicy = iota
	// PolicyCoerce truncates or zero-pads the query and flags the result as degraded.
	PolicyCoerce
)

// Result is the outcome of a ranked query.
type Result struct {
	Neighbors         []Neighbor
	Metric            Metric
	Degraded          bool // query was truncated or padded
	QueryDimensions   int
	CatalogDimensions int
	Catalog           *catalog.Catalog // catalog the query ran against
}

// ErrNoCatalog is returned when the source has no catalog published.
var ErrNoCatalog = errors.New("no catalog loaded")

// Rank runs one query against c, applying policy to the query dimension.
// It is the shared core of neighbor, category and cross-modal queries.
func Rank(ctx context.Context, c *catalog.Catalog, query []float32, k int, metric Metric, policy DimensionPolicy, workers int) (*Result, error) {
	if c == nil {
		return nil, ErrNoCatalog
	}
	res := &Result{
		Metric:            metric,
		QueryDimensions:   len(query),
		CatalogDimensions: c.Dimensions(),
		Catalog:           c,
	}
	q := query
	if len(query) != c.Dimensions() {
		if policy == PolicyStrict {
			return nil, &catalog.DimensionMismatchError{Expected: c.Dimensions(), Actual: len(query)}
		}
		q, res.Degraded = c.Coerce(query)
	}
	neighbors, err := TopK(ctx, c, q, k, metric, workers)
	if err != nil {
		return nil, err
	}
	res.Neighbors = neighbors
	return res, nil
}

// LogDegraded emits the degraded-match warning for res, if any.
func LogDegraded(logger *zap.Logger, res *Result) {
	if res == nil || !res.Degraded {
		return
	}
	logger.Warn("query dimension coerced",
		zap.String("catalog", res.Catalog.Name()),
		zap.Int("query_dimensions", res.QueryDimensions),
		zap.Int("catalog_dimensions", res.CatalogDimensions),
		zap.Stringer("metric", res.Metric))
}

// Index performs exact k-NN over the catalog published by a source, by squared L2
// unless configured otherwise.
type Index struct {
	source  catalog.Source
	metric  Metric
	policy  DimensionPolicy
	workers int
	logger  *zap.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithDimensionPolicy sets how mismatched query dimensions are handled. Default is strict.
func WithDimensionPolicy(p DimensionPolicy) Option {
	return func(x *Index) { x.policy = p }
}

// WithMetric sets the distance metric. Default is MetricL2.
func WithMetric(m Metric) Option {
	return func(x *Index) { x.metric = m }
}

// WithWorkers sets the number of goroutines used to scan large catalogs.
// Values below 1 fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(x *Index) {
		if n >= 1 {
			x.workers = n
		}
	}
}

// WithLogger sets the logger for the index.
func WithLogger(logger *zap.Logger) Option {
	return func(x *Index) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// NewIndex returns an index over source. A *catalog.Catalog or *catalog.Handle can be passed.
func NewIndex(source catalog.Source, opts ...Option) *Index {
	x := &Index{
		source:  source,
		metric:  MetricL2,
		policy:  PolicyStrict,
		workers: runtime.GOMAXPROCS(0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Search returns the min(k, N) nearest records to query.
func (x *Index) Search(ctx context.Context, query []float32, k int) (*Result, error) {
	res, err := Rank(ctx, x.source.Current(), query, k, x.metric, x.policy, x.workers)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	LogDegraded(x.logger, res)
	return res, nil
}

// Metric returns the distance metric used by Search.
func (x *Index) Metric() Metric { return x.metric }

// Size returns the number of records in the current catalog.
func (x *Index) Size() int {
	if c := x.source.Current(); c != nil {
		return c.Len()
	}
	return 0
}
