// Package crossmodal ranks a text-image catalog against text queries.
//
// The catalog lives in a joint embedding space whose vectors are unit length, so ranking
// is by cosine distance. It is a separate catalog from the image one and the two are never
// mixed in a query.
package crossmodal

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/encoder"
	"github.com/hyperjump/kagami/internal/vector"
)

// DefaultLimit is the number of results returned when the caller does not ask for a k.
const DefaultLimit = 10

// Query runs cross-modal searches over one catalog.
type Query struct {
	source  catalog.Source
	encoder encoder.TextEncoder
	workers int
	limit   int
	logger  *zap.Logger
}

// Option configures a Query.
type Option func(*Query)

// WithEncoder sets the text encoder used by SearchByText.
func WithEncoder(enc encoder.TextEncoder) Option {
	return func(q *Query) { q.encoder = enc }
}

// WithWorkers sets the scan parallelism.
func WithWorkers(n int) Option {
	return func(q *Query) {
		if n >= 1 {
			q.workers = n
		}
	}
}

// WithDefaultLimit overrides DefaultLimit.
func WithDefaultLimit(k int) Option {
	return func(q *Query) {
		if k > 0 {
			q.limit = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(q *Query) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// New returns a cross-modal query over source.
func New(source catalog.Source, opts ...Option) *Query {
	q := &Query{
		source:  source,
		workers: runtime.GOMAXPROCS(0),
		limit:   DefaultLimit,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// DefaultLimit returns the configured default k.
func (q *Query) DefaultLimit() int { return q.limit }

// HasEncoder reports whether SearchByText can be used.
func (q *Query) HasEncoder() bool { return q.encoder != nil }

// SearchByTextVector ranks the catalog by cosine distance to a pre-encoded query.
// Dimension mismatches are coerced and flagged on the result.
func (q *Query) SearchByTextVector(ctx context.Context, query []float32, k int) (*vector.Result, error) {
	res, err := vector.Rank(ctx, q.source.Current(), query, k, vector.MetricCosine, vector.PolicyCoerce, q.workers)
	if err != nil {
		return nil, fmt.Errorf("cross-modal search: %w", err)
	}
	vector.LogDegraded(q.logger, res)
	return res, nil
}

// SearchByText encodes text with the configured encoder and ranks the catalog against it.
func (q *Query) SearchByText(ctx context.Context, text string, k int) (*vector.Result, error) {
	if q.encoder == nil {
		return nil, encoder.ErrNoEncoder
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty text query")
	}
	vec, err := q.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encode text: %w", err)
	}
	return q.SearchByTextVector(ctx, vec, k)
}
