package vector

import (
	"container/heap"
	"context"
	"math"
	"sort"

	"github.com/hyperjump/kagami/internal/catalog"
	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest number of rows a worker scans. Catalogs smaller than
// two chunks are scanned on the calling goroutine.
var minChunk = 2048

// Neighbor is one ranked catalog entry.
type Neighbor struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

// less orders neighbors by distance, then by catalog index.
func less(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Index < b.Index
}

// worstFirst keeps the current worst candidate at the root so a better one can replace it.
type worstFirst []Neighbor

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return less(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopK scans every record of c and returns the k closest to query under metric,
// ascending by distance with ties broken by ascending index. k is clamped to N.
// query must already have the catalog dimension. With workers > 1 the scan is split
// into contiguous chunks; the result is identical to the sequential scan.
func TopK(ctx context.Context, c *catalog.Catalog, query []float32, k int, metric Metric, workers int) ([]Neighbor, error) {
	if len(query) != c.Dimensions() {
		return nil, &catalog.DimensionMismatchError{Expected: c.Dimensions(), Actual: len(query)}
	}
	n := c.Len()
	if k <= 0 || n == 0 {
		return []Neighbor{}, nil
	}
	if k > n {
		k = n
	}
	qNorm := L2Norm(query)

	chunk := n
	if workers > 1 {
		chunk = (n + workers - 1) / workers
		if chunk < minChunk {
			chunk = minChunk
		}
	}
	if chunk >= n {
		h, err := scan(ctx, c, query, qNorm, metric, k, 0, n)
		if err != nil {
			return nil, err
		}
		return sorted(h, k), nil
	}

	parts := make([]worstFirst, (n+chunk-1)/chunk)
	g, gctx := errgroup.WithContext(ctx)
	for p := range parts {
		p := p
		lo := p * chunk
		hi := min(lo+chunk, n)
		g.Go(func() error {
			h, err := scan(gctx, c, query, qNorm, metric, k, lo, hi)
			parts[p] = h
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var merged worstFirst
	for _, h := range parts {
		merged = append(merged, h...)
	}
	return sorted(merged, k), nil
}

// scan keeps the k best rows of [lo, hi) in a bounded heap.
func scan(ctx context.Context, c *catalog.Catalog, query []float32, qNorm float64, metric Metric, k, lo, hi int) (worstFirst, error) {
	h := make(worstFirst, 0, min(k, hi-lo))
	for i := lo; i < hi; i++ {
		if (i-lo)&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var d float64
		switch metric {
		case MetricCosine:
			d = cosineDistance(query, qNorm, c.Row(i), c.Norm(i))
		default:
			d = SquaredL2(query, c.Row(i))
		}
		if math.IsNaN(d) {
			d = math.Inf(1)
		}
		cand := Neighbor{Index: i, Distance: d}
		if len(h) < k {
			heap.Push(&h, cand)
			continue
		}
		if less(cand, h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}
	return h, nil
}

func sorted(h worstFirst, k int) []Neighbor {
	out := []Neighbor(h)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > k {
		out = out[:k]
	}
	return out
}
