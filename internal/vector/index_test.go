package vector

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kagami/internal/catalog"
)

func fixtureCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(
		[][]float32{
			{0.1, 0.2, 0.3},
			{0.4, 0.5, 0.6},
			{0.7, 0.8, 0.9},
			{0.1, 0.3, 0.5},
			{0.6, 0.4, 0.2},
		},
		[]string{"c0", "c1", "c2", "c3", "c4"},
		catalog.WithName("image"),
	)
	require.NoError(t, err)
	return c
}

func indices(ns []Neighbor) []int {
	out := make([]int, len(ns))
	for i, n := range ns {
		out[i] = n.Index
	}
	return out
}

func TestIndex_Search_Fixture(t *testing.T) {
	idx := NewIndex(fixtureCatalog(t))
	res, err := idx.Search(context.Background(), []float32{0.15, 0.25, 0.35}, 5)
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, []int{0, 3, 1, 4, 2}, indices(res.Neighbors))

	want := []float64{0.0075, 0.0275, 0.1875, 0.2475, 0.9075}
	for i, n := range res.Neighbors {
		assert.InDelta(t, want[i], n.Distance, 1e-6)
	}
}

func TestIndex_Search_ClampsK(t *testing.T) {
	idx := NewIndex(fixtureCatalog(t))
	ctx := context.Background()
	q := []float32{0.15, 0.25, 0.35}

	tests := []struct {
		k    int
		want int
	}{
		{k: 0, want: 0},
		{k: -3, want: 0},
		{k: 1, want: 1},
		{k: 3, want: 3},
		{k: 5, want: 5},
		{k: 50, want: 5},
	}
	for _, tt := range tests {
		res, err := idx.Search(ctx, q, tt.k)
		require.NoError(t, err)
		assert.Len(t, res.Neighbors, tt.want, "k=%d", tt.k)
	}
}

func TestIndex_Search_SelfDistanceZero(t *testing.T) {
	c := fixtureCatalog(t)
	idx := NewIndex(c)
	for i := 0; i < c.Len(); i++ {
		v, _ := c.VectorAt(i)
		res, err := idx.Search(context.Background(), v, 1)
		require.NoError(t, err)
		require.Len(t, res.Neighbors, 1)
		assert.Equal(t, i, res.Neighbors[0].Index)
		assert.Zero(t, res.Neighbors[0].Distance)
	}
}

func TestIndex_Search_Permutation(t *testing.T) {
	c := randomCatalog(t, 200, 8, 1)
	idx := NewIndex(c)
	res, err := idx.Search(context.Background(), make([]float32, 8), c.Len())
	require.NoError(t, err)
	seen := make(map[int]bool)
	for i, n := range res.Neighbors {
		assert.False(t, seen[n.Index], "index %d returned twice", n.Index)
		seen[n.Index] = true
		if i > 0 {
			assert.True(t, less(res.Neighbors[i-1], n), "results must be ascending")
		}
	}
	assert.Len(t, seen, c.Len())
}

func TestIndex_Search_TiesByIndex(t *testing.T) {
	c, err := catalog.Load(
		[][]float32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}, {2, 2}},
		[]string{"a", "b", "c", "d", "e"},
	)
	require.NoError(t, err)
	res, err := NewIndex(c).Search(context.Background(), []float32{0, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, indices(res.Neighbors))

	res, err = NewIndex(c).Search(context.Background(), []float32{0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, indices(res.Neighbors))
}

func TestIndex_Search_DimensionPolicy(t *testing.T) {
	c := fixtureCatalog(t)
	ctx := context.Background()

	_, err := NewIndex(c).Search(ctx, []float32{0.15, 0.25}, 3)
	var dm *catalog.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)

	idx := NewIndex(c, WithDimensionPolicy(PolicyCoerce))
	padded, err := idx.Search(ctx, []float32{0.15, 0.25}, 5)
	require.NoError(t, err)
	assert.True(t, padded.Degraded)
	assert.Equal(t, 2, padded.QueryDimensions)
	assert.Equal(t, 3, padded.CatalogDimensions)
	explicit, err := idx.Search(ctx, []float32{0.15, 0.25, 0}, 5)
	require.NoError(t, err)
	assert.False(t, explicit.Degraded)
	assert.Equal(t, explicit.Neighbors, padded.Neighbors)

	truncated, err := idx.Search(ctx, []float32{0.15, 0.25, 0.35, 9, 9}, 5)
	require.NoError(t, err)
	assert.True(t, truncated.Degraded)
	assert.Equal(t, []int{0, 3, 1, 4, 2}, indices(truncated.Neighbors))
}

func TestIndex_Search_Handle(t *testing.T) {
	h := catalog.NewHandle(fixtureCatalog(t))
	idx := NewIndex(h)
	assert.Equal(t, 5, idx.Size())

	next, err := catalog.Load([][]float32{{9, 9, 9}}, []string{"z"})
	require.NoError(t, err)
	h.Swap(next)
	res, err := idx.Search(context.Background(), []float32{0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, res.Neighbors, 1)
	assert.Same(t, next, res.Catalog)

	_, err = NewIndex(&catalog.Handle{}).Search(context.Background(), []float32{0}, 1)
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestTopK_ParallelMatchesSequential(t *testing.T) {
	prev := minChunk
	minChunk = 64
	t.Cleanup(func() { minChunk = prev })

	c := randomCatalog(t, 1000, 16, 42)
	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()
	for _, metric := range []Metric{MetricL2, MetricCosine} {
		for trial := 0; trial < 5; trial++ {
			q := make([]float32, 16)
			for i := range q {
				q[i] = rng.Float32()*2 - 1
			}
			seq, err := TopK(ctx, c, q, 25, metric, 1)
			require.NoError(t, err)
			par, err := TopK(ctx, c, q, 25, metric, 7)
			require.NoError(t, err)
			assert.Equal(t, seq, par, "metric=%s trial=%d", metric, trial)
		}
	}
}

func TestTopK_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TopK(ctx, fixtureCatalog(t), []float32{0, 0, 0}, 1, MetricL2, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTopK_Cosine_Fixture(t *testing.T) {
	ns, err := TopK(context.Background(), fixtureCatalog(t), []float32{0.15, 0.25, 0.35}, 5, MetricCosine, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3, 2, 4}, indices(ns))
	assert.InDelta(t, 0.002585, ns[0].Distance, 1e-5)
	assert.InDelta(t, 0.237271, ns[4].Distance, 1e-5)
}

func randomCatalog(t *testing.T, n, dim int, seed int64) *catalog.Catalog {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	ids := make([]string, n)
	for i := range vecs {
		vecs[i] = make([]float32, dim)
		for j := range vecs[i] {
			vecs[i][j] = rng.Float32()*2 - 1
		}
		ids[i] = "c" + string(rune('a'+i%26))
	}
	c, err := catalog.Load(vecs, ids)
	require.NoError(t, err)
	return c
}

func TestIndex_Search_WithMetric(t *testing.T) {
	idx := NewIndex(fixtureCatalog(t), WithMetric(MetricCosine), WithWorkers(1))
	assert.Equal(t, MetricCosine, idx.Metric())
	res, err := idx.Search(context.Background(), []float32{0.15, 0.25, 0.35}, 3)
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, res.Metric)
	assert.Equal(t, []int{0, 1, 3}, indices(res.Neighbors))
}
