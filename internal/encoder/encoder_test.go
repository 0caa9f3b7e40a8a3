package encoder

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestMockEncoder(t *testing.T) {
	e := NewMockEncoder(16)
	ctx := context.Background()
	a, err := e.Encode(ctx, "a goldfish")
	require.NoError(t, err)
	b, err := e.Encode(ctx, "a goldfish")
	require.NoError(t, err)
	c, err := e.Encode(ctx, "a tailed frog")
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.InDelta(t, 1, norm(a), 1e-5)
	assert.Equal(t, 512, NewMockEncoder(0).Dimensions())
}

func TestCache(t *testing.T) {
	c := NewCache(2)
	_, ok := c.Get("a")
	assert.False(t, ok)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	_, ok = c.Get("a") // a is now most recent
	assert.True(t, ok)
	c.Set("c", []float32{3}) // evicts b
	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

type countingEncoder struct {
	*MockEncoder
	calls atomic.Int32
}

func (e *countingEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	return e.MockEncoder.Encode(ctx, text)
}

func TestCachedEncoder(t *testing.T) {
	inner := &countingEncoder{MockEncoder: NewMockEncoder(4)}
	enc := NewCachedEncoder(inner, 8)
	ctx := context.Background()

	first, err := enc.Encode(ctx, "frog")
	require.NoError(t, err)
	first[0] = 99
	second, err := enc.Encode(ctx, "frog")
	require.NoError(t, err)
	assert.NotEqual(t, float32(99), second[0], "cached vector must not be shared with callers")
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 4, enc.Dimensions())
}

func TestHTTPEncoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req encodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Text == "fail" {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(encodeResponse{Embedding: []float32{3, 4}})
	}))
	defer srv.Close()

	enc := NewHTTPEncoder(srv.URL, 2, time.Second)
	defer enc.Close()
	v, err := enc.Encode(context.Background(), "a frog")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	_, err = enc.Encode(context.Background(), "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")

	_, err = NewHTTPEncoder(srv.URL, 3, time.Second).Encode(context.Background(), "a frog")
	assert.Error(t, err)
}
