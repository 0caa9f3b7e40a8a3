package encoder

import (
	"context"
	"math"

	"github.com/hyperjump/kagami/pkg/utils"
)

// MockEncoder is a deterministic encoder for tests and offline demos. The same text
// always maps to the same unit vector.
type MockEncoder struct {
	dimensions int
}

// NewMockEncoder returns an encoder producing vectors of the given dimensions (default 512).
func NewMockEncoder(dimensions int) *MockEncoder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEncoder{dimensions: dimensions}
}

// Encode returns a unit-length vector derived from the text hash.
func (e *MockEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := hashString(text)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEncoder) Dimensions() int { return e.dimensions }

// Close is a no-op.
func (e *MockEncoder) Close() error { return nil }

func hashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
