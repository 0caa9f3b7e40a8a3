// Package encoder turns query text into embeddings comparable with a text-image catalog.
// The encoding model itself runs outside this process; this package holds the client side.
package encoder

import (
	"context"
	"errors"
)

// ErrNoEncoder is returned when a text query is made without a configured encoder.
var ErrNoEncoder = errors.New("no text encoder configured")

// TextEncoder produces an embedding for query text.
type TextEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
