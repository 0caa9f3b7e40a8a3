// Package models defines request and response types for catalog queries.
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidQuery is wrapped by every validation failure.
var ErrInvalidQuery = errors.New("invalid query")

// VectorQuery is a k-NN request. Text is only honored by text search, where it is
// encoded into a vector when Vector is empty.
type VectorQuery struct {
	Vector []float32 `json:"vector,omitempty"`
	Text   string    `json:"text,omitempty"`
	K      int       `json:"k,omitempty"`
}

// Validate checks that the query carries a finite, non-empty vector and normalizes K:
// values <= 0 become defaultLimit and values above maxLimit are capped.
func (q *VectorQuery) Validate(defaultLimit, maxLimit int) error {
	if len(q.Vector) == 0 {
		return fmt.Errorf("%w: vector cannot be empty", ErrInvalidQuery)
	}
	if err := q.checkFinite(); err != nil {
		return err
	}
	q.normalizeK(defaultLimit, maxLimit)
	return nil
}

// ValidateText is like Validate but accepts a text query in place of a vector.
func (q *VectorQuery) ValidateText(defaultLimit, maxLimit int) error {
	q.Text = strings.TrimSpace(q.Text)
	if len(q.Vector) == 0 && q.Text == "" {
		return fmt.Errorf("%w: vector or text is required", ErrInvalidQuery)
	}
	if err := q.checkFinite(); err != nil {
		return err
	}
	q.normalizeK(defaultLimit, maxLimit)
	return nil
}

func (q *VectorQuery) checkFinite() error {
	for i, v := range q.Vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: vector[%d] is not finite", ErrInvalidQuery, i)
		}
	}
	return nil
}

func (q *VectorQuery) normalizeK(defaultLimit, maxLimit int) {
	if q.K <= 0 {
		q.K = defaultLimit
	}
	if maxLimit > 0 && q.K > maxLimit {
		q.K = maxLimit
	}
}
