package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned by Load when the co-indexed arrays disagree.
	ErrShapeMismatch = errors.New("catalog shape mismatch")
	// ErrDimensionMismatch is returned when a query does not have the catalog dimension
	// and the caller asked for strict matching.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrIndexOutOfRange is returned for an index outside [0, N).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrEmptyCatalog is returned by Load when there are no records.
	ErrEmptyCatalog = errors.New("catalog is empty")
)

// ShapeMismatchError describes why a catalog could not be built.
// Row is -1 when the record counts differ.
type ShapeMismatchError struct {
	Vectors     int
	CategoryIDs int
	Row         int
	Expected    int
	Actual      int
}

func (e *ShapeMismatchError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("catalog shape mismatch: %d vectors, %d category ids", e.Vectors, e.CategoryIDs)
	}
	return fmt.Sprintf("catalog shape mismatch: row %d has %d components, expected %d", e.Row, e.Actual, e.Expected)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// DimensionMismatchError indicates a query/catalog dimensionality mismatch.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// IndexOutOfRangeError indicates an index outside the catalog bounds.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexOutOfRangeError) Unwrap() error { return ErrIndexOutOfRange }
