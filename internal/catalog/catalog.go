// Package catalog holds the immutable embedding catalog: a row-major vector matrix
// with a co-indexed category id per row.
//
// A Catalog is never mutated after Load. Reloading means building a new Catalog and
// swapping it into a Handle, so a scan always observes one consistent catalog.
package catalog

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Catalog is an ordered, read-only sequence of (vector, category id) records indexed 0..N-1.
type Catalog struct {
	name        string
	dim         int
	data        []float32 // N*dim, row-major
	norms       []float64
	categoryIDs []string
	ordinals    []int32 // persisted by the catalog builder; nil when derived
	members     map[string]*roaring.Bitmap
	loadedAt    time.Time
}

type options struct {
	name     string
	ordinals []int
}

// Option configures Load.
type Option func(*options)

// WithName sets the catalog name used in logs and status output.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithOrdinals attaches per-record ordinals persisted by the offline builder.
// When set, Ordinal returns these instead of deriving them from catalog order.
func WithOrdinals(ordinals []int) Option {
	return func(o *options) { o.ordinals = ordinals }
}

// Load builds a catalog from co-indexed vectors and category ids. The input slices are copied.
func Load(vectors [][]float32, categoryIDs []string, opts ...Option) (*Catalog, error) {
	if len(vectors) != len(categoryIDs) {
		return nil, &ShapeMismatchError{Vectors: len(vectors), CategoryIDs: len(categoryIDs), Row: -1}
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyCatalog
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional vectors", ErrShapeMismatch)
	}
	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &ShapeMismatchError{
				Vectors: len(vectors), CategoryIDs: len(categoryIDs),
				Row: i, Expected: dim, Actual: len(v),
			}
		}
		data = append(data, v...)
	}
	ids := make([]string, len(categoryIDs))
	copy(ids, categoryIDs)
	return build(dim, data, ids, opts...)
}

// build takes ownership of data and ids.
func build(dim int, data []float32, ids []string, opts ...Option) (*Catalog, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	n := len(ids)
	if n == 0 {
		return nil, ErrEmptyCatalog
	}
	if dim <= 0 {
		return nil, fmt.Errorf("%w: zero-dimensional vectors", ErrShapeMismatch)
	}
	if len(data) != n*dim {
		return nil, &ShapeMismatchError{Vectors: len(data) / dim, CategoryIDs: n, Row: -1}
	}
	c := &Catalog{
		name:        o.name,
		dim:         dim,
		data:        data,
		norms:       make([]float64, n),
		categoryIDs: ids,
		members:     make(map[string]*roaring.Bitmap),
		loadedAt:    time.Now(),
	}
	for i := 0; i < n; i++ {
		var sum float64
		for _, v := range c.Row(i) {
			sum += float64(v) * float64(v)
		}
		c.norms[i] = math.Sqrt(sum)

		bm, ok := c.members[ids[i]]
		if !ok {
			bm = roaring.New()
			c.members[ids[i]] = bm
		}
		bm.Add(uint32(i))
	}
	for _, bm := range c.members {
		bm.RunOptimize()
	}
	if o.ordinals != nil {
		if len(o.ordinals) != n {
			return nil, fmt.Errorf("%w: %d ordinals for %d records", ErrShapeMismatch, len(o.ordinals), n)
		}
		c.ordinals = make([]int32, n)
		for i, ord := range o.ordinals {
			if ord < 0 || ord > math.MaxInt32 {
				return nil, fmt.Errorf("%w: invalid ordinal %d at row %d", ErrShapeMismatch, ord, i)
			}
			c.ordinals[i] = int32(ord)
		}
	}
	return c, nil
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Len returns the number of records N.
func (c *Catalog) Len() int { return len(c.categoryIDs) }

// Dimensions returns the embedding dimensionality D.
func (c *Catalog) Dimensions() int { return c.dim }

// LoadedAt returns when the catalog was built.
func (c *Catalog) LoadedAt() time.Time { return c.loadedAt }

// CheckIndex returns an *IndexOutOfRangeError when index is outside [0, N).
func (c *Catalog) CheckIndex(index int) error {
	if index < 0 || index >= c.Len() {
		return &IndexOutOfRangeError{Index: index, Len: c.Len()}
	}
	return nil
}

// VectorAt returns a copy of the vector at index.
func (c *Catalog) VectorAt(index int) ([]float32, error) {
	if err := c.CheckIndex(index); err != nil {
		return nil, err
	}
	out := make([]float32, c.dim)
	copy(out, c.Row(index))
	return out, nil
}

// Row returns the stored vector at index without copying. Callers must not modify it.
// Row panics when index is out of range; use CheckIndex first for untrusted input.
func (c *Catalog) Row(index int) []float32 {
	off := index * c.dim
	return c.data[off : off+c.dim : off+c.dim]
}

// Norm returns the L2 norm of the vector at index, computed once at load.
func (c *Catalog) Norm(index int) float64 { return c.norms[index] }

// CategoryIDAt returns the category id of the record at index.
func (c *Catalog) CategoryIDAt(index int) (string, error) {
	if err := c.CheckIndex(index); err != nil {
		return "", err
	}
	return c.categoryIDs[index], nil
}

// HasPersistedOrdinals reports whether ordinals came from the catalog builder.
func (c *Catalog) HasPersistedOrdinals() bool { return c.ordinals != nil }

// Ordinal returns the 0-based position of index among all records sharing its category id.
// Persisted ordinals win over derived ones.
func (c *Catalog) Ordinal(index int) (int, error) {
	if err := c.CheckIndex(index); err != nil {
		return 0, err
	}
	if c.ordinals != nil {
		return int(c.ordinals[index]), nil
	}
	return c.derivedOrdinal(index), nil
}

// derivedOrdinal counts members of the same category up to and including index.
func (c *Catalog) derivedOrdinal(index int) int {
	bm := c.members[c.categoryIDs[index]]
	return int(bm.Rank(uint32(index))) - 1
}

// Members returns the indices sharing categoryID, in catalog order.
func (c *Catalog) Members(categoryID string) []int {
	bm, ok := c.members[categoryID]
	if !ok {
		return nil
	}
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Categories returns the distinct category ids, sorted.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.members))
	for id := range c.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CategoryCount returns the number of distinct category ids.
func (c *Catalog) CategoryCount() int { return len(c.members) }

// OrdinalMismatch is a record whose persisted ordinal disagrees with catalog order.
type OrdinalMismatch struct {
	Index      int    `json:"index"`
	CategoryID string `json:"category_id"`
	Persisted  int    `json:"persisted"`
	Derived    int    `json:"derived"`
}

// CheckOrdinals compares persisted ordinals against positional ones. It returns nil
// when ordinals are derived. A non-empty result means generation order and the
// builder's enumeration order diverged; paths are still resolved from persisted values.
func (c *Catalog) CheckOrdinals() []OrdinalMismatch {
	if c.ordinals == nil {
		return nil
	}
	var out []OrdinalMismatch
	for i := range c.categoryIDs {
		derived := c.derivedOrdinal(i)
		if int(c.ordinals[i]) != derived {
			out = append(out, OrdinalMismatch{
				Index:      i,
				CategoryID: c.categoryIDs[i],
				Persisted:  int(c.ordinals[i]),
				Derived:    derived,
			})
		}
	}
	return out
}

// Coerce adapts query to the catalog dimension: longer queries are truncated to the
// first D components, shorter ones are right-padded with zeros. degraded is true when
// the query was changed. The input slice is never modified.
func (c *Catalog) Coerce(query []float32) (out []float32, degraded bool) {
	if len(query) == c.dim {
		return query, false
	}
	out = make([]float32, c.dim)
	copy(out, query)
	return out, true
}

// Current returns c, so a bare *Catalog can be used wherever a Source is expected.
func (c *Catalog) Current() *Catalog { return c }
