package catalog

import "sync/atomic"

// Source yields the catalog a query should scan. Queries call Current once and use
// that catalog for the whole operation.
type Source interface {
	Current() *Catalog
}

// Handle publishes a catalog to concurrent readers and lets a reload replace it
// atomically. Readers never observe a partially built catalog.
type Handle struct {
	current atomic.Pointer[Catalog]
}

// NewHandle returns a handle publishing c.
func NewHandle(c *Catalog) *Handle {
	h := &Handle{}
	h.current.Store(c)
	return h
}

// Current returns the published catalog (nil if none was ever published).
func (h *Handle) Current() *Catalog {
	return h.current.Load()
}

// Swap publishes next and returns the previous catalog. A nil next is ignored.
func (h *Handle) Swap(next *Catalog) *Catalog {
	if next == nil {
		return h.current.Load()
	}
	return h.current.Swap(next)
}
