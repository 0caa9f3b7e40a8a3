// Package labels maps raw category ids (e.g. WordNet ids) to human-readable labels.
// Labels are for display only and never influence ranking.
package labels

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// Unknown is returned by Label for ids without an entry.
const Unknown = "unknown"

// ErrUnknownCategoryLabel is returned by Lookup when an id has no label.
var ErrUnknownCategoryLabel = errors.New("unknown category label")

// Resolver resolves a category id to its display label.
type Resolver interface {
	Label(categoryID string) string
}

// LabelMap is an immutable id -> label mapping.
type LabelMap struct {
	labels  map[string]string
	skipped int
}

// New returns a LabelMap holding a copy of m.
func New(m map[string]string) *LabelMap {
	lm := &LabelMap{labels: make(map[string]string, len(m))}
	for k, v := range m {
		lm.labels[k] = v
	}
	return lm
}

// Load parses "category_id<TAB>label" lines. Surrounding whitespace is trimmed and lines
// that do not split into exactly two fields are skipped. A later line wins over an earlier
// one with the same id.
func Load(r io.Reader) (*LabelMap, error) {
	lm := &LabelMap{labels: make(map[string]string)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			lm.skipped++
			continue
		}
		lm.labels[parts[0]] = parts[1]
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return lm, nil
}

// LoadFile reads a label file from disk.
func LoadFile(path string) (*LabelMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Lookup returns the label for categoryID or ErrUnknownCategoryLabel.
func (m *LabelMap) Lookup(categoryID string) (string, error) {
	if m != nil {
		if l, ok := m.labels[categoryID]; ok {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCategoryLabel, categoryID)
}

// Label returns the label for categoryID, or Unknown. A nil map resolves everything to Unknown.
func (m *LabelMap) Label(categoryID string) string {
	l, err := m.Lookup(categoryID)
	if err != nil {
		return Unknown
	}
	return l
}

// Len returns the number of labels.
func (m *LabelMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.labels)
}

// Skipped returns how many malformed lines Load ignored.
func (m *LabelMap) Skipped() int {
	if m == nil {
		return 0
	}
	return m.skipped
}

// Each calls fn for every entry in id order.
func (m *LabelMap) Each(fn func(categoryID, label string)) {
	if m == nil {
		return
	}
	ids := make([]string, 0, len(m.labels))
	for id := range m.labels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(id, m.labels[id])
	}
}

// Handle publishes a LabelMap and allows replacing it on reload.
type Handle struct {
	current atomic.Pointer[LabelMap]
}

// NewHandle returns a handle publishing m (which may be nil).
func NewHandle(m *LabelMap) *Handle {
	h := &Handle{}
	h.current.Store(m)
	return h
}

// Current returns the published map.
func (h *Handle) Current() *LabelMap { return h.current.Load() }

// Store replaces the published map.
func (h *Handle) Store(m *LabelMap) { h.current.Store(m) }

// Label resolves through the currently published map.
func (h *Handle) Label(categoryID string) string { return h.Current().Label(categoryID) }
