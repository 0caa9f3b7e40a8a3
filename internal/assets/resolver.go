// Package assets reconstructs on-disk image paths from catalog indices.
//
// Paths are never stored per record. The file name is "<category_id>_<ordinal>" where
// the ordinal is the record's position among all records of its category. This is only
// correct when the catalog was generated in the same per-category order the dataset
// files were enumerated in; Check and catalog.CheckOrdinals surface violations, the
// resolver itself never detects them.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hyperjump/kagami/internal/catalog"
)

// Layout describes where a category's images live relative to the base path:
//
//	<base>/<Prefix...>/<category_id>/<Suffix...>/<category_id>_<ordinal><Extension>
type Layout struct {
	Prefix    []string `yaml:"prefix"`
	Suffix    []string `yaml:"suffix"`
	Extension string   `yaml:"extension"`
}

// TrainLayout is the Tiny ImageNet training split layout used by the image catalog.
func TrainLayout() Layout {
	return Layout{Prefix: []string{"train"}, Suffix: []string{"images"}, Extension: ".JPEG"}
}

// CategoryLayout is TrainLayout with the split directory folded into the base path,
// as used by the text-image catalog.
func CategoryLayout() Layout {
	return Layout{Suffix: []string{"images"}, Extension: ".JPEG"}
}

// Resolver maps catalog indices to asset paths.
type Resolver struct {
	source catalog.Source
	base   string
	layout Layout
}

// NewResolver returns a resolver over source. base is used by ResolveDefault.
func NewResolver(source catalog.Source, base string, layout Layout) *Resolver {
	return &Resolver{source: source, base: base, layout: layout}
}

// Base returns the default base path.
func (r *Resolver) Base() string { return r.base }

// FileName returns "<category_id>_<ordinal><ext>" for index.
func (r *Resolver) FileName(index int) (string, error) {
	c := r.source.Current()
	if c == nil {
		return "", errors.New("no catalog loaded")
	}
	return fileName(c, index, r.layout.Extension)
}

func fileName(c *catalog.Catalog, index int, ext string) (string, error) {
	id, err := c.CategoryIDAt(index)
	if err != nil {
		return "", err
	}
	ord, err := c.Ordinal(index)
	if err != nil {
		return "", err
	}
	return id + "_" + strconv.Itoa(ord) + ext, nil
}

// Resolve returns the path of the image at index under base. It fails only when
// index is outside the catalog. The result is deterministic for a given catalog.
func (r *Resolver) Resolve(index int, base string) (string, error) {
	c := r.source.Current()
	if c == nil {
		return "", errors.New("no catalog loaded")
	}
	return resolve(c, index, base, r.layout)
}

// ResolveDefault resolves index under the configured base path.
func (r *Resolver) ResolveDefault(index int) (string, error) {
	return r.Resolve(index, r.base)
}

// PathIn resolves index under the default base against c, typically the catalog a
// query ran on, so that results stay consistent across a reload.
func (r *Resolver) PathIn(c *catalog.Catalog, index int) (string, error) {
	return resolve(c, index, r.base, r.layout)
}

func resolve(c *catalog.Catalog, index int, base string, l Layout) (string, error) {
	name, err := fileName(c, index, l.Extension)
	if err != nil {
		return "", err
	}
	id, _ := c.CategoryIDAt(index)
	parts := make([]string, 0, len(l.Prefix)+len(l.Suffix)+3)
	parts = append(parts, base)
	parts = append(parts, l.Prefix...)
	parts = append(parts, id)
	parts = append(parts, l.Suffix...)
	parts = append(parts, name)
	return filepath.Join(parts...), nil
}

// Missing is a catalog record whose resolved image does not exist.
type Missing struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// Check resolves every record under the default base and reports paths that do not
// exist on disk. Stat errors other than not-exist are returned. limit <= 0 checks all.
func (r *Resolver) Check(limit int) ([]Missing, error) {
	c := r.source.Current()
	if c == nil {
		return nil, errors.New("no catalog loaded")
	}
	var out []Missing
	for i := 0; i < c.Len(); i++ {
		p, err := resolve(c, i, r.base, r.layout)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(p); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("stat %s: %w", p, err)
			}
			out = append(out, Missing{Index: i, Path: p})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
