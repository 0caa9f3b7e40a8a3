// Package storage loads and persists embedding catalogs from files, SQLite, and S3-compatible
// object storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/kagami/internal/catalog"
)

// ErrCatalogNotFound is returned when a named catalog does not exist in a store.
var ErrCatalogNotFound = errors.New("catalog not found")

// CatalogStore persists whole catalogs. Saving replaces any catalog with the same name.
type CatalogStore interface {
	SaveCatalog(ctx context.Context, c *catalog.Catalog, opts catalog.WriteOptions) error
	LoadCatalog(ctx context.Context, name string) (*catalog.Catalog, error)
	ListCatalogs(ctx context.Context) ([]CatalogInfo, error)
	DeleteCatalog(ctx context.Context, name string) error
	Close() error
}

// CatalogInfo summarizes a stored catalog.
type CatalogInfo struct {
	Name       string    `json:"name"`
	Dimensions int       `json:"dimensions"`
	Records    int       `json:"records"`
	DType      string    `json:"dtype"`
	Ordinals   bool      `json:"ordinals"`
	CreatedAt  time.Time `json:"created_at"`
}
