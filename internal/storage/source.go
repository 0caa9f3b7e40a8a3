package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/config"
)

// LoadCatalog loads the catalog described by cfg from its configured source. The
// returned catalog is named cfg.Name regardless of the name stored with it.
func LoadCatalog(ctx context.Context, cfg config.CatalogConfig, objects config.ObjectStoreConfig) (*catalog.Catalog, error) {
	name := cfg.Name
	if name == "" {
		name = catalogName(cfg.Path)
	}
	switch cfg.Source {
	case config.SourceFile, "":
		return catalog.LoadFile(cfg.Path, catalog.WithName(name))
	case config.SourceSQLite:
		store, err := NewSQLiteStorage(cfg.Path)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		c, err := store.LoadCatalog(ctx, name)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.SourceS3:
		store, err := NewObjectStore(objects)
		if err != nil {
			return nil, err
		}
		return store.LoadCatalog(ctx, cfg.Path, catalog.WithName(name))
	default:
		return nil, fmt.Errorf("unknown catalog source: %s", cfg.Source)
	}
}

// WatchPath returns the local file whose changes should trigger a reload of cfg,
// or "" when the source is not a local file.
func WatchPath(cfg config.CatalogConfig) string {
	switch cfg.Source {
	case config.SourceFile, "", config.SourceSQLite:
		return cfg.Path
	default:
		return ""
	}
}
