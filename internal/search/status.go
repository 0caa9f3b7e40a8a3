package search

import (
	"context"
	"errors"

	"github.com/hyperjump/kagami/internal/assets"
	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/config"
	"github.com/hyperjump/kagami/internal/models"
	"github.com/hyperjump/kagami/internal/storage"
)

// Status reports every loaded catalog and the label map.
func (e *Engine) Status() (*models.Status, error) {
	out := &models.Status{
		Catalogs:   make([]*models.CatalogStatus, 0, len(e.names)),
		Labels:     e.labels.Current().Len(),
		LabelsPath: e.cfg.Labels.Path,
		Encoder:    e.encoder != nil,
	}
	for _, name := range e.names {
		col := e.collections[name]
		c := col.handle.Current()
		st := &models.CatalogStatus{
			Name:             name,
			Source:           col.cfg.Source,
			Path:             col.cfg.Path,
			Metric:           col.Metric().String(),
			Records:          c.Len(),
			Dimensions:       c.Dimensions(),
			Categories:       c.CategoryCount(),
			PersistedOrdinal: c.HasPersistedOrdinals(),
			OrdinalMismatch:  len(c.CheckOrdinals()),
			LoadedAt:         c.LoadedAt(),
		}
		if col.cfg.Source != config.SourceS3 {
			size, err := storage.DiskUsageBytes(col.cfg.Path)
			if err != nil {
				return nil, err
			}
			st.SizeBytes = size
		}
		out.Catalogs = append(out.Catalogs, st)
	}
	return out, nil
}

// CheckAssets reports records of the named catalog whose image is missing on disk.
// limit <= 0 checks every record.
func (e *Engine) CheckAssets(name string, limit int) ([]assets.Missing, error) {
	col, err := e.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.resolver.Check(limit)
}

// CheckOrdinals reports records of the named catalog whose persisted ordinal differs
// from the one derived from catalog order.
func (e *Engine) CheckOrdinals(name string) ([]catalog.OrdinalMismatch, error) {
	col, err := e.Collection(name)
	if err != nil {
		return nil, err
	}
	return col.handle.Current().CheckOrdinals(), nil
}

// WatchTargets maps each local file backing the engine to the reload it triggers.
// Catalogs sharing a database file are reloaded together.
func (e *Engine) WatchTargets() map[string]func(context.Context) error {
	reloads := make(map[string][]func(context.Context) error)
	for _, name := range e.names {
		col := e.collections[name]
		if p := storage.WatchPath(col.cfg); p != "" {
			reloads[p] = append(reloads[p], col.Reload)
		}
	}
	if p := e.cfg.Labels.Path; p != "" {
		reloads[p] = append(reloads[p], func(context.Context) error { return e.ReloadLabels() })
	}
	out := make(map[string]func(context.Context) error, len(reloads))
	for p, fns := range reloads {
		fns := fns
		out[p] = func(ctx context.Context) error {
			var errs []error
			for _, fn := range fns {
				errs = append(errs, fn(ctx))
			}
			return errors.Join(errs...)
		}
	}
	return out
}
