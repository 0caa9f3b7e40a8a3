// Package search runs catalog queries: nearest images, nearest categories, text-to-image
// and label lookups. It owns the loaded catalogs and swaps them on reload.
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/config"
	"github.com/hyperjump/kagami/internal/encoder"
	"github.com/hyperjump/kagami/internal/keyword"
	"github.com/hyperjump/kagami/internal/labels"
	"github.com/hyperjump/kagami/internal/storage"
)

// ErrUnknownCatalog is returned for a catalog name that is not configured.
var ErrUnknownCatalog = errors.New("unknown catalog")

// Loader loads the catalog described by cfg.
type Loader func(ctx context.Context, cfg config.CatalogConfig) (*catalog.Catalog, error)

// Engine serves queries over the configured catalogs.
type Engine struct {
	cfg         *config.Config
	logger      *zap.Logger
	loader      Loader
	encoder     encoder.TextEncoder
	labels      *labels.Handle
	labelMu     sync.RWMutex
	labelIndex  *keyword.LabelIndex
	collections map[string]*Collection
	names       []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLoader replaces the storage-backed catalog loader.
func WithLoader(l Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithEncoder sets the text encoder instead of building one from the encoder config.
func WithEncoder(enc encoder.TextEncoder) Option {
	return func(e *Engine) { e.encoder = enc }
}

// NewEngine loads labels and every enabled catalog. Any catalog load error is returned;
// a missing label file only makes every label resolve to labels.Unknown.
func NewEngine(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:         cfg,
		logger:      zap.NewNop(),
		collections: make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loader == nil {
		e.loader = func(ctx context.Context, c config.CatalogConfig) (*catalog.Catalog, error) {
			return storage.LoadCatalog(ctx, c, cfg.ObjectStore)
		}
	}
	if e.encoder == nil {
		e.encoder = NewEncoder(cfg.Encoder)
	}

	lm, err := e.loadLabels()
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	idx, err := keyword.NewLabelIndex(lm)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.labels = labels.NewHandle(lm)
	e.labelIndex = idx

	catalogs := cfg.Catalogs.All()
	if len(catalogs) == 0 {
		_ = e.Close()
		return nil, errors.New("no catalogs configured")
	}
	for _, cc := range catalogs {
		col, err := e.open(ctx, cc)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("load catalog %s: %w", cc.Name, err)
		}
		e.collections[cc.Name] = col
		e.names = append(e.names, cc.Name)
	}
	return e, nil
}

func (e *Engine) loadLabels() (*labels.LabelMap, error) {
	path := e.cfg.Labels.Path
	if path == "" {
		return labels.New(nil), nil
	}
	lm, err := labels.LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("label file not found, categories will be unlabeled", zap.String("path", path))
		return labels.New(nil), nil
	}
	if err != nil {
		return nil, err
	}
	if lm.Skipped() > 0 {
		e.logger.Warn("skipped malformed label lines", zap.String("path", path), zap.Int("skipped", lm.Skipped()))
	}
	e.logger.Info("labels loaded", zap.String("path", path), zap.Int("labels", lm.Len()))
	return lm, nil
}

// Catalogs returns the configured catalog names, image catalog first.
func (e *Engine) Catalogs() []string {
	return append([]string(nil), e.names...)
}

// Collection returns the named catalog pipeline.
func (e *Engine) Collection(name string) (*Collection, error) {
	col, ok := e.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCatalog, name)
	}
	return col, nil
}

// Labels returns the label resolver shared by every catalog.
func (e *Engine) Labels() *labels.Handle { return e.labels }

// HasEncoder reports whether text queries can be encoded.
func (e *Engine) HasEncoder() bool { return e.encoder != nil }

// ReloadLabels re-reads the label file and rebuilds the label index. On error the
// previous labels stay in service.
func (e *Engine) ReloadLabels() error {
	lm, err := labels.LoadFile(e.cfg.Labels.Path)
	if err != nil {
		e.logger.Error("label reload failed", zap.String("path", e.cfg.Labels.Path), zap.Error(err))
		return err
	}
	idx, err := keyword.NewLabelIndex(lm)
	if err != nil {
		return err
	}
	e.labels.Store(lm)
	e.labelMu.Lock()
	old := e.labelIndex
	e.labelIndex = idx
	e.labelMu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	e.logger.Info("labels reloaded", zap.String("path", e.cfg.Labels.Path), zap.Int("labels", lm.Len()))
	return nil
}

// Close releases the label index and the text encoder.
func (e *Engine) Close() error {
	var errs []error
	e.labelMu.Lock()
	if e.labelIndex != nil {
		errs = append(errs, e.labelIndex.Close())
		e.labelIndex = nil
	}
	e.labelMu.Unlock()
	if e.encoder != nil {
		errs = append(errs, e.encoder.Close())
	}
	return errors.Join(errs...)
}
