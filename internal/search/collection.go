package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kagami/internal/assets"
	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/config"
	"github.com/hyperjump/kagami/internal/crossmodal"
	"github.com/hyperjump/kagami/internal/ranking"
	"github.com/hyperjump/kagami/internal/vector"
)

// Collection is one catalog together with the components that query it. All of them
// read the catalog through the same handle, so a reload is seen by every query type.
type Collection struct {
	cfg      config.CatalogConfig
	handle   *catalog.Handle
	index    *vector.Index
	ranker   *ranking.CategoryRanker
	text     *crossmodal.Query
	resolver *assets.Resolver
	loader   Loader
	logger   *zap.Logger
	reloadMu sync.Mutex
}

func (e *Engine) open(ctx context.Context, cc config.CatalogConfig) (*Collection, error) {
	metric, err := vector.ParseMetric(cc.Metric)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	c, err := e.loader(ctx, cc)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With(zap.String("catalog", cc.Name))
	logLoaded(logger, "catalog loaded", c, time.Since(start))

	policy := vector.PolicyCoerce
	if e.cfg.Search.StrictDimensions {
		policy = vector.PolicyStrict
	}
	workers := e.cfg.Search.Workers
	handle := catalog.NewHandle(c)

	textOpts := []crossmodal.Option{
		crossmodal.WithWorkers(workers),
		crossmodal.WithDefaultLimit(e.cfg.Search.TextLimit),
		crossmodal.WithLogger(e.logger),
	}
	if e.encoder != nil && cc.Name == e.cfg.Catalogs.Text.Name {
		textOpts = append(textOpts, crossmodal.WithEncoder(e.encoder))
	}

	return &Collection{
		cfg:    cc,
		handle: handle,
		index: vector.NewIndex(handle,
			vector.WithMetric(metric),
			vector.WithDimensionPolicy(policy),
			vector.WithWorkers(workers),
			vector.WithLogger(e.logger)),
		ranker: ranking.NewCategoryRanker(handle, e.labels,
			ranking.WithConfig(&ranking.Config{DefaultLimit: e.cfg.Search.CategoryLimit, Workers: workers}),
			ranking.WithLogger(e.logger)),
		text: crossmodal.New(handle, textOpts...),
		resolver: assets.NewResolver(handle, cc.Assets.BasePath, assets.Layout{
			Prefix:    cc.Assets.Prefix,
			Suffix:    cc.Assets.Suffix,
			Extension: cc.Assets.Extension,
		}),
		loader: e.loader,
		logger: logger,
	}, nil
}

func logLoaded(logger *zap.Logger, msg string, c *catalog.Catalog, d time.Duration) {
	logger.Info(msg,
		zap.Int("records", c.Len()),
		zap.Int("dimensions", c.Dimensions()),
		zap.Int("categories", c.CategoryCount()),
		zap.Bool("persisted_ordinals", c.HasPersistedOrdinals()),
		zap.Duration("duration", d))
	if m := c.CheckOrdinals(); len(m) > 0 {
		logger.Warn("persisted ordinals disagree with catalog order",
			zap.Int("mismatches", len(m)),
			zap.Int("first_index", m[0].Index))
	}
}

// Name returns the catalog name.
func (col *Collection) Name() string { return col.cfg.Name }

// Config returns the catalog configuration.
func (col *Collection) Config() config.CatalogConfig { return col.cfg }

// Catalog returns the catalog currently in service.
func (col *Collection) Catalog() *catalog.Catalog { return col.handle.Current() }

// Metric returns the metric of neighbor queries.
func (col *Collection) Metric() vector.Metric { return col.index.Metric() }

// Resolver returns the asset path resolver.
func (col *Collection) Resolver() *assets.Resolver { return col.resolver }

// Reload loads the catalog again and swaps it in. Queries already running finish on the
// previous catalog. On error the previous catalog stays in service.
func (col *Collection) Reload(ctx context.Context) error {
	col.reloadMu.Lock()
	defer col.reloadMu.Unlock()
	start := time.Now()
	c, err := col.loader(ctx, col.cfg)
	if err != nil {
		col.logger.Error("catalog reload failed, keeping previous catalog", zap.Error(err))
		return fmt.Errorf("reload catalog %s: %w", col.cfg.Name, err)
	}
	old := col.handle.Swap(c)
	if old != nil && old.Dimensions() != c.Dimensions() {
		col.logger.Warn("catalog dimensions changed on reload",
			zap.Int("previous", old.Dimensions()),
			zap.Int("current", c.Dimensions()))
	}
	logLoaded(col.logger, "catalog reloaded", c, time.Since(start))
	return nil
}

// Reload reloads the named catalog.
func (e *Engine) Reload(ctx context.Context, name string) error {
	col, err := e.Collection(name)
	if err != nil {
		return err
	}
	return col.Reload(ctx)
}
