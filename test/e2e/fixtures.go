package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/config"
	"github.com/hyperjump/kagami/internal/storage"
)

// Dataset is a corpus written to disk in the Tiny ImageNet layout.
type Dataset struct {
	Config *config.Config
	Corpus *Corpus
}

// WriteDataset writes the corpus catalogs, label file and placeholder images under dir.
// The image catalog is a compressed file and the text catalog a SQLite row; both index
// the same records. Images of the indices in missing are not written.
func WriteDataset(ctx context.Context, dir string, corpus *Corpus, missing ...int) (*Dataset, error) {
	cfg := config.Default()
	cfg.Labels.Path = filepath.Join(dir, "tiny-imagenet-200", "words.txt")
	cfg.Catalogs.Image.Path = filepath.Join(dir, "catalogs", "image.kgc.zst")
	cfg.Catalogs.Image.Assets.BasePath = filepath.Join(dir, "tiny-imagenet-200")
	cfg.Catalogs.Text.Source = config.SourceSQLite
	cfg.Catalogs.Text.Path = filepath.Join(dir, "catalogs", "catalogs.db")
	cfg.Catalogs.Text.Assets.BasePath = filepath.Join(dir, "tiny-imagenet-200", "train")
	cfg.Search.Workers = 2

	if err := os.MkdirAll(filepath.Join(dir, "catalogs"), 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Labels.Path), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(cfg.Labels.Path, []byte(corpus.Words()), 0644); err != nil {
		return nil, err
	}

	ds := &Dataset{Config: cfg, Corpus: corpus}
	if err := ds.WriteImageCatalog(corpus.Vectors, corpus.CategoryIDs); err != nil {
		return nil, err
	}
	text, err := catalog.Load(corpus.Vectors, corpus.CategoryIDs, catalog.WithName(cfg.Catalogs.Text.Name))
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(cfg.Catalogs.Text.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if err := store.SaveCatalog(ctx, text, catalog.WriteOptions{Float16: true}); err != nil {
		return nil, err
	}

	skip := make(map[int]bool, len(missing))
	for _, i := range missing {
		skip[i] = true
	}
	seen := make(map[string]int)
	for i, id := range corpus.CategoryIDs {
		ordinal := seen[id]
		seen[id]++
		if skip[i] {
			continue
		}
		imgDir := filepath.Join(cfg.Catalogs.Image.Assets.BasePath, "train", id, "images")
		if err := os.MkdirAll(imgDir, 0755); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s_%d.JPEG", id, ordinal)
		if err := os.WriteFile(filepath.Join(imgDir, name), []byte("jpeg"), 0644); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// WriteImageCatalog replaces the image catalog file.
func (d *Dataset) WriteImageCatalog(vectors [][]float32, ids []string) error {
	c, err := catalog.Load(vectors, ids)
	if err != nil {
		return err
	}
	return catalog.SaveFile(d.Config.Catalogs.Image.Path, c, catalog.WriteOptions{})
}
