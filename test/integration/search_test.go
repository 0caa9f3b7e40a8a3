// Package integration runs the engine against catalogs persisted to real storage.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/config"
	"github.com/hyperjump/kagami/internal/models"
	"github.com/hyperjump/kagami/internal/search"
	"github.com/hyperjump/kagami/internal/server"
	"github.com/hyperjump/kagami/internal/storage"
)

const words = "n01443537\tgoldfish, Carassius auratus\n" +
	"n01629819\tEuropean fire salamander, Salamandra salamandra\n" +
	"n01641577\tbullfrog, Rana catesbeiana\n"

func setup(t *testing.T) (*config.Config, *search.Engine) {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	image, err := catalog.Load(
		[][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}, {0.7, 0.8, 0.9}, {0.1, 0.3, 0.5}, {0.6, 0.4, 0.2}},
		[]string{"n01443537", "n01629819", "n01641577", "n01443537", "n01629819"},
	)
	if err != nil {
		t.Fatal(err)
	}
	imagePath := filepath.Join(dir, "catalogs", "image.kgc.zst")
	if err := os.MkdirAll(filepath.Dir(imagePath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := catalog.SaveFile(imagePath, image, catalog.WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	text, err := catalog.Load(
		[][]float32{{1, 0}, {0.8, 0.6}, {0, 1}},
		[]string{"n01443537", "n01443537", "n01629819"},
		catalog.WithName("text"),
	)
	if err != nil {
		t.Fatal(err)
	}
	dbPath := filepath.Join(dir, "catalogs", "catalogs.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveCatalog(ctx, text, catalog.WriteOptions{Float16: true}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	labelsPath := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(labelsPath, []byte(words), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Labels.Path = labelsPath
	cfg.Catalogs.Image.Path = imagePath
	cfg.Catalogs.Image.Assets.BasePath = filepath.Join(dir, "tiny-imagenet-200")
	cfg.Catalogs.Text.Source = config.SourceSQLite
	cfg.Catalogs.Text.Path = dbPath
	cfg.Catalogs.Text.Assets.BasePath = filepath.Join(dir, "tiny-imagenet-200", "train")

	engine, err := search.NewEngine(ctx, cfg, search.WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return cfg, engine
}

func TestIntegration_SimilarImages(t *testing.T) {
	cfg, engine := setup(t)
	resp, err := engine.SimilarImages(context.Background(), "image", &models.VectorQuery{Vector: []float32{0.15, 0.25, 0.35}, K: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 3, 1}
	if len(resp.Hits) != len(want) {
		t.Fatalf("got %d hits, want %d", len(resp.Hits), len(want))
	}
	for i, h := range resp.Hits {
		if h.Index != want[i] {
			t.Errorf("hit %d index = %d, want %d", i, h.Index, want[i])
		}
	}
	wantPath := filepath.Join(cfg.Catalogs.Image.Assets.BasePath, "train", "n01443537", "images", "n01443537_1.JPEG")
	if resp.Hits[1].Path != wantPath {
		t.Errorf("path = %s, want %s", resp.Hits[1].Path, wantPath)
	}
	if resp.Hits[0].Label != "goldfish, Carassius auratus" {
		t.Errorf("label = %q", resp.Hits[0].Label)
	}
}

func TestIntegration_CategoriesFromSQLite(t *testing.T) {
	_, engine := setup(t)
	resp, err := engine.Categories(context.Background(), "text", &models.VectorQuery{Vector: []float32{1, 0.1}, K: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Categories) != 3 {
		t.Fatalf("got %d categories, want 3", len(resp.Categories))
	}
	if resp.Categories[0].CategoryID != "n01443537" || resp.Categories[1].CategoryID != "n01443537" {
		t.Errorf("categories are not deduplicated: %+v", resp.Categories)
	}
	if resp.Categories[2].Label != "European fire salamander, Salamandra salamandra" {
		t.Errorf("label = %q", resp.Categories[2].Label)
	}
}

func TestIntegration_HTTP(t *testing.T) {
	cfg, engine := setup(t)
	srv := httptest.NewServer(server.NewServer(engine, &cfg.Server, zap.NewNop()).Handler())
	defer srv.Close()

	body, _ := json.Marshal(&models.VectorQuery{Vector: []float32{0.15, 0.25, 0.35}, K: 2})
	resp, err := http.Post(srv.URL+"/api/v1/catalogs/image/neighbors", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 2 || out.Hits[0].Index != 0 || out.Hits[1].Index != 3 {
		t.Errorf("unexpected response: %+v", out)
	}

	st, err := http.Get(srv.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Body.Close()
	var status models.Status
	if err := json.NewDecoder(st.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if len(status.Catalogs) != 2 {
		t.Errorf("status lists %d catalogs, want 2", len(status.Catalogs))
	}
}
