package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kagami/internal/catalog"
	"github.com/hyperjump/kagami/internal/config"
	"github.com/hyperjump/kagami/internal/encoder"
	"github.com/hyperjump/kagami/internal/models"
	"github.com/hyperjump/kagami/internal/search"
)

func newTestServer(t *testing.T, serverCfg config.ServerConfig) (http.Handler, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	labelsPath := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(labelsPath, []byte("n01443537\tgoldfish, Carassius auratus\nn01629819\tEuropean fire salamander\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Server = serverCfg
	cfg.Labels.Path = labelsPath
	cfg.Catalogs.Image.Path = filepath.Join(dir, "image.kgc")
	cfg.Catalogs.Image.Assets.BasePath = dir
	cfg.Search.Workers = 1

	loader := func(_ context.Context, cc config.CatalogConfig) (*catalog.Catalog, error) {
		return catalog.Load(
			[][]float32{{0.1, 0.2, 0.3}, {0.4, 0.5, 0.6}, {0.7, 0.8, 0.9}, {0.1, 0.3, 0.5}, {0.6, 0.4, 0.2}},
			[]string{"n01443537", "n01629819", "n01443537", "n01629819", "n01443537"},
			catalog.WithName(cc.Name))
	}
	engine, err := search.NewEngine(context.Background(), cfg, search.WithLoader(loader))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return NewServer(engine, &cfg.Server, zap.NewNop()).Handler(), cfg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["status"]; got != "ok" {
		t.Errorf("health body status = %q", got)
	}
}

func TestHandleNeighbors(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodPost, "/api/v1/catalogs/image/neighbors", `{"vector":[0.15,0.25,0.35],"k":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[models.SearchResponse](t, rec)
	if resp.Metric != "l2" || resp.Total != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	want := []int{0, 3, 1}
	for i, hit := range resp.Hits {
		if hit.Index != want[i] {
			t.Errorf("hit %d index = %d, want %d", i, hit.Index, want[i])
		}
	}
	if resp.Hits[1].Path != filepath.Join(filepath.Dir(resp.Hits[1].Path), "n01629819_1.JPEG") {
		t.Errorf("hit path = %q, want ordinal 1 of n01629819", resp.Hits[1].Path)
	}
	if resp.QueryID == "" {
		t.Error("missing query id")
	}
}

func TestHandleQuery_Errors(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})
	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"invalid json", "/api/v1/catalogs/image/neighbors", `{"vector":`, http.StatusBadRequest},
		{"empty vector", "/api/v1/catalogs/image/neighbors", `{"vector":[]}`, http.StatusBadRequest},
		{"unknown catalog", "/api/v1/catalogs/audio/neighbors", `{"vector":[1,2,3]}`, http.StatusNotFound},
		{"text without encoder", "/api/v1/catalogs/image/text", `{"text":"goldfish"}`, http.StatusNotImplemented},
		{"text without query", "/api/v1/catalogs/image/text", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if decode[map[string]string](t, rec)["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestHandleCategories(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodPost, "/api/v1/catalogs/image/categories", `{"vector":[0.15,0.25,0.35]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[models.CategoryResponse](t, rec)
	if resp.Total != 5 {
		t.Fatalf("total = %d, want the default of 5", resp.Total)
	}
	goldfish := 0
	for _, c := range resp.Categories {
		if c.Label == "goldfish, Carassius auratus" {
			goldfish++
		}
	}
	if goldfish != 3 {
		t.Errorf("goldfish rows = %d, want 3 (labels are not merged)", goldfish)
	}
}

func TestHandleText_Vector(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodPost, "/api/v1/catalogs/image/text", `{"vector":[0.15,0.25,0.35],"k":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[models.SearchResponse](t, rec)
	if resp.Metric != "cosine" || len(resp.Hits) != 2 || resp.Hits[0].Index != 0 || resp.Hits[1].Index != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleItem(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodGet, "/api/v1/catalogs/image/items/4", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	item := decode[models.Item](t, rec)
	if item.CategoryID != "n01443537" || item.Ordinal != 2 || !strings.HasSuffix(item.Path, "n01443537_2.JPEG") {
		t.Errorf("unexpected item: %+v", item)
	}

	for path, status := range map[string]int{
		"/api/v1/catalogs/image/items/5":   http.StatusNotFound,
		"/api/v1/catalogs/image/items/-1":  http.StatusNotFound,
		"/api/v1/catalogs/image/items/abc": http.StatusBadRequest,
		"/api/v1/catalogs/text/items/0":    http.StatusNotFound,
	} {
		if rec := do(t, h, http.MethodGet, path, ""); rec.Code != status {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, status)
		}
	}
}

func TestHandleItemImage(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodGet, "/api/v1/catalogs/image/items/1/image", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing image status = %d", rec.Code)
	}

	item := decode[models.Item](t, do(t, h, http.MethodGet, "/api/v1/catalogs/image/items/1", ""))
	if err := os.MkdirAll(filepath.Dir(item.Path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(item.Path, []byte("jpeg bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	rec = do(t, h, http.MethodGet, "/api/v1/catalogs/image/items/1/image", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("image status = %d", rec.Code)
	}
	if rec.Body.String() != "jpeg bytes" {
		t.Errorf("image body = %q", rec.Body.String())
	}
}

func TestHandleReload(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodPost, "/api/v1/catalogs/image/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]interface{}](t, rec)
	if body["status"] != "reloaded" || body["records"] != float64(5) {
		t.Errorf("unexpected body: %v", body)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/catalogs/audio/reload", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown catalog reload = %d", rec.Code)
	}
}

func TestHandleLabels(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodGet, "/api/v1/labels?q=salamander&limit=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[models.LabelResponse](t, rec)
	if resp.Total != 1 || resp.Labels[0].CategoryID != "n01629819" {
		t.Errorf("unexpected labels: %+v", resp)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/labels?q=x&limit=-2", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit = %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	h, cfg := newTestServer(t, config.ServerConfig{})
	rec := do(t, h, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	st := decode[models.Status](t, rec)
	if len(st.Catalogs) != 1 || st.Catalogs[0].Records != 5 || st.Labels != 2 {
		t.Errorf("unexpected status: %+v", st)
	}
	if st.LabelsPath != cfg.Labels.Path {
		t.Errorf("labels path = %q", st.LabelsPath)
	}
}

func TestRateLimit(t *testing.T) {
	h, _ := newTestServer(t, config.ServerConfig{RateLimit: 0.001, RateBurst: 2})
	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, h, http.MethodGet, "/api/v1/status", "").Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health is not rate limited, got %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", models.ErrInvalidQuery), http.StatusBadRequest},
		{&catalog.DimensionMismatchError{Expected: 3, Actual: 2}, http.StatusBadRequest},
		{&catalog.ShapeMismatchError{Vectors: 2, CategoryIDs: 1, Row: -1}, http.StatusBadRequest},
		{&catalog.IndexOutOfRangeError{Index: 9, Len: 5}, http.StatusNotFound},
		{fmt.Errorf("%w: audio", search.ErrUnknownCatalog), http.StatusNotFound},
		{fmt.Errorf("open: %w", os.ErrNotExist), http.StatusNotFound},
		{encoder.ErrNoEncoder, http.StatusNotImplemented},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
