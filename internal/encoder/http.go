package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/kagami/pkg/utils"
)

// HTTPEncoder calls an external encoder service:
//
//	POST <url> {"text": "..."} -> {"embedding": [...]}
//
// Returned vectors are L2-normalized.
type HTTPEncoder struct {
	url        string
	dimensions int
	client     *http.Client
}

// NewHTTPEncoder returns an encoder posting to url. dimensions may be 0 when unknown;
// otherwise responses of another length are rejected.
func NewHTTPEncoder(url string, dimensions int, timeout time.Duration) *HTTPEncoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEncoder{
		url:        url,
		dimensions: dimensions,
		client:     &http.Client{Timeout: timeout},
	}
}

type encodeRequest struct {
	Text string `json:"text"`
}

type encodeResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Encode sends text to the encoder service.
func (e *HTTPEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(encodeRequest{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build encode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("encoder returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	var out encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode encoder response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("encoder returned an empty embedding")
	}
	if e.dimensions > 0 && len(out.Embedding) != e.dimensions {
		return nil, fmt.Errorf("encoder returned %d dimensions, expected %d", len(out.Embedding), e.dimensions)
	}
	utils.NormalizeL2(out.Embedding)
	return out.Embedding, nil
}

// Dimensions returns the configured dimension (0 when unknown).
func (e *HTTPEncoder) Dimensions() int { return e.dimensions }

// Close releases idle connections.
func (e *HTTPEncoder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
