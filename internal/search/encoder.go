package search

import (
	"github.com/hyperjump/kagami/internal/config"
	"github.com/hyperjump/kagami/internal/encoder"
)

// NewEncoder builds the text encoder described by cfg: the HTTP client when a URL is set,
// otherwise the mock encoder when enabled. It returns nil when neither is configured.
func NewEncoder(cfg config.EncoderConfig) encoder.TextEncoder {
	var enc encoder.TextEncoder
	switch {
	case cfg.URL != "":
		enc = encoder.NewHTTPEncoder(cfg.URL, cfg.Dimensions, cfg.Timeout)
	case cfg.Mock:
		enc = encoder.NewMockEncoder(cfg.Dimensions)
	default:
		return nil
	}
	if cfg.CacheSize > 0 {
		return encoder.NewCachedEncoder(enc, cfg.CacheSize)
	}
	return enc
}
