// Package keyword provides full-text search over category labels.
package keyword

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kagami/internal/labels"
)

const batchSize = 500

// LabelResult is a single label search hit.
type LabelResult struct {
	CategoryID string  `json:"category_id"`
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
}

type labelDoc struct {
	CategoryID string `json:"category_id"`
	Label      string `json:"label"`
}

// LabelIndex is an in-memory bleve index over a LabelMap. Labels are matched word by
// word (standard analyzer, no stemming) and category ids are matched exactly.
type LabelIndex struct {
	index  bleve.Index
	labels *labels.LabelMap
}

// NewLabelIndex indexes every entry of m.
func NewLabelIndex(m *labels.LabelMap) (*LabelIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	labelField := bleve.NewTextFieldMapping()
	labelField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("label", labelField)
	docMapping.AddFieldMappingsAt("category_id", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("label", docMapping)
	im.DefaultType = "label"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create label index: %w", err)
	}

	batch := index.NewBatch()
	var indexErr error
	m.Each(func(id, label string) {
		if indexErr != nil {
			return
		}
		if indexErr = batch.Index(id, labelDoc{CategoryID: id, Label: label}); indexErr != nil {
			return
		}
		if batch.Size() >= batchSize {
			indexErr = index.Batch(batch)
			batch.Reset()
		}
	})
	if indexErr == nil && batch.Size() > 0 {
		indexErr = index.Batch(batch)
	}
	if indexErr != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index labels: %w", indexErr)
	}
	return &LabelIndex{index: index, labels: m}, nil
}

// Search returns up to limit categories whose label matches text or whose id equals it.
// An empty text yields no results.
func (l *LabelIndex) Search(ctx context.Context, text string, limit int) ([]*LabelResult, error) {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return []*LabelResult{}, nil
	}

	match := bleve.NewMatchQuery(text)
	match.SetField("label")
	exact := bleve.NewTermQuery(text)
	exact.SetField("category_id")
	q := bleve.NewDisjunctionQuery([]blevequery.Query{match, exact}...)

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("label search failed: %w", err)
	}
	out := make([]*LabelResult, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = &LabelResult{CategoryID: hit.ID, Label: l.labels.Label(hit.ID), Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed labels.
func (l *LabelIndex) DocCount() (uint64, error) {
	return l.index.DocCount()
}

// Close releases the index.
func (l *LabelIndex) Close() error {
	return l.index.Close()
}
