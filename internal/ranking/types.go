// Package ranking ranks catalog entries by cosine distance and reports their category labels.
package ranking

// CategoryHit is one ranked catalog entry reported by its category.
type CategoryHit struct {
	Index      int     `json:"index"`
	CategoryID string  `json:"category_id"`
	Label      string  `json:"label"`
	Distance   float64 `json:"distance"`
}

// CategoryResult is the ordered output of RankCategories. Hits are ascending by distance,
// ties broken by catalog index. Several hits may share a category.
type CategoryResult struct {
	Catalog           string        `json:"catalog"`
	Hits              []CategoryHit `json:"hits"`
	Degraded          bool          `json:"degraded"`
	QueryDimensions   int           `json:"query_dimensions"`
	CatalogDimensions int           `json:"catalog_dimensions"`
}

// Labels returns the hit labels in rank order.
func (r *CategoryResult) Labels() []string {
	out := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.Label
	}
	return out
}
