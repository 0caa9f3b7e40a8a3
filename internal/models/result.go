package models

import "time"

// Hit is a single nearest-neighbor result.
type Hit struct {
	Rank       int     `json:"rank"`
	Index      int     `json:"index"`
	CategoryID string  `json:"category_id"`
	Label      string  `json:"label,omitempty"`
	Distance   float64 `json:"distance"`
	Path       string  `json:"path,omitempty"`
}

// SearchResponse is the response for neighbor and text searches.
type SearchResponse struct {
	QueryID  string `json:"query_id"`
	Catalog  string `json:"catalog"`
	Metric   string `json:"metric"`
	Hits     []*Hit `json:"hits"`
	Total    int    `json:"total"`
	Degraded bool   `json:"degraded,omitempty"`
	// QueryDimensions and CatalogDimensions differ only when Degraded is set.
	QueryDimensions   int   `json:"query_dimensions"`
	CatalogDimensions int   `json:"catalog_dimensions"`
	QueryTime         int64 `json:"query_time_ms"`
}

// CategoryHit is one row of a category ranking. Rows sharing a label are kept.
type CategoryHit struct {
	Rank       int     `json:"rank"`
	Index      int     `json:"index"`
	CategoryID string  `json:"category_id"`
	Label      string  `json:"label"`
	Distance   float64 `json:"distance"`
}

// CategoryResponse is the response for category rankings.
type CategoryResponse struct {
	QueryID           string         `json:"query_id"`
	Catalog           string         `json:"catalog"`
	Categories        []*CategoryHit `json:"categories"`
	Total             int            `json:"total"`
	Degraded          bool           `json:"degraded,omitempty"`
	QueryDimensions   int            `json:"query_dimensions"`
	CatalogDimensions int            `json:"catalog_dimensions"`
	QueryTime         int64          `json:"query_time_ms"`
}

// Item describes one catalog record.
type Item struct {
	Catalog    string `json:"catalog"`
	Index      int    `json:"index"`
	CategoryID string `json:"category_id"`
	Label      string `json:"label"`
	Ordinal    int    `json:"ordinal"`
	Path       string `json:"path"`
}

// LabelHit is a label search result.
type LabelHit struct {
	CategoryID string  `json:"category_id"`
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
}

// LabelResponse is the response for label searches.
type LabelResponse struct {
	Query  string      `json:"query"`
	Labels []*LabelHit `json:"labels"`
	Total  int         `json:"total"`
}

// CatalogStatus summarizes one loaded catalog.
type CatalogStatus struct {
	Name             string    `json:"name"`
	Source           string    `json:"source"`
	Path             string    `json:"path"`
	Metric           string    `json:"metric"`
	Records          int       `json:"records"`
	Dimensions       int       `json:"dimensions"`
	Categories       int       `json:"categories"`
	PersistedOrdinal bool      `json:"persisted_ordinals"`
	OrdinalMismatch  int       `json:"ordinal_mismatches"`
	LoadedAt         time.Time `json:"loaded_at"`
	SizeBytes        int64     `json:"size_bytes"`
}

// Status is the response of the status endpoint.
type Status struct {
	Catalogs   []*CatalogStatus `json:"catalogs"`
	Labels     int              `json:"labels"`
	LabelsPath string           `json:"labels_path"`
	Encoder    bool             `json:"encoder"`
}
