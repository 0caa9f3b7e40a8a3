package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Record is one input line of the offline catalog builder.
type Record struct {
	Vector     []float32 `json:"vector"`
	CategoryID string    `json:"category_id"`
	Ordinal    *int      `json:"ordinal,omitempty"`
}

// ReadRecords builds a catalog from a stream of JSON records, typically one per line, in
// catalog order. Either every record carries an ordinal or none does; without ordinals
// they are derived from catalog order.
func ReadRecords(r io.Reader, opts ...Option) (*Catalog, error) {
	dec := json.NewDecoder(r)
	var (
		vectors     [][]float32
		ids         []string
		ordinals    []int
		hasOrdinals bool
	)
	for n := 0; ; n++ {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		if rec.CategoryID == "" {
			return nil, fmt.Errorf("record %d: missing category_id", n)
		}
		if n == 0 {
			hasOrdinals = rec.Ordinal != nil
		} else if (rec.Ordinal != nil) != hasOrdinals {
			return nil, fmt.Errorf("record %d: ordinals must be set on every record or on none", n)
		}
		if rec.Ordinal != nil {
			if *rec.Ordinal < 0 {
				return nil, fmt.Errorf("record %d: negative ordinal %d", n, *rec.Ordinal)
			}
			ordinals = append(ordinals, *rec.Ordinal)
		}
		vectors = append(vectors, rec.Vector)
		ids = append(ids, rec.CategoryID)
	}
	if hasOrdinals {
		opts = append(opts, WithOrdinals(ordinals))
	}
	return Load(vectors, ids, opts...)
}
