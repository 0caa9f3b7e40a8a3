package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseVector parses a query vector given either as a JSON array ("[0.1, 0.2]") or as
// numbers separated by commas and/or whitespace.
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty vector")
	}
	if strings.HasPrefix(s, "[") {
		var v []float32
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("parse vector: %w", err)
		}
		if len(v) == 0 {
			return nil, fmt.Errorf("empty vector")
		}
		return v, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float32, 0, len(fields))
	for _, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %q: %w", f, err)
		}
		out = append(out, float32(x))
	}
	return out, nil
}

// ReadVector reads a vector from path, or from stdin when path is "-".
func ReadVector(path string, stdin io.Reader) ([]float32, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read vector: %w", err)
	}
	return ParseVector(string(data))
}
