package e2e

import (
	"math"
	"strings"
	"testing"
)

func TestBuildCorpus_Shape(t *testing.T) {
	c := BuildCorpus(4, 10, 16, 1)
	if len(c.Categories) != 4 {
		t.Errorf("expected 4 categories, got %d", len(c.Categories))
	}
	if c.Len() != 40 || len(c.CategoryIDs) != 40 {
		t.Errorf("expected 40 records, got %d vectors and %d ids", c.Len(), len(c.CategoryIDs))
	}
	for i, v := range c.Vectors {
		if len(v) != 16 {
			t.Fatalf("record %d has %d dimensions", i, len(v))
		}
	}
	if c.CategoryIDs[0] == c.CategoryIDs[1] {
		t.Error("records should be interleaved across categories")
	}
}

func TestBuildCorpus_ClampsToKnownClasses(t *testing.T) {
	c := BuildCorpus(100, 1, 2, 1)
	if len(c.Categories) != len(classes) {
		t.Errorf("expected %d categories, got %d", len(classes), len(c.Categories))
	}
	if c.Dimensions != len(classes) {
		t.Errorf("dimensions should grow to the category count, got %d", c.Dimensions)
	}
}

func TestBuildCorpus_RecordsStayNearCentroid(t *testing.T) {
	c := BuildCorpus(8, 5, 8, 7)
	centroids := make(map[string][]float32)
	for _, cat := range c.Categories {
		centroids[cat.ID] = cat.Centroid
	}
	for i, v := range c.Vectors {
		centroid := centroids[c.CategoryIDs[i]]
		for d := range v {
			if math.Abs(float64(v[d]-centroid[d])) > jitter {
				t.Fatalf("record %d component %d is %v away from its centroid", i, d, v[d]-centroid[d])
			}
		}
	}
}

func TestBuildCorpus_Deterministic(t *testing.T) {
	a := BuildCorpus(3, 4, 8, 42)
	b := BuildCorpus(3, 4, 8, 42)
	for i := range a.Vectors {
		for d := range a.Vectors[i] {
			if a.Vectors[i][d] != b.Vectors[i][d] {
				t.Fatalf("record %d differs between builds with the same seed", i)
			}
		}
	}
}

func TestCorpus_Words(t *testing.T) {
	w := BuildCorpus(2, 1, 4, 1).Words()
	want := "n01443537\tgoldfish, Carassius auratus\nn01629819\tEuropean fire salamander, Salamandra salamandra\n"
	if w != want {
		t.Errorf("Words() = %q", w)
	}
	if strings.Count(w, "\n") != 2 {
		t.Error("expected one line per category")
	}
}
