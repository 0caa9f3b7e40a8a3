// Package e2e provides end-to-end tests over a synthetic clustered image dataset.
package e2e

import (
	"math/rand"
)

// Category is one class of the synthetic dataset.
type Category struct {
	ID       string
	Label    string
	Centroid []float32
}

// Corpus holds embedding records clustered around one centroid per category. Records are
// interleaved across categories so a record's ordinal differs from its catalog index.
type Corpus struct {
	Categories  []Category
	Vectors     [][]float32
	CategoryIDs []string
	Dimensions  int
	PerCategory int
}

var classes = []struct{ id, label string }{
	{"n01443537", "goldfish, Carassius auratus"},
	{"n01629819", "European fire salamander, Salamandra salamandra"},
	{"n01641577", "bullfrog, Rana catesbeiana"},
	{"n01644900", "tailed frog, bell toad, ribbed toad, tailed toad, Ascaphus trui"},
	{"n01698640", "American alligator, Alligator mississipiensis"},
	{"n01742172", "boa constrictor, Constrictor constrictor"},
	{"n01768244", "trilobite"},
	{"n01770393", "scorpion"},
}

// jitter bounds each component's distance from the centroid; centroids are unit basis
// vectors, so clusters never overlap.
const jitter = 0.05

// BuildCorpus returns perCategory records for each of the first n classes, dims >= n.
func BuildCorpus(n, perCategory, dims int, seed int64) *Corpus {
	if n > len(classes) {
		n = len(classes)
	}
	if dims < n {
		dims = n
	}
	rng := rand.New(rand.NewSource(seed))
	c := &Corpus{Dimensions: dims, PerCategory: perCategory}
	for i := 0; i < n; i++ {
		centroid := make([]float32, dims)
		centroid[i] = 1
		c.Categories = append(c.Categories, Category{ID: classes[i].id, Label: classes[i].label, Centroid: centroid})
	}
	for r := 0; r < perCategory; r++ {
		for _, cat := range c.Categories {
			v := make([]float32, dims)
			for d := range v {
				v[d] = cat.Centroid[d] + float32((rng.Float64()*2-1)*jitter)
			}
			c.Vectors = append(c.Vectors, v)
			c.CategoryIDs = append(c.CategoryIDs, cat.ID)
		}
	}
	return c
}

// Len returns the number of records.
func (c *Corpus) Len() int { return len(c.Vectors) }

// Words returns the label file content for the corpus categories.
func (c *Corpus) Words() string {
	var s string
	for _, cat := range c.Categories {
		s += cat.ID + "\t" + cat.Label + "\n"
	}
	return s
}
