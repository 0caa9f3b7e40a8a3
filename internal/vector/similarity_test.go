package vector

import (
	"math"
	"testing"
)

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit axes", []float32{1, 0}, []float32{0, 1}, 2},
		{"no square root", []float32{0, 0}, []float32{3, 4}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SquaredL2(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SquaredL2 = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"same direction", []float32{1, 1}, []float32{3, 3}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 5}, 1},
		{"opposite", []float32{1, 0}, []float32{-2, 0}, 2},
		{"zero query", []float32{0, 0}, []float32{1, 0}, 1},
		{"zero record", []float32{1, 0}, []float32{0, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineDistance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineDistance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseMetric(t *testing.T) {
	for in, want := range map[string]Metric{"": MetricL2, "L2": MetricL2, "cosine": MetricCosine, " Cosine ": MetricCosine} {
		got, err := ParseMetric(in)
		if err != nil || got != want {
			t.Errorf("ParseMetric(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMetric("dot"); err == nil {
		t.Error("ParseMetric(dot) should fail")
	}
}

func TestL2Norm(t *testing.T) {
	if got := L2Norm([]float32{3, 4}); got != 5 {
		t.Errorf("L2Norm = %v, want 5", got)
	}
	if got := InnerProduct([]float32{1, 2}, []float32{3}); got != 0 {
		t.Errorf("InnerProduct with mismatched lengths = %v, want 0", got)
	}
}
