package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/simplify/core/model"
)

func assertMatrix(t *testing.T, got mat.Matrix, want [][]float64) {
	t.Helper()
	r, c := got.Dims()
	if r != len(want) || c != len(want[0]) {
		t.Fatalf("dims = (%d, %d), want (%d, %d)", r, c, len(want), len(want[0]))
	}
	for i := range want {
		for j := range want[i] {
			if math.Abs(got.At(i, j)-want[i][j]) > 1e-9 {
				t.Errorf("(%d, %d) = %v, want %v", i, j, got.At(i, j), want[i][j])
			}
		}
	}
}

func TestScalers(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, -4,
		2, 0,
		3, 2,
		4, 2,
	})

	tests := []struct {
		name   string
		scaler model.Transformer
		want   [][]float64
	}{
		{
			name:   "standard",
			scaler: NewStandardScalerDefault(),
			// mean (2.5, 0), population std (sqrt(1.25), sqrt(6))
			want: [][]float64{
				{-1.5 / math.Sqrt(1.25), -4 / math.Sqrt(6)},
				{-0.5 / math.Sqrt(1.25), 0},
				{0.5 / math.Sqrt(1.25), 2 / math.Sqrt(6)},
				{1.5 / math.Sqrt(1.25), 2 / math.Sqrt(6)},
			},
		},
		{
			name:   "minmax",
			scaler: NewMinMaxScalerDefault(),
			want:   [][]float64{{0, 0}, {1.0 / 3, 4.0 / 6}, {2.0 / 3, 1}, {1, 1}},
		},
		{
			name:   "maxabs",
			scaler: NewMaxAbsScaler(),
			want:   [][]float64{{0.25, -1}, {0.5, 0}, {0.75, 0.5}, {1, 0.5}},
		},
		{
			name:   "robust",
			scaler: NewRobustScaler(),
			// col 0: median 2.5, q25 1.75, q75 3.25; col 1: median 1, q25 -1, q75 2
			want: [][]float64{{-1, -5.0 / 3}, {-1.0 / 3, -1.0 / 3}, {1.0 / 3, 1.0 / 3}, {1, 1.0 / 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.scaler.FitTransform(X)
			if err != nil {
				t.Fatalf("FitTransform failed: %v", err)
			}
			assertMatrix(t, got, tt.want)
		})
	}
}

func TestScalers_NotFittedAndDimensions(t *testing.T) {
	scalers := map[string]model.Transformer{
		"standard":  NewStandardScalerDefault(),
		"minmax":    NewMinMaxScalerDefault(),
		"maxabs":    NewMaxAbsScaler(),
		"robust":    NewRobustScaler(),
		"normalize": NewNormalizer("l2"),
		"bins":      NewKBinsDiscretizer(3, "uniform"),
	}
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	for name, s := range scalers {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Transform(X); err == nil {
				t.Error("Transform before Fit should fail")
			}
			if err := s.Fit(X); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Transform(mat.NewDense(1, 3, nil)); err == nil {
				t.Error("expected a dimension error")
			}
			if err := s.Fit(&mat.Dense{}); err == nil {
				t.Error("expected an empty data error")
			}
		})
	}
}

func TestScalers_ConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{5, 5, 5})
	got, err := NewStandardScalerDefault().FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	assertMatrix(t, got, [][]float64{{0}, {0}, {0}})

	got, err = NewMinMaxScalerDefault().FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	assertMatrix(t, got, [][]float64{{0}, {0}, {0}})
}

func TestInverseTransform(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 10, 2, 20, 4, 70})

	std := NewStandardScalerDefault()
	scaled, _ := std.FitTransform(X)
	back, err := std.InverseTransform(scaled)
	if err != nil {
		t.Fatal(err)
	}
	assertMatrix(t, back, [][]float64{{1, 10}, {2, 20}, {4, 70}})

	mm := NewMinMaxScaler([2]float64{-1, 1})
	scaled, _ = mm.FitTransform(X)
	back, err = mm.InverseTransform(scaled)
	if err != nil {
		t.Fatal(err)
	}
	assertMatrix(t, back, [][]float64{{1, 10}, {2, 20}, {4, 70}})
}

func TestNormalizer(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{3, 4, 0, 0, -1, 3})
	tests := []struct {
		norm string
		want [][]float64
	}{
		{"l2", [][]float64{{0.6, 0.8}, {0, 0}, {-1 / math.Sqrt(10), 3 / math.Sqrt(10)}}},
		{"l1", [][]float64{{3.0 / 7, 4.0 / 7}, {0, 0}, {-0.25, 0.75}}},
		{"max", [][]float64{{0.75, 1}, {0, 0}, {-1.0 / 3, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.norm, func(t *testing.T) {
			got, err := NewNormalizer(tt.norm).FitTransform(X)
			if err != nil {
				t.Fatal(err)
			}
			assertMatrix(t, got, tt.want)
		})
	}
	if err := NewNormalizer("l3").Fit(X); err == nil {
		t.Error("expected an error for an unknown norm")
	}
}

func TestKBinsDiscretizer(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 6})

	got, err := NewKBinsDiscretizer(3, "uniform").FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	// edges 2, 4
	assertMatrix(t, got, [][]float64{{0}, {0}, {1}, {1}, {2}, {2}})

	got, err = NewKBinsDiscretizer(2, "quantile").FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	// median 2.5
	assertMatrix(t, got, [][]float64{{0}, {0}, {0}, {1}, {1}, {1}})

	if err := NewKBinsDiscretizer(1, "uniform").Fit(X); err == nil {
		t.Error("expected an error for n_bins < 2")
	}
	if err := NewKBinsDiscretizer(3, "kmeans").Fit(X); err == nil {
		t.Error("expected an error for an unknown strategy")
	}
}
