package preprocessing

import (
	"slices"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPolynomialFeatures(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{
		2, 3,
		-1, 4,
	})

	tests := []struct {
		name            string
		interactionOnly bool
		includeBias     bool
		names           []string
		want            [][]float64
	}{
		{
			name:  "full",
			names: []string{"a", "b", "a^2", "a*b", "b^2"},
			want: [][]float64{
				{2, 3, 4, 6, 9},
				{-1, 4, 1, -4, 16},
			},
		},
		{
			name:            "interaction only with bias",
			interactionOnly: true,
			includeBias:     true,
			names:           []string{"1", "a", "b", "a*b"},
			want: [][]float64{
				{1, 2, 3, 6},
				{1, -1, 4, -4},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolynomialFeatures(2, tt.interactionOnly, tt.includeBias)
			got, err := p.FitTransform(X)
			if err != nil {
				t.Fatal(err)
			}
			assertMatrix(t, got, tt.want)
			if names := p.FeatureNames([]string{"a", "b"}); !slices.Equal(names, tt.names) {
				t.Errorf("names = %v, want %v", names, tt.names)
			}
		})
	}
}

func TestPolynomialFeatures_Degrees(t *testing.T) {
	p := NewPolynomialFeatures(3, false, false)
	if err := p.Fit(mat.NewDense(1, 2, []float64{1, 1})); err != nil {
		t.Fatal(err)
	}
	want := []int{1, 1, 2, 2, 2, 3, 3, 3, 3}
	if got := p.Degrees(); !slices.Equal(got, want) {
		t.Errorf("degrees = %v, want %v", got, want)
	}
	if err := NewPolynomialFeatures(0, false, false).Fit(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("degree 0 should fail")
	}
}

func TestPairwiseFeatures(t *testing.T) {
	X := mat.NewDense(2, 3, []float64{
		6, 3, 0,
		1, 2, 4,
	})
	input := []string{"a", "b", "c"}

	tests := []struct {
		op    string
		names []string
		want  [][]float64
	}{
		{PairSum, []string{"a+b", "a+c", "b+c"}, [][]float64{{9, 6, 3}, {3, 5, 6}}},
		{PairDifference, []string{"a-b", "a-c", "b-c"}, [][]float64{{3, 6, 3}, {-1, -3, -2}}},
		{PairQuotient, []string{"a/b", "a/c", "b/c"}, [][]float64{{2, 0, 0}, {0.5, 0.25, 0.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			p := NewPairwiseFeatures(tt.op)
			got, err := p.FitTransform(X)
			if err != nil {
				t.Fatal(err)
			}
			assertMatrix(t, got, tt.want)
			if names := p.FeatureNames(input); !slices.Equal(names, tt.names) {
				t.Errorf("names = %v, want %v", names, tt.names)
			}
		})
	}

	if err := NewPairwiseFeatures("product").Fit(X); err == nil {
		t.Error("unknown op should fail")
	}
	if err := NewPairwiseFeatures(PairSum).Fit(mat.NewDense(2, 1, []float64{1, 2})); err == nil {
		t.Error("a single column should fail")
	}
	if _, err := NewPairwiseFeatures(PairSum).Transform(X); err == nil {
		t.Error("Transform before Fit should fail")
	}
}
