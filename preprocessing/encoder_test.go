package preprocessing

import (
	"math"
	"slices"
	"testing"
)

func TestEncoders(t *testing.T) {
	train := []string{"red", "blue", "red", "green"}
	y := []float64{1, 0, 1, 0}
	test := []string{"green", "red", "purple"}

	tests := []struct {
		name     string
		enc      CategoricalEncoder
		suffixes []string
		want     [][]float64
	}{
		{
			name:     "ordinal",
			enc:      NewOrdinalEncoder(),
			suffixes: []string{""},
			want:     [][]float64{{1, 2, -1}},
		},
		{
			name:     "one_hot",
			enc:      NewOneHotEncoder(),
			suffixes: []string{"_blue", "_green", "_red"},
			want:     [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		},
		{
			name:     "frequency",
			enc:      NewFrequencyEncoder(),
			suffixes: []string{""},
			want:     [][]float64{{0.25, 0.5, 0}},
		},
		{
			name:     "target",
			enc:      NewTargetEncoder(1),
			suffixes: []string{""},
			// global mean 0.5: green (0 + 0.5)/2, red (2 + 0.5)/3
			want: [][]float64{{0.25, 2.5 / 3, 0.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.enc.Transform(test); err == nil {
				t.Error("Transform before Fit should fail")
			}
			if err := tt.enc.Fit(train, y); err != nil {
				t.Fatal(err)
			}
			suffixes, cols, err := tt.enc.Transform(test)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(suffixes, tt.suffixes) {
				t.Errorf("suffixes = %v, want %v", suffixes, tt.suffixes)
			}
			if len(cols) != len(tt.want) {
				t.Fatalf("got %d columns, want %d", len(cols), len(tt.want))
			}
			for k := range cols {
				for i := range cols[k] {
					if math.Abs(cols[k][i]-tt.want[k][i]) > 1e-12 {
						t.Errorf("column %d row %d = %v, want %v", k, i, cols[k][i], tt.want[k][i])
					}
				}
			}
		})
	}
}

func TestEncoders_Categories(t *testing.T) {
	enc := NewOneHotEncoder()
	if err := enc.Fit([]string{"b", "a", "b"}, nil); err != nil {
		t.Fatal(err)
	}
	if got := enc.Categories(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Categories() = %v", got)
	}
	if err := NewOrdinalEncoder().Fit(nil, nil); err == nil {
		t.Error("expected an empty data error")
	}
	if err := NewTargetEncoder(1).Fit([]string{"a"}, []float64{1, 2}); err == nil {
		t.Error("expected a dimension error")
	}
}
