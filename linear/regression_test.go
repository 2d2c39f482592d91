package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestLinearRegression_ExactFit(t *testing.T) {
	// y = 1 + 2*x1 - 3*x2
	X := mat.NewDense(5, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		2, 1,
		1, 3,
	})
	y := mat.NewDense(5, 1, []float64{1, 3, -2, 2, -6})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	want := []float64{2, -3}
	for j, w := range lr.GetWeights() {
		if math.Abs(w-want[j]) > 1e-9 {
			t.Errorf("weight %d = %v, want %v", j, w, want[j])
		}
	}
	if math.Abs(lr.GetIntercept()-1) > 1e-9 {
		t.Errorf("intercept = %v, want 1", lr.GetIntercept())
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(score-1) > 1e-9 {
		t.Errorf("R² = %v, want 1", score)
	}
}

func TestLinearRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})

	lr := NewLinearRegression(WithFitIntercept(false))
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if lr.GetIntercept() != 0 {
		t.Errorf("intercept = %v, want 0", lr.GetIntercept())
	}
	if w := lr.GetWeights()[0]; math.Abs(w-2) > 1e-9 {
		t.Errorf("weight = %v, want 2", w)
	}
}

func TestLinearRegression_CollinearColumns(t *testing.T) {
	// 2列目は1列目の複製。最小ノルム解は重みを等分する
	X := mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("collinear fit should succeed: %v", err)
	}
	w := lr.GetWeights()
	if math.Abs(w[0]-1) > 1e-9 || math.Abs(w[1]-1) > 1e-9 {
		t.Errorf("weights = %v, want [1 1]", w)
	}
}

func TestRidge_Shrinks(t *testing.T) {
	// y = 1 + x
	X := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	ols := NewLinearRegression()
	ridge := NewRidge(5)
	if err := ols.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := ridge.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	// Σ(x-x̄)² = 5 なので w = 5/(5+5) = 0.5
	if w := ridge.GetWeights()[0]; math.Abs(w-0.5) > 1e-9 {
		t.Errorf("ridge weight = %v, want 0.5", w)
	}
	// 切片は正則化されないので予測の平均は y の平均に一致する
	if b := ridge.GetIntercept(); math.Abs(b-(2.5-0.5*1.5)) > 1e-9 {
		t.Errorf("ridge intercept = %v, want 1.75", b)
	}
	if ridge.GetWeights()[0] >= ols.GetWeights()[0] {
		t.Errorf("ridge should shrink the weight: ridge=%v ols=%v", ridge.GetWeights()[0], ols.GetWeights()[0])
	}
}

func TestLinearRegression_Errors(t *testing.T) {
	tests := []struct {
		name string
		lr   *LinearRegression
		X    mat.Matrix
		y    mat.Matrix
	}{
		{"row mismatch", NewLinearRegression(), mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2})},
		{"y not a column", NewLinearRegression(), mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 2, []float64{1, 2, 3, 4})},
		{"negative alpha", NewRidge(-1), mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.lr.Fit(tt.X, tt.y); err == nil {
				t.Error("expected an error")
			}
		})
	}

	lr := NewLinearRegression()
	if _, err := lr.Predict(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("Predict before Fit should fail")
	}
}

func TestLinearRegression_Params(t *testing.T) {
	lr := NewLinearRegression()
	if err := lr.SetParams(map[string]interface{}{"alpha": 2, "fit_intercept": false}); err != nil {
		t.Fatal(err)
	}
	params := lr.GetParams()
	if params["alpha"].(float64) != 2 || params["fit_intercept"].(bool) {
		t.Errorf("unexpected params %v", params)
	}
	if err := lr.SetParams(map[string]interface{}{"solver": "svd"}); err == nil {
		t.Error("expected an error for an unknown parameter")
	}
}
