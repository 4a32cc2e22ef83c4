package regress

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LinearRegression is ordinary least squares with an intercept.
type LinearRegression struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

func (lr *LinearRegression) Kind() string { return KindLinear }

func (lr *LinearRegression) HyperParams() any { return struct{}{} }

func (lr *LinearRegression) Clone() Regressor { return &LinearRegression{} }

// Fit centres the columns and takes the minimum norm least squares solution,
// so collinear or constant columns still give a finite model.
func (lr *LinearRegression) Fit(x *mat.Dense, y []float64) error {
	if err := checkTrainingSet(x, y); err != nil {
		return err
	}
	h, w := x.Dims()
	means := make([]float64, w)
	centred := mat.NewDense(h, w, nil)
	for q := 0; q < w; q++ {
		col := mat.Col(nil, q, x)
		means[q] = stat.Mean(col, nil)
		floats.AddConst(-means[q], col)
		centred.SetCol(q, col)
	}
	yMean := stat.Mean(y, nil)
	yc := make([]float64, h)
	copy(yc, y)
	floats.AddConst(-yMean, yc)

	var svd mat.SVD
	if !svd.Factorize(centred, mat.SVDThin) {
		return errors.New("regress: least squares factorization failed")
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		lr.Coefficients = make([]float64, w)
		lr.Intercept = yMean
		return nil
	}
	var coef mat.Dense
	svd.SolveTo(&coef, mat.NewDense(h, 1, yc), rank)

	lr.Coefficients = mat.Col(nil, 0, &coef)
	lr.Intercept = yMean - floats.Dot(means, lr.Coefficients)
	return nil
}

func (lr *LinearRegression) Predict(x mat.Matrix) ([]float64, error) {
	if lr.Coefficients == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(x, len(lr.Coefficients)); err != nil {
		return nil, err
	}
	h, _ := x.Dims()
	out := make([]float64, h)
	var prod mat.VecDense
	prod.MulVec(x, mat.NewVecDense(len(lr.Coefficients), lr.Coefficients))
	for p := range out {
		out[p] = prod.AtVec(p) + lr.Intercept
	}
	return out, nil
}
