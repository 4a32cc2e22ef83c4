// Package regress holds the three salary regressors. Every regressor can be
// cloned from its hyperparameters, which is what search and cross-validation
// rely on.
package regress

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Model names, in training order.
const (
	KindLinear           = "linear_regression"
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
)

// Kinds lists every model name in training order.
var Kinds = []string{KindLinear, KindRandomForest, KindGradientBoosting}

// ErrNotFitted is returned by Predict before Fit succeeded.
var ErrNotFitted = errors.New("regress: model is not fitted")

// Regressor is a fitted or unfitted model that maps a feature row to one number.
type Regressor interface {
	Kind() string
	Fit(x *mat.Dense, y []float64) error
	Predict(x mat.Matrix) ([]float64, error)
	// Clone returns an unfitted regressor with the same hyperparameters.
	Clone() Regressor
	// HyperParams returns a value suitable for logging and persisting.
	HyperParams() any
}

// New returns an unfitted regressor of the given kind with default hyperparameters.
func New(kind string) (Regressor, error) {
	switch kind {
	case KindLinear:
		return &LinearRegression{}, nil
	case KindRandomForest:
		return NewRandomForest(DefaultForestParams()), nil
	case KindGradientBoosting:
		return NewGradientBoosting(DefaultBoostingParams()), nil
	}
	return nil, fmt.Errorf("regress: unknown model type %q", kind)
}

func checkTrainingSet(x *mat.Dense, y []float64) error {
	if x == nil {
		return errors.New("regress: no training rows")
	}
	h, w := x.Dims()
	switch {
	case h == 0 || w == 0:
		return errors.New("regress: empty training set")
	case len(y) != h:
		return fmt.Errorf("regress: %d targets for %d rows", len(y), h)
	}
	return nil
}

func checkWidth(x mat.Matrix, want int) error {
	if x == nil {
		return errors.New("regress: no rows to predict")
	}
	if _, w := x.Dims(); w != want {
		return fmt.Errorf("regress: model was fitted on %d features, got %d", want, w)
	}
	return nil
}
