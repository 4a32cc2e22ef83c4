package ebl

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

//SplitLoss gives the first and the second derivatives of a pointwise loss by the current prediction.
type SplitLoss interface {
	lossDer1(target, prediction float64) float64
	lossDer2(target, prediction float64) float64
}

//MseLoss is the half squared error (prediction - target)^2 / 2.
type MseLoss struct{}

func (MseLoss) lossDer1(target, prediction float64) float64 {
	return prediction - target
}

func (MseLoss) lossDer2(_, _ float64) float64 {
	return 1
}

//Rmse returns the root mean squared error between two columns of equal height.
func Rmse(target, prediction mat.Matrix) float64 {
	h := Height(target)
	if h == 0 {
		return 0
	}
	s := 0.0
	for p := 0; p < h; p++ {
		d := target.At(p, 0) - prediction.At(p, 0)
		s += d * d
	}
	return math.Sqrt(s / float64(h))
}
