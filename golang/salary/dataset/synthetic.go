package dataset

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Coefficients of the synthetic salary formula.
const (
	baseSalary       = 30000
	perYear          = 2000
	perEducation     = 9000
	perRole          = 15000
	perCompanySize   = 8000
	noiseDeviation   = 7000
	maxYears         = 21
	educationLevels  = 3
	roleLevels       = 3
	companySizeRanks = 4
)

// Synthetic generates n rows of the salary table from seed:
//
//	salary = 30000 + 2000*years + 9000*education + 15000*role + 8000*size + N(0, 7000)
//
// Columns are drawn one after another, then the noise. The same seed gives the same rows.
func Synthetic(n int, seed uint64) (*Dataset, error) {
	if n < 1 {
		return nil, fmt.Errorf("dataset: synthetic rows must be positive, got %d", n)
	}
	rnd := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, len(DefaultFeatures), nil)
	for q, levels := range []int{maxYears, educationLevels, roleLevels, companySizeRanks} {
		for p := 0; p < n; p++ {
			x.Set(p, q, float64(rnd.Intn(levels)))
		}
	}
	noise := distuv.Normal{Mu: 0, Sigma: noiseDeviation, Src: rnd}
	weights := []float64{perYear, perEducation, perRole, perCompanySize}
	y := make([]float64, n)
	for p := range y {
		salary := float64(baseSalary)
		for q, weight := range weights {
			salary += weight * x.At(p, q)
		}
		y[p] = salary + noise.Rand()
	}
	return &Dataset{
		FeatureNames: append([]string(nil), DefaultFeatures...),
		TargetName:   DefaultTarget,
		X:            x,
		Y:            y,
	}, nil
}
