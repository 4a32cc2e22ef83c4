package search

import (
	"fmt"

	"github.com/tarstars/salary_predictor/golang/salary/regress"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// IntRange is a uniform integer distribution over [Low, High).
type IntRange struct {
	Low  int `yaml:"low" json:"low"`
	High int `yaml:"high" json:"high"`
}

func (r IntRange) Validate() error {
	if r.High <= r.Low {
		return fmt.Errorf("empty integer range [%d, %d)", r.Low, r.High)
	}
	return nil
}

func (r IntRange) Sample(rnd *rand.Rand) int {
	return r.Low + rnd.Intn(r.High-r.Low)
}

// FloatRange is a uniform distribution over [Loc, Loc+Scale].
type FloatRange struct {
	Loc   float64 `yaml:"loc" json:"loc"`
	Scale float64 `yaml:"scale" json:"scale"`
}

func (r FloatRange) Validate() error {
	if r.Scale < 0 {
		return fmt.Errorf("negative scale %v", r.Scale)
	}
	return nil
}

func (r FloatRange) Sample(rnd *rand.Rand) float64 {
	if r.Scale == 0 {
		return r.Loc
	}
	return distuv.Uniform{Min: r.Loc, Max: r.Loc + r.Scale, Src: rnd}.Rand()
}

// Sampler draws one candidate regressor.
type Sampler func(rnd *rand.Rand) regress.Regressor

// ForestSpace is the random forest search space.
type ForestSpace struct {
	NEstimators     IntRange `yaml:"n_estimators"`
	MaxDepth        IntRange `yaml:"max_depth"`
	MinSamplesSplit IntRange `yaml:"min_samples_split"`
}

// Sampler draws the parameters in field order on top of base.
func (s ForestSpace) Sampler(base regress.ForestParams) Sampler {
	return func(rnd *rand.Rand) regress.Regressor {
		params := base
		params.NEstimators = s.NEstimators.Sample(rnd)
		params.MaxDepth = s.MaxDepth.Sample(rnd)
		params.MinSamplesSplit = s.MinSamplesSplit.Sample(rnd)
		return regress.NewRandomForest(params)
	}
}

// BoostingSpace is the gradient boosting search space.
type BoostingSpace struct {
	NEstimators  IntRange   `yaml:"n_estimators"`
	LearningRate FloatRange `yaml:"learning_rate"`
	MaxDepth     IntRange   `yaml:"max_depth"`
}

// Sampler draws the parameters in field order on top of base.
func (s BoostingSpace) Sampler(base regress.BoostingParams, opts ...regress.BoostingOption) Sampler {
	return func(rnd *rand.Rand) regress.Regressor {
		params := base
		params.NEstimators = s.NEstimators.Sample(rnd)
		params.LearningRate = s.LearningRate.Sample(rnd)
		params.MaxDepth = s.MaxDepth.Sample(rnd)
		return regress.NewGradientBoosting(params, opts...)
	}
}
