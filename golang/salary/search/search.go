// Package search tunes regressors by randomized search with k-fold
// cross-validation and scores fitted models by RMSE.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/tarstars/salary_predictor/golang/salary/dataset"
	"github.com/tarstars/salary_predictor/golang/salary/regress"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RandomizedSearch samples NIter candidates and keeps the one with the best mean
// negative MSE over CV folds.
type RandomizedSearch struct {
	Sample      Sampler
	NIter       int
	CV          int
	NJobs       int // 0 uses every CPU
	RandomState uint64
	Logger      *zap.Logger

	// PrepareRefit, when set, may replace the unfitted winner before the final fit.
	PrepareRefit func(regress.Regressor) regress.Regressor
}

// Candidate is one sampled configuration and its fold scores.
type Candidate struct {
	Params     any
	FoldScores []float64
	MeanScore  float64
}

// Result holds every candidate, the winner and the winner refitted on all rows.
type Result struct {
	Candidates []Candidate
	BestIndex  int
	BestScore  float64
	Best       regress.Regressor
}

// BestParams returns the hyperparameters of the winner.
func (r *Result) BestParams() any {
	return r.Candidates[r.BestIndex].Params
}

// Fit runs the search. Candidates are drawn up front from RandomState and
// evaluated in parallel, the winner is the first one with the highest score.
func (rs RandomizedSearch) Fit(ctx context.Context, x *mat.Dense, y []float64) (*Result, error) {
	if rs.Sample == nil {
		return nil, errors.New("search: no sampler")
	}
	if rs.NIter < 1 {
		return nil, fmt.Errorf("search: n_iter must be positive, got %d", rs.NIter)
	}
	logger := rs.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	folds, err := dataset.KFold(len(y), rs.CV)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	rnd := rand.New(rand.NewSource(rs.RandomState))
	candidates := make([]regress.Regressor, rs.NIter)
	for i := range candidates {
		candidates[i] = rs.Sample(rnd)
	}

	// one task per (candidate, fold)
	scores := make([][]float64, rs.NIter)
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs(rs.NJobs))
	for i, candidate := range candidates {
		for f, fold := range folds {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				mse, err := holdoutMSE(candidate.Clone(), x, y, fold)
				if err != nil {
					return fmt.Errorf("candidate %d fold %d: %w", i, f, err)
				}
				scores[i][f] = -mse
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	result := &Result{Candidates: make([]Candidate, rs.NIter), BestIndex: -1}
	for i, candidate := range candidates {
		mean := stat.Mean(scores[i], nil)
		result.Candidates[i] = Candidate{Params: candidate.HyperParams(), FoldScores: scores[i], MeanScore: mean}
		logger.Debug("search candidate",
			zap.String("model", candidate.Kind()),
			zap.Int("index", i),
			zap.Any("params", candidate.HyperParams()),
			zap.Float64("mean_neg_mse", mean))
		if result.BestIndex == -1 || mean > result.BestScore {
			result.BestIndex, result.BestScore = i, mean
		}
	}

	best := candidates[result.BestIndex].Clone()
	if rs.PrepareRefit != nil {
		best = rs.PrepareRefit(best)
	}
	if err := best.Fit(x, y); err != nil {
		return nil, fmt.Errorf("search: refit best candidate: %w", err)
	}
	result.Best = best
	logger.Info("search finished",
		zap.String("model", best.Kind()),
		zap.Any("best_params", result.BestParams()),
		zap.Float64("best_rmse", math.Sqrt(-result.BestScore)))
	return result, nil
}

func jobs(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func holdoutMSE(model regress.Regressor, x *mat.Dense, y []float64, fold dataset.Fold) (float64, error) {
	trainX, trainY := dataset.Rows(x, y, fold.Train)
	if err := model.Fit(trainX, trainY); err != nil {
		return 0, err
	}
	testX, testY := dataset.Rows(x, y, fold.Test)
	prediction, err := model.Predict(testX)
	if err != nil {
		return 0, err
	}
	return MSE(testY, prediction), nil
}

// MSE is the mean squared difference of two equal length slices.
func MSE(target, prediction []float64) float64 {
	if len(target) == 0 {
		return 0
	}
	diff := make([]float64, len(target))
	floats.SubTo(diff, target, prediction)
	return floats.Dot(diff, diff) / float64(len(diff))
}

// RMSE is the square root of MSE.
func RMSE(target, prediction []float64) float64 {
	return math.Sqrt(MSE(target, prediction))
}

// ModelRMSE predicts x and scores it against y.
func ModelRMSE(model regress.Regressor, x mat.Matrix, y []float64) (float64, error) {
	prediction, err := model.Predict(x)
	if err != nil {
		return 0, err
	}
	if len(prediction) != len(y) {
		return 0, fmt.Errorf("search: %d predictions for %d targets", len(prediction), len(y))
	}
	return RMSE(y, prediction), nil
}

// CrossValRMSE fits a fresh clone of model on every fold of an unshuffled
// k-fold and returns the mean and the population standard deviation of the
// fold RMSE values. The fit already held by model is not used.
func CrossValRMSE(ctx context.Context, model regress.Regressor, x *mat.Dense, y []float64, k, nJobs int) (mean, std float64, err error) {
	folds, err := dataset.KFold(len(y), k)
	if err != nil {
		return 0, 0, fmt.Errorf("cross validation: %w", err)
	}
	rmse := make([]float64, len(folds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs(nJobs))
	for f, fold := range folds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mse, err := holdoutMSE(model.Clone(), x, y, fold)
			if err != nil {
				return fmt.Errorf("fold %d: %w", f, err)
			}
			rmse[f] = math.Sqrt(mse)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("cross validation: %w", err)
	}
	mean, std = stat.PopMeanStdDev(rmse, nil)
	return mean, std, nil
}
