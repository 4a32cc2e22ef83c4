// Package trainer fits the three salary models, scores them and writes the
// artifacts the predictor reads.
package trainer

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tarstars/salary_predictor/golang/salary/artifacts"
	"github.com/tarstars/salary_predictor/golang/salary/config"
	"github.com/tarstars/salary_predictor/golang/salary/dataset"
	"github.com/tarstars/salary_predictor/golang/salary/regress"
	"github.com/tarstars/salary_predictor/golang/salary/search"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Trainer runs one training job. Progress for the operator goes to out,
// structured logs go to the logger.
type Trainer struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

func New(cfg *config.Config, logger *zap.Logger, out io.Writer) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Trainer{cfg: cfg, logger: logger, out: out}
}

// split is the train/test partition of the dataset.
type split struct {
	trainX, testX *mat.Dense
	trainY, testY []float64
}

// Run loads or synthesizes the data, fits and scores every model, and writes the
// models and the metrics record. The first failure stops the run.
func (t *Trainer) Run(ctx context.Context) (*artifacts.MetricsRecord, error) {
	logger := t.logger.With(zap.String("run_id", uuid.NewString()))
	started := time.Now()

	ds, source, err := dataset.LoadOrGenerate(t.cfg.DatasetPath, t.cfg.Features, t.cfg.Target, t.cfg.SyntheticRows, t.cfg.RandomState)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	if source == dataset.SourceSynthetic {
		fmt.Fprintf(t.out, "No %s found, generating synthetic dataset.\n", t.cfg.DatasetPath)
	} else {
		fmt.Fprintf(t.out, "Loading dataset from %s\n", t.cfg.DatasetPath)
	}
	logger.Info("dataset ready", zap.String("source", string(source)), zap.Int("rows", ds.Len()))

	trainRows, testRows, err := dataset.TrainTestSplit(ds.Len(), t.cfg.TestSize, t.cfg.RandomState)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	var sp split
	sp.trainX, sp.trainY = ds.Rows(trainRows)
	sp.testX, sp.testY = ds.Rows(testRows)

	models, err := t.fitModels(ctx, logger, sp)
	if err != nil {
		return nil, err
	}

	record := &artifacts.MetricsRecord{Features: append([]string(nil), t.cfg.Features...)}
	for _, model := range models {
		mm, err := t.evaluate(ctx, model, ds, sp)
		if err != nil {
			return nil, err
		}
		path, err := artifacts.SaveModel(t.cfg.ModelsDir, t.cfg.Features, model)
		if err != nil {
			return nil, fmt.Errorf("trainer: %w", err)
		}
		record.Models = append(record.Models, mm)
		logger.Info("model saved",
			zap.String("model", mm.Name),
			zap.String("path", path),
			zap.Float64("rmse_test", mm.RMSETest),
			zap.Float64("rmse_cv_mean", mm.RMSECVMean),
			zap.Float64("rmse_cv_std", mm.RMSECVStd))
		fmt.Fprintf(t.out, "%s saved → %s\n", mm.Name, path)
		fmt.Fprintf(t.out, "  Test RMSE: %.2f\n", mm.RMSETest)
		fmt.Fprintf(t.out, "  CV RMSE: %.2f (±%.2f)\n\n", mm.RMSECVMean, mm.RMSECVStd)
	}

	record.BestModel = artifacts.SelectBest(record.Models)
	if err := artifacts.WriteMetrics(t.cfg.MetricsPath, record); err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	logger.Info("training complete", zap.String("best_model", record.BestModel), zap.Duration("elapsed", time.Since(started)))
	fmt.Fprintln(t.out, "Training complete!")
	fmt.Fprintf(t.out, "Best model: %s\n", record.BestModel)
	fmt.Fprintf(t.out, "Metrics written to %s\n", t.cfg.MetricsPath)
	return record, nil
}

// fitModels returns the fitted models in training order.
func (t *Trainer) fitModels(ctx context.Context, logger *zap.Logger, sp split) ([]regress.Regressor, error) {
	linear := &regress.LinearRegression{}
	if err := linear.Fit(sp.trainX, sp.trainY); err != nil {
		return nil, fmt.Errorf("trainer: %s: %w", linear.Kind(), err)
	}

	forestSearch := search.RandomizedSearch{
		Sample: t.cfg.RandomForest.Sampler(regress.ForestParams{
			RandomState: t.cfg.RandomState,
			RegLambda:   t.cfg.RegLambda,
			ThreadsNum:  t.cfg.ThreadsNum,
		}),
		NIter:       t.cfg.Search.NIter,
		CV:          t.cfg.Search.CV,
		NJobs:       t.cfg.Search.NJobs,
		RandomState: t.cfg.RandomState,
		Logger:      logger,
	}
	forest, err := forestSearch.Fit(ctx, sp.trainX, sp.trainY)
	if err != nil {
		return nil, fmt.Errorf("trainer: %s: %w", regress.KindRandomForest, err)
	}

	boostingSearch := search.RandomizedSearch{
		Sample: t.cfg.GradientBoosting.Sampler(regress.BoostingParams{
			MinSamplesSplit: 2,
			RegLambda:       t.cfg.RegLambda,
			ThreadsNum:      t.cfg.ThreadsNum,
		}),
		NIter:       t.cfg.Search.NIter,
		CV:          t.cfg.Search.CV,
		NJobs:       t.cfg.Search.NJobs,
		RandomState: t.cfg.RandomState,
		Logger:      logger,
		PrepareRefit: func(best regress.Regressor) regress.Regressor {
			gb := best.(*regress.GradientBoosting)
			return regress.NewGradientBoosting(gb.Params,
				regress.WithLogger(logger),
				regress.WithMonitor("test", sp.testX, sp.testY))
		},
	}
	boosting, err := boostingSearch.Fit(ctx, sp.trainX, sp.trainY)
	if err != nil {
		return nil, fmt.Errorf("trainer: %s: %w", regress.KindGradientBoosting, err)
	}
	return []regress.Regressor{linear, forest.Best, boosting.Best}, nil
}

// evaluate scores model on the test rows and by cross-validation over the whole
// dataset. Cross-validation refits clones, the fitted model is not reused.
func (t *Trainer) evaluate(ctx context.Context, model regress.Regressor, ds *dataset.Dataset, sp split) (artifacts.ModelMetrics, error) {
	mm := artifacts.ModelMetrics{Name: model.Kind()}
	var err error
	mm.RMSETest, err = search.ModelRMSE(model, sp.testX, sp.testY)
	if err != nil {
		return mm, fmt.Errorf("trainer: %s: %w", mm.Name, err)
	}
	mm.RMSECVMean, mm.RMSECVStd, err = search.CrossValRMSE(ctx, model, ds.X, ds.Y, t.cfg.CVFolds, t.cfg.Search.NJobs)
	if err != nil {
		return mm, fmt.Errorf("trainer: %s: %w", mm.Name, err)
	}
	return mm, nil
}
