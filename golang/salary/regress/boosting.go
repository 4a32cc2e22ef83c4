package regress

import (
	"encoding/json"
	"fmt"

	"github.com/tarstars/salary_predictor/golang/salary/ebl"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BoostingParams are the hyperparameters of GradientBoosting.
type BoostingParams struct {
	NEstimators     int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	RegLambda       float64 `json:"reg_lambda"`
	ThreadsNum      int     `json:"threads_num,omitempty"`
}

// DefaultBoostingParams returns 100 stages of depth 3 trees with learning rate 0.1.
func DefaultBoostingParams() BoostingParams {
	return BoostingParams{
		NEstimators:     100,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		RegLambda:       1e-6,
	}
}

// monitor is a held out set whose RMSE is recorded after every stage.
type monitor struct {
	name string
	x    *mat.Dense
	y    []float64
}

// GradientBoosting starts from the mean target and adds shrunk regression trees
// fitted to the squared error gradients.
type GradientBoosting struct {
	Params   BoostingParams `json:"params"`
	Features int            `json:"features"`
	Booster  *ebl.EBooster  `json:"booster"`

	logger   *zap.Logger
	monitors []monitor
}

// BoostingOption configures a GradientBoosting that is about to be fitted.
type BoostingOption func(*GradientBoosting)

// WithLogger sends per stage learning curves to logger at debug level.
func WithLogger(logger *zap.Logger) BoostingOption {
	return func(gb *GradientBoosting) {
		gb.logger = logger
	}
}

// WithMonitor records the RMSE on (x, y) after every stage.
func WithMonitor(name string, x *mat.Dense, y []float64) BoostingOption {
	return func(gb *GradientBoosting) {
		gb.monitors = append(gb.monitors, monitor{name: name, x: x, y: y})
	}
}

func NewGradientBoosting(params BoostingParams, opts ...BoostingOption) *GradientBoosting {
	gb := &GradientBoosting{Params: params}
	for _, opt := range opts {
		opt(gb)
	}
	return gb
}

func (gb *GradientBoosting) Kind() string { return KindGradientBoosting }

func (gb *GradientBoosting) HyperParams() any { return gb.Params }

// Clone drops the monitors, a clone is fitted on other rows.
func (gb *GradientBoosting) Clone() Regressor {
	return NewGradientBoosting(gb.Params, WithLogger(gb.logger))
}

func (gb *GradientBoosting) Fit(x *mat.Dense, y []float64) error {
	if err := checkTrainingSet(x, y); err != nil {
		return err
	}
	_, w := x.Dims()
	printMessages := make([]ebl.EMatrix, 0, len(gb.monitors))
	for _, m := range gb.monitors {
		if err := checkWidth(m.x, w); err != nil {
			return fmt.Errorf("monitor %s: %w", m.name, err)
		}
		em := ebl.NewRegressionEMatrix(m.x, m.y)
		em.SetDescription(m.name)
		printMessages = append(printMessages, em)
	}
	booster, err := ebl.NewEBooster(ebl.EBoosterParams{
		Matrix:          ebl.NewRegressionEMatrix(x, y),
		NStages:         gb.Params.NEstimators,
		RegLambda:       gb.Params.RegLambda,
		MaxDepth:        gb.Params.MaxDepth,
		MinSamplesSplit: gb.Params.MinSamplesSplit,
		LearningRate:    gb.Params.LearningRate,
		LossKind:        ebl.MseLoss{},
		PrintMessages:   printMessages,
		ThreadsNum:      gb.Params.ThreadsNum,
		BaseScore:       stat.Mean(y, nil),
		Logger:          gb.logger,
	})
	if err != nil {
		return fmt.Errorf("regress: gradient boosting: %w", err)
	}
	gb.Booster = booster
	gb.Features = w
	return nil
}

func (gb *GradientBoosting) Predict(x mat.Matrix) ([]float64, error) {
	if gb.Booster == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(x, gb.Features); err != nil {
		return nil, err
	}
	prediction := gb.Booster.PredictValue(x, ebl.OnesColumn(ebl.Height(x)), nil)
	return mat.Col(nil, 0, prediction), nil
}

// StagedRMSE returns the RMSE on (x, y) after each stage.
func (gb *GradientBoosting) StagedRMSE(x mat.Matrix, y []float64) ([]float64, error) {
	if gb.Booster == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(x, gb.Features); err != nil {
		return nil, err
	}
	h := ebl.Height(x)
	if len(y) != h {
		return nil, fmt.Errorf("regress: %d targets for %d rows", len(y), h)
	}
	target := mat.NewDense(h, 1, append([]float64(nil), y...))
	return gb.Booster.StagedRmse(x, ebl.OnesColumn(h), target), nil
}

// UnmarshalJSON rejects a stored booster that does not fit the stored feature count.
func (gb *GradientBoosting) UnmarshalJSON(data []byte) error {
	type stored GradientBoosting
	if err := json.Unmarshal(data, (*stored)(gb)); err != nil {
		return err
	}
	if gb.Booster == nil {
		return nil
	}
	if err := gb.Booster.Check(gb.Features, 1); err != nil {
		return fmt.Errorf("regress: gradient boosting: %w", err)
	}
	return nil
}

// LearningCurves returns the monitored RMSE per stage recorded during Fit.
func (gb *GradientBoosting) LearningCurves() (titles []string, values [][]float64) {
	if gb.Booster == nil {
		return nil, nil
	}
	return gb.Booster.LearningCurves()
}

// TreeEnsemble exposes the fitted trees for rendering.
func (gb *GradientBoosting) TreeEnsemble() []ebl.OneTree {
	if gb.Booster == nil {
		return nil
	}
	return gb.Booster.Trees
}
