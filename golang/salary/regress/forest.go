package regress

import (
	"encoding/json"
	"fmt"

	"github.com/tarstars/salary_predictor/golang/salary/ebl"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// ForestParams are the hyperparameters of RandomForest.
type ForestParams struct {
	NEstimators     int     `json:"n_estimators"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	RandomState     uint64  `json:"random_state"`
	RegLambda       float64 `json:"reg_lambda"`
	ThreadsNum      int     `json:"threads_num,omitempty"`
}

// DefaultForestParams returns a forest of 100 trees of depth 10.
func DefaultForestParams() ForestParams {
	return ForestParams{
		NEstimators:     100,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		RandomState:     42,
		RegLambda:       1e-6,
	}
}

// RandomForest averages regression trees fitted on bootstrap samples of the training rows.
type RandomForest struct {
	Params   ForestParams  `json:"params"`
	Features int           `json:"features"`
	Trees    []ebl.OneTree `json:"trees"`
}

func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

func (rf *RandomForest) Kind() string { return KindRandomForest }

func (rf *RandomForest) HyperParams() any { return rf.Params }

func (rf *RandomForest) Clone() Regressor { return NewRandomForest(rf.Params) }

// Fit draws the bootstrap samples from RandomState, so two fits with the same
// parameters on the same rows give the same trees.
func (rf *RandomForest) Fit(x *mat.Dense, y []float64) error {
	if err := checkTrainingSet(x, y); err != nil {
		return err
	}
	if rf.Params.NEstimators < 1 {
		return fmt.Errorf("regress: random forest needs n_estimators >= 1, got %d", rf.Params.NEstimators)
	}
	pool, err := ebl.NewSplitPool(rf.Params.ThreadsNum)
	if err != nil {
		return err
	}
	defer pool.Release()

	full := ebl.NewRegressionEMatrix(x, y)
	h, w := x.Dims()
	rnd := rand.New(rand.NewSource(rf.Params.RandomState))
	treeParams := ebl.TreeParams{
		MaxDepth:        rf.Params.MaxDepth,
		MinSamplesSplit: rf.Params.MinSamplesSplit,
		RegLambda:       rf.Params.RegLambda,
		LearningRate:    1,
	}
	trees := make([]ebl.OneTree, 0, rf.Params.NEstimators)
	rows := make([]int, h)
	for t := 0; t < rf.Params.NEstimators; t++ {
		for p := range rows {
			rows[p] = rnd.Intn(h)
		}
		sample := full.Subset(rows)
		trees = append(trees, ebl.NewTree(sample, mat.NewDense(h, 1, nil), treeParams, pool))
	}
	rf.Trees = trees
	rf.Features = w
	return nil
}

func (rf *RandomForest) Predict(x mat.Matrix) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}
	if err := checkWidth(x, rf.Features); err != nil {
		return nil, err
	}
	h, _ := x.Dims()
	ones := ebl.OnesColumn(h)
	sum := mat.NewDense(h, 1, nil)
	for _, tree := range rf.Trees {
		sum.Add(sum, tree.PredictValue(x, ones))
	}
	sum.Scale(1/float64(len(rf.Trees)), sum)
	return mat.Col(nil, 0, sum), nil
}

// UnmarshalJSON rejects stored trees that do not fit the stored feature count.
func (rf *RandomForest) UnmarshalJSON(data []byte) error {
	type stored RandomForest
	if err := json.Unmarshal(data, (*stored)(rf)); err != nil {
		return err
	}
	for ind, tree := range rf.Trees {
		if err := tree.Check(rf.Features, 1); err != nil {
			return fmt.Errorf("regress: random forest tree %d: %w", ind, err)
		}
	}
	return nil
}

// TreeEnsemble exposes the fitted trees for rendering.
func (rf *RandomForest) TreeEnsemble() []ebl.OneTree { return rf.Trees }
