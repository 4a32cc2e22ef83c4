package ebl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

//EBooster is the model class.
type EBooster struct {
	BaseScore           float64
	Trees               []OneTree
	LearningCurveTitles []string `json:",omitempty"`
}

//EBoosterParams collect arguments required to construct a booster.
type EBoosterParams struct {
	Matrix          EMatrix
	NStages         int
	RegLambda       float64
	MaxDepth        int
	MinSamplesSplit int
	LearningRate    float64
	LossKind        SplitLoss
	PrintMessages   []EMatrix
	ThreadsNum      int
	UnbalancedLoss  float64
	BaseScore       float64 // the starting prediction of every record
	Logger          *zap.Logger
}

//NewEBooster fits a new model stage by stage. Every tree is fitted to the gradients of the loss
//at the sum of the base score and the previous trees.
func NewEBooster(params EBoosterParams) (*EBooster, error) {
	if params.NStages < 1 {
		return nil, errors.New("ebl: booster needs at least one stage")
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := NewSplitPool(params.ThreadsNum)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	ebooster := &EBooster{BaseScore: params.BaseScore, Trees: make([]OneTree, 0, params.NStages)}
	h, _, _ := params.Matrix.validatedDimensions()
	bias := constantColumn(h, params.BaseScore)
	testBiases := make([]*mat.Dense, len(params.PrintMessages))
	for testIndex, currentMessage := range params.PrintMessages {
		ebooster.LearningCurveTitles = append(ebooster.LearningCurveTitles, currentMessage.description())
		testBiases[testIndex] = constantColumn(Height(currentMessage.FeaturesInter), params.BaseScore)
	}
	treeParams := TreeParams{
		MaxDepth:        params.MaxDepth,
		MinSamplesSplit: params.MinSamplesSplit,
		RegLambda:       params.RegLambda,
		LearningRate:    params.LearningRate,
		LossKind:        params.LossKind,
		UnbalancedLoss:  params.UnbalancedLoss,
	}
	for stage := 0; stage < params.NStages; stage++ {
		tree := NewTree(params.Matrix, bias, treeParams, pool)
		deltaB := tree.PredictValue(params.Matrix.FeaturesInter, params.Matrix.FeaturesExtra)
		bias.Add(bias, deltaB)
		for testIndex, currentEmatrix := range params.PrintMessages {
			tree.LearningCurveRow = append(tree.LearningCurveRow, currentEmatrix.Message(tree, testBiases[testIndex], logger))
		}
		ebooster.Trees = append(ebooster.Trees, tree)
		logger.Debug("tree built", zap.Int("stage", stage+1), zap.Int("nodes", len(tree.TreeNodes)))
	}
	return ebooster, nil
}

//PredictValue infers values of the Target. It requires both sets of features - interpolating and extrapolating.
//When treesNumber is given only the first trees are added to the base score.
func (ebooster EBooster) PredictValue(featuresInter, featuresExtra mat.Matrix, treesNumber *int) (prediction *mat.Dense) {
	prediction = constantColumn(Height(featuresInter), ebooster.BaseScore)
	n := len(ebooster.Trees)
	if treesNumber != nil && *treesNumber < n {
		n = *treesNumber
	}
	for treeInd := 0; treeInd < n; treeInd++ {
		prediction.Add(prediction, ebooster.Trees[treeInd].PredictValue(featuresInter, featuresExtra))
	}
	return
}

//Check runs OneTree.Check on every tree.
func (ebooster EBooster) Check(interWidth, extraWidth int) error {
	for ind, tree := range ebooster.Trees {
		if err := tree.Check(interWidth, extraWidth); err != nil {
			return fmt.Errorf("tree %d: %w", ind, err)
		}
	}
	return nil
}

//StagedRmse returns RMSE of the base score plus the first k trees for every k.
func (ebooster EBooster) StagedRmse(featuresInter, featuresExtra, target mat.Matrix) []float64 {
	prediction := constantColumn(Height(featuresInter), ebooster.BaseScore)
	curve := make([]float64, 0, len(ebooster.Trees))
	for _, currentTree := range ebooster.Trees {
		prediction.Add(prediction, currentTree.PredictValue(featuresInter, featuresExtra))
		curve = append(curve, Rmse(target, prediction))
	}
	return curve
}

//LearningCurves returns the curves recorded during training, one row per tree.
func (ebooster EBooster) LearningCurves() (titles []string, values [][]float64) {
	values = make([][]float64, 0, len(ebooster.Trees))
	for _, currentTree := range ebooster.Trees {
		values = append(values, currentTree.LearningCurveRow)
	}
	return ebooster.LearningCurveTitles, values
}

//LearningCurvesDump is the JSON form of the recorded learning curves.
type LearningCurvesDump struct {
	Titles []string
	Values [][]float64
}

//DumpLearningCurves writes the recorded learning curves as indented JSON.
func (ebooster EBooster) DumpLearningCurves(w io.Writer) error {
	var learningCurvesDump LearningCurvesDump
	learningCurvesDump.Titles, learningCurvesDump.Values = ebooster.LearningCurves()
	bytesResult, err := json.MarshalIndent(learningCurvesDump, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(bytesResult)
	return err
}
