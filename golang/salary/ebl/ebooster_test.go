package ebl

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func stepData(h int) (*mat.Dense, []float64) {
	x := mat.NewDense(h, 2, nil)
	y := make([]float64, h)
	for p := 0; p < h; p++ {
		x.Set(p, 0, float64(p))
		x.Set(p, 1, float64(p%3))
		y[p] = 100
		if p >= h/2 {
			y[p] = 200
		}
		y[p] += 10 * float64(p%3)
	}
	return x, y
}

func TestBoosterFitsStepFunction(t *testing.T) {
	x, y := stepData(60)
	em := NewRegressionEMatrix(x, y)
	monitor := NewRegressionEMatrix(x, y)
	monitor.SetDescription("train")

	booster, err := NewEBooster(EBoosterParams{
		Matrix:          em,
		NStages:         40,
		RegLambda:       1e-9,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		LearningRate:    0.3,
		PrintMessages:   []EMatrix{monitor},
		ThreadsNum:      2,
		BaseScore:       160,
	})
	require.NoError(t, err)
	require.Len(t, booster.Trees, 40)

	prediction := booster.PredictValue(x, OnesColumn(60), nil)
	assert.Less(t, Rmse(em.Target, prediction), 0.5)

	titles, curves := booster.LearningCurves()
	assert.Equal(t, []string{"train"}, titles)
	require.Len(t, curves, 40)
	for stage := 1; stage < len(curves); stage++ {
		assert.LessOrEqual(t, curves[stage][0], curves[stage-1][0]+1e-9)
	}

	var dump bytes.Buffer
	require.NoError(t, booster.DumpLearningCurves(&dump))
	var decoded LearningCurvesDump
	require.NoError(t, json.Unmarshal(dump.Bytes(), &decoded))
	assert.Equal(t, titles, decoded.Titles)
	assert.Equal(t, curves, decoded.Values)
}

func TestBoosterRejectsZeroStages(t *testing.T) {
	x, y := stepData(10)
	_, err := NewEBooster(EBoosterParams{Matrix: NewRegressionEMatrix(x, y), NStages: 0})
	assert.Error(t, err)
}

func TestStagedRmseEndsAtFullPrediction(t *testing.T) {
	x, y := stepData(30)
	em := NewRegressionEMatrix(x, y)
	booster, err := NewEBooster(EBoosterParams{
		Matrix:          em,
		NStages:         5,
		RegLambda:       1e-9,
		MaxDepth:        2,
		MinSamplesSplit: 2,
		LearningRate:    0.5,
		BaseScore:       150,
	})
	require.NoError(t, err)

	curve := booster.StagedRmse(x, OnesColumn(30), em.Target)
	require.Len(t, curve, 5)

	prediction := booster.PredictValue(x, OnesColumn(30), nil)
	assert.InDelta(t, Rmse(em.Target, prediction), curve[4], 1e-9)

	two := 2
	partial := booster.PredictValue(x, OnesColumn(30), &two)
	assert.InDelta(t, Rmse(em.Target, partial), curve[1], 1e-9)
}

func TestRenderTreesWritesOneFilePerTree(t *testing.T) {
	x, y := stepData(20)
	em := NewRegressionEMatrix(x, y)
	tree := NewTree(em, mat.NewDense(20, 1, nil), TreeParams{MaxDepth: 2, MinSamplesSplit: 2, RegLambda: 1e-9, LearningRate: 1}, nil)

	dir := t.TempDir()
	written, err := RenderTrees([]OneTree{tree, tree}, []string{"a", "b"}, "tree", "svg", dir, 1)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "tree_00000.svg")}, written)
	info, err := os.Stat(written[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = RenderTrees([]OneTree{tree}, nil, "tree", "bmp", dir, 0)
	assert.Error(t, err)
}
