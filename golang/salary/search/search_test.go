package search

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarstars/salary_predictor/golang/salary/dataset"
	"github.com/tarstars/salary_predictor/golang/salary/regress"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestIntRangeStaysInside(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	r := IntRange{Low: 80, High: 250}
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := r.Sample(rnd)
		require.GreaterOrEqual(t, v, 80)
		require.Less(t, v, 250)
		seen[v] = true
	}
	assert.Greater(t, len(seen), 100)
	assert.Error(t, IntRange{Low: 3, High: 3}.Validate())
	assert.NoError(t, r.Validate())
}

func TestFloatRangeStaysInside(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	r := FloatRange{Loc: 0.01, Scale: 0.2}
	for i := 0; i < 2000; i++ {
		v := r.Sample(rnd)
		require.GreaterOrEqual(t, v, 0.01)
		require.LessOrEqual(t, v, 0.21)
	}
	assert.Equal(t, 0.5, FloatRange{Loc: 0.5}.Sample(rnd))
	assert.Error(t, FloatRange{Loc: 0.5, Scale: -1}.Validate())
}

func TestMSE(t *testing.T) {
	assert.InDelta(t, 2.5, MSE([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, math.Sqrt(2.5), RMSE([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.Equal(t, 0.0, MSE(nil, nil))
}

// constantModel predicts the training mean plus a fixed offset. It lets the
// tests know the exact score of every candidate.
type constantModel struct {
	Offset float64
	mean   *float64
}

func (m *constantModel) Kind() string { return "constant" }
func (m *constantModel) HyperParams() any { return m.Offset }
func (m *constantModel) Clone() regress.Regressor {
	return &constantModel{Offset: m.Offset}
}

func (m *constantModel) Fit(_ *mat.Dense, y []float64) error {
	s := 0.0
	for _, v := range y {
		s += v
	}
	mean := s / float64(len(y))
	m.mean = &mean
	return nil
}

func (m *constantModel) Predict(x mat.Matrix) ([]float64, error) {
	if m.mean == nil {
		return nil, regress.ErrNotFitted
	}
	h, _ := x.Dims()
	out := make([]float64, h)
	for p := range out {
		out[p] = *m.mean + m.Offset
	}
	return out, nil
}

func constantRows(n int) (*mat.Dense, []float64) {
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for p := range y {
		x.Set(p, 0, float64(p))
		y[p] = 5
	}
	return x, y
}

func TestRandomizedSearchPicksTheSmallestError(t *testing.T) {
	offsets := []float64{3, -2, 0.5, -0.5, 4}
	next := 0
	sampler := func(*rand.Rand) regress.Regressor {
		m := &constantModel{Offset: offsets[next]}
		next++
		return m
	}
	x, y := constantRows(12)
	result, err := RandomizedSearch{Sample: sampler, NIter: 5, CV: 3, NJobs: 2, RandomState: 42}.Fit(context.Background(), x, y)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 5)
	// offsets 0.5 and -0.5 tie, the first one wins
	assert.Equal(t, 2, result.BestIndex)
	assert.Equal(t, 0.5, result.BestParams())
	assert.InDelta(t, -0.25, result.BestScore, 1e-12)
	for i, c := range result.Candidates {
		assert.InDelta(t, -offsets[i]*offsets[i], c.MeanScore, 1e-12)
		assert.Len(t, c.FoldScores, 3)
	}

	got, err := result.Best.Predict(mat.NewDense(1, 1, nil))
	require.NoError(t, err)
	assert.InDelta(t, 5.5, got[0], 1e-12)
}

func TestRandomizedSearchValidates(t *testing.T) {
	x, y := constantRows(6)
	ctx := context.Background()
	_, err := RandomizedSearch{NIter: 1, CV: 3}.Fit(ctx, x, y)
	assert.Error(t, err)

	sampler := func(*rand.Rand) regress.Regressor { return &constantModel{} }
	_, err = RandomizedSearch{Sample: sampler, NIter: 0, CV: 3}.Fit(ctx, x, y)
	assert.Error(t, err)
	_, err = RandomizedSearch{Sample: sampler, NIter: 1, CV: 10}.Fit(ctx, x, y)
	assert.Error(t, err)
}

func TestRandomizedSearchIsReproducible(t *testing.T) {
	ds, err := dataset.Synthetic(90, 42)
	require.NoError(t, err)
	space := BoostingSpace{
		NEstimators:  IntRange{Low: 3, High: 8},
		LearningRate: FloatRange{Loc: 0.05, Scale: 0.2},
		MaxDepth:     IntRange{Low: 1, High: 3},
	}
	run := func(jobs int) *Result {
		rs := RandomizedSearch{
			Sample:      space.Sampler(regress.DefaultBoostingParams()),
			NIter:       4,
			CV:          3,
			NJobs:       jobs,
			RandomState: 42,
		}
		result, err := rs.Fit(context.Background(), ds.X, ds.Y)
		require.NoError(t, err)
		return result
	}
	sequential, parallel := run(1), run(4)
	assert.Equal(t, sequential.BestIndex, parallel.BestIndex)
	assert.Equal(t, sequential.BestParams(), parallel.BestParams())
	for i := range sequential.Candidates {
		assert.Equal(t, sequential.Candidates[i].FoldScores, parallel.Candidates[i].FoldScores)
	}
	params := sequential.BestParams().(regress.BoostingParams)
	assert.GreaterOrEqual(t, params.NEstimators, 3)
	assert.Less(t, params.NEstimators, 8)
}

func TestCrossValRMSE(t *testing.T) {
	offsets := &constantModel{Offset: 2}
	x, y := constantRows(10)
	mean, std, err := CrossValRMSE(context.Background(), offsets, x, y, 5, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2, mean, 1e-12)
	assert.InDelta(t, 0, std, 1e-12)

	_, _, err = CrossValRMSE(context.Background(), offsets, x, y, 11, 0)
	assert.Error(t, err)
}

func TestCrossValRMSEUsesPopulationDeviation(t *testing.T) {
	// folds of 2 rows: targets 0 0 | 0 0 | 6 6, the constant model trained
	// on the other folds predicts 3, 3 and 0
	x := mat.NewDense(6, 1, nil)
	y := []float64{0, 0, 0, 0, 6, 6}
	mean, std, err := CrossValRMSE(context.Background(), &constantModel{}, x, y, 3, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4, mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2), std, 1e-12)
}

func TestModelRMSE(t *testing.T) {
	m := &constantModel{Offset: 1}
	_, err := ModelRMSE(m, mat.NewDense(2, 1, nil), []float64{0, 0})
	assert.ErrorIs(t, err, regress.ErrNotFitted)

	require.NoError(t, m.Fit(nil, []float64{1, 3}))
	got, err := ModelRMSE(m, mat.NewDense(2, 1, nil), []float64{3, 3})
	require.NoError(t, err)
	assert.InDelta(t, 0, got, 1e-12)
}
