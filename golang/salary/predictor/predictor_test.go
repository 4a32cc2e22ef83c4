package predictor

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarstars/salary_predictor/golang/salary/artifacts"
	"github.com/tarstars/salary_predictor/golang/salary/config"
	"github.com/tarstars/salary_predictor/golang/salary/dataset"
	"github.com/tarstars/salary_predictor/golang/salary/regress"
	"gonum.org/v1/gonum/mat"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ModelsDir = filepath.Join(dir, "models")
	cfg.MetricsPath = filepath.Join(dir, "model_metrics.json")
	return cfg
}

// saveModels fits small versions of the named models on synthetic rows.
func saveModels(t *testing.T, cfg *config.Config, kinds ...string) {
	t.Helper()
	ds, err := dataset.Synthetic(150, 42)
	require.NoError(t, err)
	for _, kind := range kinds {
		var model regress.Regressor
		switch kind {
		case regress.KindLinear:
			model = &regress.LinearRegression{}
		case regress.KindRandomForest:
			model = regress.NewRandomForest(regress.ForestParams{NEstimators: 5, MaxDepth: 5, MinSamplesSplit: 2, RandomState: 42, RegLambda: 1e-6})
		case regress.KindGradientBoosting:
			model = regress.NewGradientBoosting(regress.BoostingParams{NEstimators: 30, LearningRate: 0.2, MaxDepth: 3, MinSamplesSplit: 2, RegLambda: 1e-6})
		}
		require.NoError(t, model.Fit(ds.X, ds.Y))
		_, err := artifacts.SaveModel(cfg.ModelsDir, cfg.Features, model)
		require.NoError(t, err)
	}
}

func writeMetrics(t *testing.T, cfg *config.Config, best string) {
	t.Helper()
	record := &artifacts.MetricsRecord{
		Models: []artifacts.ModelMetrics{
			{Name: regress.KindLinear, RMSETest: 7000},
			{Name: regress.KindRandomForest, RMSETest: 7500},
			{Name: regress.KindGradientBoosting, RMSETest: 7200},
		},
		BestModel: best,
		Features:  cfg.Features,
	}
	require.NoError(t, artifacts.WriteMetrics(cfg.MetricsPath, record))
}

var sample = map[string]any{"years_experience": 5.0, "education_level": 1.0, "role_level": 1.0, "company_size": 2.0}

func TestEnsembleIsTheMeanOfPerModel(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.Kinds...)
	result, err := New(cfg, nil).Predict(sample, "")
	require.NoError(t, err)

	require.Len(t, result.PerModel, 3)
	sum := 0.0
	for i, mp := range result.PerModel {
		assert.Equal(t, regress.Kinds[i], mp.Name)
		assert.Greater(t, mp.Value, 10000.0)
		assert.Less(t, mp.Value, 200000.0)
		sum += mp.Value
	}
	assert.InDelta(t, sum/3, result.Ensemble, 1e-6)
}

func TestExplicitChoiceWins(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.Kinds...)
	writeMetrics(t, cfg, regress.KindLinear)

	result, err := New(cfg, nil).Predict(sample, regress.KindRandomForest)
	require.NoError(t, err)
	require.NotNil(t, result.ActiveModel)
	assert.Equal(t, regress.KindRandomForest, *result.ActiveModel)
	own, ok := result.PerModel.Get(regress.KindRandomForest)
	require.True(t, ok)
	assert.Equal(t, own, result.ActivePrediction)
}

func TestUnknownChoiceFallsBackToMetrics(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.KindLinear, regress.KindGradientBoosting)
	writeMetrics(t, cfg, regress.KindGradientBoosting)

	for _, choice := range []string{"", "svm", regress.KindRandomForest} {
		result, err := New(cfg, nil).Predict(sample, choice)
		require.NoError(t, err)
		require.NotNil(t, result.ActiveModel, choice)
		assert.Equal(t, regress.KindGradientBoosting, *result.ActiveModel, choice)
		own, _ := result.PerModel.Get(regress.KindGradientBoosting)
		assert.Equal(t, own, result.ActivePrediction, choice)
	}
}

func TestBestModelWithoutArtifactFallsBackToEnsemble(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.KindLinear, regress.KindGradientBoosting)
	writeMetrics(t, cfg, regress.KindRandomForest)

	result, err := New(cfg, nil).Predict(sample, "")
	require.NoError(t, err)
	require.NotNil(t, result.ActiveModel)
	assert.Equal(t, regress.KindRandomForest, *result.ActiveModel)
	assert.Equal(t, result.Ensemble, result.ActivePrediction)
	_, ok := result.PerModel.Get(regress.KindRandomForest)
	assert.False(t, ok)
}

func TestNoMetricsMeansNoActiveModel(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.Kinds...)
	result, err := New(cfg, nil).Predict(sample, "")
	require.NoError(t, err)
	assert.Nil(t, result.ActiveModel)
	assert.Equal(t, result.Ensemble, result.ActivePrediction)

	var buf bytes.Buffer
	require.NoError(t, New(cfg, nil).Run([]string{`{"years_experience": 5}`}, &buf))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "active_model")
	assert.Nil(t, decoded["active_model"])
}

func TestMetricsWithoutBestModel(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.KindLinear)
	writeMetrics(t, cfg, "")
	result, err := New(cfg, nil).Predict(sample, "")
	require.NoError(t, err)
	assert.Nil(t, result.ActiveModel)
}

func TestEmptyMappingUsesZeros(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.KindLinear)
	result, err := New(cfg, nil).Predict(map[string]any{}, "")
	require.NoError(t, err)

	model, _, err := artifacts.LoadModel(artifacts.ModelPath(cfg.ModelsDir, regress.KindLinear))
	require.NoError(t, err)
	zeros, err := model.Predict(mat.NewDense(1, 4, nil))
	require.NoError(t, err)
	assert.Equal(t, zeros[0], result.Ensemble)
	assert.InDelta(t, model.(*regress.LinearRegression).Intercept, result.Ensemble, 1e-9)
}

func TestLoadModelsReportsMissing(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.KindRandomForest)
	loaded, missing, err := New(cfg, nil).LoadModels()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	assert.Contains(t, loaded, regress.KindRandomForest)
	assert.Equal(t, []string{regress.KindLinear, regress.KindGradientBoosting}, missing)
}

func TestCorruptArtifactIsAnError(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.KindLinear)
	require.NoError(t, os.WriteFile(artifacts.ModelPath(cfg.ModelsDir, regress.KindRandomForest), []byte("{"), 0o644))
	_, err := New(cfg, nil).Predict(sample, "")
	assert.Error(t, err)
}

func TestRunErrorPayloads(t *testing.T) {
	cfg := testConfig(t)
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no argument", nil, ErrNoFeatures.Error()},
		{"no models", []string{`{"years_experience": 5}`}, ErrNoModels.Error()},
		{"bad json", []string{`{"years_experience": `}, "invalid features JSON"},
		{"not an object", []string{`[1, 2]`}, "invalid features JSON"},
		{"null", []string{`null`}, "features must be a JSON object"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, New(cfg, nil).Run(tc.args, &buf))
			assert.True(t, strings.HasSuffix(buf.String(), "\n"))
			assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
			assert.Len(t, decoded, 1)
			assert.Contains(t, decoded["error"], tc.want)
		})
	}
}

func TestRunConversionError(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.KindLinear)
	var buf bytes.Buffer
	require.NoError(t, New(cfg, nil).Run([]string{`{"years_experience": "five"}`}, &buf))
	assert.Contains(t, buf.String(), `"error":`)
	assert.Contains(t, buf.String(), "years_experience")
	assert.NotContains(t, buf.String(), "per_model")
}

func TestRunSuccessLine(t *testing.T) {
	cfg := testConfig(t)
	saveModels(t, cfg, regress.Kinds...)
	writeMetrics(t, cfg, regress.KindGradientBoosting)
	var buf bytes.Buffer
	require.NoError(t, New(cfg, nil).Run([]string{`{"years_experience": 5, "role_level": "1", "extra": [1]}`, regress.KindLinear, "ignored"}, &buf))

	line := buf.String()
	first := strings.Index(line, regress.KindLinear)
	second := strings.Index(line, regress.KindRandomForest)
	third := strings.Index(line, regress.KindGradientBoosting)
	assert.True(t, first < second && second < third, line)

	var decoded struct {
		PerModel         map[string]float64 `json:"per_model"`
		Ensemble         float64            `json:"ensemble"`
		ActiveModel      *string            `json:"active_model"`
		ActivePrediction float64            `json:"active_prediction"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.NotNil(t, decoded.ActiveModel)
	assert.Equal(t, regress.KindLinear, *decoded.ActiveModel)
	assert.Equal(t, decoded.PerModel[regress.KindLinear], decoded.ActivePrediction)
	assert.Len(t, decoded.PerModel, 3)
}

func TestRunReportsBrokenArtifacts(t *testing.T) {
	cases := map[string]func(cfg *config.Config){
		"empty tree": func(cfg *config.Config) {
			body := `{"model_type":"random_forest","features":[],"model":{"params":{},"features":4,"trees":[{"D":1,"TreeNodes":[],"LeafNodes":[]}]}}`
			require.NoError(t, os.WriteFile(artifacts.ModelPath(cfg.ModelsDir, regress.KindRandomForest), []byte(body), 0o644))
		},
		"child out of range": func(cfg *config.Config) {
			body := `{"model_type":"random_forest","features":[],"model":{"params":{},"features":4,"trees":[{"D":1,
				"TreeNodes":[{"FeatureNumber":0,"Threshold":1,"LeftIndex":5,"RightIndex":6,"LeafIndex":-1}],"LeafNodes":[]}]}}`
			require.NoError(t, os.WriteFile(artifacts.ModelPath(cfg.ModelsDir, regress.KindRandomForest), []byte(body), 0o644))
		},
		"another model type": func(cfg *config.Config) {
			require.NoError(t, os.Rename(
				artifacts.ModelPath(cfg.ModelsDir, regress.KindLinear),
				artifacts.ModelPath(cfg.ModelsDir, regress.KindRandomForest)))
		},
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			saveModels(t, cfg, regress.KindLinear)
			breakIt(cfg)

			var buf bytes.Buffer
			require.NoError(t, New(cfg, nil).Run([]string{`{"years_experience": 5}`}, &buf))
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded), buf.String())
			assert.Len(t, decoded, 1)
			assert.Contains(t, decoded["error"], regress.KindRandomForest)
		})
	}
}

func TestRunWithoutFeatures(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(testConfig(t), nil).Run(nil, &buf))
	want, err := json.Marshal(map[string]string{"error": ErrNoFeatures.Error()})
	require.NoError(t, err)
	assert.JSONEq(t, string(want), buf.String())
}
