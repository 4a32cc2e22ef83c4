package trainer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarstars/salary_predictor/golang/salary/artifacts"
	"github.com/tarstars/salary_predictor/golang/salary/config"
	"github.com/tarstars/salary_predictor/golang/salary/regress"
	"github.com/tarstars/salary_predictor/golang/salary/search"
)

// smallConfig keeps the searches tiny so a full run takes a moment.
func smallConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.DatasetPath = filepath.Join(dir, "salary_data.csv")
	cfg.ModelsDir = filepath.Join(dir, "models")
	cfg.MetricsPath = filepath.Join(dir, "model_metrics.json")
	cfg.SyntheticRows = 200
	cfg.CVFolds = 3
	cfg.Search = config.SearchConfig{NIter: 2, CV: 3, NJobs: 2}
	cfg.RandomForest = search.ForestSpace{
		NEstimators:     search.IntRange{Low: 3, High: 6},
		MaxDepth:        search.IntRange{Low: 3, High: 6},
		MinSamplesSplit: search.IntRange{Low: 2, High: 8},
	}
	cfg.GradientBoosting = search.BoostingSpace{
		NEstimators:  search.IntRange{Low: 10, High: 20},
		LearningRate: search.FloatRange{Loc: 0.1, Scale: 0.2},
		MaxDepth:     search.IntRange{Low: 2, High: 4},
	}
	return cfg
}

func TestRunWritesModelsAndMetrics(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)
	var out bytes.Buffer

	record, err := New(cfg, nil, &out).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, record.Models, 3)
	for i, kind := range regress.Kinds {
		assert.Equal(t, kind, record.Models[i].Name)
		assert.Greater(t, record.Models[i].RMSETest, 0.0)
		assert.Greater(t, record.Models[i].RMSECVMean, 0.0)
		assert.GreaterOrEqual(t, record.Models[i].RMSECVStd, 0.0)
		assert.FileExists(t, artifacts.ModelPath(cfg.ModelsDir, kind))
	}
	assert.Equal(t, artifacts.SelectBest(record.Models), record.BestModel)
	assert.Equal(t, cfg.Features, record.Features)

	onDisk, err := artifacts.ReadMetrics(cfg.MetricsPath)
	require.NoError(t, err)
	if diff := cmp.Diff(record, onDisk); diff != "" {
		t.Errorf("metrics file differs from the returned record (-want +got):\n%s", diff)
	}

	console := out.String()
	assert.Contains(t, console, "generating synthetic dataset")
	assert.Contains(t, console, "linear_regression saved → ")
	assert.Contains(t, console, "  Test RMSE: ")
	assert.Contains(t, console, "  CV RMSE: ")
	assert.Contains(t, console, "Training complete!")
	assert.Contains(t, console, "Best model: "+record.BestModel)
	assert.Contains(t, console, "Metrics written to "+cfg.MetricsPath)
}

func TestRunIsReproducible(t *testing.T) {
	first, err := New(smallConfig(t.TempDir()), nil, nil).Run(context.Background())
	require.NoError(t, err)
	second, err := New(smallConfig(t.TempDir()), nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.BestModel, second.BestModel)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two runs with the same seed differ (-first +second):\n%s", diff)
	}
}

func TestBoostingKeepsTheTestCurve(t *testing.T) {
	cfg := smallConfig(t.TempDir())
	_, err := New(cfg, nil, nil).Run(context.Background())
	require.NoError(t, err)

	model, _, err := artifacts.LoadModel(artifacts.ModelPath(cfg.ModelsDir, regress.KindGradientBoosting))
	require.NoError(t, err)
	titles, values := model.(*regress.GradientBoosting).LearningCurves()
	assert.Equal(t, []string{"test"}, titles)
	require.NotEmpty(t, values)
	assert.Len(t, values[0], 1)
}

func TestRunUsesTheDatasetFile(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)
	var content bytes.Buffer
	content.WriteString("company_size,role_level,education_level,years_experience,salary\n")
	for p := 0; p < 60; p++ {
		years, edu, role, size := p%21, p%3, (p/3)%3, p%4
		salary := 30000 + 2000*years + 9000*edu + 15000*role + 8000*size
		content.WriteString(
			itoa(size) + "," + itoa(role) + "," + itoa(edu) + "," + itoa(years) + "," + itoa(salary) + "\n")
	}
	require.NoError(t, os.WriteFile(cfg.DatasetPath, content.Bytes(), 0o644))

	var out bytes.Buffer
	record, err := New(cfg, nil, &out).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Loading dataset from "+cfg.DatasetPath)
	lr, ok := record.Model(regress.KindLinear)
	require.True(t, ok)
	// the file has no noise, the linear model is exact
	assert.Less(t, lr.RMSETest, 1e-3)
}

func TestRunFailsOnBadDataset(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig(dir)
	require.NoError(t, os.WriteFile(cfg.DatasetPath, []byte("years_experience,salary\n1,2\n"), 0o644))
	_, err := New(cfg, nil, nil).Run(context.Background())
	assert.ErrorContains(t, err, "education_level")
	assert.NoFileExists(t, cfg.MetricsPath)
}

func itoa(v int) string {
	return fmt.Sprint(v)
}
