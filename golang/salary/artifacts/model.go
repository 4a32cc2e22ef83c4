// Package artifacts stores fitted models and the metrics record on disk.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tarstars/salary_predictor/golang/salary/regress"
)

// envelope is the on-disk form of one model.
type envelope struct {
	ModelType string          `json:"model_type"`
	Features  []string        `json:"features"`
	Model     json.RawMessage `json:"model"`
}

// ModelPath is where the model called name lives inside dir.
func ModelPath(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

// SaveModel writes model under its kind in dir, creating dir when needed.
func SaveModel(dir string, features []string, model regress.Regressor) (string, error) {
	body, err := json.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("artifacts: encode %s: %w", model.Kind(), err)
	}
	repr, err := json.MarshalIndent(envelope{ModelType: model.Kind(), Features: features, Model: body}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("artifacts: encode %s: %w", model.Kind(), err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: %w", err)
	}
	path := ModelPath(dir, model.Kind())
	if err := os.WriteFile(path, repr, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: %w", err)
	}
	return path, nil
}

// LoadModel reads a model written by SaveModel and the feature order it was fitted on.
// A missing file is reported with an error wrapping os.ErrNotExist.
func LoadModel(path string) (regress.Regressor, []string, error) {
	source, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("artifacts: %w", err)
	}
	defer source.Close()

	var env envelope
	if err := json.NewDecoder(source).Decode(&env); err != nil {
		return nil, nil, fmt.Errorf("artifacts: %s: %w", path, err)
	}
	model, err := regress.New(env.ModelType)
	if err != nil {
		return nil, nil, fmt.Errorf("artifacts: %s: %w", path, err)
	}
	if len(env.Model) == 0 {
		return nil, nil, fmt.Errorf("artifacts: %s: no model body", path)
	}
	if err := json.Unmarshal(env.Model, model); err != nil {
		return nil, nil, fmt.Errorf("artifacts: %s: %w", path, err)
	}
	return model, env.Features, nil
}

// LoadKind reads the model stored under kind in dir. A file holding another
// model type is an error, the file name decides which model it is.
func LoadKind(dir, kind string) (regress.Regressor, []string, error) {
	path := ModelPath(dir, kind)
	model, features, err := LoadModel(path)
	if err != nil {
		return nil, nil, err
	}
	if model.Kind() != kind {
		return nil, nil, fmt.Errorf("artifacts: %s holds a %s model, want %s", path, model.Kind(), kind)
	}
	return model, features, nil
}
