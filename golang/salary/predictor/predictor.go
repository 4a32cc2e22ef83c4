// Package predictor loads the stored models and answers one prediction request.
package predictor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/tarstars/salary_predictor/golang/salary/artifacts"
	"github.com/tarstars/salary_predictor/golang/salary/config"
	"github.com/tarstars/salary_predictor/golang/salary/regress"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNoModels is returned when no model file exists.
	ErrNoModels = errors.New("no models found, run the train command first")
	// ErrNoFeatures is reported when the feature JSON argument is missing.
	ErrNoFeatures = errors.New("No features provided")
)

// ModelPrediction is the output of one model.
type ModelPrediction struct {
	Name  string
	Value float64
}

// Predictions keep the training order of the models, also in JSON.
type Predictions []ModelPrediction

// Get returns the prediction of the named model.
func (p Predictions) Get(name string) (float64, bool) {
	for _, mp := range p {
		if mp.Name == name {
			return mp.Value, true
		}
	}
	return 0, false
}

func (p Predictions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, mp := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(mp.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(mp.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the answer to one request.
type Result struct {
	PerModel         Predictions `json:"per_model"`
	Ensemble         float64     `json:"ensemble"`
	ActiveModel      *string     `json:"active_model"`
	ActivePrediction float64     `json:"active_prediction"`
}

// Predictor reads the models directory and the metrics file on every call.
type Predictor struct {
	cfg    *config.Config
	logger *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{cfg: cfg, logger: logger}
}

// LoadModels loads every model file that exists. Absent files are listed in missing,
// unreadable or corrupt files are errors.
func (p *Predictor) LoadModels() (loaded map[string]regress.Regressor, missing []string, err error) {
	loaded = make(map[string]regress.Regressor, len(regress.Kinds))
	for _, kind := range regress.Kinds {
		model, features, err := artifacts.LoadKind(p.cfg.ModelsDir, kind)
		if errors.Is(err, os.ErrNotExist) {
			missing = append(missing, kind)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if !slices.Equal(features, p.cfg.Features) {
			p.logger.Warn("model was fitted on another feature order",
				zap.String("model", kind), zap.Strings("fitted", features), zap.Strings("configured", p.cfg.Features))
		}
		loaded[kind] = model
	}
	if len(missing) > 0 {
		p.logger.Debug("some models are absent", zap.Strings("missing", missing))
	}
	return loaded, missing, nil
}

// Predict runs every loaded model on the features. The active model is choice when
// it was loaded, else best_model of the metrics file when that file exists, else none.
// The active prediction falls back to the ensemble when the active model has no prediction.
func (p *Predictor) Predict(features map[string]any, choice string) (*Result, error) {
	loaded, _, err := p.LoadModels()
	if err != nil {
		return nil, err
	}
	if len(loaded) == 0 {
		return nil, ErrNoModels
	}
	x, err := Vectorize(features, p.cfg.Features)
	if err != nil {
		return nil, err
	}

	result := &Result{PerModel: make(Predictions, 0, len(loaded))}
	values := make([]float64, 0, len(loaded))
	for _, kind := range regress.Kinds {
		model, ok := loaded[kind]
		if !ok {
			continue
		}
		prediction, err := model.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		result.PerModel = append(result.PerModel, ModelPrediction{Name: kind, Value: prediction[0]})
		values = append(values, prediction[0])
	}
	result.Ensemble = stat.Mean(values, nil)

	if _, ok := loaded[choice]; ok && choice != "" {
		result.ActiveModel = &choice
	} else {
		best, err := p.bestModel()
		if err != nil {
			return nil, err
		}
		result.ActiveModel = best
	}

	result.ActivePrediction = result.Ensemble
	if result.ActiveModel != nil {
		if v, ok := result.PerModel.Get(*result.ActiveModel); ok {
			result.ActivePrediction = v
		}
	}
	return result, nil
}

// bestModel returns best_model of the metrics file, nil when the file or the name is absent.
func (p *Predictor) bestModel() (*string, error) {
	record, err := artifacts.ReadMetrics(p.cfg.MetricsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record.Features != nil && !slices.Equal(record.Features, p.cfg.Features) {
		p.logger.Warn("metrics were written for another feature order",
			zap.Strings("metrics", record.Features), zap.Strings("configured", p.cfg.Features))
	}
	if record.BestModel == "" {
		return nil, nil
	}
	return &record.BestModel, nil
}

// Run answers a command line request: args[0] is the feature JSON, args[1] the optional
// model choice. Exactly one JSON line goes to w, an error payload on any failure,
// including a panic raised while predicting.
func (p *Predictor) Run(args []string, w io.Writer) (err error) {
	if len(args) < 1 {
		return WriteError(w, ErrNoFeatures)
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("prediction panicked", zap.Any("panic", r))
			err = WriteError(w, fmt.Errorf("prediction failed: %v", r))
		}
	}()
	result, err := p.runArgs(args)
	if err != nil {
		p.logger.Debug("prediction failed", zap.Error(err))
		return WriteError(w, err)
	}
	line, err := json.Marshal(result)
	if err != nil {
		return WriteError(w, err)
	}
	_, err = fmt.Fprintln(w, string(line))
	return err
}

// WriteError writes the {"error": message} line.
func WriteError(w io.Writer, cause error) error {
	line, err := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: cause.Error()})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(line))
	return err
}

func (p *Predictor) runArgs(args []string) (*Result, error) {
	features, err := ParseFeatures(args[0])
	if err != nil {
		return nil, err
	}
	choice := ""
	if len(args) >= 2 {
		choice = args[1]
	}
	return p.Predict(features, choice)
}
