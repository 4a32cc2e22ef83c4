package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Reserved keys of the metrics file, every other key is a model name.
const (
	bestModelKey = "best_model"
	featuresKey  = "features"
)

// ModelMetrics are the scores of one model.
type ModelMetrics struct {
	Name       string  `json:"-"`
	RMSETest   float64 `json:"rmse_test"`
	RMSECVMean float64 `json:"rmse_cv_mean"`
	RMSECVStd  float64 `json:"rmse_cv_std"`
}

// MetricsRecord is the summary of one training run. On disk it is one JSON object
// with a key per model, in training order, then best_model and features.
type MetricsRecord struct {
	Models    []ModelMetrics
	BestModel string
	Features  []string
}

// Model returns the metrics of the named model.
func (m *MetricsRecord) Model(name string) (ModelMetrics, bool) {
	for _, mm := range m.Models {
		if mm.Name == name {
			return mm, true
		}
	}
	return ModelMetrics{}, false
}

// SelectBest returns the model with the lowest test RMSE, the first one on ties.
func SelectBest(models []ModelMetrics) string {
	best := -1
	for i, mm := range models {
		if best == -1 || mm.RMSETest < models[best].RMSETest {
			best = i
		}
	}
	if best == -1 {
		return ""
	}
	return models[best].Name
}

func (m MetricsRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKey := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}
	for _, mm := range m.Models {
		if mm.Name == bestModelKey || mm.Name == featuresKey {
			return nil, fmt.Errorf("artifacts: model name %q is reserved", mm.Name)
		}
		if err := writeKey(mm.Name, mm); err != nil {
			return nil, err
		}
	}
	var best any
	if m.BestModel != "" {
		best = m.BestModel
	}
	if err := writeKey(bestModelKey, best); err != nil {
		return nil, err
	}
	features := m.Features
	if features == nil {
		features = []string{}
	}
	if err := writeKey(featuresKey, features); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *MetricsRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("metrics record is not a JSON object")
	}
	record := MetricsRecord{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		switch key {
		case bestModelKey:
			var best *string
			if err := dec.Decode(&best); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if best != nil {
				record.BestModel = *best
			}
		case featuresKey:
			if err := dec.Decode(&record.Features); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		default:
			mm := ModelMetrics{Name: key}
			if err := dec.Decode(&mm); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			record.Models = append(record.Models, mm)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = record
	return nil
}

// WriteMetrics writes the record as indented JSON, creating the parent directory.
func WriteMetrics(path string, record *MetricsRecord) error {
	compact, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("artifacts: encode metrics: %w", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact, "", "  "); err != nil {
		return fmt.Errorf("artifacts: encode metrics: %w", err)
	}
	pretty.WriteByte('\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("artifacts: %w", err)
		}
	}
	if err := os.WriteFile(path, pretty.Bytes(), 0o644); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	return nil
}

// ReadMetrics loads a record written by WriteMetrics. A missing file is reported
// with an error wrapping os.ErrNotExist.
func ReadMetrics(path string) (*MetricsRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifacts: %w", err)
	}
	record := &MetricsRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("artifacts: %s: %w", path, err)
	}
	return record, nil
}
