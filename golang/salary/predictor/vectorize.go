package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ParseFeatures decodes the JSON feature mapping given on the command line.
func ParseFeatures(raw string) (map[string]any, error) {
	var features map[string]any
	if err := json.Unmarshal([]byte(raw), &features); err != nil {
		return nil, fmt.Errorf("invalid features JSON: %w", err)
	}
	if features == nil {
		return nil, errors.New("features must be a JSON object")
	}
	return features, nil
}

// Vectorize builds one row in the given feature order. Absent names are 0, other keys are ignored.
func Vectorize(features map[string]any, order []string) (*mat.Dense, error) {
	row := make([]float64, len(order))
	for q, name := range order {
		value, ok := features[name]
		if !ok {
			continue
		}
		v, err := toFloat(value)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", name, err)
		}
		row[q] = v
	}
	return mat.NewDense(1, len(order), row), nil
}

func toFloat(value any) (float64, error) {
	var v float64
	switch x := value.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("could not convert %q to float", x.String())
		}
		v = parsed
	case bool:
		if x {
			v = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert %q to float", x)
		}
		v = parsed
	case nil:
		return 0, errors.New("null is not a number")
	default:
		return 0, fmt.Errorf("unsupported value type %T", value)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %v is not finite", v)
	}
	return v, nil
}
