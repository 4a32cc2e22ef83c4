package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// LoadCSV reads a table with a header row, columns in any order. The column
// named DefaultTarget is the target and every other column is a feature.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses CSV content, see LoadCSV.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header row")
	}
	header := rows[0]
	targetCol := -1
	featureCols := make([]int, 0, len(header))
	names := make([]string, 0, len(header))
	for idx, name := range header {
		name = strings.TrimSpace(name)
		if name == DefaultTarget {
			targetCol = idx
			continue
		}
		featureCols = append(featureCols, idx)
		names = append(names, name)
	}
	if targetCol == -1 {
		return nil, fmt.Errorf("column %q missing", DefaultTarget)
	}
	n := len(rows) - 1
	if n == 0 {
		return &Dataset{FeatureNames: names, TargetName: DefaultTarget, X: &mat.Dense{}}, nil
	}
	x := mat.NewDense(n, len(featureCols), nil)
	y := make([]float64, n)
	for i, row := range rows[1:] {
		for j, col := range featureCols {
			val, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, names[j], err)
			}
			x.Set(i, j, val)
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(row[targetCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", i+1, DefaultTarget, err)
		}
		y[i] = val
	}
	return &Dataset{FeatureNames: names, TargetName: DefaultTarget, X: x, Y: y}, nil
}

// LoadNpy reads a 2-D float matrix whose columns are the features followed by the target.
func LoadNpy(path string, features []string, target string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	var raw mat.Dense
	if err := r.Read(&raw); err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	h, w := raw.Dims()
	if w != len(features)+1 {
		return nil, fmt.Errorf("dataset: %s has %d columns, want %d features and the target", path, w, len(features))
	}
	x := mat.DenseCopyOf(raw.Slice(0, h, 0, w-1))
	return &Dataset{
		FeatureNames: append([]string(nil), features...),
		TargetName:   target,
		X:            x,
		Y:            mat.Col(nil, w-1, &raw),
	}, nil
}

// WriteNpy stores the dataset as features followed by the target, the layout LoadNpy reads.
func WriteNpy(w io.Writer, ds *Dataset) error {
	h, fw := ds.X.Dims()
	raw := mat.NewDense(h, fw+1, nil)
	raw.Slice(0, h, 0, fw).(*mat.Dense).Copy(ds.X)
	raw.SetCol(fw, ds.Y)
	return npyio.Write(w, raw)
}
