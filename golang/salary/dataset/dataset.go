// Package dataset loads or synthesizes the salary table and cuts it into
// train, test and cross-validation rows.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Canonical column names of the salary table.
var (
	DefaultFeatures = []string{"years_experience", "education_level", "role_level", "company_size"}
	DefaultTarget   = "salary"
)

// Dataset is a feature matrix with named columns and its target.
type Dataset struct {
	FeatureNames []string
	TargetName   string
	X            *mat.Dense
	Y            []float64
}

// Len returns the number of rows.
func (ds *Dataset) Len() int {
	return len(ds.Y)
}

// Rows copies the given rows of the dataset.
func (ds *Dataset) Rows(rows []int) (*mat.Dense, []float64) {
	return Rows(ds.X, ds.Y, rows)
}

// Rows copies the given rows of x and y.
func Rows(x *mat.Dense, y []float64, rows []int) (*mat.Dense, []float64) {
	_, w := x.Dims()
	sub := mat.NewDense(len(rows), w, nil)
	target := make([]float64, len(rows))
	for p, row := range rows {
		sub.SetRow(p, x.RawRowView(row))
		target[p] = y[row]
	}
	return sub, target
}

// Select reorders the columns to features. Missing columns are an error.
func (ds *Dataset) Select(features []string, target string) (*Dataset, error) {
	if target != ds.TargetName {
		return nil, fmt.Errorf("dataset: target column %q, want %q", ds.TargetName, target)
	}
	index := make(map[string]int, len(ds.FeatureNames))
	for q, name := range ds.FeatureNames {
		index[name] = q
	}
	cols := make([]int, len(features))
	for q, name := range features {
		c, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("dataset: column %q missing", name)
		}
		cols[q] = c
	}
	h := ds.Len()
	x := mat.NewDense(h, len(features), nil)
	for p := 0; p < h; p++ {
		for q, c := range cols {
			x.Set(p, q, ds.X.At(p, c))
		}
	}
	return &Dataset{
		FeatureNames: append([]string(nil), features...),
		TargetName:   target,
		X:            x,
		Y:            append([]float64(nil), ds.Y...),
	}, nil
}

// Source tells where a dataset came from.
type Source string

const (
	SourceCSV       Source = "csv"
	SourceNpy       Source = "npy"
	SourceSynthetic Source = "synthetic"
)

// LoadOrGenerate reads path when it exists, otherwise synthesizes rows with the seed.
// The result always carries exactly the requested columns in the requested order.
func LoadOrGenerate(path string, features []string, target string, rows int, seed uint64) (*Dataset, Source, error) {
	var (
		ds     *Dataset
		source Source
		err    error
	)
	_, statErr := os.Stat(path)
	switch {
	case path != "" && statErr == nil:
		if strings.EqualFold(filepath.Ext(path), ".npy") {
			source = SourceNpy
			ds, err = LoadNpy(path, features, target)
		} else {
			source = SourceCSV
			ds, err = LoadCSV(path)
		}
	case path == "" || errors.Is(statErr, os.ErrNotExist):
		source = SourceSynthetic
		ds, err = Synthetic(rows, seed)
	default:
		return nil, "", fmt.Errorf("dataset: %w", statErr)
	}
	if err != nil {
		return nil, source, err
	}
	if ds.Len() == 0 {
		return nil, source, fmt.Errorf("dataset: %s has no rows", source)
	}
	ds, err = ds.Select(features, target)
	return ds, source, err
}
