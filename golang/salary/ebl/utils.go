package ebl

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

//HandleError panics on errors that can only come from broken invariants of the engine
//(dimension mismatches, tensor indexing).
func HandleError(err error) {
	if err != nil {
		panic(fmt.Errorf("ebl: %w", err))
	}
}

//Height returns the number of rows of a matrix.
func Height(m mat.Matrix) int {
	h, _ := m.Dims()
	return h
}

//columnArgsort returns row indices that order the column ascending. Equal values keep their row order.
func columnArgsort(column mat.Vector) []int {
	n := column.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return column.AtVec(order[a]) < column.AtVec(order[b])
	})
	return order
}

//OnesColumn builds the constant extra feature used by plain regression trees.
func OnesColumn(h int) *mat.Dense {
	return constantColumn(h, 1)
}

func constantColumn(h int, value float64) *mat.Dense {
	data := make([]float64, h)
	for i := range data {
		data[i] = value
	}
	return mat.NewDense(h, 1, data)
}

var errPassMismatch = errors.New("different dimensions of up and down pass infos")
