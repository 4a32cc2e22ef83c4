package dataset

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
)

// TrainTestSplit shuffles 0..n-1 with seed and puts the first ceil(testSize*n)
// indices into test, the rest into train.
func TrainTestSplit(n int, testSize float64, seed uint64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("dataset: test size %v is outside (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		return nil, nil, fmt.Errorf("dataset: %d rows leave nothing to train on with test size %v", n, testSize)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Fold is one train/validation partition of KFold.
type Fold struct {
	Train, Test []int
}

// KFold cuts 0..n-1 into k contiguous validation blocks without shuffling.
// The first n%k blocks get one extra row.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("dataset: k-fold needs at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("dataset: cannot cut %d rows into %d folds", n, k)
	}
	folds := make([]Fold, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		fold := Fold{Train: make([]int, 0, n-size), Test: make([]int, 0, size)}
		for p := 0; p < n; p++ {
			if p >= start && p < start+size {
				fold.Test = append(fold.Test, p)
			} else {
				fold.Train = append(fold.Train, p)
			}
		}
		folds = append(folds, fold)
		start += size
	}
	return folds, nil
}
