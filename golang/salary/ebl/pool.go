package ebl

import (
	"sync"

	"github.com/panjf2000/ants/v2"
)

//SplitPool scans the columns of a node on a fixed set of goroutines.
//A nil pool scans sequentially.
type SplitPool struct {
	pool *ants.Pool
}

//NewSplitPool returns nil for threadsNum <= 1.
func NewSplitPool(threadsNum int) (*SplitPool, error) {
	if threadsNum <= 1 {
		return nil, nil
	}
	pool, err := ants.NewPool(threadsNum)
	if err != nil {
		return nil, err
	}
	return &SplitPool{pool: pool}, nil
}

//Release stops the workers.
func (sp *SplitPool) Release() {
	if sp != nil {
		sp.pool.Release()
	}
}

func (sp *SplitPool) forEachColumn(w int, scan func(q int)) {
	if sp == nil {
		for q := 0; q < w; q++ {
			scan(q)
		}
		return
	}
	var wg sync.WaitGroup
	for q := 0; q < w; q++ {
		localQ := q
		wg.Add(1)
		task := func() {
			defer wg.Done()
			scan(localQ)
		}
		if err := sp.pool.Submit(task); err != nil {
			// the pool was released under us, finish inline
			task()
		}
	}
	wg.Wait()
}
