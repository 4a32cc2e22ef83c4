package ebl

import (
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//BestSplit contains results of the split selection algorithm.
type BestSplit struct {
	bestValue, currentValue          float64
	featureIndex, orderIndex         int
	threshold                        float64
	deltaUp, deltaDown, deltaCurrent *mat.Dense
	validSplit                       bool
	numberOfObjects                  int
}

//OneStepInfo contains information about the algorithm state after passing a cluster of equal values of
//interpolating features
type OneStepInfo struct {
	deltaLoss    float64
	deltaWeight  *mat.Dense
	InterFeature float64
}

//splitScanner holds the accumulators of one column scan.
type splitScanner struct {
	em         *EMatrix
	bias       *mat.Dense
	loss       SplitLoss
	rawHessian *tensor.Dense
	regLambda  float64
	unbalanced float64
	d          int

	accumGrad, accumHess  *mat.Dense
	normHess, inverseHess *mat.Dense
	weight, deltaLoss     *mat.Dense
}

func newSplitScanner(em *EMatrix, bias *mat.Dense, loss SplitLoss, rawHessian *tensor.Dense, regLambda, unbalanced float64) *splitScanner {
	_, d := em.FeaturesExtra.Dims()
	return &splitScanner{
		em:          em,
		bias:        bias,
		loss:        loss,
		rawHessian:  rawHessian,
		regLambda:   regLambda,
		unbalanced:  unbalanced,
		d:           d,
		accumGrad:   mat.NewDense(d, 1, nil),
		accumHess:   mat.NewDense(d, d, nil),
		normHess:    mat.NewDense(d, d, nil),
		inverseHess: mat.NewDense(d, d, nil),
		weight:      mat.NewDense(d, 1, nil),
		deltaLoss:   mat.NewDense(1, 1, nil),
	}
}

//reset flushes the gradient and the hessian
func (s *splitScanner) reset() {
	s.accumGrad.Zero()
	s.accumHess.Zero()
}

//accumulate adds one record to the gradient and the hessian.
func (s *splitScanner) accumulate(row int) {
	targetVal := s.em.Target.At(row, 0)
	biasVal := s.bias.At(row, 0)
	der1 := s.loss.lossDer1(targetVal, biasVal)
	der2 := s.loss.lossDer2(targetVal, biasVal)
	for cp := 0; cp < s.d; cp++ {
		s.accumGrad.Set(cp, 0, s.accumGrad.At(cp, 0)+der1*s.em.FeaturesExtra.At(row, cp))
		for cq := 0; cq < s.d; cq++ {
			element, err := s.rawHessian.At(row, cp, cq)
			HandleError(err)
			s.accumHess.Set(cp, cq, s.accumHess.At(cp, cq)+der2*element.(float64))
		}
	}
}

//solve computes the optimal weights of the accumulated records and the loss decrease they give.
func (s *splitScanner) solve(indRange IntIterable, pos int, interFeature float64) OneStepInfo {
	for cp := 0; cp < s.d; cp++ {
		for cq := 0; cq < s.d; cq++ {
			diagEye := 0.0
			if cp == cq {
				diagEye = s.regLambda
			}
			s.normHess.Set(cp, cq, s.accumHess.At(cp, cq)+diagEye)
		}
	}
	HandleError(s.inverseHess.Inverse(s.normHess))
	s.weight.Mul(s.inverseHess, s.accumGrad)
	s.deltaLoss.Mul(s.weight.T(), s.accumGrad)
	s.weight.Scale(-1.0, s.weight)
	return OneStepInfo{
		deltaLoss:    s.unbalanced*indRange.DistToMiddle(pos) - s.deltaLoss.At(0, 0),
		deltaWeight:  mat.DenseCopyOf(s.weight),
		InterFeature: interFeature,
	}
}

//pass walks the sorted column q in the direction of indRange. It reports the state at every
//boundary between clusters of equal values and, separately, the state after all records.
func (s *splitScanner) pass(indRange IntIterable, q int, featuresAs []int) (boundaries []OneStepInfo, total OneStepInfo) {
	s.reset()
	for indRange.HasNext() {
		pos := indRange.GetNext()
		row := featuresAs[pos]
		s.accumulate(row)
		value := s.em.FeaturesInter.At(row, q)
		if !indRange.HasNext() {
			total = s.solve(indRange, pos, value)
			break
		}
		if s.em.FeaturesInter.At(featuresAs[indRange.Peek()], q) != value {
			boundaries = append(boundaries, s.solve(indRange, pos, value))
		}
	}
	return
}

//selectTheBestSplitCluster combines the downward and the upward passes and keeps the boundary
//with the smallest total loss.
func selectTheBestSplitCluster(bestSplit *BestSplit, downPassInfo, upPassInfo []OneStepInfo) {
	if len(downPassInfo) != len(upPassInfo) {
		HandleError(errPassMismatch)
	}
	firstIter := true
	h := len(downPassInfo)
	for hInd := 0; hInd < h; hInd++ {
		up := upPassInfo[h-1-hInd]
		currentLossValue := downPassInfo[hInd].deltaLoss + up.deltaLoss
		if firstIter || bestSplit.bestValue > currentLossValue {
			firstIter = false
			bestSplit.bestValue = currentLossValue
			bestSplit.deltaUp = downPassInfo[hInd].deltaWeight
			bestSplit.deltaDown = up.deltaWeight
			bestSplit.threshold = (downPassInfo[hInd].InterFeature + up.InterFeature) / 2.0
			bestSplit.orderIndex = hInd
		}
	}
	bestSplit.validSplit = !firstIter
}

//scanForSplitCluster performs argsort of the selected feature column, iterates through
//clusters downside up and upside down and selects the best split in the current column.
func scanForSplitCluster(
	em EMatrix,
	q int,
	bias *mat.Dense,
	lossFunction SplitLoss,
	parLambda float64,
	rawHessian *tensor.Dense,
	unbalancedLoss float64,
) (bestSplit BestSplit) {
	featuresAs := columnArgsort(em.FeaturesInter.ColView(q))
	h := len(featuresAs)
	scanner := newSplitScanner(&em, bias, lossFunction, rawHessian, parLambda, unbalancedLoss)

	downPassInfo, total := scanner.pass(ascending(h), q, featuresAs)
	upPassInfo, _ := scanner.pass(descending(h), q, featuresAs)

	bestSplit.featureIndex = q
	bestSplit.numberOfObjects = h
	bestSplit.currentValue = total.deltaLoss
	bestSplit.deltaCurrent = total.deltaWeight
	selectTheBestSplitCluster(&bestSplit, downPassInfo, upPassInfo)
	return
}

//TheBestSplit finds the best possible split in the given ematrix. Columns are scanned on the pool.
//When no column can be split the returned split is not valid and only carries deltaCurrent.
func TheBestSplit(ematrix EMatrix, bias *mat.Dense, parLambda float64, lossKind SplitLoss, pool *SplitPool, unbalancedLoss float64) *BestSplit {
	_, w, _ := ematrix.validatedDimensions()
	rawHessian := ematrix.allocateArrays()
	result := make([]BestSplit, w)
	pool.forEachColumn(w, func(q int) {
		result[q] = scanForSplitCluster(ematrix, q, bias, lossKind, parLambda, rawHessian, unbalancedLoss)
	})

	bestIndex := -1
	for ind, currentSplit := range result {
		if currentSplit.validSplit && (bestIndex == -1 || result[bestIndex].bestValue > currentSplit.bestValue) {
			bestIndex = ind
		}
	}
	if bestIndex == -1 {
		return &result[0]
	}
	return &result[bestIndex]
}
