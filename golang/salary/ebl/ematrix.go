package ebl

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//EMatrix contains a training set. Trees split on FeaturesInter, leaves hold linear weights
//over FeaturesExtra. A plain regression tree uses a single constant extra column.
type EMatrix struct {
	FeaturesInter *mat.Dense
	FeaturesExtra *mat.Dense
	Target        *mat.Dense
	RecordIds     []int
	Description   *string
}

//NewRegressionEMatrix wraps a feature matrix and a target with a constant extra column,
//so every leaf predicts one number.
func NewRegressionEMatrix(x *mat.Dense, y []float64) EMatrix {
	h, _ := x.Dims()
	if len(y) != h {
		HandleError(fmt.Errorf("target length %d does not match %d rows", len(y), h))
	}
	target := mat.NewDense(h, 1, append([]float64(nil), y...))
	ids := make([]int, h)
	for p := range ids {
		ids[p] = p
	}
	return EMatrix{
		FeaturesInter: x,
		FeaturesExtra: OnesColumn(h),
		Target:        target,
		RecordIds:     ids,
	}
}

//SetDescription sets a description used in learning curve messages.
func (em *EMatrix) SetDescription(description string) {
	em.Description = &description
}

func (em EMatrix) description() string {
	if em.Description == nil {
		return ""
	}
	return *em.Description
}

//Subset copies the given rows, repetitions allowed, into a new EMatrix.
func (em EMatrix) Subset(rows []int) EMatrix {
	_, w := em.FeaturesInter.Dims()
	_, d := em.FeaturesExtra.Dims()
	sub := EMatrix{
		FeaturesInter: mat.NewDense(len(rows), w, nil),
		FeaturesExtra: mat.NewDense(len(rows), d, nil),
		Target:        mat.NewDense(len(rows), 1, nil),
		RecordIds:     make([]int, len(rows)),
		Description:   em.Description,
	}
	for p, row := range rows {
		sub.FeaturesInter.SetRow(p, em.FeaturesInter.RawRowView(row))
		sub.FeaturesExtra.SetRow(p, em.FeaturesExtra.RawRowView(row))
		sub.Target.Set(p, 0, em.Target.At(row, 0))
		sub.RecordIds[p] = em.RecordIds[row]
	}
	return sub
}

//Message adds the prediction of a new tree to testBias and reports RMSE of the
//current ensemble on this matrix.
func (em EMatrix) Message(tree OneTree, testBias *mat.Dense, logger *zap.Logger) float64 {
	testBias.Add(testBias, tree.PredictValue(em.FeaturesInter, em.FeaturesExtra))
	value := Rmse(em.Target, testBias)
	logger.Debug("learning curve", zap.String("matrix", em.description()), zap.Float64("rmse", value))
	return value
}

//Split splits data of receiver by the BestSplit criterion
func (em EMatrix) Split(bias *mat.Dense, split BestSplit) (leftEmatrix, rightEmatrix EMatrix, leftBias, rightBias *mat.Dense) {
	h := Height(em.FeaturesInter)
	leftRows, rightRows := make([]int, 0, h), make([]int, 0, h)
	for p := 0; p < h; p++ {
		if em.FeaturesInter.At(p, split.featureIndex) < split.threshold {
			leftRows = append(leftRows, p)
		} else {
			rightRows = append(rightRows, p)
		}
	}
	pickBias := func(rows []int) *mat.Dense {
		out := mat.NewDense(len(rows), 1, nil)
		for p, row := range rows {
			out.Set(p, 0, bias.At(row, 0))
		}
		return out
	}
	return em.Subset(leftRows), em.Subset(rightRows), pickBias(leftRows), pickBias(rightRows)
}

//validatedDimensions checks the consistency of dimensions in arrays from the current dataset
//and returns the height (the number of objects), the width (the number of features) and the depth
//(the number of extra features per record) of the current dataset.
func (em EMatrix) validatedDimensions() (h, w, d int) {
	h, w = em.FeaturesInter.Dims()
	extraH, d := em.FeaturesExtra.Dims()
	if extraH != h {
		HandleError(fmt.Errorf("the extra height %d is not equal to the inter height %d", extraH, h))
	}
	targetH, targetW := em.Target.Dims()
	if targetH != h {
		HandleError(fmt.Errorf("the target height %d is not equal to the inter height %d", targetH, h))
	}
	if targetW != 1 {
		HandleError(fmt.Errorf("the width of target should be 1 not %d", targetW))
	}
	return h, w, d
}

//allocateArrays fills the raw hessian tensor: the outer product of extra features for every record.
func (em EMatrix) allocateArrays() (rawHessian *tensor.Dense) {
	h, _ := em.FeaturesInter.Dims()
	_, d := em.FeaturesExtra.Dims()
	rawHessian = tensor.New(tensor.WithShape(h, d, d), tensor.Of(tensor.Float64))
	for p := 0; p < h; p++ {
		for q := 0; q < d; q++ {
			for r := 0; r < d; r++ {
				HandleError(rawHessian.SetAt(em.FeaturesExtra.At(p, q)*em.FeaturesExtra.At(p, r), p, q, r))
			}
		}
	}
	return
}
