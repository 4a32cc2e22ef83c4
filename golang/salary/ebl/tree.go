package ebl

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

//TreeNode is a node of a tree. Tree is stored in an array. LeftIndex and RightIndex are equal to -1
//when the current node is a leaf otherwise they contain array indices of children.
//A leaf node contains LeafIndex that is an index of the LeafNodes array.
type TreeNode struct {
	TreeNodeId            int
	FeatureNumber         int
	Threshold             float64
	LeftIndex, RightIndex int // -1, -1 if it is a leaf
	LeafIndex             int // -1 if it is a non-leaf tree node
	NumberOfObjects       int
	CurrentLoss           float64
	NoSplit               bool // the root could not be split at all
}

func NewTreeNode() TreeNode {
	return TreeNode{FeatureNumber: -1, LeftIndex: -1, RightIndex: -1, LeafIndex: -1}
}

//NewTreeNodeFromSplitInfo creates a new tree node and extract a features index and a split threshold
//from a BestSplit object.
func NewTreeNodeFromSplitInfo(splitInfo BestSplit, treeNodeId int) TreeNode {
	treeNode := NewTreeNode()
	treeNode.TreeNodeId = treeNodeId
	treeNode.FeatureNumber = splitInfo.featureIndex
	treeNode.Threshold = splitInfo.threshold
	treeNode.NumberOfObjects = splitInfo.numberOfObjects
	treeNode.CurrentLoss = splitInfo.currentValue
	return treeNode
}

//IsLeaf returns whether this node is a LeafNode.
func (node TreeNode) IsLeaf() bool {
	return node.LeafIndex != -1
}

//LeafNode stores the prediction of a leaf: weights over the extra features.
type LeafNode struct {
	LeafNodeId      int
	Prediction      []float64
	NumberOfObjects int
}

//NewLeafNode creates a new leaf node scaled by the learning rate.
func NewLeafNode(leafData *mat.Dense, numberOfObjects int, learningRate float64) (leafNode *LeafNode) {
	h, _ := leafData.Dims()
	leafNode = &LeafNode{LeafNodeId: -1, Prediction: make([]float64, h), NumberOfObjects: numberOfObjects}
	for ind := 0; ind < h; ind++ {
		leafNode.Prediction[ind] = leafData.At(ind, 0) * learningRate
	}
	return
}

//TreeParams collects the stop conditions and the regularisation of one tree.
type TreeParams struct {
	MaxDepth        int
	MinSamplesSplit int
	RegLambda       float64
	LearningRate    float64
	LossKind        SplitLoss
	UnbalancedLoss  float64
}

//OneTree describes one tree in a model.
type OneTree struct {
	D                int // the extra depth
	TreeNodes        []TreeNode
	LeafNodes        []LeafNode
	LearningCurveRow []float64 `json:",omitempty"`
}

//NewTree builds one new tree fitted to the gradients of the loss at bias.
func NewTree(ematrix EMatrix, bias *mat.Dense, params TreeParams, pool *SplitPool) (oneTree OneTree) {
	if params.LossKind == nil {
		params.LossKind = MseLoss{}
	}
	oneTree.TreeNodes = make([]TreeNode, 0)
	oneTree.LeafNodes = make([]LeafNode, 0)
	_, oneTree.D = ematrix.FeaturesExtra.Dims()
	oneTree.buildTree(ematrix, bias, nil, params, 0, pool)
	return
}

//buildTree recurrently builds a tree node and returns its index.
func (oneTree *OneTree) buildTree(ematrix EMatrix, bias *mat.Dense, leafInfo *LeafNode, params TreeParams, currentDepth int, pool *SplitPool) int {
	treeNodeId := len(oneTree.TreeNodes)
	height := Height(ematrix.FeaturesInter)
	noSplit := false
	canSplit := currentDepth < params.MaxDepth && height >= params.MinSamplesSplit
	// the root has no leaf from its parent, so it is scanned even when it may not split
	if leafInfo == nil || canSplit {
		bestSplit := TheBestSplit(ematrix, bias, params.RegLambda, params.LossKind, pool, params.UnbalancedLoss)
		if canSplit && bestSplit.validSplit {
			oneTree.TreeNodes = append(oneTree.TreeNodes, NewTreeNodeFromSplitInfo(*bestSplit, treeNodeId))
			leftEmatrix, rightEmatrix, leftBias, rightBias := ematrix.Split(bias, *bestSplit)

			leftLeaf := NewLeafNode(bestSplit.deltaUp, Height(leftEmatrix.FeaturesInter), params.LearningRate)
			leftNodeId := oneTree.buildTree(leftEmatrix, leftBias, leftLeaf, params, currentDepth+1, pool)
			oneTree.TreeNodes[treeNodeId].LeftIndex = leftNodeId

			rightLeaf := NewLeafNode(bestSplit.deltaDown, Height(rightEmatrix.FeaturesInter), params.LearningRate)
			rightNodeId := oneTree.buildTree(rightEmatrix, rightBias, rightLeaf, params, currentDepth+1, pool)
			oneTree.TreeNodes[treeNodeId].RightIndex = rightNodeId
			return treeNodeId
		}
		if leafInfo == nil {
			leafInfo = NewLeafNode(bestSplit.deltaCurrent, height, params.LearningRate)
			noSplit = true
		}
	}
	currentTreeNode := NewTreeNode()
	currentTreeNode.TreeNodeId = treeNodeId
	currentTreeNode.NumberOfObjects = height
	currentTreeNode.NoSplit = noSplit
	currentTreeNode.LeafIndex = len(oneTree.LeafNodes)
	leafInfo.LeafNodeId = currentTreeNode.LeafIndex
	oneTree.TreeNodes = append(oneTree.TreeNodes, currentTreeNode)
	oneTree.LeafNodes = append(oneTree.LeafNodes, *leafInfo)
	return treeNodeId
}

//Check reports a tree that would index out of range when predicting rows with
//interWidth interpolating and extraWidth extra columns. Children must come after
//their parent, which is how NewTree lays them out and what keeps descent finite.
func (oneTree OneTree) Check(interWidth, extraWidth int) error {
	if len(oneTree.TreeNodes) == 0 {
		return errors.New("tree has no nodes")
	}
	if oneTree.D != extraWidth {
		return fmt.Errorf("tree expects %d extra columns, got %d", oneTree.D, extraWidth)
	}
	n := len(oneTree.TreeNodes)
	for ind, node := range oneTree.TreeNodes {
		if node.IsLeaf() {
			if node.LeafIndex < 0 || node.LeafIndex >= len(oneTree.LeafNodes) {
				return fmt.Errorf("node %d: leaf index %d out of range", ind, node.LeafIndex)
			}
			if got := len(oneTree.LeafNodes[node.LeafIndex].Prediction); got != oneTree.D {
				return fmt.Errorf("node %d: leaf has %d weights, want %d", ind, got, oneTree.D)
			}
			continue
		}
		if node.FeatureNumber < 0 || node.FeatureNumber >= interWidth {
			return fmt.Errorf("node %d: feature %d out of range", ind, node.FeatureNumber)
		}
		for _, child := range []int{node.LeftIndex, node.RightIndex} {
			if child <= ind || child >= n {
				return fmt.Errorf("node %d: child index %d out of range", ind, child)
			}
		}
	}
	return nil
}

//PredictOperator infers operator that converts extra features into a prediction.
func (oneTree OneTree) PredictOperator(featuresInter mat.Matrix) (prediction *mat.Dense) {
	h, _ := featuresInter.Dims()
	prediction = mat.NewDense(h, oneTree.D, nil)
	for p := 0; p < h; p++ {
		ind := 0
		for oneTree.TreeNodes[ind].LeafIndex == -1 {
			if featuresInter.At(p, oneTree.TreeNodes[ind].FeatureNumber) < oneTree.TreeNodes[ind].Threshold {
				ind = oneTree.TreeNodes[ind].LeftIndex
			} else {
				ind = oneTree.TreeNodes[ind].RightIndex
			}
		}
		prediction.SetRow(p, oneTree.LeafNodes[oneTree.TreeNodes[ind].LeafIndex].Prediction)
	}
	return
}

// PredictValue infers values of a model by inferring an operator and applying it to the Extra data.
func (oneTree OneTree) PredictValue(featuresInter, featuresExtra mat.Matrix) (prediction *mat.Dense) {
	operator := oneTree.PredictOperator(featuresInter)
	h, _ := featuresInter.Dims()
	prediction = mat.NewDense(h, 1, nil)
	for p := 0; p < h; p++ {
		s := 0.0
		for q := 0; q < oneTree.D; q++ {
			s += operator.At(p, q) * featuresExtra.At(p, q)
		}
		prediction.Set(p, 0, s)
	}
	return
}
