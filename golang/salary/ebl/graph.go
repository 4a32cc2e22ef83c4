package ebl

import (
	"fmt"
	"path"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

var graphvizFormats = map[string]graphviz.Format{
	"png": graphviz.PNG,
	"svg": graphviz.SVG,
	"jpg": graphviz.JPG,
}

func featureName(featureNames []string, index int) string {
	if index >= 0 && index < len(featureNames) {
		return featureNames[index]
	}
	return fmt.Sprintf("f_%d", index)
}

//GraphDescription returns the description of a tree node for tree rendering as a graph
func (node TreeNode) GraphDescription(featureNames []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("#", node.NumberOfObjects))
	sb.WriteString(fmt.Sprintln("id: ", node.TreeNodeId))
	sb.WriteString(fmt.Sprintln("loss: ", node.CurrentLoss))
	sb.WriteString(fmt.Sprintf("%s < %6.5f", featureName(featureNames, node.FeatureNumber), node.Threshold))
	return sb.String()
}

//GraphDescription returns the description of a leaf node for tree rendering as a graph
func (node LeafNode) GraphDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintln("id: ", node.LeafNodeId))
	sb.WriteString("[")
	for _, val := range node.Prediction {
		sb.WriteString(fmt.Sprintf("  %6.2f,\n", val))
	}
	sb.WriteString("]\n")
	sb.WriteString(fmt.Sprintln(node.NumberOfObjects))
	return sb.String()
}

func recurrentDraw(g *cgraph.Graph, tree OneTree, nodeNumber int, parentNode *cgraph.Node, featureNames []string) error {
	treeNode := tree.TreeNodes[nodeNumber]
	currentNode, err := g.CreateNode(fmt.Sprint(treeNode.TreeNodeId))
	if err != nil {
		return err
	}
	if parentNode != nil {
		if _, err := g.CreateEdge("", parentNode, currentNode); err != nil {
			return err
		}
	}
	if treeNode.IsLeaf() {
		currentNode.Set("label", tree.LeafNodes[treeNode.LeafIndex].GraphDescription())
		currentNode.Set("shape", "box")
		return nil
	}
	currentNode.Set("label", treeNode.GraphDescription(featureNames))
	if err := recurrentDraw(g, tree, treeNode.LeftIndex, currentNode, featureNames); err != nil {
		return err
	}
	return recurrentDraw(g, tree, treeNode.RightIndex, currentNode, featureNames)
}

//RenderTrees writes one picture per tree named <dumpPrefix>_<index>.<figureType> into picturesDirectory.
//A positive limit renders only the first trees.
func RenderTrees(trees []OneTree, featureNames []string, dumpPrefix, figureType, picturesDirectory string, limit int) ([]string, error) {
	format, ok := graphvizFormats[figureType]
	if !ok {
		return nil, fmt.Errorf("unknown figure type %q", figureType)
	}
	if limit <= 0 || limit > len(trees) {
		limit = len(trees)
	}
	graphViz := graphviz.New()
	defer graphViz.Close()
	written := make([]string, 0, limit)
	for graphInd, currentTree := range trees[:limit] {
		graph, err := graphViz.Graph()
		if err != nil {
			return written, err
		}
		filename := path.Join(picturesDirectory, fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType))
		err = recurrentDraw(graph, currentTree, 0, nil, featureNames)
		if err == nil {
			err = graphViz.RenderFilename(graph, format, filename)
		}
		graph.Close()
		if err != nil {
			return written, fmt.Errorf("render tree %d: %w", graphInd, err)
		}
		written = append(written, filename)
	}
	return written, nil
}
