package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// regressionNode is a node of a gradient-fitted regression tree. Leaves
// carry the Newton step −G/(H+λ).
type regressionNode struct {
	leaf      bool
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

type regressionTree struct {
	nodes []regressionNode
}

func (t *regressionTree) predict(row []float64) float64 {
	nd := &t.nodes[0]
	for !nd.leaf {
		if row[nd.feature] <= nd.threshold {
			nd = &t.nodes[nd.left]
		} else {
			nd = &t.nodes[nd.right]
		}
	}
	return nd.value
}

// splitInfo describes the best split of a node.
type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
}

// treeGrower grows one regression tree on gradients and hessians.
type treeGrower struct {
	X              *mat.Dense
	gradients      []float64
	hessians       []float64
	maxDepth       int
	minChildWeight float64
	minSamplesLeaf int
	lambda         float64
	gains          []float64 // accumulated split gain per feature
}

func (g *treeGrower) grow(indices []int) *regressionTree {
	t := &regressionTree{}
	g.buildNode(t, indices, 0)
	return t
}

func (g *treeGrower) sums(indices []int) (float64, float64) {
	var sumGrad, sumHess float64
	for _, idx := range indices {
		sumGrad += g.gradients[idx]
		sumHess += g.hessians[idx]
	}
	return sumGrad, sumHess
}

func (g *treeGrower) leafValue(sumGrad, sumHess float64) float64 {
	return -sumGrad / (sumHess + g.lambda)
}

func (g *treeGrower) buildNode(t *regressionTree, indices []int, depth int) int {
	nodeIdx := len(t.nodes)
	sumGrad, sumHess := g.sums(indices)
	t.nodes = append(t.nodes, regressionNode{leaf: true, value: g.leafValue(sumGrad, sumHess)})

	if depth >= g.maxDepth || len(indices) < 2*g.minSamplesLeaf {
		return nodeIdx
	}
	best := g.findBestSplit(indices, sumGrad, sumHess)
	if best.gain <= 0 {
		return nodeIdx
	}

	var leftIndices, rightIndices []int
	for _, idx := range indices {
		if g.X.At(idx, best.feature) <= best.threshold {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}
	g.gains[best.feature] += best.gain

	left := g.buildNode(t, leftIndices, depth+1)
	right := g.buildNode(t, rightIndices, depth+1)
	t.nodes[nodeIdx] = regressionNode{
		feature:   best.feature,
		threshold: best.threshold,
		left:      left,
		right:     right,
	}
	return nodeIdx
}

// findBestSplit scans every feature; the first maximum in (feature,
// threshold) order wins.
func (g *treeGrower) findBestSplit(indices []int, totalGrad, totalHess float64) splitInfo {
	_, cols := g.X.Dims()
	best := splitInfo{feature: -1, gain: math.Inf(-1)}
	sorted := make([]int, len(indices))

	for feature := 0; feature < cols; feature++ {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, b int) bool {
			return g.X.At(sorted[a], feature) < g.X.At(sorted[b], feature)
		})

		var leftGrad, leftHess float64
		for i := 0; i < len(sorted)-1; i++ {
			idx := sorted[i]
			leftGrad += g.gradients[idx]
			leftHess += g.hessians[idx]

			lo, hi := g.X.At(idx, feature), g.X.At(sorted[i+1], feature)
			if lo == hi {
				continue
			}
			leftCount, rightCount := i+1, len(sorted)-i-1
			if leftCount < g.minSamplesLeaf || rightCount < g.minSamplesLeaf {
				continue
			}
			rightGrad, rightHess := totalGrad-leftGrad, totalHess-leftHess
			if leftHess < g.minChildWeight || rightHess < g.minChildWeight {
				continue
			}

			gain := g.splitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess)
			if gain > best.gain {
				best = splitInfo{feature: feature, threshold: (lo + hi) / 2, gain: gain}
			}
		}
	}
	return best
}

// splitGain is ½[G_L²/(H_L+λ) + G_R²/(H_R+λ) − G²/(H+λ)].
func (g *treeGrower) splitGain(leftGrad, leftHess, rightGrad, rightHess, totalGrad, totalHess float64) float64 {
	leftScore := (leftGrad * leftGrad) / (leftHess + g.lambda)
	rightScore := (rightGrad * rightGrad) / (rightHess + g.lambda)
	totalScore := (totalGrad * totalGrad) / (totalHess + g.lambda)
	return 0.5 * (leftScore + rightScore - totalScore)
}
