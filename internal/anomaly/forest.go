package anomaly

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/kestrel/internal/features"
)

// Forest parameters.
const (
	DefaultTrees         = 100
	DefaultMaxSamples    = 256
	DefaultContamination = 0.1
)

const eulerGamma = 0.5772156649015329

// Forest is an isolation forest. Shorter average isolation paths mean a
// point is easier to separate from the rest, so more anomalous.
type Forest struct {
	Trees         []Tree  `json:"trees"`
	SampleSize    int     `json:"sampleSize"`
	Contamination float64 `json:"contamination"`

	// Offset is the contamination quantile of the training scores.
	// Decision values below zero are outliers.
	Offset float64 `json:"offset"`

	Generation string `json:"generation"`
}

// Tree is a flattened isolation tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is an internal split or a leaf. Leaves have Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Size      int     `json:"n,omitempty"`
}

// FitForest grows trees isolation trees on rows. rng drives both the
// sub-sampling and the random splits.
func FitForest(rows []features.Vector, trees int, contamination float64, rng *rand.Rand) (*Forest, error) {
	n := len(rows)
	if n < 2 {
		return nil, fmt.Errorf("cannot fit forest on %d rows", n)
	}
	if trees <= 0 {
		trees = DefaultTrees
	}
	if contamination <= 0 || contamination >= 0.5 {
		return nil, fmt.Errorf("contamination must be in (0, 0.5), got %v", contamination)
	}

	psi := min(DefaultMaxSamples, n)
	depthLimit := int(math.Ceil(math.Log2(float64(psi))))

	f := &Forest{
		Trees:         make([]Tree, trees),
		SampleSize:    psi,
		Contamination: contamination,
	}
	for t := range f.Trees {
		idx := rng.Perm(n)[:psi]
		sample := make([]features.Vector, psi)
		for i, k := range idx {
			sample[i] = rows[k]
		}
		b := &treeBuilder{rng: rng, limit: depthLimit}
		b.grow(sample, 0)
		f.Trees[t] = Tree{Nodes: b.nodes}
	}

	scores := make([]float64, n)
	for i, r := range rows {
		scores[i] = f.ScoreSample(r)
	}
	slices.Sort(scores)
	f.Offset = stat.Quantile(contamination, stat.LinInterp, scores, nil)
	return f, nil
}

// ScoreSample returns -2^(-E[h(x)]/c(psi)), in [-1, 0]. Values close to -1
// are anomalies.
func (f *Forest) ScoreSample(x features.Vector) float64 {
	total := 0.0
	for i := range f.Trees {
		total += f.Trees[i].pathLength(x)
	}
	mean := total / float64(len(f.Trees))
	return -math.Pow(2, -mean/averagePathLength(f.SampleSize))
}

// Decision returns ScoreSample(x) - Offset. Positive values are inliers.
func (f *Forest) Decision(x features.Vector) float64 {
	return f.ScoreSample(x) - f.Offset
}

func (t *Tree) pathLength(x features.Vector) float64 {
	depth := 0
	i := 0
	for {
		nd := t.Nodes[i]
		if nd.Feature < 0 {
			return float64(depth) + averagePathLength(nd.Size)
		}
		if x[nd.Feature] < nd.Threshold {
			i = nd.Left
		} else {
			i = nd.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful
// binary-search-tree lookup among n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

type treeBuilder struct {
	rng   *rand.Rand
	limit int
	nodes []Node
}

// grow appends the subtree for rows and returns its root index.
func (b *treeBuilder) grow(rows []features.Vector, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Size: len(rows)})
	if depth >= b.limit || len(rows) <= 1 {
		return idx
	}

	var lo, hi [features.Count]float64
	for j := 0; j < features.Count; j++ {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)
	}
	for _, r := range rows {
		for j, v := range r {
			lo[j] = min(lo[j], v)
			hi[j] = max(hi[j], v)
		}
	}
	candidates := make([]int, 0, features.Count)
	for j := 0; j < features.Count; j++ {
		if hi[j] > lo[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return idx
	}

	feat := candidates[b.rng.IntN(len(candidates))]
	threshold := lo[feat] + b.rng.Float64()*(hi[feat]-lo[feat])
	if threshold <= lo[feat] {
		threshold = (lo[feat] + hi[feat]) / 2
	}

	var left, right []features.Vector
	for _, r := range rows {
		if r[feat] < threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{Feature: feat, Threshold: threshold, Left: l, Right: r}
	return idx
}
