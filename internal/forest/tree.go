package forest

import (
	"math/rand"
	"sort"
)

// node is a binary CART node. Internal nodes route on feature/threshold;
// leaves carry the positive-class fraction of the training rows that
// reached them.
type node struct {
	feature   int // index into the model's feature subset
	threshold float64
	left      *node
	right     *node
	leaf      bool
	leafID    int
	prob      float64
}

type tree struct {
	root   *node
	leaves int
	oob    []int // training-row indices left out of this tree's bootstrap
}

type growConfig struct {
	maxDepth int
	minLeaf  int
	mtry     int
}

// growTree builds a CART on the given bootstrap rows of x/y using gini
// impurity and random feature subsampling at every split.
func growTree(x [][]float64, y []bool, rows []int, cfg growConfig, rng *rand.Rand) *tree {
	t := &tree{}
	t.root = t.grow(x, y, rows, 0, cfg, rng)
	return t
}

func (t *tree) grow(x [][]float64, y []bool, rows []int, depth int, cfg growConfig, rng *rand.Rand) *node {
	posCount := 0
	for _, r := range rows {
		if y[r] {
			posCount++
		}
	}

	makeLeaf := func() *node {
		n := &node{leaf: true, leafID: t.leaves, prob: float64(posCount) / float64(len(rows))}
		t.leaves++
		return n
	}

	if posCount == 0 || posCount == len(rows) ||
		len(rows) < 2*cfg.minLeaf ||
		(cfg.maxDepth > 0 && depth >= cfg.maxDepth) {
		return makeLeaf()
	}

	best := findBestSplit(x, y, rows, cfg, rng)
	if best.feature < 0 {
		return makeLeaf()
	}

	var left, right []int
	for _, r := range rows {
		if x[r][best.feature] <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	if len(left) < cfg.minLeaf || len(right) < cfg.minLeaf {
		return makeLeaf()
	}

	return &node{
		feature:   best.feature,
		threshold: best.threshold,
		left:      t.grow(x, y, left, depth+1, cfg, rng),
		right:     t.grow(x, y, right, depth+1, cfg, rng),
	}
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

// findBestSplit scans a random subset of mtry features for the threshold
// with the lowest weighted gini impurity. Returns feature -1 when no split
// separates the rows.
func findBestSplit(x [][]float64, y []bool, rows []int, cfg growConfig, rng *rand.Rand) split {
	nFeatures := len(x[rows[0]])
	best := split{feature: -1, impurity: 1.0}

	candidates := rng.Perm(nFeatures)
	if cfg.mtry < nFeatures {
		candidates = candidates[:cfg.mtry]
	}

	type pair struct {
		v   float64
		pos bool
	}
	pairs := make([]pair, len(rows))

	for _, f := range candidates {
		for i, r := range rows {
			pairs[i] = pair{x[r][f], y[r]}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })

		totalPos := 0
		for _, p := range pairs {
			if p.pos {
				totalPos++
			}
		}

		leftPos, leftN := 0, 0
		n := len(pairs)
		for i := 0; i < n-1; i++ {
			if pairs[i].pos {
				leftPos++
			}
			leftN++
			if pairs[i].v == pairs[i+1].v {
				continue // threshold must fall between distinct values
			}

			rightPos := totalPos - leftPos
			rightN := n - leftN
			imp := (float64(leftN)*gini(leftPos, leftN) +
				float64(rightN)*gini(rightPos, rightN)) / float64(n)
			if imp < best.impurity {
				best = split{
					feature:   f,
					threshold: (pairs[i].v + pairs[i+1].v) / 2,
					impurity:  imp,
				}
			}
		}
	}
	return best
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

// apply routes a feature vector to its terminal node.
func (t *tree) apply(row []float64) *node {
	n := t.root
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n
}
