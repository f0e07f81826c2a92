// Package pushsgd provides the sampling and learning rate
// policies used to train PushNet with SGD.
package pushsgd

import (
	"errors"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrNoSamples is returned when a split has no samples.
	ErrNoSamples = errors.New("sampler: no samples")

	// ErrEmptyClass is returned when a split lacks either
	// positive or negative samples, making class-balanced
	// weights undefined.
	ErrEmptyClass = errors.New("sampler: split is missing a class")
)

// An IndexSampler produces the order in which a split is
// visited during one epoch.
//
// Sample returns positions within the split, not dataset
// indices.
type IndexSampler interface {
	Sample() []int
}

// A WeightedSampler draws positions with replacement,
// with probability proportional to their weights.
type WeightedSampler struct {
	Weights []float64

	dist distuv.Categorical
}

// NewWeightedSampler creates a sampler for the weights.
// If src is nil, a time-independent default source is
// used.
func NewWeightedSampler(weights []float64, src rand.Source) (*WeightedSampler, error) {
	if len(weights) == 0 {
		return nil, ErrNoSamples
	}
	if src == nil {
		src = rand.NewSource(1)
	}
	return &WeightedSampler{
		Weights: weights,
		dist:    distuv.NewCategorical(weights, src),
	}, nil
}

// LoadSampler creates a class-balanced sampler for the
// split of a dataset described by indices.
//
// Each position i gets weight 1/portion, where portion is
// the fraction of the split sharing the label of
// labels[indices[i]]. Positives and negatives therefore
// carry equal total weight.
func LoadSampler(labels []int, indices []int, src rand.Source) (*WeightedSampler, error) {
	weights, err := BalancedWeights(labels, indices)
	if err != nil {
		return nil, err
	}
	return NewWeightedSampler(weights, src)
}

// BalancedWeights computes the per-position weights used
// by LoadSampler.
func BalancedWeights(labels []int, indices []int) ([]float64, error) {
	if len(indices) == 0 {
		return nil, ErrNoSamples
	}
	var numTrue int
	for _, idx := range indices {
		if labels[idx] == 1 {
			numTrue++
		}
	}
	numFalse := len(indices) - numTrue
	if numTrue == 0 || numFalse == 0 {
		return nil, ErrEmptyClass
	}
	total := float64(len(indices))
	portionTrue := float64(numTrue) / total
	portionFalse := float64(numFalse) / total

	weights := make([]float64, len(indices))
	for i, idx := range indices {
		if labels[idx] == 1 {
			weights[i] = 1 / portionTrue
		} else {
			weights[i] = 1 / portionFalse
		}
	}
	return weights, nil
}

// Len returns the number of positions drawn per epoch.
func (w *WeightedSampler) Len() int {
	return len(w.Weights)
}

// Sample draws Len() positions with replacement.
func (w *WeightedSampler) Sample() []int {
	res := make([]int, len(w.Weights))
	for i := range res {
		res[i] = int(w.dist.Rand())
	}
	return res
}

// A SequentialSampler visits every position once, in
// order.
type SequentialSampler int

// Sample returns 0 through int(s)-1.
func (s SequentialSampler) Sample() []int {
	res := make([]int, int(s))
	for i := range res {
		res[i] = i
	}
	return res
}

// A ShuffleSampler visits every position once, in a
// random order.
type ShuffleSampler struct {
	N   int
	Rng *rand.Rand
}

// Sample returns a random permutation of 0 through N-1.
func (s *ShuffleSampler) Sample() []int {
	res := SequentialSampler(s.N).Sample()
	for i := 0; i < len(res); i++ {
		j := i + s.Rng.Intn(len(res)-i)
		res[i], res[j] = res[j], res[i]
	}
	return res
}
