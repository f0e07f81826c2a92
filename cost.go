package pushnet

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// CrossEntropy is a softmax cross-entropy cost for raw
// logits and one-hot desired outputs.
//
// It produces one cost per sample.
type CrossEntropy struct{}

// Cost applies a log-softmax to each row of actual and
// dots it with the desired distribution, negated.
func (c CrossEntropy) Cost(desired, actual anydiff.Res, n int) anydiff.Res {
	logProbs := anynet.LogSoftmax.Apply(actual, n)
	return anynet.DotCost{}.Cost(desired, logProbs, n)
}

// MeanCost averages a per-sample cost vector into a
// single-component result.
func MeanCost(cost anydiff.Res) anydiff.Res {
	n := cost.Output().Len()
	sum := anydiff.Sum(cost)
	return anydiff.Scale(sum, sum.Output().Creator().MakeNumeric(1/float64(n)))
}

// L2Penalty computes coeff/2 times the sum of the squared
// parameters.
func L2Penalty(c anyvec.Creator, params []*anydiff.Var, coeff float64) anydiff.Res {
	var sum anydiff.Res = anydiff.NewConst(c.MakeVector(1))
	for _, p := range params {
		sum = anydiff.Add(sum, anydiff.Sum(anydiff.Square(p)))
	}
	return anydiff.Scale(sum, c.MakeNumeric(coeff/2))
}

// ArgMax finds the index of the largest entry in each of
// the n rows packed into v.
func ArgMax(v anyvec.Vector, n int) []int {
	values := Float64s(v)
	res := make([]int, n)
	if n == 0 {
		return res
	}
	cols := len(values) / n
	for i := range res {
		row := values[i*cols : (i+1)*cols]
		best := 0
		for j, x := range row {
			if x > row[best] {
				best = j
			}
		}
		res[i] = best
	}
	return res
}

// Float64s copies the contents of a vector.
//
// Only float32 and float64 vectors are supported; other
// numeric types yield nil.
func Float64s(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return append([]float64(nil), data...)
	default:
		return nil
	}
}

// Scalar returns the first component of a vector, or 0
// for an empty or non-float vector.
func Scalar(v anyvec.Vector) float64 {
	data := Float64s(v)
	if len(data) == 0 {
		return 0
	}
	return data[0]
}
