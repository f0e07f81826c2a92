// Package pushmetric aggregates classification metrics
// for binary push-success predictions.
package pushmetric

import "fmt"

// Positive is the class index of a successful push.
const Positive = 1

// Metrics summarizes one phase of an epoch.
type Metrics struct {
	Loss      float64
	Accuracy  float64
	Precision float64
	Recall    float64
}

// String formats the metrics for progress output.
func (m Metrics) String() string {
	return fmt.Sprintf("Loss: %.4f | Acc: %.4f | Prec: %.4f | Recall: %.4f",
		m.Loss, m.Accuracy, m.Precision, m.Recall)
}

// A RunningMean is an average which is updated one value
// at a time without storing past values.
//
// The zero value is an empty average.
type RunningMean struct {
	Count int
	Value float64
}

// Add folds x into the average.
func (r *RunningMean) Add(x float64) {
	r.Count++
	r.Value += (x - r.Value) / float64(r.Count)
}

// Reset empties the average.
func (r *RunningMean) Reset() {
	*r = RunningMean{}
}

// Confusion counts outcomes of binary predictions.
type Confusion struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	TrueNegatives  int
}

// Add records predicted and actual classes pairwise.
// The slices must be of equal length.
func (c *Confusion) Add(predicted, actual []int) {
	if len(predicted) != len(actual) {
		panic(fmt.Sprintf("prediction count %d does not match label count %d",
			len(predicted), len(actual)))
	}
	for i, p := range predicted {
		a := actual[i]
		switch {
		case p == Positive && a == Positive:
			c.TruePositives++
		case p == Positive:
			c.FalsePositives++
		case a == Positive:
			c.FalseNegatives++
		default:
			c.TrueNegatives++
		}
	}
}

// Merge adds the counts of other into c.
func (c *Confusion) Merge(other Confusion) {
	c.TruePositives += other.TruePositives
	c.FalsePositives += other.FalsePositives
	c.FalseNegatives += other.FalseNegatives
	c.TrueNegatives += other.TrueNegatives
}

// Total returns the number of recorded predictions.
func (c Confusion) Total() int {
	return c.TruePositives + c.FalsePositives + c.FalseNegatives + c.TrueNegatives
}

// Correct returns the number of correct predictions.
func (c Confusion) Correct() int {
	return c.TruePositives + c.TrueNegatives
}

// Accuracy is the fraction of correct predictions, or 0
// if nothing was recorded.
func (c Confusion) Accuracy() float64 {
	return ratio(c.Correct(), c.Total())
}

// Precision is TP/(TP+FP), or 0 when nothing was
// predicted positive.
func (c Confusion) Precision() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// Recall is TP/(TP+FN), or 0 when there were no positive
// labels.
func (c Confusion) Recall() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

func ratio(num, denom int) float64 {
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

// A Running tracks running means of every metric across
// the batches of a training epoch.
type Running struct {
	Loss      RunningMean
	Accuracy  RunningMean
	Precision RunningMean
	Recall    RunningMean
}

// AddBatch folds one batch's loss and confusion counts
// into the running means.
func (r *Running) AddBatch(loss float64, c Confusion) {
	r.Loss.Add(loss)
	r.Accuracy.Add(c.Accuracy())
	r.Precision.Add(c.Precision())
	r.Recall.Add(c.Recall())
}

// Batches returns the number of batches seen so far.
func (r *Running) Batches() int {
	return r.Loss.Count
}

// Metrics returns the current averages.
func (r *Running) Metrics() Metrics {
	return Metrics{
		Loss:      r.Loss.Value,
		Accuracy:  r.Accuracy.Value,
		Precision: r.Precision.Value,
		Recall:    r.Recall.Value,
	}
}

// Reset clears all the running means.
func (r *Running) Reset() {
	*r = Running{}
}

// A Totals accumulates an entire validation pass.
//
// Loss is averaged over batches, while accuracy,
// precision and recall are computed from the accumulated
// confusion counts.
type Totals struct {
	LossSum   float64
	Batches   int
	Confusion Confusion
}

// AddBatch records one batch.
func (t *Totals) AddBatch(loss float64, c Confusion) {
	t.LossSum += loss
	t.Batches++
	t.Confusion.Merge(c)
}

// Metrics computes the summary of the pass.
func (t *Totals) Metrics() Metrics {
	var loss float64
	if t.Batches > 0 {
		loss = t.LossSum / float64(t.Batches)
	}
	return Metrics{
		Loss:      loss,
		Accuracy:  t.Confusion.Accuracy(),
		Precision: t.Confusion.Precision(),
		Recall:    t.Confusion.Recall(),
	}
}
