// Package pushtrain trains and evaluates PushNet models.
package pushtrain

import (
	"context"

	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pushnet"
	"github.com/unixpickle/pushnet/pushdata"
	"github.com/unixpickle/pushnet/pushlog"
	"github.com/unixpickle/pushnet/pushmetric"
	"go.uber.org/zap"
)

// DefaultLogEvery is the number of training batches
// between progress log lines.
const DefaultLogEvery = 10

// A Trainer runs training and validation epochs for a
// Model.
type Trainer struct {
	Model *pushnet.Model

	// Cost defaults to pushnet.CrossEntropy.
	Cost anynet.Cost

	// Params defaults to Model.Parameters().
	Params []*anydiff.Var

	// Transformer, if non-nil, transforms each gradient
	// before the step, e.g. *anysgd.Adam.
	Transformer anysgd.Transformer

	// Rater determines the learning rate from the number
	// of completed epochs.
	Rater anysgd.Rater

	// L2 is the coefficient of an optional L2 penalty on
	// the parameters. The penalty affects gradients but is
	// not included in reported losses.
	L2 float64

	Train *pushdata.Loader
	Val   *pushdata.Loader

	// LogEvery is the number of training batches between
	// log lines. If it is 0, DefaultLogEvery is used.
	LogEvery int

	// Progress enables terminal progress bars.
	Progress bool

	Logger *zap.SugaredLogger

	// Epoch is the number of completed training epochs.
	Epoch int
}

// TrainEpoch runs one pass over the training loader,
// updating the model after every batch.
//
// The returned metrics are running means over the
// epoch's batches.
func (t *Trainer) TrainEpoch(ctx context.Context) (pushmetric.Metrics, error) {
	logger := pushlog.OrNop(t.Logger)
	logEvery := t.LogEvery
	if logEvery == 0 {
		logEvery = DefaultLogEvery
	}
	rate := t.Rater.Rate(float64(t.Epoch))

	var running pushmetric.Running
	batches := t.Train.Batches()
	err := forEachBatch(ctx, t.Progress, "train", len(batches), func(i int) error {
		batch, err := t.Train.Fetch(batches[i])
		if err != nil {
			return err
		}
		loss, conf := t.step(batch, rate)
		running.AddBatch(loss, conf)
		if running.Batches()%logEvery == 0 {
			logger.Infow(running.Metrics().String(), "epoch", t.Epoch+1,
				"batch", running.Batches(), "batches", len(batches))
		}
		return nil
	})
	if err != nil {
		return pushmetric.Metrics{}, essentials.AddCtx("train epoch", err)
	}
	t.Epoch++
	return running.Metrics(), nil
}

// Validate runs the model over the validation loader
// without updating it.
//
// Loss is averaged over batches; accuracy, precision and
// recall come from the confusion counts of the whole
// pass.
func (t *Trainer) Validate(ctx context.Context) (pushmetric.Metrics, error) {
	var totals pushmetric.Totals
	batches := t.Val.Batches()
	err := forEachBatch(ctx, t.Progress, "val", len(batches), func(i int) error {
		batch, err := t.Val.Fetch(batches[i])
		if err != nil {
			return err
		}
		logits := t.Model.Apply(batch.Images, batch.Velocities, batch.Num)
		loss := pushnet.MeanCost(t.cost().Cost(batch.Labels, logits, batch.Num))
		totals.AddBatch(pushnet.Scalar(loss.Output()), confusion(logits.Output(), batch))
		return nil
	})
	if err != nil {
		return pushmetric.Metrics{}, essentials.AddCtx("validate", err)
	}
	m := totals.Metrics()
	pushlog.OrNop(t.Logger).Infow("Validation: "+m.String(), "epoch", t.Epoch)
	return m, nil
}

func (t *Trainer) step(b *pushdata.Batch, rate float64) (float64, pushmetric.Confusion) {
	params := t.params()
	logits := t.Model.Apply(b.Images, b.Velocities, b.Num)
	loss := pushnet.MeanCost(t.cost().Cost(b.Labels, logits, b.Num))
	lossValue := pushnet.Scalar(loss.Output())
	conf := confusion(logits.Output(), b)

	c := loss.Output().Creator()
	objective := loss
	if t.L2 != 0 {
		objective = anydiff.Add(loss, pushnet.L2Penalty(c, params, t.L2))
	}

	grad := anydiff.NewGrad(params...)
	objective.Propagate(c.MakeVectorData(c.MakeNumericList([]float64{1})), grad)

	if t.Transformer != nil {
		grad = t.Transformer.Transform(grad)
	}
	grad.Scale(c.MakeNumeric(-rate))
	grad.AddToVars()

	return lossValue, conf
}

func (t *Trainer) cost() anynet.Cost {
	if t.Cost == nil {
		return pushnet.CrossEntropy{}
	}
	return t.Cost
}

func (t *Trainer) params() []*anydiff.Var {
	if t.Params == nil {
		t.Params = t.Model.Parameters()
	}
	return t.Params
}

func confusion(logits anyvec.Vector, b *pushdata.Batch) pushmetric.Confusion {
	var c pushmetric.Confusion
	c.Add(pushnet.ArgMax(logits, b.Num), pushnet.ArgMax(b.Labels.Output(), b.Num))
	return c
}

func forEachBatch(ctx context.Context, progress bool, desc string, n int,
	f func(i int) error) error {
	if !progress {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := f(i); err != nil {
				return err
			}
		}
		return nil
	}

	var loopErr error
	err := tqdm.With(iterators.Interval(0, n), desc, func(v interface{}) (brk bool) {
		if loopErr = ctx.Err(); loopErr != nil {
			return true
		}
		if loopErr = f(v.(int)); loopErr != nil {
			return true
		}
		return false
	})
	if loopErr != nil {
		return loopErr
	}
	return err
}
