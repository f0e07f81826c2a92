package pushtrain

import (
	"context"
	"fmt"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pushnet/pushlog"
	"github.com/unixpickle/pushnet/pushmetric"
	"go.uber.org/zap"
)

const (
	// DefaultStopThreshold is how far the validation loss
	// may rise above the best loss before training stops.
	DefaultStopThreshold = 0.01

	// DefaultInitialBestLoss is the best loss before any
	// epoch has been validated.
	DefaultInitialBestLoss = 100
)

// Decide compares the current validation loss to the
// best one seen so far.
//
// It reports stop if the loss rose by more than
// threshold, and otherwise save if the loss improved.
func Decide(best, current, threshold float64) (save, stop bool) {
	if best-current < -threshold {
		return false, true
	}
	return current < best, false
}

// Phases are the per-epoch operations of a training run.
type Phases interface {
	TrainEpoch(ctx context.Context) (pushmetric.Metrics, error)
	Validate(ctx context.Context) (pushmetric.Metrics, error)
}

// A Sink records grouped scalars, such as a
// *pushboard.Writer.
type Sink interface {
	AddScalars(tag string, values map[string]float64, step int) error
	Flush() error
}

// A Saver persists the model after an improved epoch and
// returns where it was written.
type Saver interface {
	Save(epoch int, valLoss float64) (string, error)
}

// EpochResult summarizes one epoch of a run.
type EpochResult struct {
	Epoch int
	Train pushmetric.Metrics
	Val   pushmetric.Metrics

	// Checkpoint is empty if nothing was saved.
	Checkpoint string
}

// History is the outcome of Driver.Run.
type History struct {
	Epochs       []EpochResult
	BestLoss     float64
	StoppedEarly bool
}

// A Driver runs training epochs, records their metrics,
// saves improved models and stops early once the
// validation loss rises.
type Driver struct {
	Phases Phases
	Sink   Sink
	Saver  Saver

	NumEpochs     int
	StopThreshold float64
	BestLoss      float64

	Logger *zap.SugaredLogger
}

// NewDriver creates a Driver with the default threshold
// and initial best loss.
func NewDriver(p Phases, numEpochs int) *Driver {
	return &Driver{
		Phases:        p,
		NumEpochs:     numEpochs,
		StopThreshold: DefaultStopThreshold,
		BestLoss:      DefaultInitialBestLoss,
	}
}

// Run trains for up to d.NumEpochs epochs.
//
// On error, the returned History covers the epochs that
// completed before it.
func (d *Driver) Run(ctx context.Context) (*History, error) {
	logger := pushlog.OrNop(d.Logger)
	h := &History{BestLoss: d.BestLoss}
	for epoch := 0; epoch < d.NumEpochs; epoch++ {
		logger.Infof("Epoch %d/%d", epoch+1, d.NumEpochs)

		train, err := d.Phases.TrainEpoch(ctx)
		if err != nil {
			return h, essentials.AddCtx(fmt.Sprintf("epoch %d", epoch), err)
		}
		val, err := d.Phases.Validate(ctx)
		if err != nil {
			return h, essentials.AddCtx(fmt.Sprintf("epoch %d", epoch), err)
		}
		result := EpochResult{Epoch: epoch, Train: train, Val: val}

		if err := d.record(epoch, train, val); err != nil {
			return h, essentials.AddCtx(fmt.Sprintf("epoch %d", epoch), err)
		}

		save, stop := Decide(h.BestLoss, val.Loss, d.StopThreshold)
		if stop {
			logger.Infow("validation loss increased, stopping",
				"epoch", epoch, "best", h.BestLoss, "loss", val.Loss)
			h.Epochs = append(h.Epochs, result)
			h.StoppedEarly = true
			return h, nil
		}
		if save {
			if d.Saver != nil {
				path, err := d.Saver.Save(epoch, val.Loss)
				if err != nil {
					return h, essentials.AddCtx(fmt.Sprintf("epoch %d", epoch), err)
				}
				result.Checkpoint = path
				logger.Infow("saved model", "path", path)
			}
			h.BestLoss = val.Loss
		}
		h.Epochs = append(h.Epochs, result)
	}
	return h, nil
}

func (d *Driver) record(epoch int, train, val pushmetric.Metrics) error {
	if d.Sink == nil {
		return nil
	}
	groups := []struct {
		tag        string
		train, val float64
	}{
		{"loss", train.Loss, val.Loss},
		{"accuracy", train.Accuracy, val.Accuracy},
		{"precision", train.Precision, val.Precision},
		{"recall", train.Recall, val.Recall},
	}
	for _, g := range groups {
		values := map[string]float64{"train": g.train, "val": g.val}
		if err := d.Sink.AddScalars(g.tag, values, epoch); err != nil {
			return err
		}
	}
	return d.Sink.Flush()
}
