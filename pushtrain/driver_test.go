package pushtrain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/pushnet/pushmetric"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		best, cur  float64
		save, stop bool
	}{
		{"improved", 0.5, 0.4, true, false},
		{"first epoch", DefaultInitialBestLoss, 0.69, true, false},
		{"equal", 0.5, 0.5, false, false},
		{"small rise", 0.5, 0.505, false, false},
		{"rise under threshold", 0.5, 0.509, false, false},
		{"large rise", 0.5, 0.52, false, true},
		{"first epoch above sentinel", DefaultInitialBestLoss, 150, false, true},
		{"first epoch at sentinel", DefaultInitialBestLoss, 100.005, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			save, stop := Decide(tt.best, tt.cur, DefaultStopThreshold)
			assert.Equal(t, tt.save, save)
			assert.Equal(t, tt.stop, stop)
			assert.False(t, save && stop)
		})
	}
}

type scriptedPhases struct {
	valLosses []float64
	epoch     int
	failVal   bool
}

func (s *scriptedPhases) TrainEpoch(ctx context.Context) (pushmetric.Metrics, error) {
	return pushmetric.Metrics{Loss: 1, Accuracy: 0.5}, nil
}

func (s *scriptedPhases) Validate(ctx context.Context) (pushmetric.Metrics, error) {
	if s.failVal {
		return pushmetric.Metrics{}, errors.New("disk on fire")
	}
	loss := s.valLosses[s.epoch]
	s.epoch++
	return pushmetric.Metrics{Loss: loss, Accuracy: 0.75, Precision: 0.5, Recall: 0.25}, nil
}

type recordingSink struct {
	scalars map[string][]map[string]float64
	steps   []int
	flushes int
}

func (r *recordingSink) AddScalars(tag string, values map[string]float64, step int) error {
	if r.scalars == nil {
		r.scalars = map[string][]map[string]float64{}
	}
	r.scalars[tag] = append(r.scalars[tag], values)
	r.steps = append(r.steps, step)
	return nil
}

func (r *recordingSink) Flush() error {
	r.flushes++
	return nil
}

type recordingSaver struct {
	epochs []int
}

func (r *recordingSaver) Save(epoch int, valLoss float64) (string, error) {
	r.epochs = append(r.epochs, epoch)
	return CheckpointName(epoch, valLoss), nil
}

func TestDriverEarlyStop(t *testing.T) {
	phases := &scriptedPhases{valLosses: []float64{0.9, 0.7, 0.705, 0.6, 0.65, 0.1}}
	sink := &recordingSink{}
	saver := &recordingSaver{}
	d := NewDriver(phases, 6)
	d.Sink = sink
	d.Saver = saver

	h, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, h.StoppedEarly)
	require.Len(t, h.Epochs, 5)
	assert.Equal(t, []int{0, 1, 3}, saver.epochs)
	assert.Equal(t, 0.6, h.BestLoss)
	assert.Equal(t, "model3-0.6.pt", h.Epochs[3].Checkpoint)
	assert.Empty(t, h.Epochs[2].Checkpoint)
	assert.Empty(t, h.Epochs[4].Checkpoint)

	assert.Equal(t, 5, sink.flushes)
	for _, tag := range []string{"loss", "accuracy", "precision", "recall"} {
		require.Len(t, sink.scalars[tag], 5, tag)
	}
	assert.Equal(t, map[string]float64{"train": 1, "val": 0.9}, sink.scalars["loss"][0])
	assert.Equal(t, map[string]float64{"train": 0, "val": 0.25}, sink.scalars["recall"][0])
}

func TestDriverStopsAboveSentinel(t *testing.T) {
	phases := &scriptedPhases{valLosses: []float64{150, 1}}
	saver := &recordingSaver{}
	d := NewDriver(phases, 2)
	d.Saver = saver

	h, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, h.StoppedEarly)
	require.Len(t, h.Epochs, 1)
	assert.Empty(t, saver.epochs)
	assert.Empty(t, h.Epochs[0].Checkpoint)
	assert.Equal(t, float64(DefaultInitialBestLoss), h.BestLoss)
}

func TestDriverAllEpochs(t *testing.T) {
	phases := &scriptedPhases{valLosses: []float64{0.5, 0.4, 0.3}}
	h, err := NewDriver(phases, 3).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, h.StoppedEarly)
	assert.Len(t, h.Epochs, 3)
	assert.Equal(t, 0.3, h.BestLoss)
}

func TestDriverError(t *testing.T) {
	phases := &scriptedPhases{failVal: true}
	h, err := NewDriver(phases, 3).Run(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Empty(t, h.Epochs)
}
