package pushtrain

import (
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pushnet"
	"github.com/unixpickle/pushnet/pushconf"
	"github.com/unixpickle/pushnet/pushdata"
	"github.com/unixpickle/pushnet/pushlog"
	"github.com/unixpickle/pushnet/pushsgd"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

// A LabeledSource is a split that class-balanced
// sampling can be applied to, such as a *pushdata.Dataset.
type LabeledSource interface {
	pushdata.Source
	pushdata.Labeled
}

// BalancedLoader creates a loader that draws a
// class-balanced epoch from src.
func BalancedLoader(c anyvec.Creator, src LabeledSource, batchSize int,
	seed uint64, workers int) (*pushdata.Loader, error) {
	sampler, err := pushsgd.LoadSampler(src.LabelList(), src.SplitIndices(),
		rand.NewSource(seed))
	if err != nil {
		return nil, err
	}
	return &pushdata.Loader{
		Source:    src,
		Sampler:   sampler,
		Creator:   c,
		BatchSize: batchSize,
		MaxGos:    workers,
	}, nil
}

// NewTrainer builds a Trainer for a model from a config,
// opening the training and validation splits.
func NewTrainer(cfg *pushconf.Config, c anyvec.Creator, m *pushnet.Model,
	logger *zap.SugaredLogger) (*Trainer, error) {
	trainSet, err := pushdata.OpenDataset(cfg.DatasetConfig(pushdata.Train))
	if err != nil {
		return nil, essentials.AddCtx("new trainer", err)
	}
	valSet, err := pushdata.OpenDataset(cfg.DatasetConfig(pushdata.Val))
	if err != nil {
		return nil, essentials.AddCtx("new trainer", err)
	}
	pushlog.OrNop(logger).Infow("opened dataset", "dir", cfg.TensorDir(),
		"train", trainSet.Len(), "val", valSet.Len())
	return newTrainer(cfg, c, m, trainSet, valSet, logger)
}

func newTrainer(cfg *pushconf.Config, c anyvec.Creator, m *pushnet.Model,
	trainSet, valSet LabeledSource, logger *zap.SugaredLogger) (*Trainer, error) {
	train, err := BalancedLoader(c, trainSet, cfg.StablePushNet.BatchSize, cfg.Seed, cfg.Workers)
	if err != nil {
		return nil, essentials.AddCtx("training split", err)
	}
	val, err := BalancedLoader(c, valSet, cfg.ValBatchSize, cfg.Seed+1, cfg.Workers)
	if err != nil {
		return nil, essentials.AddCtx("validation split", err)
	}
	t := &Trainer{
		Model:       m,
		Transformer: &anysgd.Adam{DecayRate1: cfg.MomentumRate},
		Rater:       pushsgd.NewRater(cfg.BaseLR, cfg.DecayRate, cfg.ApplyLRDecay),
		Train:       train,
		Val:         val,
		LogEvery:    cfg.LogEvery,
		Logger:      logger,
	}
	if cfg.ApplyL2 {
		t.L2 = cfg.L2Regularizer
	}
	return t, nil
}
