package main

import (
	"context"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/pushnet/pushconf"
	"github.com/unixpickle/pushnet/pushdata"
	"github.com/unixpickle/pushnet/pushlog"
	"github.com/unixpickle/pushnet/pushsgd"
	"github.com/unixpickle/pushnet/pushtrain"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

type options struct {
	Config    string `arg:"positional,required" help:"YAML training config"`
	Model     string `arg:"required" help:"checkpoint to extract features with"`
	Out       string `help:"output directory"`
	Split     string `help:"dataset split: train, val or test"`
	Samples   int    `help:"number of examples; 0 for the whole split"`
	BatchSize int    `help:"examples per forward pass"`
}

func main() {
	args := options{
		Out:       "features",
		Split:     "val",
		Samples:   1000,
		BatchSize: 100,
	}
	arg.MustParse(&args)

	logger := pushlog.New()
	defer logger.Sync()

	if err := run(args, logger); err != nil {
		logger.Errorw("feature extraction failed", "err", err)
		os.Exit(1)
	}
}

func run(args options, logger *zap.SugaredLogger) error {
	cfg, err := pushconf.Load(args.Config)
	if err != nil {
		return err
	}
	split, err := pushdata.ParseSplit(args.Split)
	if err != nil {
		return err
	}
	model, err := pushtrain.ResumeModel(args.Model, cfg.Arch())
	if err != nil {
		return err
	}
	ds, err := pushdata.OpenDataset(cfg.DatasetConfig(split))
	if err != nil {
		return err
	}

	loader := &pushdata.Loader{
		Source: ds,
		Sampler: &pushsgd.ShuffleSampler{
			N:   ds.Len(),
			Rng: rand.New(rand.NewSource(cfg.Seed)),
		},
		Creator:   anyvec32.CurrentCreator(),
		BatchSize: args.BatchSize,
		MaxGos:    cfg.Workers,
	}
	features, err := pushtrain.ExtractFeatures(context.Background(), model, loader, args.Samples)
	if err != nil {
		return err
	}
	if err := pushtrain.WriteProjector(args.Out, features); err != nil {
		return err
	}
	logger.Infow("wrote features", "dir", args.Out, "split", split.String(),
		"rows", features.Len())
	return nil
}
