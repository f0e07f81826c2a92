package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/pushnet"
	"github.com/unixpickle/pushnet/pushboard"
	"github.com/unixpickle/pushnet/pushconf"
	"github.com/unixpickle/pushnet/pushlog"
	"github.com/unixpickle/pushnet/pushtrain"
	"github.com/unixpickle/rip"
	"go.uber.org/zap"
)

type options struct {
	Config   string `arg:"positional,required" help:"YAML training config"`
	Resume   string `help:"checkpoint to continue training from"`
	Console  bool   `help:"human-readable log output"`
	Progress bool   `help:"show progress bars"`
}

func main() {
	var args options
	arg.MustParse(&args)

	logger := pushlog.New()
	if args.Console {
		logger = pushlog.NewConsole()
	}
	defer logger.Sync()

	if err := run(args, logger); err != nil {
		logger.Errorw("training failed", "err", err)
		os.Exit(1)
	}
}

func run(args options, logger *zap.SugaredLogger) error {
	cfg, err := pushconf.Load(args.Config)
	if err != nil {
		return err
	}

	c := anyvec32.CurrentCreator()
	var model *pushnet.Model
	if args.Resume != "" {
		model, err = pushtrain.ResumeModel(args.Resume, cfg.Arch())
	} else {
		model, err = pushnet.NewModel(c, cfg.Arch())
	}
	if err != nil {
		return err
	}
	if args.Resume != "" {
		logger.Infow("resuming", "checkpoint", args.Resume)
	}

	trainer, err := pushtrain.NewTrainer(cfg, c, model, logger)
	if err != nil {
		return err
	}
	trainer.Progress = args.Progress

	runDir, err := pushtrain.NewRunDir(cfg.ModelDir, time.Now())
	if err != nil {
		return err
	}
	if err := cfg.Save(filepath.Join(runDir, "config.yaml")); err != nil {
		return err
	}
	board, err := pushboard.NewWriter(filepath.Join(runDir, pushtrain.LogDirName))
	if err != nil {
		return err
	}
	defer board.Close()

	driver := pushtrain.NewDriver(trainer, cfg.NumEpochs)
	driver.Sink = board
	driver.Saver = &pushtrain.Checkpointer{Dir: runDir, Model: model}
	driver.StopThreshold = cfg.StopThreshold
	driver.BestLoss = cfg.InitialBestLoss
	driver.Logger = logger

	logger.Infow("training", "run_dir", runDir, "epochs", cfg.NumEpochs,
		"params", len(model.Parameters()))
	logger.Info("Press ctrl+c once to stop...")

	ctx := interruptContext()
	history, err := driver.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Infow("interrupted", "epochs", len(history.Epochs), "best_loss", history.BestLoss)
			return nil
		}
		return err
	}
	logger.Infow("training done", "epochs", len(history.Epochs),
		"best_loss", history.BestLoss, "stopped_early", history.StoppedEarly)
	return nil
}

// interruptContext returns a context that is canceled on
// the first ctrl+c.
func interruptContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-rip.NewRIP().Chan()
		cancel()
	}()
	return ctx
}
