package main

import (
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/unixpickle/pushnet/pushlog"
	"github.com/unixpickle/pushnet/pushviz"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"
)

type options struct {
	Dir       string  `arg:"positional,required" help:"tensor directory"`
	Out       string  `help:"output PNG"`
	ImageType string  `help:"image file prefix"`
	Start     int     `help:"first image index"`
	Jump      int     `help:"index step between images"`
	Grid      int     `help:"images per row and column"`
	CellSize  float64 `help:"cell size in centimeters"`
}

func defaultOptions() options {
	return options{
		Out:       "images.png",
		ImageType: "image",
		Start:     300,
		Jump:      50,
		Grid:      4,
		CellSize:  4,
	}
}

func main() {
	args := defaultOptions()
	arg.MustParse(&args)

	logger := pushlog.New()
	defer logger.Sync()

	if err := run(args, logger); err != nil {
		logger.Errorw("show images failed", "err", err)
		os.Exit(1)
	}
}

func run(args options, logger *zap.SugaredLogger) error {
	images, err := pushviz.LoadImages(args.Dir, args.ImageType, args.Start, args.Jump,
		args.Grid*args.Grid)
	if err != nil {
		return err
	}
	cell := vg.Length(args.CellSize) * vg.Centimeter
	if err := pushviz.SaveGrid(args.Out, images, args.Grid, args.Grid, cell); err != nil {
		return err
	}
	logger.Infow("wrote images", "count", len(images), "out", args.Out)
	return nil
}
