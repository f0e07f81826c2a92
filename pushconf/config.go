// Package pushconf loads PushNet training configuration
// from YAML.
package pushconf

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pushnet"
	"github.com/unixpickle/pushnet/pushdata"
	yaml "gopkg.in/yaml.v2"
)

// PlannerConfig holds the planner section.
type PlannerConfig struct {
	ImageType string `yaml:"image_type"`
}

// NetConfig holds the StablePushNet section.
type NetConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// Config holds every hyperparameter used for training.
type Config struct {
	DataPath string `yaml:"data_path"`
	ModelDir string `yaml:"model_dir"`

	BaseLR        float64 `yaml:"base_lr"`
	DecayRate     float64 `yaml:"decay_rate"`
	L2Regularizer float64 `yaml:"train_l2_regularizer"`
	MomentumRate  float64 `yaml:"momentum_rate"`
	NumEpochs     int     `yaml:"num_epochs"`

	// ApplyLRDecay enables the DecayRate schedule.
	// It is off by default, matching earlier runs where the
	// decay rate was loaded but never applied.
	ApplyLRDecay bool `yaml:"apply_lr_decay"`

	// ApplyL2 adds the L2 regularizer to the training
	// objective.
	ApplyL2 bool `yaml:"apply_l2"`

	Planner       PlannerConfig `yaml:"planner"`
	StablePushNet NetConfig     `yaml:"StablePushNet"`

	ValBatchSize int     `yaml:"val_batch_size"`
	ValRatio     float64 `yaml:"val_ratio"`
	TestRatio    float64 `yaml:"test_ratio"`
	Seed         uint64  `yaml:"seed"`
	Workers      int     `yaml:"workers"`
	CacheSize    int     `yaml:"cache_size"`
	LogEvery     int     `yaml:"log_every"`

	StopThreshold   float64 `yaml:"stop_threshold"`
	InitialBestLoss float64 `yaml:"initial_best_loss"`

	ImageWidth  int `yaml:"image_width"`
	ImageHeight int `yaml:"image_height"`
	ImageDepth  int `yaml:"image_depth"`
	VelocityDim int `yaml:"velocity_dim"`
	FeatureDim  int `yaml:"feature_dim"`
}

// Default returns the configuration used for keys missing
// from a file.
func Default() *Config {
	return &Config{
		ModelDir:        "models",
		BaseLR:          1e-4,
		DecayRate:       0.95,
		L2Regularizer:   0.0005,
		MomentumRate:    0.9,
		NumEpochs:       50,
		Planner:         PlannerConfig{ImageType: "image"},
		StablePushNet:   NetConfig{BatchSize: 64},
		ValBatchSize:    1000,
		ValRatio:        0.1,
		TestRatio:       0.1,
		Seed:            1,
		Workers:         runtime.NumCPU(),
		LogEvery:        10,
		StopThreshold:   0.01,
		InitialBestLoss: 100,
		ImageWidth:      pushnet.DefaultArch.ImageWidth,
		ImageHeight:     pushnet.DefaultArch.ImageHeight,
		ImageDepth:      pushnet.DefaultArch.ImageDepth,
		VelocityDim:     pushnet.DefaultArch.VelocityDim,
		FeatureDim:      pushnet.DefaultArch.FeatureDim,
	}
}

// Load reads a YAML config file on top of the defaults and
// validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("load config", err)
	}
	defer f.Close()

	c := Default()
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return nil, essentials.AddCtx("load config "+path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, essentials.AddCtx("load config "+path, err)
	}
	return c, nil
}

// Validate checks that values are in range.
func (c *Config) Validate() error {
	switch {
	case c.DataPath == "":
		return fmt.Errorf("data_path is required")
	case c.BaseLR <= 0:
		return fmt.Errorf("base_lr must be positive, got %v", c.BaseLR)
	case c.ApplyLRDecay && (c.DecayRate <= 0 || c.DecayRate > 1):
		return fmt.Errorf("decay_rate must be in (0, 1], got %v", c.DecayRate)
	case c.L2Regularizer < 0:
		return fmt.Errorf("train_l2_regularizer must be non-negative, got %v", c.L2Regularizer)
	case c.MomentumRate < 0 || c.MomentumRate >= 1:
		return fmt.Errorf("momentum_rate must be in [0, 1), got %v", c.MomentumRate)
	case c.NumEpochs <= 0:
		return fmt.Errorf("num_epochs must be positive, got %d", c.NumEpochs)
	case c.StablePushNet.BatchSize <= 0:
		return fmt.Errorf("StablePushNet.batch_size must be positive, got %d",
			c.StablePushNet.BatchSize)
	case c.ValBatchSize <= 0:
		return fmt.Errorf("val_batch_size must be positive, got %d", c.ValBatchSize)
	case c.Workers < 0:
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	case c.StopThreshold < 0:
		return fmt.Errorf("stop_threshold must be non-negative, got %v", c.StopThreshold)
	}
	return c.Ratios().Validate()
}

// TensorDir returns the directory holding example tensors.
func (c *Config) TensorDir() string {
	return filepath.Join(c.DataPath, "tensors")
}

// Ratios returns the split ratios.
func (c *Config) Ratios() pushdata.SplitRatios {
	return pushdata.SplitRatios{Val: c.ValRatio, Test: c.TestRatio}
}

// Arch returns the model architecture.
func (c *Config) Arch() pushnet.Arch {
	return pushnet.Arch{
		ImageWidth:  c.ImageWidth,
		ImageHeight: c.ImageHeight,
		ImageDepth:  c.ImageDepth,
		VelocityDim: c.VelocityDim,
		FeatureDim:  c.FeatureDim,
	}
}

// DatasetConfig describes one split of the dataset.
func (c *Config) DatasetConfig(split pushdata.Split) pushdata.DatasetConfig {
	return pushdata.DatasetConfig{
		Dir:       c.TensorDir(),
		ImageType: c.Planner.ImageType,
		Split:     split,
		Ratios:    c.Ratios(),
		Depth:     c.ImageDepth,
		CacheSize: c.CacheSize,
	}
}

// Save writes the config as YAML, so that a run directory
// records the settings it was trained with.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return essentials.AddCtx("save config", err)
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("save config", err)
	}
	return nil
}
