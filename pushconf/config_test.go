package pushconf

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/pushnet/pushdata"
)

const testConfig = `
data_path: /data/push
base_lr: 0.001
decay_rate: 0.9
train_l2_regularizer: 0.0005
num_epochs: 20
momentum_rate: 0.8
planner:
  image_type: masked_image
  grid: 12
StablePushNet:
  batch_size: 32
`

func writeConfig(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "/data/push", c.DataPath)
	assert.Equal(t, 0.001, c.BaseLR)
	assert.Equal(t, 0.9, c.DecayRate)
	assert.Equal(t, 20, c.NumEpochs)
	assert.Equal(t, 0.8, c.MomentumRate)
	assert.Equal(t, "masked_image", c.Planner.ImageType)
	assert.Equal(t, 32, c.StablePushNet.BatchSize)
	assert.Equal(t, filepath.Join("/data/push", "tensors"), c.TensorDir())

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 1000, c.ValBatchSize)
	assert.Equal(t, 0.01, c.StopThreshold)
	assert.Equal(t, 100.0, c.InitialBestLoss)
	assert.False(t, c.ApplyLRDecay)
	assert.Equal(t, 96, c.Arch().ImageWidth)
	assert.Equal(t, 128, c.Arch().FeatureDim)

	ds := c.DatasetConfig(pushdata.Val)
	assert.Equal(t, pushdata.Val, ds.Split)
	assert.Equal(t, "masked_image", ds.ImageType)
	assert.Equal(t, c.TensorDir(), ds.Dir)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "base_lr: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "base_lr: 0.1\n"))
	assert.Error(t, err, "data_path is required")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"lr":        func(c *Config) { c.BaseLR = 0 },
		"decay":     func(c *Config) { c.ApplyLRDecay = true; c.DecayRate = 1.5 },
		"l2":        func(c *Config) { c.L2Regularizer = -1 },
		"momentum":  func(c *Config) { c.MomentumRate = 1 },
		"epochs":    func(c *Config) { c.NumEpochs = 0 },
		"batch":     func(c *Config) { c.StablePushNet.BatchSize = 0 },
		"val batch": func(c *Config) { c.ValBatchSize = -1 },
		"workers":   func(c *Config) { c.Workers = -2 },
		"threshold": func(c *Config) { c.StopThreshold = -0.1 },
		"ratios":    func(c *Config) { c.ValRatio = 0.7; c.TestRatio = 0.3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			c.DataPath = "/data"
			require.NoError(t, c.Validate())
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSave(t *testing.T) {
	c, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)
	c.ApplyL2 = true

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, c.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}
