package pushtrain

import (
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pushnet"
	"github.com/unixpickle/serializer"
)

// RunTimeLayout formats the start time of a run into its
// directory name.
const RunTimeLayout = "2006-01-02-1504"

// LogDirName is the summary directory inside a run
// directory.
const LogDirName = "logs"

// CheckpointName is the file name for a model saved after
// the given epoch, e.g. "model3-0.4172.pt".
func CheckpointName(epoch int, valLoss float64) string {
	return fmt.Sprintf("model%d-%s.pt", epoch, formatLoss(valLoss))
}

// formatLoss writes the shortest decimal that round-trips
// x, with Python's float repr conventions: a trailing
// ".0" on whole numbers and exponents outside [1e-4, 1e16).
func formatLoss(x float64) string {
	switch {
	case math.IsNaN(x):
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	if x != 0 {
		sci := strconv.FormatFloat(x, 'e', -1, 64)
		exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
		if exp < -4 || exp >= 16 {
			return sci
		}
	}
	res := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.Contains(res, ".") {
		res += ".0"
	}
	return res
}

// NewRunDir creates a timestamped run directory, along
// with its log directory, inside modelDir.
func NewRunDir(modelDir string, start time.Time) (string, error) {
	dir := filepath.Join(modelDir, start.Format(RunTimeLayout))
	if err := os.MkdirAll(filepath.Join(dir, LogDirName), 0755); err != nil {
		return "", essentials.AddCtx("create run directory", err)
	}
	return dir, nil
}

// A Checkpointer saves a model into a run directory.
type Checkpointer struct {
	Dir   string
	Model *pushnet.Model
}

// Save writes the model to Dir/CheckpointName(epoch, valLoss).
func (c *Checkpointer) Save(epoch int, valLoss float64) (string, error) {
	path := filepath.Join(c.Dir, CheckpointName(epoch, valLoss))
	if err := SaveModel(path, c.Model); err != nil {
		return "", err
	}
	return path, nil
}

// SaveModel serializes a model to a file.
func SaveModel(path string, m *pushnet.Model) error {
	data, err := serializer.SerializeAny(m)
	if err != nil {
		return essentials.AddCtx("save model", err)
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("save model", err)
	}
	return nil
}

// LoadModel reads a model written by SaveModel.
func LoadModel(path string) (*pushnet.Model, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load model", err)
	}
	var m *pushnet.Model
	if err := serializer.DeserializeAny(data, &m); err != nil {
		return nil, essentials.AddCtx("load model "+path, err)
	}
	return m, nil
}

// ResumeModel loads a checkpoint and verifies that it was
// built for the given architecture.
func ResumeModel(path string, a pushnet.Arch) (*pushnet.Model, error) {
	m, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	if err := m.CheckArch(a); err != nil {
		return nil, essentials.AddCtx("resume "+path, err)
	}
	return m, nil
}
