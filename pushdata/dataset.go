// Package pushdata loads push examples from disk and
// packs them into batches for training.
package pushdata

import (
	"errors"
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru"
	"github.com/unixpickle/essentials"
)

// LabelFile is the name of the label list inside a
// tensor directory.
const LabelFile = "label.npy"

// An Example is one push attempt.
type Example struct {
	// Index is the example's index in the full dataset.
	Index int

	// Image is the object image, row-major depth-minor.
	Image []float64

	// Velocity is the planned push velocity.
	Velocity []float64

	// Label is 1 if the push succeeded and 0 otherwise.
	Label int
}

// OneHot returns the two-class one-hot encoding of the
// label.
func (e *Example) OneHot() []float64 {
	res := make([]float64, 2)
	res[e.Label] = 1
	return res
}

// A Source provides the examples of one split.
//
// Positions passed to Example range from 0 to Len()-1.
// Implementations must be safe for concurrent calls to
// Example.
type Source interface {
	Len() int
	Example(pos int) (*Example, error)
}

// A Labeled source exposes the labels of the whole
// dataset and the dataset indices of its split, which is
// what class-balanced samplers need.
type Labeled interface {
	LabelList() []int
	SplitIndices() []int
}

// A SliceSource is an in-memory Source.
type SliceSource []*Example

// Len returns the number of examples.
func (s SliceSource) Len() int {
	return len(s)
}

// Example returns the example at pos.
func (s SliceSource) Example(pos int) (*Example, error) {
	if pos < 0 || pos >= len(s) {
		return nil, fmt.Errorf("example position %d out of range", pos)
	}
	return s[pos], nil
}

// LabelList returns the label of every example.
func (s SliceSource) LabelList() []int {
	res := make([]int, len(s))
	for i, e := range s {
		res[i] = e.Label
	}
	return res
}

// SplitIndices returns 0 through Len()-1.
func (s SliceSource) SplitIndices() []int {
	res := make([]int, len(s))
	for i := range res {
		res[i] = i
	}
	return res
}

// Dataset reads examples from a tensor directory.
//
// The directory holds <ImageType>_<index>.npy and
// velocity_<index>.npy per example, with 7-digit
// zero-padded indices, plus a label.npy listing every
// label in index order.
type Dataset struct {
	Dir       string
	ImageType string
	Split     Split

	// Depth is the number of image channels.
	// Channel-major images are converted to depth-minor.
	Depth int

	Labels  []int
	Indices []int

	cache *lru.Cache
}

// DatasetConfig configures OpenDataset.
type DatasetConfig struct {
	Dir       string
	ImageType string
	Split     Split
	Ratios    SplitRatios
	Depth     int

	// CacheSize is the number of decoded examples to keep
	// in memory. Zero disables caching.
	CacheSize int
}

// OpenDataset reads the label list and computes the
// split. Examples are loaded lazily.
func OpenDataset(c DatasetConfig) (*Dataset, error) {
	if err := c.Ratios.Validate(); err != nil {
		return nil, essentials.AddCtx("open dataset", err)
	}
	rawLabels, _, err := ReadTensor(filepath.Join(c.Dir, LabelFile))
	if err != nil {
		return nil, essentials.AddCtx("open dataset", err)
	}
	labels := make([]int, len(rawLabels))
	for i, x := range rawLabels {
		if x != 0 && x != 1 {
			return nil, fmt.Errorf("open dataset: label %d is %v, expected 0 or 1", i, x)
		}
		labels[i] = int(x)
	}
	indices := SplitIndices(len(labels), c.Ratios, c.Split)
	if len(indices) == 0 {
		return nil, fmt.Errorf("open dataset: %s split is empty", c.Split)
	}

	imageType := c.ImageType
	if imageType == "" {
		imageType = "image"
	}
	depth := c.Depth
	if depth == 0 {
		depth = 1
	}
	res := &Dataset{
		Dir:       c.Dir,
		ImageType: imageType,
		Split:     c.Split,
		Depth:     depth,
		Labels:    labels,
		Indices:   indices,
	}
	if c.CacheSize > 0 {
		res.cache, err = lru.New(c.CacheSize)
		if err != nil {
			return nil, essentials.AddCtx("open dataset", err)
		}
	}
	return res, nil
}

// Len returns the size of the split.
func (d *Dataset) Len() int {
	return len(d.Indices)
}

// LabelList returns the labels of the full dataset.
func (d *Dataset) LabelList() []int {
	return d.Labels
}

// SplitIndices returns the dataset indices in the split.
func (d *Dataset) SplitIndices() []int {
	return d.Indices
}

// Example loads the example at a position in the split.
func (d *Dataset) Example(pos int) (*Example, error) {
	if pos < 0 || pos >= len(d.Indices) {
		return nil, fmt.Errorf("example position %d out of range", pos)
	}
	idx := d.Indices[pos]
	if d.cache != nil {
		if e, ok := d.cache.Get(idx); ok {
			return e.(*Example), nil
		}
	}
	e, err := d.load(idx)
	if err != nil {
		return nil, essentials.AddCtx(fmt.Sprintf("load example %d", idx), err)
	}
	if d.cache != nil {
		d.cache.Add(idx, e)
	}
	return e, nil
}

func (d *Dataset) load(idx int) (*Example, error) {
	image, shape, err := ReadTensor(ImagePath(d.Dir, d.ImageType, idx))
	if err != nil {
		return nil, err
	}
	if len(shape) == 3 && shape[0] == d.Depth && d.Depth > 1 {
		image = chwToHWC(image, shape[0], shape[1], shape[2])
	}
	velocity, _, err := ReadTensor(filepath.Join(d.Dir, fmt.Sprintf("velocity_%07d.npy", idx)))
	if err != nil {
		return nil, err
	}
	if len(image) == 0 || len(velocity) == 0 {
		return nil, errors.New("empty tensor")
	}
	return &Example{
		Index:    idx,
		Image:    image,
		Velocity: velocity,
		Label:    d.Labels[idx],
	}, nil
}

// ImagePath returns the path of an image tensor.
func ImagePath(dir, imageType string, idx int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%07d.npy", imageType, idx))
}
