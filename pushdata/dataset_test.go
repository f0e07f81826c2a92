package pushdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/pushnet/pushsgd"
)

func writeNpy(t *testing.T, path string, val interface{}) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, npyio.Write(f, val))
}

func writeTestDataset(t *testing.T, labels []int64) string {
	dir := t.TempDir()
	writeNpy(t, filepath.Join(dir, LabelFile), labels)
	for i := range labels {
		image := make([]float32, 16)
		for j := range image {
			image[j] = float32(i + j)
		}
		writeNpy(t, ImagePath(dir, "image", i), image)
		writeNpy(t, filepath.Join(dir, "velocity_"+pad(i)+".npy"), []float64{float64(i), 0, -1})
	}
	return dir
}

func pad(i int) string {
	return fmt.Sprintf("%07d", i)
}

func TestImagePath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "image_0000042.npy"), ImagePath("data", "image", 42))
	assert.Equal(t, "0000042", pad(42))
}

func TestOpenDataset(t *testing.T) {
	dir := writeTestDataset(t, []int64{1, 0, 0, 1, 0})
	ds, err := OpenDataset(DatasetConfig{Dir: dir, Split: Train, CacheSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, []int{1, 0, 0, 1, 0}, ds.LabelList())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ds.SplitIndices())

	e, err := ds.Example(3)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Index)
	assert.Equal(t, 1, e.Label)
	assert.Equal(t, []float64{0, 1}, e.OneHot())
	assert.Len(t, e.Image, 16)
	assert.Equal(t, 3.0, e.Image[0])
	assert.Equal(t, []float64{3, 0, -1}, e.Velocity)

	cached, err := ds.Example(3)
	require.NoError(t, err)
	assert.True(t, e == cached)

	_, err = ds.Example(5)
	assert.Error(t, err)
}

func TestOpenDatasetErrors(t *testing.T) {
	_, err := OpenDataset(DatasetConfig{Dir: t.TempDir()})
	assert.Error(t, err)

	dir := writeTestDataset(t, []int64{1, 2})
	_, err = OpenDataset(DatasetConfig{Dir: dir})
	assert.Error(t, err)

	dir = writeTestDataset(t, []int64{1, 0})
	_, err = OpenDataset(DatasetConfig{Dir: dir, Ratios: SplitRatios{Val: 0.6, Test: 0.5}})
	assert.Error(t, err)

	ds, err := OpenDataset(DatasetConfig{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "velocity_0000001.npy")))
	_, err = ds.Example(1)
	assert.Error(t, err)
}

func TestSplitIndices(t *testing.T) {
	ratios := SplitRatios{Val: 0.2, Test: 0.1}
	train := SplitIndices(2000, ratios, Train)
	val := SplitIndices(2000, ratios, Val)
	test := SplitIndices(2000, ratios, Test)
	assert.Equal(t, 2000, len(train)+len(val)+len(test))
	assert.InDelta(t, 400, len(val), 80)
	assert.InDelta(t, 200, len(test), 60)

	seen := map[int]bool{}
	for _, list := range [][]int{train, val, test} {
		for _, idx := range list {
			assert.False(t, seen[idx])
			seen[idx] = true
		}
	}

	// Assignment must not depend on the dataset size.
	assert.Equal(t, val[:10], SplitIndices(val[9]+1, ratios, Val))
	assert.Empty(t, SplitIndices(100, SplitRatios{}, Val))
}

func TestParseSplit(t *testing.T) {
	for _, s := range []Split{Train, Val, Test} {
		parsed, err := ParseSplit(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseSplit("holdout")
	assert.Error(t, err)
}

func TestCHWToHWC(t *testing.T) {
	// Two 1x2 channels.
	data := []float64{1, 2, 10, 20}
	assert.Equal(t, []float64{1, 10, 2, 20}, chwToHWC(data, 2, 1, 2))
}

func TestWriteMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.npy")
	require.NoError(t, WriteMatrix(path, [][]float64{{1, 2, 3}, {4, 5, 6}}))
	data, shape, err := ReadTensor(path)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, shape)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, data)

	assert.Error(t, WriteMatrix(path, nil))
	assert.Error(t, WriteMatrix(path, [][]float64{{1}, {1, 2}}))
}

type failingSource struct {
	SliceSource
}

func (f failingSource) Example(pos int) (*Example, error) {
	if pos == 2 {
		return nil, errors.New("disk on fire")
	}
	return f.SliceSource.Example(pos)
}

func testSource(n int) SliceSource {
	var res SliceSource
	for i := 0; i < n; i++ {
		res = append(res, &Example{
			Index:    i,
			Image:    []float64{float64(i), 1, 2, 3},
			Velocity: []float64{float64(-i), 0},
			Label:    i % 2,
		})
	}
	return res
}

func TestLoader(t *testing.T) {
	src := testSource(7)
	l := &Loader{
		Source:    src,
		Creator:   anyvec32.CurrentCreator(),
		BatchSize: 3,
		MaxGos:    2,
	}
	batches := l.Batches()
	require.Len(t, batches, 3)
	assert.Equal(t, []int{0, 1, 2}, batches[0])
	assert.Equal(t, []int{6}, batches[2])

	b, err := l.Fetch([]int{4, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, b.Num)
	assert.Equal(t, []int{0, 1}, b.Classes())
	assert.Equal(t, []float32{4, 1, 2, 3, 1, 1, 2, 3}, b.Images.Output().Data())
	assert.Equal(t, []float32{-4, 0, -1, 0}, b.Velocities.Output().Data())
	assert.Equal(t, []float32{1, 0, 0, 1}, b.Labels.Output().Data())

	_, err = l.Fetch(nil)
	assert.Error(t, err)

	l.Source = failingSource{src}
	_, err = l.Fetch([]int{0, 1, 2, 3})
	assert.Error(t, err)

	src[5].Image = src[5].Image[:2]
	l.Source = src
	_, err = l.Fetch([]int{4, 5})
	assert.Error(t, err)
}

func TestLoaderWeighted(t *testing.T) {
	src := testSource(10)
	sampler, err := pushsgd.LoadSampler(src.LabelList(), src.SplitIndices(), nil)
	require.NoError(t, err)
	l := &Loader{Source: src, Sampler: sampler, Creator: anyvec32.CurrentCreator(), BatchSize: 4}
	var total int
	for _, b := range l.Batches() {
		total += len(b)
	}
	assert.Equal(t, 10, total)
}
