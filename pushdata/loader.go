package pushdata

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pushnet/pushsgd"
)

// A Batch stores images, velocities and one-hot labels in
// a packed format.
type Batch struct {
	Images     *anydiff.Const
	Velocities *anydiff.Const
	Labels     *anydiff.Const
	Num        int

	// Examples are the unpacked examples, in batch order.
	Examples []*Example
}

// Classes returns the label of every example.
func (b *Batch) Classes() []int {
	res := make([]int, len(b.Examples))
	for i, e := range b.Examples {
		res[i] = e.Label
	}
	return res
}

// A Loader groups the positions drawn by a sampler into
// batches and loads them.
type Loader struct {
	Source    Source
	Sampler   pushsgd.IndexSampler
	Creator   anyvec.Creator
	BatchSize int

	// MaxGos specifies the maximum goroutines to use
	// simultaneously for loading examples.
	// If it is 0, GOMAXPROCS is used.
	MaxGos int
}

// Batches draws one epoch of positions and splits them
// into batches.
// The last batch may be smaller than BatchSize.
//
// Without a Sampler, every position is visited in order.
func (l *Loader) Batches() [][]int {
	var positions []int
	if l.Sampler != nil {
		positions = l.Sampler.Sample()
	} else {
		positions = pushsgd.SequentialSampler(l.Source.Len()).Sample()
	}
	size := l.BatchSize
	if size <= 0 {
		size = len(positions)
	}
	var res [][]int
	for i := 0; i < len(positions); i += size {
		res = append(res, positions[i:minInt(i+size, len(positions))])
	}
	return res
}

// Fetch loads the examples at the positions and packs
// them into a *Batch.
// The batch may not be empty, and all examples must have
// matching tensor sizes.
func (l *Loader) Fetch(positions []int) (*Batch, error) {
	if len(positions) == 0 {
		return nil, errors.New("fetch batch: empty batch")
	}

	examples := make([]*Example, len(positions))

	idxChan := make(chan int, len(positions))
	for i := range positions {
		idxChan <- i
	}
	close(idxChan)

	maxGos := l.MaxGos
	if maxGos == 0 {
		maxGos = runtime.GOMAXPROCS(0)
	}

	wg := sync.WaitGroup{}
	errChan := make(chan error, maxGos)
	for i := 0; i < maxGos; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxChan {
				e, err := l.Source.Example(positions[i])
				if err != nil {
					errChan <- essentials.AddCtx("fetch batch", err)
					return
				}
				examples[i] = e
			}
		}()
	}

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return nil, err
	}

	return l.pack(examples)
}

func (l *Loader) pack(examples []*Example) (*Batch, error) {
	imageSize := len(examples[0].Image)
	velSize := len(examples[0].Velocity)
	var images, vels, labels []float64
	for _, e := range examples {
		if len(e.Image) != imageSize || len(e.Velocity) != velSize {
			return nil, fmt.Errorf("fetch batch: example %d has shape (%d, %d), expected (%d, %d)",
				e.Index, len(e.Image), len(e.Velocity), imageSize, velSize)
		}
		images = append(images, e.Image...)
		vels = append(vels, e.Velocity...)
		labels = append(labels, e.OneHot()...)
	}
	c := l.Creator
	return &Batch{
		Images:     anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(images))),
		Velocities: anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(vels))),
		Labels:     anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(labels))),
		Num:        len(examples),
		Examples:   examples,
	}, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
