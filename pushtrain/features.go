package pushtrain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pushnet"
	"github.com/unixpickle/pushnet/pushdata"
	"github.com/unixpickle/pushnet/pushviz"
)

// A FeatureSet holds one row per extracted example.
type FeatureSet struct {
	Features [][]float64
	Images   [][]float64
	Labels   []int
	Indices  []int

	// Arch describes the layout of Images.
	Arch pushnet.Arch
}

// Len returns the number of rows.
func (f *FeatureSet) Len() int {
	return len(f.Labels)
}

// ExtractFeatures runs batches from the loader through
// the model's feature trunk until n examples have been
// collected.
//
// If n <= 0 or exceeds the batches available, every
// batch is used.
func ExtractFeatures(ctx context.Context, m *pushnet.Model, l *pushdata.Loader,
	n int) (*FeatureSet, error) {
	arch, err := m.Arch()
	if err != nil {
		return nil, essentials.AddCtx("extract features", err)
	}
	res := &FeatureSet{Arch: arch}
	for _, positions := range l.Batches() {
		if n > 0 && res.Len() >= n {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, essentials.AddCtx("extract features", err)
		}
		batch, err := l.Fetch(positions)
		if err != nil {
			return nil, essentials.AddCtx("extract features", err)
		}
		feats := pushnet.Float64s(m.Features(batch.Images, batch.Velocities, batch.Num).Output())
		dim := len(feats) / batch.Num
		for i, ex := range batch.Examples {
			if n > 0 && res.Len() >= n {
				break
			}
			res.Features = append(res.Features, feats[i*dim:(i+1)*dim:(i+1)*dim])
			res.Images = append(res.Images, ex.Image)
			res.Labels = append(res.Labels, ex.Label)
			res.Indices = append(res.Indices, ex.Index)
		}
	}
	return res, nil
}

// Files written by WriteProjector.
const (
	ProjectorConfigFile = "projector_config.pbtxt"
	TensorsFile         = "tensors.tsv"
	MetadataFile        = "metadata.tsv"
	SpriteFile          = "sprite.png"
	FeaturesFile        = "features.npy"
	ImagesFile          = "images.npy"
)

const projectorConfig = `embeddings {
  tensor_name: "pushnet_features"
  tensor_path: %q
  metadata_path: %q
  sprite {
    image_path: %q
    single_image_dim: %d
    single_image_dim: %d
  }
}
`

// WriteProjector writes the set into dir for the
// TensorBoard embedding projector: a projector config
// referencing a TSV of features, a TSV of labels and a
// sprite of the images.
//
// The features and images are also saved as .npy
// matrices.
func WriteProjector(dir string, f *FeatureSet) error {
	if f.Len() == 0 {
		return errors.New("write projector: no features")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return essentials.AddCtx("write projector", err)
	}

	sprite := make([]*pushviz.Image, f.Len())
	for i, data := range f.Images {
		img, err := pushviz.ImageFromHWC(data, f.Arch.ImageWidth, f.Arch.ImageHeight,
			f.Arch.ImageDepth)
		if err != nil {
			return essentials.AddCtx(fmt.Sprintf("write projector: example %d", f.Indices[i]), err)
		}
		sprite[i] = img
	}
	if err := pushviz.SaveSprite(filepath.Join(dir, SpriteFile), sprite); err != nil {
		return essentials.AddCtx("write projector", err)
	}

	if err := writeTSV(filepath.Join(dir, TensorsFile), f.Features); err != nil {
		return essentials.AddCtx("write projector", err)
	}
	labels := make([][]float64, len(f.Labels))
	for i, l := range f.Labels {
		labels[i] = []float64{float64(l)}
	}
	if err := writeTSV(filepath.Join(dir, MetadataFile), labels); err != nil {
		return essentials.AddCtx("write projector", err)
	}

	config := fmt.Sprintf(projectorConfig, TensorsFile, MetadataFile, SpriteFile,
		f.Arch.ImageWidth, f.Arch.ImageHeight)
	err := writeFile(filepath.Join(dir, ProjectorConfigFile), func(w *bufio.Writer) {
		w.WriteString(config)
	})
	if err != nil {
		return essentials.AddCtx("write projector", err)
	}

	if err := pushdata.WriteMatrix(filepath.Join(dir, FeaturesFile), f.Features); err != nil {
		return err
	}
	return pushdata.WriteMatrix(filepath.Join(dir, ImagesFile), f.Images)
}

func writeTSV(path string, rows [][]float64) error {
	return writeFile(path, func(w *bufio.Writer) {
		for _, row := range rows {
			for j, x := range row {
				if j > 0 {
					w.WriteByte('\t')
				}
				w.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
			}
			w.WriteByte('\n')
		}
	})
}

func writeFile(path string, write func(w *bufio.Writer)) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	write(w)
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
