// Package pushviz renders dataset images for inspection.
package pushviz

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/pushnet/pushdata"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// An Image is a single-channel image in row-major order.
type Image struct {
	Title  string
	Width  int
	Height int
	Data   []float64
}

// ImageFromTensor creates an Image from a tensor of shape
// (H, W) or (C, H, W). Channels are averaged.
func ImageFromTensor(data []float64, shape []int) (*Image, error) {
	switch len(shape) {
	case 2:
		return &Image{Height: shape[0], Width: shape[1], Data: data}, nil
	case 3:
		depth, h, w := shape[0], shape[1], shape[2]
		res := &Image{Height: h, Width: w, Data: make([]float64, h*w)}
		for c := 0; c < depth; c++ {
			floats.Add(res.Data, data[c*h*w:(c+1)*h*w])
		}
		floats.Scale(1/float64(depth), res.Data)
		return res, nil
	}
	return nil, fmt.Errorf("unsupported image shape %v", shape)
}

// LoadImages reads count images of a tensor directory,
// starting at index start and advancing by step.
func LoadImages(dir, imageType string, start, step, count int) ([]*Image, error) {
	var res []*Image
	for i := 0; i < count; i++ {
		idx := start + i*step
		data, shape, err := pushdata.ReadTensor(pushdata.ImagePath(dir, imageType, idx))
		if err != nil {
			return nil, err
		}
		img, err := ImageFromTensor(data, shape)
		if err != nil {
			return nil, essentials.AddCtx(fmt.Sprintf("image %d", idx), err)
		}
		img.Title = fmt.Sprintf("%07d", idx)
		res = append(res, img)
	}
	return res, nil
}

// Dims implements plotter.GridXYZ.
func (i *Image) Dims() (c, r int) {
	return i.Width, i.Height
}

// Z returns the pixel at column c, with row 0 at the
// bottom of the plot.
func (i *Image) Z(c, r int) float64 {
	return i.Data[(i.Height-1-r)*i.Width+c]
}

// X implements plotter.GridXYZ.
func (i *Image) X(c int) float64 {
	return float64(c)
}

// Y implements plotter.GridXYZ.
func (i *Image) Y(r int) float64 {
	return float64(r)
}

type grayPalette int

func (g grayPalette) Colors() []color.Color {
	res := make([]color.Color, int(g))
	for i := range res {
		v := uint8(255 * i / (int(g) - 1))
		res[i] = color.Gray{Y: v}
	}
	return res
}

var _ palette.Palette = grayPalette(0)

// WriteGrid renders images into a rows×cols grid and
// writes it as PNG.
// Each cell is cellSize wide and tall.
func WriteGrid(w io.Writer, images []*Image, rows, cols int, cellSize vg.Length) error {
	if len(images) > rows*cols {
		return fmt.Errorf("write grid: %d images do not fit %dx%d", len(images), rows, cols)
	}
	plots := make([][]*plot.Plot, rows)
	for r := range plots {
		plots[r] = make([]*plot.Plot, cols)
		for c := range plots[r] {
			var img *Image
			if idx := r*cols + c; idx < len(images) {
				img = images[idx]
			}
			p, err := imagePlot(img)
			if err != nil {
				return essentials.AddCtx("write grid", err)
			}
			plots[r][c] = p
		}
	}

	img := vgimg.New(vg.Length(cols)*cellSize, vg.Length(rows)*cellSize)
	dc := draw.New(img)
	t := draw.Tiles{
		Rows: rows,
		Cols: cols,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align(plots, t, dc)
	for r := range plots {
		for c, p := range plots[r] {
			p.Draw(canvases[r][c])
		}
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return essentials.AddCtx("write grid", err)
	}
	return nil
}

// SaveGrid writes a PNG grid to a file.
func SaveGrid(path string, images []*Image, rows, cols int, cellSize vg.Length) error {
	f, err := os.Create(path)
	if err != nil {
		return essentials.AddCtx("save grid", err)
	}
	defer f.Close()
	return WriteGrid(f, images, rows, cols, cellSize)
}

// imagePlot creates a plot for one cell.
// A nil image gives an empty cell.
func imagePlot(img *Image) (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.HideAxes()
	if img == nil {
		return p, nil
	}
	if len(img.Data) != img.Width*img.Height {
		return nil, fmt.Errorf("image %q has %d values for %dx%d", img.Title,
			len(img.Data), img.Width, img.Height)
	}
	p.Title.Text = img.Title
	hm := plotter.NewHeatMap(img, grayPalette(256))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)
	return p, nil
}
