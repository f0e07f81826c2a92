package pushviz

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/floats"
)

// ImageFromHWC creates an Image from a depth-minor
// tensor, averaging the channels.
func ImageFromHWC(data []float64, width, height, depth int) (*Image, error) {
	if len(data) != width*height*depth {
		return nil, fmt.Errorf("image has %d values for %dx%dx%d", len(data), width,
			height, depth)
	}
	res := &Image{Width: width, Height: height, Data: make([]float64, width*height)}
	for i := range res.Data {
		res.Data[i] = floats.Sum(data[i*depth:(i+1)*depth]) / float64(depth)
	}
	return res, nil
}

// SpriteSide returns the number of images per row and
// column of a sprite holding n images.
func SpriteSide(n int) int {
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// Sprite packs equally sized images into a square grayscale
// grid, row by row, with no padding.
// Each image is scaled to its own value range.
//
// This is the sprite layout of the TensorBoard embedding
// projector.
func Sprite(images []*Image) (*image.Gray, error) {
	if len(images) == 0 {
		return nil, errors.New("sprite: no images")
	}
	w, h := images[0].Width, images[0].Height
	side := SpriteSide(len(images))
	res := image.NewGray(image.Rect(0, 0, side*w, side*h))
	for i, img := range images {
		if img.Width != w || img.Height != h || len(img.Data) != w*h {
			return nil, fmt.Errorf("sprite: image %d is not %dx%d", i, w, h)
		}
		min, max := floats.Min(img.Data), floats.Max(img.Data)
		scale := 0.0
		if max > min {
			scale = 255 / (max - min)
		}
		x0, y0 := (i%side)*w, (i/side)*h
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := (img.Data[y*w+x] - min) * scale
				res.SetGray(x0+x, y0+y, color.Gray{Y: uint8(v + 0.5)})
			}
		}
	}
	return res, nil
}

// SaveSprite writes Sprite(images) to a PNG file.
func SaveSprite(path string, images []*Image) error {
	img, err := Sprite(images)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return essentials.AddCtx("save sprite", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return essentials.AddCtx("save sprite", err)
	}
	return f.Close()
}
