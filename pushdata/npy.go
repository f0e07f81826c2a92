package pushdata

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/mat"
)

// ReadTensor reads a numeric .npy file into a flat slice,
// along with its shape.
func ReadTensor(path string) ([]float64, []int, error) {
	data, shape, err := readTensor(path)
	if err != nil {
		return nil, nil, essentials.AddCtx("read "+path, err)
	}
	return data, shape, nil
}

func readTensor(path string) (data []float64, shape []int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, err
	}
	shape = r.Header.Descr.Shape
	n := 1
	for _, x := range shape {
		n *= x
	}

	switch r.Header.Descr.Type {
	case "<f8", "f8":
		data = make([]float64, n)
		err = r.Read(&data)
	case "<f4", "f4":
		raw := make([]float32, n)
		err = r.Read(&raw)
		data = make([]float64, len(raw))
		for i, x := range raw {
			data[i] = float64(x)
		}
	case "<i8", "i8":
		raw := make([]int64, n)
		err = r.Read(&raw)
		data = make([]float64, len(raw))
		for i, x := range raw {
			data[i] = float64(x)
		}
	case "<i4", "i4":
		raw := make([]int32, n)
		err = r.Read(&raw)
		data = make([]float64, len(raw))
		for i, x := range raw {
			data[i] = float64(x)
		}
	case "|u1", "u1":
		raw := make([]uint8, n)
		err = r.Read(&raw)
		data = make([]float64, len(raw))
		for i, x := range raw {
			data[i] = float64(x)
		}
	case "|b1", "b1":
		raw := make([]bool, n)
		err = r.Read(&raw)
		data = make([]float64, len(raw))
		for i, x := range raw {
			if x {
				data[i] = 1
			}
		}
	default:
		return nil, nil, fmt.Errorf("unsupported dtype %q", r.Header.Descr.Type)
	}
	if err != nil {
		return nil, nil, err
	}
	return data, shape, nil
}

// WriteMatrix writes the rows as a two-dimensional
// float64 .npy file.
// All rows must have the same length.
func WriteMatrix(path string, rows [][]float64) error {
	if err := writeMatrix(path, rows); err != nil {
		return essentials.AddCtx("write "+path, err)
	}
	return nil
}

func writeMatrix(path string, rows [][]float64) error {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return fmt.Errorf("empty matrix")
	}
	cols := len(rows[0])
	m := mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		if len(row) != cols {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(row), cols)
		}
		m.SetRow(i, row)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := npyio.Write(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// chwToHWC reorders a channel-major image into the
// depth-minor layout used by anyconv.
func chwToHWC(data []float64, c, h, w int) []float64 {
	res := make([]float64, len(data))
	for ch := 0; ch < c; ch++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				res[(y*w+x)*c+ch] = data[(ch*h+y)*w+x]
			}
		}
	}
	return res
}
