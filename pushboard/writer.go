// Package pushboard writes training scalars in the
// TensorBoard event file format.
package pushboard

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/unixpickle/essentials"
)

// A Writer writes scalar summaries below a log directory.
//
// Like TensorBoard's add_scalars, each (tag, key) pair
// of AddScalars gets its own sub-directory named
// <tag>_<key>, so that the curves share one chart.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	Dir string

	// Now is used for wall times.
	// If nil, time.Now is used.
	Now func() time.Time

	main  *eventFile
	files map[string]*eventFile
}

type eventFile struct {
	f *os.File
	w *bufio.Writer
}

// NewWriter creates the log directory and its main event
// file.
func NewWriter(dir string) (*Writer, error) {
	w := &Writer{Dir: dir, files: map[string]*eventFile{}}
	main, err := w.open(dir)
	if err != nil {
		return nil, essentials.AddCtx("new summary writer", err)
	}
	w.main = main
	return w, nil
}

// AddScalar records a single scalar in the main event
// file.
func (w *Writer) AddScalar(tag string, value float64, step int) error {
	if err := w.write(w.main, tag, value, step); err != nil {
		return essentials.AddCtx("add scalar "+tag, err)
	}
	return nil
}

// AddScalars records a group of related scalars, such as
// the training and validation loss of an epoch.
func (w *Writer) AddScalars(tag string, values map[string]float64, step int) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sub := tag + "_" + k
		ef, ok := w.files[sub]
		if !ok {
			var err error
			ef, err = w.open(filepath.Join(w.Dir, sub))
			if err != nil {
				return essentials.AddCtx("add scalars "+tag, err)
			}
			w.files[sub] = ef
		}
		if err := w.write(ef, tag, values[k], step); err != nil {
			return essentials.AddCtx("add scalars "+tag, err)
		}
	}
	return nil
}

// Flush writes buffered events to disk.
func (w *Writer) Flush() error {
	for _, ef := range w.all() {
		if err := ef.w.Flush(); err != nil {
			return essentials.AddCtx("flush summaries", err)
		}
	}
	return nil
}

// Close flushes and closes every event file.
func (w *Writer) Close() error {
	var firstErr error
	for _, ef := range w.all() {
		if err := ef.w.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := ef.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.files = map[string]*eventFile{}
	w.main = nil
	if firstErr != nil {
		return essentials.AddCtx("close summaries", firstErr)
	}
	return nil
}

func (w *Writer) all() []*eventFile {
	var res []*eventFile
	if w.main != nil {
		res = append(res, w.main)
	}
	for _, ef := range w.files {
		res = append(res, ef)
	}
	return res
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *Writer) open(dir string) (*eventFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	now := w.now()
	name := fmt.Sprintf("events.out.tfevents.%010d.%s", now.Unix(), host)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	ef := &eventFile{f: f, w: bufio.NewWriter(f)}
	header := &Event{WallTime: wallTime(now), FileVersion: fileVersion}
	if err := writeRecord(ef.w, encodeEvent(header)); err != nil {
		f.Close()
		return nil, err
	}
	return ef, nil
}

func (w *Writer) write(ef *eventFile, tag string, value float64, step int) error {
	e := &Event{
		WallTime: wallTime(w.now()),
		Step:     int64(step),
		Tag:      tag,
		Value:    float32(value),
	}
	return writeRecord(ef.w, encodeEvent(e))
}

func wallTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// ReadEvents decodes every event in an event file.
func ReadEvents(path string) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("read events", err)
	}
	defer f.Close()

	var res []*Event
	r := bufio.NewReader(f)
	for {
		data, err := readRecord(r)
		if err == io.EOF {
			return res, nil
		} else if err != nil {
			return nil, essentials.AddCtx("read events "+path, err)
		}
		e, err := decodeEvent(data)
		if err != nil {
			return nil, essentials.AddCtx("read events "+path, err)
		}
		res = append(res, e)
	}
}
