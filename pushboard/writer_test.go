package pushboard

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onlyEventFile(t *testing.T, dir string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "events.out.tfevents.*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	return matches[0]
}

func TestWriterAddScalars(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	w.Now = func() time.Time {
		return time.Unix(1600000000, 500000000)
	}

	require.NoError(t, w.AddScalars("loss", map[string]float64{"train": 0.5, "val": 0.75}, 3))
	require.NoError(t, w.AddScalars("loss", map[string]float64{"train": 0.25, "val": 0.5}, 4))
	require.NoError(t, w.AddScalar("lr", 1e-4, 4))
	require.NoError(t, w.Flush())

	events, err := ReadEvents(onlyEventFile(t, filepath.Join(dir, "loss_val")))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, fileVersion, events[0].FileVersion)
	assert.Equal(t, "loss", events[1].Tag)
	assert.Equal(t, int64(3), events[1].Step)
	assert.Equal(t, float32(0.75), events[1].Value)
	assert.InDelta(t, 1600000000.5, events[1].WallTime, 1e-3)
	assert.Equal(t, int64(4), events[2].Step)
	assert.Equal(t, float32(0.5), events[2].Value)

	mainEvents, err := ReadEvents(onlyEventFile(t, dir))
	require.NoError(t, err)
	require.Len(t, mainEvents, 2)
	assert.Equal(t, "lr", mainEvents[1].Tag)
	assert.InDelta(t, 1e-4, mainEvents[1].Value, 1e-9)

	require.NoError(t, w.Close())
}

func TestRecordFraming(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, []byte("hello")))
	require.NoError(t, writeRecord(&buf, nil))
	raw := buf.Bytes()
	assert.Len(t, raw, 16+5+16)

	r := bufio.NewReader(bytes.NewReader(raw))
	data, err := readRecord(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	data, err = readRecord(r)
	require.NoError(t, err)
	assert.Empty(t, data)
	_, err = readRecord(r)
	assert.Equal(t, io.EOF, err)

	corrupt := append([]byte{}, raw...)
	corrupt[14] ^= 0xff
	_, err = readRecord(bufio.NewReader(bytes.NewReader(corrupt)))
	assert.Equal(t, errBadChecksum, err)

	_, err = readRecord(bufio.NewReader(bytes.NewReader(raw[:15])))
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestEventRoundTrip(t *testing.T) {
	e := &Event{WallTime: 12.5, Step: 7, Tag: "accuracy_train", Value: 0.875}
	decoded, err := decodeEvent(encodeEvent(e))
	require.NoError(t, err)
	assert.Equal(t, e, decoded)

	_, err = decodeEvent([]byte{0xff})
	assert.Error(t, err)
}
