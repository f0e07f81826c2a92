package pushboard

import (
	"bufio"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from tensorflow/core/util/event.proto and
// tensorflow/core/framework/summary.proto.
const (
	eventWallTime    protowire.Number = 1
	eventStep        protowire.Number = 2
	eventFileVersion protowire.Number = 3
	eventSummary     protowire.Number = 5

	summaryValue protowire.Number = 1

	valueTag         protowire.Number = 1
	valueSimpleValue protowire.Number = 2
)

const fileVersion = "brain.Event:2"

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// An Event is a decoded scalar event record.
type Event struct {
	WallTime    float64
	Step        int64
	FileVersion string
	Tag         string
	Value       float32
}

func encodeEvent(e *Event) []byte {
	var b []byte
	b = protowire.AppendTag(b, eventWallTime, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(e.WallTime))
	if e.Step != 0 {
		b = protowire.AppendTag(b, eventStep, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Step))
	}
	if e.FileVersion != "" {
		b = protowire.AppendTag(b, eventFileVersion, protowire.BytesType)
		b = protowire.AppendString(b, e.FileVersion)
		return b
	}

	var value []byte
	value = protowire.AppendTag(value, valueTag, protowire.BytesType)
	value = protowire.AppendString(value, e.Tag)
	value = protowire.AppendTag(value, valueSimpleValue, protowire.Fixed32Type)
	value = protowire.AppendFixed32(value, math.Float32bits(e.Value))

	var summary []byte
	summary = protowire.AppendTag(summary, summaryValue, protowire.BytesType)
	summary = protowire.AppendBytes(summary, value)

	b = protowire.AppendTag(b, eventSummary, protowire.BytesType)
	b = protowire.AppendBytes(b, summary)
	return b
}

func decodeEvent(b []byte) (*Event, error) {
	var e Event
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == eventWallTime && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			e.WallTime = math.Float64frombits(v)
			return n, nil
		case num == eventStep && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			e.Step = int64(v)
			return n, nil
		case num == eventFileVersion && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			e.FileVersion = string(v)
			return n, nil
		case num == eventSummary && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			return n, decodeSummary(v, &e)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func decodeSummary(b []byte, e *Event) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != summaryValue || typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		return n, consumeFields(v, func(num protowire.Number, typ protowire.Type,
			b []byte) (int, error) {
			switch {
			case num == valueTag && typ == protowire.BytesType:
				v, n := protowire.ConsumeBytes(b)
				e.Tag = string(v)
				return n, nil
			case num == valueSimpleValue && typ == protowire.Fixed32Type:
				v, n := protowire.ConsumeFixed32(b)
				e.Value = math.Float32frombits(v)
				return n, nil
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		})
	})
}

func consumeFields(b []byte, f func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := f(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func maskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, crcTable)
	return ((crc >> 15) | (crc << 17)) + 0xa282ead8
}

// writeRecord writes data in the TFRecord framing.
func writeRecord(w io.Writer, data []byte) error {
	header := make([]byte, 12)
	binary.LittleEndian.PutUint64(header, uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	footer := make([]byte, 4)
	binary.LittleEndian.PutUint32(footer, maskedCRC(data))
	for _, chunk := range [][]byte{header, data, footer} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

var errBadChecksum = errors.New("record checksum mismatch")

// readRecord reads one TFRecord.
// It returns io.EOF at a clean end of stream.
func readRecord(r *bufio.Reader) ([]byte, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(header[8:]) != maskedCRC(header[:8]) {
		return nil, errBadChecksum
	}
	data := make([]byte, binary.LittleEndian.Uint64(header))
	footer := make([]byte, 4)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, unexpected(err)
	}
	if _, err := io.ReadFull(r, footer); err != nil {
		return nil, unexpected(err)
	}
	if binary.LittleEndian.Uint32(footer) != maskedCRC(data) {
		return nil, errBadChecksum
	}
	return data, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
