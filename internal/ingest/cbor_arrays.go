package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
)

// RFC 8746 tags.
const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint16LE      = 69
	tagUint32LE      = 70
	tagFloat32LE     = 85
)

// decodeMultiDimArray unpacks a tag-40 array. Two dimensions give a
// [rows][cols] matrix; three give [rows][cols*channels] with channels
// interleaved, which is how image rows are laid out.
func decodeMultiDimArray(value any) (any, error) {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != tagMultiDimArray {
		return nil, fmt.Errorf("expected multidim tag 40")
	}

	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return nil, fmt.Errorf("invalid multidim array content")
	}

	dimsRaw, ok := items[0].([]any)
	if !ok || len(dimsRaw) < 2 || len(dimsRaw) > 3 {
		return nil, fmt.Errorf("invalid multidim dimensions")
	}

	flat, err := decodeTypedArray(items[1])
	if err != nil {
		return nil, err
	}
	n, err := typedLen(flat)
	if err != nil {
		return nil, err
	}

	dims := make([]int, len(dimsRaw))
	for i, d := range dimsRaw {
		v, err := toInt(d)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, errors.New("negative dimension")
		}
		if v > n {
			return nil, fmt.Errorf("dimension %d exceeds %d elements", v, n)
		}
		dims[i] = v
	}
	rows, cols := dims[0], dims[1]
	if len(dims) == 3 {
		if dims[2] != 0 && cols > n/dims[2] {
			return nil, errors.New("dimension mismatch")
		}
		cols *= dims[2]
	}
	if cols != 0 && rows > n/cols {
		return nil, errors.New("dimension mismatch")
	}

	switch v := flat.(type) {
	case []uint8:
		return reshape(v, rows, cols)
	case []uint16:
		return reshape(v, rows, cols)
	case []uint32:
		return reshape(v, rows, cols)
	case []float32:
		return reshape(v, rows, cols)
	default:
		return nil, errors.New("unsupported typed array type")
	}
}

func typedLen(flat any) (int, error) {
	switch v := flat.(type) {
	case []uint8:
		return len(v), nil
	case []uint16:
		return len(v), nil
	case []uint32:
		return len(v), nil
	case []float32:
		return len(v), nil
	default:
		return 0, errors.New("unsupported typed array type")
	}
}

func decodeTypedArray(value any) (any, error) {
	tag, ok := value.(cbor.Tag)
	if !ok {
		return nil, fmt.Errorf("expected typed array tag")
	}

	dataBytes, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported typed array content %T", tag.Content)
	}

	switch tag.Number {
	case tagUint8:
		return dataBytes, nil
	case tagUint16LE:
		return bytesToUint16(dataBytes), nil
	case tagUint32LE:
		return bytesToUint32(dataBytes), nil
	case tagFloat32LE:
		return bytesToFloat32(dataBytes), nil
	default:
		return nil, fmt.Errorf("unsupported typed array tag %d", tag.Number)
	}
}

// encodeImageArray wraps interleaved 8-bit samples as a tag-40 array of
// shape [height, width, channels].
func encodeImageArray(pix []byte, width, height, channels int) cbor.Tag {
	return cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{height, width, channels},
			cbor.Tag{Number: tagUint8, Content: pix},
		},
	}
}

func bytesToUint16(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := 0; i < len(out); i++ {
		out[i] = binary.LittleEndian.Uint16(data[i*2 : i*2+2])
	}
	return out
}

func bytesToUint32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := 0; i < len(out); i++ {
		out[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return out
}

func bytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := 0; i < len(out); i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

func reshape[T uint8 | uint16 | uint32 | float32](flat []T, rows, cols int) ([][]T, error) {
	if rows*cols != len(flat) {
		return nil, errors.New("dimension mismatch")
	}
	out := make([][]T, rows)
	for r := 0; r < rows; r++ {
		row := make([]T, cols)
		copy(row, flat[r*cols:(r+1)*cols])
		out[r] = row
	}
	return out, nil
}
