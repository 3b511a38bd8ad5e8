package ingest

import (
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestDecodeMultiDimArrayUint8(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{2, 2},
			cbor.Tag{
				Number:  tagUint8,
				Content: []byte{1, 2, 3, 4},
			},
		},
	}

	got, err := decodeMultiDimArray(value)
	if err != nil {
		t.Fatalf("decodeMultiDimArray error: %v", err)
	}

	want := [][]uint8{
		{1, 2},
		{3, 4},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decodeMultiDimArray mismatch: got %#v want %#v", got, want)
	}
}

func TestDecodeMultiDimArrayImageShape(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	got, err := decodeMultiDimArray(encodeImageArray(pix, 2, 2, 4))
	if err != nil {
		t.Fatalf("decodeMultiDimArray error: %v", err)
	}
	want := [][]uint8{
		{1, 2, 3, 4, 5, 6, 7, 8},
		{9, 10, 11, 12, 13, 14, 15, 16},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decodeMultiDimArray mismatch: got %#v want %#v", got, want)
	}
}

func TestDecodeMultiDimArrayUint16(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(1), uint64(2)},
			cbor.Tag{Number: tagUint16LE, Content: []byte{0x01, 0x00, 0x00, 0x80}},
		},
	}
	got, err := decodeMultiDimArray(value)
	if err != nil {
		t.Fatalf("decodeMultiDimArray error: %v", err)
	}
	want := [][]uint16{{1, 0x8000}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("decodeMultiDimArray mismatch: got %#v want %#v", got, want)
	}
}

func TestDecodeMultiDimArrayErrors(t *testing.T) {
	cases := []any{
		"not a tag",
		cbor.Tag{Number: 41, Content: nil},
		cbor.Tag{Number: tagMultiDimArray, Content: []any{[]any{2}, cbor.Tag{Number: tagUint8, Content: []byte{1, 2}}}},
		cbor.Tag{Number: tagMultiDimArray, Content: []any{[]any{2, 2}, cbor.Tag{Number: tagUint8, Content: []byte{1, 2, 3}}}},
		cbor.Tag{Number: tagMultiDimArray, Content: []any{[]any{1, 1}, cbor.Tag{Number: 99, Content: []byte{1}}}},
	}
	for i, value := range cases {
		if _, err := decodeMultiDimArray(value); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestDecodeMultiDimArrayRejectsOverflowingDims(t *testing.T) {
	cases := [][]any{
		{uint64(1) << 62, uint64(4)},
		{uint64(1) << 63, uint64(1)},
		{uint64(2), uint64(1) << 62, uint64(4)},
		{uint64(1) << 32, uint64(1) << 32},
		{int64(-1), int64(-4)},
	}
	for i, dims := range cases {
		value := cbor.Tag{
			Number:  tagMultiDimArray,
			Content: []any{dims, cbor.Tag{Number: tagUint8, Content: []byte{}}},
		}
		if _, err := decodeMultiDimArray(value); err == nil {
			t.Fatalf("case %d: expected error for dims %v", i, dims)
		}
	}
}

func TestDecodeRejectsHostilePixelDims(t *testing.T) {
	msg, err := cbor.Marshal(map[string]any{
		"type":      "image",
		"frame_id":  1,
		"timestamp": 0.0,
		"width":     2,
		"height":    2,
		"format":    "rgba",
		"pixels": cbor.Tag{
			Number:  tagMultiDimArray,
			Content: []any{[]any{uint64(1) << 62, uint64(4)}, cbor.Tag{Number: tagUint8, Content: []byte{}}},
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Decode(msg); err == nil {
		t.Fatalf("expected error for hostile dimensions")
	}
}
