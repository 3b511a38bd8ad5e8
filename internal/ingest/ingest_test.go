package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"scrollcam-go/internal/output"
	"scrollcam-go/internal/types"
)

func TestDecodeMessageImage(t *testing.T) {
	msg := map[string]any{
		"type":      "image",
		"frame_id":  7,
		"timestamp": 1.25,
		"width":     2,
		"height":    1,
		"format":    "gray",
		"pixels": cbor.Tag{
			Number: tagMultiDimArray,
			Content: []any{
				[]any{1, 2},
				cbor.Tag{
					Number:  tagUint8,
					Content: []byte{10, 20},
				},
			},
		},
	}

	payload, err := cbor.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	raw, ok := decodeMessage(payload, 1)
	if !ok {
		t.Fatalf("decodeMessage returned ok=false")
	}

	if raw.Type != "image" {
		t.Fatalf("unexpected type: %q", raw.Type)
	}
	if raw.Image.FrameID != 7 {
		t.Fatalf("unexpected frame_id: %d", raw.Image.FrameID)
	}
	if raw.Image.Timestamp != 1.25 {
		t.Fatalf("unexpected timestamp: %v", raw.Image.Timestamp)
	}
	if raw.Image.Width != 2 || raw.Image.Height != 1 || raw.Image.Format != "gray" {
		t.Fatalf("unexpected geometry: %+v", raw.Image)
	}
	matrix, ok := raw.Image.Pixels.([][]uint8)
	if !ok {
		t.Fatalf("unexpected pixels type %T", raw.Image.Pixels)
	}
	if len(matrix) != 1 || len(matrix[0]) != 2 {
		t.Fatalf("unexpected matrix shape: %#v", matrix)
	}
	if matrix[0][0] != 10 || matrix[0][1] != 20 {
		t.Fatalf("unexpected matrix values: %#v", matrix)
	}
}

func TestDecodeMessageMeta(t *testing.T) {
	payload, err := EncodeMeta("start", map[string]any{"width": 640, "height": 480})
	if err != nil {
		t.Fatalf("EncodeMeta: %v", err)
	}
	raw, ok := decodeMessage(payload, 1)
	if !ok || raw.Type != "start" {
		t.Fatalf("unexpected message %+v ok=%v", raw, ok)
	}
	if raw.Meta["width"] != uint64(640) {
		t.Fatalf("unexpected meta %+v", raw.Meta)
	}
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	if _, ok := decodeMessage([]byte{0xff, 0x00}, 1); ok {
		t.Fatalf("garbage accepted")
	}
	payload, _ := cbor.Marshal(map[string]any{"type": "image", "frame_id": 1, "timestamp": 0.0, "width": 0, "height": 1})
	if _, ok := decodeMessage(payload, 1); ok {
		t.Fatalf("zero width accepted")
	}
	payload, _ = cbor.Marshal(map[string]any{"frame_id": 1})
	if _, ok := decodeMessage(payload, 1); ok {
		t.Fatalf("untyped message accepted")
	}
}

func testFrame(width, height int, seq uint64) *types.Frame {
	f := &types.Frame{Seq: seq, Width: width, Height: height, Timestamp: time.Unix(1700000000, 0), Pix: make([]byte, width*height*types.BytesPerPixel)}
	for i := range f.Pix {
		f.Pix[i] = byte(i)
	}
	return f
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	src := testFrame(3, 2, 5)
	payload, err := EncodeFrame(src)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	conv := newConverter(1)
	got, ok := conv.convert(payload)
	if !ok {
		t.Fatalf("convert failed")
	}
	defer got.Release()
	if got.Seq != 5 || got.Width != 3 || got.Height != 2 {
		t.Fatalf("unexpected frame header %+v", got)
	}
	if got.Timestamp.Unix() != 1700000000 {
		t.Fatalf("unexpected timestamp %v", got.Timestamp)
	}
	for i := range src.Pix {
		if got.Pix[i] != src.Pix[i] {
			t.Fatalf("pixel byte %d differs: %d vs %d", i, got.Pix[i], src.Pix[i])
		}
	}
}

func TestDecodeFrame(t *testing.T) {
	payload, err := EncodeFrame(testFrame(4, 3, 2))
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	f, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if f.Width != 4 || f.Height != 3 || f.Seq != 2 {
		t.Fatalf("unexpected frame %+v", f)
	}

	meta, _ := EncodeMeta("end", nil)
	if _, err := DecodeFrame(meta); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}

func TestConverterDropsResizedFrames(t *testing.T) {
	conv := newConverter(1)
	first, _ := EncodeFrame(testFrame(2, 2, 1))
	second, _ := EncodeFrame(testFrame(4, 2, 2))
	if f, ok := conv.convert(first); !ok {
		t.Fatalf("first frame rejected")
	} else {
		f.Release()
	}
	if _, ok := conv.convert(second); ok {
		t.Fatalf("resized frame accepted")
	}
}

func TestConverterRecoversFromMalformedFirstFrame(t *testing.T) {
	conv := newConverter(1)
	bad, err := cbor.Marshal(map[string]any{
		"type":      "image",
		"frame_id":  1,
		"timestamp": 0.0,
		"width":     4,
		"height":    4,
		"format":    "rgba",
		"pixels":    []byte{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, ok := conv.convert(bad); ok {
		t.Fatalf("malformed frame accepted")
	}
	for seq := uint64(2); seq <= 4; seq++ {
		payload, _ := EncodeFrame(testFrame(2, 2, seq))
		f, ok := conv.convert(payload)
		if !ok {
			t.Fatalf("valid frame %d dropped after malformed first frame", seq)
		}
		if f.Width != 2 || f.Height != 2 || f.Seq != seq {
			t.Fatalf("unexpected frame %dx%d seq %d", f.Width, f.Height, f.Seq)
		}
		f.Release()
	}
}

func TestDecodeRejectsHugeDimensions(t *testing.T) {
	msg, err := cbor.Marshal(map[string]any{
		"type":      "image",
		"frame_id":  1,
		"timestamp": 0.0,
		"width":     uint64(1) << 32,
		"height":    uint64(1) << 32,
		"format":    "rgba",
		"pixels":    []byte{},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Decode(msg); err == nil {
		t.Fatalf("expected error for huge dimensions")
	}
}

func TestReplaySource(t *testing.T) {
	dir := t.TempDir()
	w, err := output.NewRawLogWriter(dir, "replay")
	if err != nil {
		t.Fatalf("NewRawLogWriter: %v", err)
	}
	meta, _ := EncodeMeta("start", map[string]any{"width": 2})
	_ = w.Record(meta)
	for seq := uint64(1); seq <= 3; seq++ {
		payload, err := EncodeFrame(testFrame(2, 2, seq))
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		if err := w.Record(payload); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	_ = w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	src := &ReplaySource{Path: w.Path(), FPS: 200}
	frames, err := src.Frames(ctx)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}

	var last uint64
	count := 0
	for f := range frames {
		if f.Seq <= last {
			t.Fatalf("frames out of order: %d after %d", f.Seq, last)
		}
		last = f.Seq
		count++
		f.Release()
	}
	if count == 0 || last != 3 {
		t.Fatalf("expected to end on frame 3, got last=%d count=%d", last, count)
	}
}

func TestReplaySourceMissingFile(t *testing.T) {
	src := &ReplaySource{Path: "/nonexistent/replay.bin"}
	if _, err := src.Frames(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
