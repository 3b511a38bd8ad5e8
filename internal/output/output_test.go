package output

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"scrollcam-go/internal/detect"
	"scrollcam-go/internal/grid"
	"scrollcam-go/internal/surface"
	"scrollcam-go/internal/thumb"
)

func TestRawLogWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRawLogWriter(dir, "frames")
	if err != nil {
		t.Fatalf("NewRawLogWriter: %v", err)
	}
	payloads := [][]byte{[]byte("first"), {}, bytes.Repeat([]byte{7}, 1000)}
	for _, p := range payloads {
		if err := w.Record(p); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Record([]byte("late")); err == nil {
		t.Fatalf("Record after Close succeeded")
	}
	if filepath.Dir(w.Path()) != dir || !strings.HasSuffix(w.Path(), "_frames.bin") {
		t.Fatalf("unexpected path %q", w.Path())
	}

	r, err := OpenRawLog(w.Path())
	if err != nil {
		t.Fatalf("OpenRawLog: %v", err)
	}
	defer r.Close()
	for i, want := range payloads {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !bytes.Equal(rec.Payload, want) {
			t.Fatalf("record %d: payload mismatch", i)
		}
		if rec.Time.IsZero() {
			t.Fatalf("record %d: missing timestamp", i)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestRawLogTruncatedRecordIsEOF(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(RawLogMagic)
	buf.Write([]byte{1, 0, 0, 0, 0, 0, 0, 0, 10, 0, 0, 0, 'a', 'b'})
	r, err := NewRawLogReader(&buf)
	if err != nil {
		t.Fatalf("NewRawLogReader: %v", err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestRawLogBadMagic(t *testing.T) {
	_, err := NewRawLogReader(strings.NewReader("BADMAGIC"))
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestWriteRuns(t *testing.T) {
	dir := t.TempDir()
	layout := surface.Layout{Rows: 1, Cols: 2, FrameWidth: 16, FrameHeight: 16, SampleStride: 8}
	results := []grid.CellResult{
		{Cell: grid.Cell{Row: 0, Col: 0, Index: 0}, Segment: thumb.Segment{Kind: thumb.NoSegment}, Fraction: thumb.Fraction{Size: 1}},
		{
			Cell:     grid.Cell{Row: 0, Col: 1, Index: 1},
			Run:      detect.DarkRun{Start: 0, Length: 16},
			Segment:  thumb.Segment{Kind: thumb.FullSegment, Size: 1},
			Fraction: thumb.Fraction{Size: 0.99},
		},
	}
	path, err := WriteRuns(dir, "20260101_000000", 42, layout, 127.5, results)
	if err != nil {
		t.Fatalf("WriteRuns: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("unexpected line count %d: %q", len(lines), data)
	}
	if lines[0] != "# frame=42 size=16x16 stride=8 grid=2x1 threshold=127.5" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[3] != "0, 1, 0, 16, full, 0.000000, 0.990000" {
		t.Fatalf("unexpected row %q", lines[3])
	}
}

func TestNormalizeJSONValue(t *testing.T) {
	var decoded any
	payload, err := cbor.Marshal(map[string]any{
		"type":   "image",
		"pixels": cbor.Tag{Number: 40, Content: []any{[]any{1, 2}, cbor.Tag{Number: 64, Content: []byte{1, 2}}}},
		"nested": map[int]string{1: "one"},
		"blob":   bytes.Repeat([]byte{1}, 64),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := cbor.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	normalized := NormalizeJSONValue(decoded)
	encoded, err := MarshalJSON(normalized, "")
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	text := string(encoded)
	for _, want := range []string{`"tag":40`, `"1":"one"`, `"<64 bytes>"`, `"type":"image"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("normalized JSON %s missing %s", text, want)
		}
	}

	pretty, err := MarshalJSON(normalized, "  ")
	if err != nil {
		t.Fatalf("json indent: %v", err)
	}
	if !strings.Contains(string(pretty), `"blob": "<64 bytes>"`) || strings.HasSuffix(string(pretty), "\n") {
		t.Fatalf("unexpected indented JSON %q", pretty)
	}
}
