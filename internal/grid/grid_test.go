package grid

import (
	"errors"
	"math"
	"testing"

	"scrollcam-go/internal/detect"
	"scrollcam-go/internal/surface"
	"scrollcam-go/internal/thumb"
	"scrollcam-go/internal/types"
)

func newFrame(width, height int, gray uint8) *types.Frame {
	f := &types.Frame{Width: width, Height: height, Pix: make([]byte, width*height*types.BytesPerPixel)}
	for i := 0; i < len(f.Pix); i += types.BytesPerPixel {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = gray, gray, gray, 255
	}
	return f
}

func darken(f *types.Frame, x, y0, y1 int) {
	for y := y0; y < y1; y++ {
		i := f.Offset(x, y)
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = 0, 0, 0
	}
}

func TestRenderBeforeInit(t *testing.T) {
	g := New(8, 6, 12)
	if g.Ready() {
		t.Fatalf("new grid must not be ready")
	}
	if err := g.Render(newFrame(8, 8, 0), 127.5); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitOnce(t *testing.T) {
	g := New(8, 6, 12)
	if err := g.Init(640, 480, surface.NewTable()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := g.Init(640, 480, surface.NewTable()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitRejectsBadDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 480}, {640, 0}, {640, 4}} {
		g := New(8, 6, 12)
		if err := g.Init(dims[0], dims[1], surface.NewTable()); !errors.Is(err, ErrInvalidDimensions) {
			t.Fatalf("%v: expected ErrInvalidDimensions, got %v", dims, err)
		}
		if g.Ready() {
			t.Fatalf("%v: grid became ready after failed init", dims)
		}
	}
}

func TestInitLayout(t *testing.T) {
	table := surface.NewTable()
	g := New(8, 6, 12)
	if err := g.Init(650, 480, table); err != nil {
		t.Fatalf("init: %v", err)
	}
	layout := g.Layout()
	if layout.Cols != 82 || layout.Rows != 6 {
		t.Fatalf("unexpected grid %dx%d", layout.Cols, layout.Rows)
	}
	if layout.CellWidth != 12 || layout.CellHeight != 120 {
		t.Fatalf("unexpected cell size %vx%v", layout.CellWidth, layout.CellHeight)
	}

	snap := table.Snapshot()
	if len(snap.Rects) != layout.Rows*layout.Cols {
		t.Fatalf("expected %d widgets, got %d", layout.Rows*layout.Cols, len(snap.Rects))
	}
	for i, res := range g.Results() {
		if res.Cell.Index != i || res.Cell.Row*layout.Cols+res.Cell.Col != i {
			t.Fatalf("cell %d has index %+v", i, res.Cell)
		}
	}
	last := snap.Rects[len(snap.Rects)-1]
	if last.X != 81*12 || last.Y != 5*120 {
		t.Fatalf("unexpected last rect %+v", last)
	}
	if start, end := g.Window(5); start != 400 || end != 480 {
		t.Fatalf("unexpected window for row 5: [%d,%d)", start, end)
	}
}

func TestRenderRejectsOtherFrameSize(t *testing.T) {
	g := New(8, 2, 12)
	_ = g.Init(16, 16, surface.NewTable())
	if err := g.Render(newFrame(32, 16, 0), 127.5); !errors.Is(err, ErrFrameSize) {
		t.Fatalf("expected ErrFrameSize, got %v", err)
	}
}

func TestRenderAllLight(t *testing.T) {
	table := surface.NewTable()
	g := New(8, 3, 12)
	_ = g.Init(64, 48, table)
	if err := g.Render(newFrame(64, 48, 240), 127.5); err != nil {
		t.Fatalf("render: %v", err)
	}
	snap := table.Snapshot()
	for i, res := range g.Results() {
		if !res.Run.Empty() || res.Segment.Kind != thumb.NoSegment || res.Fraction.Size != 1 {
			t.Fatalf("cell %d: unexpected result %+v", i, res)
		}
		if snap.Content[i] != g.Layout().CellHeight || snap.Scroll[i] != 0 {
			t.Fatalf("cell %d: expected bare track, got content=%v scroll=%v", i, snap.Content[i], snap.Scroll[i])
		}
	}
}

func TestRenderSixteenPixelCells(t *testing.T) {
	// Two rows of 16 px cells; column 1 of row 0 fully dark.
	table := surface.NewTable()
	g := New(8, 2, 12)
	if err := g.Init(16, 32, table); err != nil {
		t.Fatalf("init: %v", err)
	}
	f := newFrame(16, 32, 240)
	darken(f, 8, 0, 16)

	if err := g.Render(f, 127.5); err != nil {
		t.Fatalf("render: %v", err)
	}
	res := g.Results()[1]
	if res.Run != (detect.DarkRun{Start: 0, Length: 16}) {
		t.Fatalf("unexpected run %+v", res.Run)
	}
	if res.Fraction.Offset != 0 || res.Fraction.Size != 0.99 {
		t.Fatalf("unexpected fraction %+v", res.Fraction)
	}
	cellHeight := g.Layout().CellHeight
	if math.Abs(table.Snapshot().Content[1]-cellHeight/0.99) > 1e-9 {
		t.Fatalf("unexpected content height %v", table.Snapshot().Content[1])
	}
	if g.Results()[0].Segment.Kind != thumb.NoSegment || g.Results()[3].Segment.Kind != thumb.NoSegment {
		t.Fatalf("light cells must have no segment")
	}
}

func TestRenderPartialBandInLowerRow(t *testing.T) {
	table := surface.NewTable()
	g := New(8, 2, 12)
	_ = g.Init(8, 160, table)
	f := newFrame(8, 160, 240)
	darken(f, 0, 120, 140)

	_ = g.Render(f, 127.5)
	res := g.Results()[1]
	if res.Run.Start != 120 || res.Run.Length != 24 {
		t.Fatalf("unexpected run %+v", res.Run)
	}
	if res.Segment.Kind != thumb.PartialSegment {
		t.Fatalf("unexpected segment %+v", res.Segment)
	}
	if res.Fraction.Offset != 0.5 || res.Fraction.Size != 0.3 {
		t.Fatalf("unexpected fraction %+v", res.Fraction)
	}
	snap := table.Snapshot()
	if math.Abs(snap.Scroll[1]/snap.Content[1]-0.5) > 1e-9 {
		t.Fatalf("thumb position does not match fraction: %v/%v", snap.Scroll[1], snap.Content[1])
	}
}

func TestRenderDoesNotRetainFrame(t *testing.T) {
	g := New(8, 1, 12)
	_ = g.Init(8, 16, surface.NewTable())
	f := newFrame(8, 16, 0)
	_ = g.Render(f, 127.5)
	for i := range f.Pix {
		f.Pix[i] = 255
	}
	if g.Results()[0].Run.Length != 16 {
		t.Fatalf("results changed after frame mutation")
	}
}

type fixedEncoding struct{}

func (fixedEncoding) Encode(thumb.Segment) thumb.Fraction {
	return thumb.Fraction{Offset: 0.1, Size: 0.5}
}

func TestSetEncoding(t *testing.T) {
	table := surface.NewTable()
	g := New(8, 1, 12)
	g.SetEncoding(fixedEncoding{})
	g.SetEncoding(nil)
	_ = g.Init(8, 16, table)
	_ = g.Render(newFrame(8, 16, 240), 127.5)
	if got := g.Results()[0].Fraction; got.Size != 0.5 {
		t.Fatalf("custom encoding not used: %+v", got)
	}
}
