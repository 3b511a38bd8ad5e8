// Package grid partitions frames into cells and drives one scroll widget per
// cell.
//
// A Grid starts uninitialized. Init fixes the frame size once it is known,
// allocates every widget and moves the grid to its ready state; nothing else
// is valid before that.
package grid

import (
	"errors"
	"fmt"

	"scrollcam-go/internal/detect"
	"scrollcam-go/internal/surface"
	"scrollcam-go/internal/thumb"
	"scrollcam-go/internal/types"
)

var (
	ErrNotInitialized     = errors.New("grid not initialized")
	ErrAlreadyInitialized = errors.New("grid already initialized")
	ErrFrameSize          = errors.New("frame size differs from grid")
	ErrInvalidDimensions  = errors.New("invalid frame dimensions")
)

type Cell = surface.Cell

// CellResult is what the last Render computed for one cell.
type CellResult struct {
	Cell     Cell
	Run      detect.DarkRun
	Segment  thumb.Segment
	Fraction thumb.Fraction
	Geometry thumb.Geometry
}

type window struct {
	start int
	end   int
}

func (w window) height() int {
	return w.end - w.start
}

type Grid struct {
	stride      int
	rows        int
	displaySize int
	encoding    thumb.Encoding

	ready   bool
	layout  surface.Layout
	windows []window
	widgets []surface.Widget
	results []CellResult
}

// New returns an uninitialized grid. cols is derived at Init from the frame
// width as ceil(width / sampleStride).
func New(sampleStride, rows, displaySize int) *Grid {
	return &Grid{
		stride:      sampleStride,
		rows:        rows,
		displaySize: displaySize,
		encoding:    thumb.ScrollbarEncoding{},
	}
}

// SetEncoding replaces the segment-to-thumb encoding.
func (g *Grid) SetEncoding(enc thumb.Encoding) {
	if enc != nil {
		g.encoding = enc
	}
}

func (g *Grid) Ready() bool {
	return g.ready
}

func (g *Grid) Layout() surface.Layout {
	return g.layout
}

func (g *Grid) DisplayScale() float64 {
	return float64(g.displaySize) / float64(g.stride)
}

// Init builds the layout for width x height frames and creates every widget
// on s, row-major.
func (g *Grid) Init(width, height int, s surface.Surface) error {
	if g.ready {
		return ErrAlreadyInitialized
	}
	if width < 1 || height < 1 || g.stride < 1 || g.rows < 1 || g.displaySize < 1 {
		return fmt.Errorf("%w: %dx%d stride=%d rows=%d", ErrInvalidDimensions, width, height, g.stride, g.rows)
	}
	if height < g.rows {
		return fmt.Errorf("%w: height %d below %d rows", ErrInvalidDimensions, height, g.rows)
	}

	cols := (width + g.stride - 1) / g.stride
	scale := g.DisplayScale()
	layout := surface.Layout{
		Rows:         g.rows,
		Cols:         cols,
		CellWidth:    float64(g.displaySize),
		CellHeight:   float64(height) * scale / float64(g.rows),
		FrameWidth:   width,
		FrameHeight:  height,
		SampleStride: g.stride,
	}
	if err := s.Build(layout); err != nil {
		return fmt.Errorf("build surface: %w", err)
	}

	windows := make([]window, g.rows)
	for r := 0; r < g.rows; r++ {
		windows[r] = window{start: r * height / g.rows, end: (r + 1) * height / g.rows}
	}

	n := layout.Cells()
	widgets := make([]surface.Widget, n)
	results := make([]CellResult, n)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < cols; c++ {
			cell := Cell{Row: r, Col: c, Index: r*cols + c}
			rect := surface.Rect{
				X: float64(c) * layout.CellWidth,
				Y: float64(r) * layout.CellHeight,
				W: layout.CellWidth,
				H: layout.CellHeight,
			}
			widgets[cell.Index] = s.CreateWidget(cell, rect)
			results[cell.Index] = CellResult{Cell: cell}
		}
	}

	g.layout = layout
	g.windows = windows
	g.widgets = widgets
	g.results = results
	g.ready = true
	return nil
}

// Render runs detection for every cell of f and updates the widgets.
// f is only read during the call.
func (g *Grid) Render(f *types.Frame, threshold float64) error {
	if !g.ready {
		return ErrNotInitialized
	}
	if f.Width != g.layout.FrameWidth || f.Height != g.layout.FrameHeight {
		return fmt.Errorf("%w: got %dx%d want %dx%d", ErrFrameSize, f.Width, f.Height, g.layout.FrameWidth, g.layout.FrameHeight)
	}

	cols := g.layout.Cols
	scale := g.DisplayScale()
	for r, win := range g.windows {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			res := &g.results[i]
			res.Run = detect.Detect(f, c*g.stride, win.start, win.end, g.stride, threshold)
			res.Segment = thumb.Classify(res.Run, win.start, win.height())
			res.Fraction = g.encoding.Encode(res.Segment)
			res.Geometry = thumb.ApplyToWidget(g.widgets[i], res.Fraction, g.layout.CellHeight, g.stride, scale)
		}
	}
	return nil
}

// Results returns the per-cell results of the last Render. The slice is
// reused by the next Render.
func (g *Grid) Results() []CellResult {
	return g.results
}

// Window returns the frame rows scanned for grid row r.
func (g *Grid) Window(r int) (start, end int) {
	if r < 0 || r >= len(g.windows) {
		return 0, 0
	}
	return g.windows[r].start, g.windows[r].end
}
