// Package surface defines where scroll widgets live and provides the
// in-memory widget table shared by the concrete surfaces.
package surface

import (
	"errors"

	"scrollcam-go/internal/config"
	"scrollcam-go/internal/detect"
)

// Cell is one grid position; Index is Row*Cols + Col.
type Cell struct {
	Row   int
	Col   int
	Index int
}

// Rect is a widget's placement in display pixels.
type Rect struct {
	X, Y, W, H float64
}

// Layout describes the grid a surface is asked to host.
type Layout struct {
	Rows         int
	Cols         int
	CellWidth    float64
	CellHeight   float64
	FrameWidth   int
	FrameHeight  int
	SampleStride int
}

func (l Layout) Cells() int {
	return l.Rows * l.Cols
}

// State is the per-tick information surfaces may draw besides the widgets.
// Mask is reused by the next tick; read it during Present only.
type State struct {
	Seq    uint64
	Params config.Params
	Mask   *detect.Mask
}

type Widget interface {
	SetContentSize(w, h float64)
	SetScrollOffset(px float64)
}

// Surface hosts one widget per cell. Build is called once, then CreateWidget
// once per cell in index order, then Present once per tick after every
// widget has been updated.
type Surface interface {
	Build(layout Layout) error
	CreateWidget(cell Cell, rect Rect) Widget
	Present(state State) error
}

// Multi fans every call out to several surfaces.
type Multi []Surface

func (m Multi) Build(layout Layout) error {
	var errs []error
	for _, s := range m {
		if err := s.Build(layout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) CreateWidget(cell Cell, rect Rect) Widget {
	widgets := make(multiWidget, 0, len(m))
	for _, s := range m {
		widgets = append(widgets, s.CreateWidget(cell, rect))
	}
	return widgets
}

func (m Multi) Present(state State) error {
	var errs []error
	for _, s := range m {
		if err := s.Present(state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type multiWidget []Widget

func (w multiWidget) SetContentSize(width, height float64) {
	for _, x := range w {
		x.SetContentSize(width, height)
	}
}

func (w multiWidget) SetScrollOffset(px float64) {
	for _, x := range w {
		x.SetScrollOffset(px)
	}
}
