// Package thumb turns detected dark runs into scroll widget geometry.
//
// A scroll widget shows a thumb whose size is track/content and whose
// position is scrollOffset/content. To draw a thumb covering a fraction s of
// the track the content has to be track/s long.
package thumb

import "scrollcam-go/internal/detect"

const (
	// FullSize replaces a fraction of 1: a thumb that fills its track is
	// not drawn by scroll widgets.
	FullSize = 0.99
	// NoneSize replaces a fraction of 0 or less: the content equals the
	// track and no thumb is shown.
	NoneSize = 1.0
)

// Fraction is a run relative to its cell window.
type Fraction struct {
	Offset float64
	Size   float64
}

// Geometry is what gets pushed into a widget.
type Geometry struct {
	ContentWidth  float64
	ContentHeight float64
	ScrollOffset  float64
}

// Widget is the part of a scroll widget the mapper drives.
type Widget interface {
	SetContentSize(w, h float64)
	SetScrollOffset(px float64)
}

// Normalize expresses run relative to a window of windowHeight pixels
// starting at windowStart. No remapping is applied.
func Normalize(run detect.DarkRun, windowStart, windowHeight int) Fraction {
	if windowHeight <= 0 {
		return Fraction{}
	}
	h := float64(windowHeight)
	return Fraction{
		Offset: float64(run.Start-windowStart) / h,
		Size:   float64(run.Length) / h,
	}
}

// RemapSize applies the sentinel policy: full coverage becomes FullSize,
// nothing detected becomes NoneSize.
func RemapSize(size float64) float64 {
	if size >= 1 {
		return FullSize
	}
	if size <= 0 {
		return NoneSize
	}
	return size
}

// MapToWidget normalizes run and applies RemapSize.
func MapToWidget(run detect.DarkRun, windowStart, windowHeight int) Fraction {
	f := Normalize(run, windowStart, windowHeight)
	f.Size = RemapSize(f.Size)
	return f
}

// Layout derives widget geometry for a remapped fraction.
func Layout(f Fraction, cellWidth, cellHeight float64) Geometry {
	size := f.Size
	if size <= 0 {
		size = NoneSize
	}
	inner := (1 / size) * cellHeight
	return Geometry{
		ContentWidth:  cellWidth,
		ContentHeight: inner,
		ScrollOffset:  f.Offset * inner,
	}
}

// Apply pushes g into w.
func Apply(w Widget, g Geometry) {
	w.SetContentSize(g.ContentWidth, g.ContentHeight)
	w.SetScrollOffset(g.ScrollOffset)
}

// ApplyToWidget lays out f for a cell sampleStride*displayScale wide and
// cellHeight tall and pushes the result into w.
func ApplyToWidget(w Widget, f Fraction, cellHeight float64, sampleStride int, displayScale float64) Geometry {
	g := Layout(f, float64(sampleStride)*displayScale, cellHeight)
	Apply(w, g)
	return g
}
