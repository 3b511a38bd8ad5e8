package types

import (
	"sync"
	"time"
)

// BytesPerPixel is the stride of one RGBA sample in Frame.Pix.
const BytesPerPixel = 4

// Frame is one RGBA image, row-major, 4 bytes per pixel.
// Frames handed out by a FramePool must be released once consumed.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Pix       []byte

	release func()
}

// Offset returns the index of the red channel of pixel (x, y).
func (f *Frame) Offset(x, y int) int {
	return BytesPerPixel * (y*f.Width + x)
}

// Release returns the pixel buffer to its pool. Safe to call more than once.
func (f *Frame) Release() {
	if f == nil || f.release == nil {
		return
	}
	release := f.release
	f.release = nil
	f.Pix = nil
	release()
}

// FramePool recycles pixel buffers of a fixed size.
type FramePool struct {
	width  int
	height int
	pool   sync.Pool
}

func NewFramePool(width, height int) *FramePool {
	size := width * height * BytesPerPixel
	return &FramePool{
		width:  width,
		height: height,
		pool: sync.Pool{
			New: func() any { return make([]byte, size) },
		},
	}
}

// Get returns a frame whose Pix may hold stale data from a previous use.
func (p *FramePool) Get() *Frame {
	buf := p.pool.Get().([]byte)
	f := &Frame{
		Width:  p.width,
		Height: p.height,
		Pix:    buf,
	}
	f.release = func() { p.pool.Put(buf) }
	return f
}

func (p *FramePool) Size() (int, int) {
	return p.width, p.height
}

// RawFrame is a decoded but not yet converted image message.
type RawFrame struct {
	FrameID   int
	Timestamp float64
	Width     int
	Height    int
	Format    string
	Pixels    any
}

// RawMessage is one message from a frame stream: an image, or metadata.
type RawMessage struct {
	Type  string
	Meta  map[string]any
	Image RawFrame
}
