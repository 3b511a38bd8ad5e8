package server

import (
	"sync"
	"sync/atomic"

	"scrollcam-go/internal/surface"
	"scrollcam-go/internal/types"
)

// WebSurface keeps widget geometry in a surface.Table and turns every
// Build and Present into a message for the websocket broadcaster.
type WebSurface struct {
	table    *surface.Table
	messages chan any

	mu     sync.Mutex
	grid   *types.GridMessage
	latest *types.WidgetFrame

	dropped atomic.Uint64
}

func NewWebSurface(buffer int) *WebSurface {
	if buffer < 1 {
		buffer = 1
	}
	return &WebSurface{
		table:    surface.NewTable(),
		messages: make(chan any, buffer),
	}
}

// Messages is the stream to hand to Server.Run.
func (w *WebSurface) Messages() <-chan any {
	return w.messages
}

func (w *WebSurface) Table() *surface.Table {
	return w.table
}

func (w *WebSurface) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *WebSurface) Build(layout surface.Layout) error {
	if err := w.table.Build(layout); err != nil {
		return err
	}
	msg := &types.GridMessage{
		Type:         "grid",
		Rows:         layout.Rows,
		Cols:         layout.Cols,
		CellWidth:    layout.CellWidth,
		CellHeight:   layout.CellHeight,
		FrameWidth:   layout.FrameWidth,
		FrameHeight:  layout.FrameHeight,
		SampleStride: layout.SampleStride,
	}
	w.mu.Lock()
	w.grid = msg
	w.mu.Unlock()
	w.offer(*msg)
	return nil
}

func (w *WebSurface) CreateWidget(cell surface.Cell, rect surface.Rect) surface.Widget {
	return w.table.CreateWidget(cell, rect)
}

func (w *WebSurface) Present(state surface.State) error {
	if err := w.table.Present(state); err != nil {
		return err
	}
	content, scroll := w.table.CopyInto(nil, nil)
	frame := &types.WidgetFrame{
		Type:      "frame",
		Seq:       state.Seq,
		Content:   content,
		Scroll:    scroll,
		Threshold: state.Params.Threshold,
		Debug:     state.Params.Debug,
	}
	if state.Params.Debug && state.Mask != nil {
		frame.Mask = &types.MaskPayload{
			Cols: state.Mask.Cols,
			Rows: state.Mask.Rows,
			Bits: state.Mask.Bits(),
		}
	}
	w.mu.Lock()
	w.latest = frame
	w.mu.Unlock()
	w.offer(*frame)
	return nil
}

// offer queues msg, evicting the oldest queued message when clients lag.
func (w *WebSurface) offer(msg any) {
	for {
		select {
		case w.messages <- msg:
			return
		default:
		}
		select {
		case <-w.messages:
			w.dropped.Add(1)
		default:
		}
	}
}

// Grid returns the last grid message, if the grid has been built.
func (w *WebSurface) Grid() (types.GridMessage, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.grid == nil {
		return types.GridMessage{}, false
	}
	return *w.grid, true
}

// Snapshot returns the latest frame message or nil.
func (w *WebSurface) Snapshot() any {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.latest == nil {
		return nil
	}
	return *w.latest
}
