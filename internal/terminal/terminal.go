// Package terminal draws the widget grid as text scrollbars on a tcell
// screen and turns key presses into commands.
package terminal

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mattn/go-runewidth"

	"scrollcam-go/internal/config"
	"scrollcam-go/internal/surface"
)

const (
	trackRune = '░'
	thumbRune = '█'
)

type palette struct {
	track   tcell.Style
	thumb   tcell.Style
	overlay colorful.Color
	status  tcell.Style
}

func toTcell(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

func newPalette() palette {
	track, _ := colorful.Hex("#8a8a8a")
	thumb, _ := colorful.Hex("#f0f0f0")
	overlay, _ := colorful.Hex("#e03030")
	bg, _ := colorful.Hex("#1c1c1c")
	return palette{
		track:   tcell.StyleDefault.Foreground(toTcell(track)).Background(toTcell(bg)),
		thumb:   tcell.StyleDefault.Foreground(toTcell(thumb)).Background(toTcell(bg)),
		overlay: overlay,
		status:  tcell.StyleDefault.Foreground(toTcell(bg)).Background(toTcell(thumb)),
	}
}

// tint blends the foreground of s toward the overlay color.
func (p palette) tint(s tcell.Style) tcell.Style {
	fg, _, _ := s.Decompose()
	r, g, b := fg.RGB()
	base := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	return s.Foreground(toTcell(base.BlendLab(p.overlay, 0.6)))
}

type widget struct {
	track   float64
	content float64
	scroll  float64
}

func (w *widget) SetContentSize(_, h float64) {
	w.content = h
}

func (w *widget) SetScrollOffset(px float64) {
	w.scroll = px
}

// Thumb returns the thumb start and length on a track of n cells, the way a
// browser sizes a scrollbar thumb. ok is false when nothing overflows.
func Thumb(track, content, scroll float64, n int) (start, length int, ok bool) {
	if n < 1 || track <= 0 || content <= track {
		return 0, 0, false
	}
	length = int(math.Round(float64(n) * track / content))
	if length < 1 {
		length = 1
	}
	if length > n {
		length = n
	}
	start = int(math.Round(float64(n) * scroll / content))
	if start < 0 {
		start = 0
	}
	if start+length > n {
		start = n - length
	}
	return start, length, true
}

// Surface renders one text column per visible grid column. The last screen
// line is a status bar.
type Surface struct {
	screen  tcell.Screen
	colors  palette
	layout  surface.Layout
	widgets []*widget

	closeOnce sync.Once
}

// Open initializes the controlling terminal.
func Open() (*Surface, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("terminal screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("terminal init: %w", err)
	}
	return New(screen), nil
}

// New wraps an initialized screen.
func New(screen tcell.Screen) *Surface {
	s := &Surface{screen: screen, colors: newPalette()}
	screen.SetStyle(tcell.StyleDefault)
	screen.HideCursor()
	screen.Clear()
	return s
}

// Close restores the terminal. Safe to call more than once.
func (s *Surface) Close() {
	s.closeOnce.Do(s.screen.Fini)
}

func (s *Surface) Build(layout surface.Layout) error {
	if layout.Rows < 1 || layout.Cols < 1 {
		return fmt.Errorf("terminal: empty layout %dx%d", layout.Rows, layout.Cols)
	}
	s.layout = layout
	s.widgets = make([]*widget, layout.Cells())
	return nil
}

func (s *Surface) CreateWidget(cell surface.Cell, rect surface.Rect) surface.Widget {
	w := &widget{track: rect.H, content: rect.H}
	s.widgets[cell.Index] = w
	return w
}

func (s *Surface) Present(state surface.State) error {
	width, height := s.screen.Size()
	s.screen.Clear()
	if width < 1 || height < 2 || s.widgets == nil {
		s.drawStatus(state, width, height)
		s.screen.Show()
		return nil
	}

	rows := s.layout.Rows
	cols := s.layout.Cols
	gridLines := height - 1
	perRow := gridLines / rows
	if perRow < 1 {
		perRow = 1
	}
	visible := cols
	if visible > width {
		visible = width
	}

	mask := state.Mask
	if !state.Params.Debug {
		mask = nil
	}

	for r := 0; r < rows; r++ {
		top := r * perRow
		if top >= gridLines {
			break
		}
		n := perRow
		if top+n > gridLines {
			n = gridLines - top
		}
		for x := 0; x < visible; x++ {
			c := x * cols / visible
			w := s.widgets[r*cols+c]
			if w == nil {
				continue
			}
			start, length, ok := Thumb(w.track, w.content, w.scroll, n)
			for i := 0; i < n; i++ {
				ch, style := trackRune, s.colors.track
				if ok && i >= start && i < start+length {
					ch, style = thumbRune, s.colors.thumb
				}
				if mask != nil && s.maskDark(mask.At, mask.Rows, c, r, i, n) {
					style = s.colors.tint(style)
				}
				s.screen.SetContent(x, top+i, ch, nil, style)
			}
		}
	}
	s.drawStatus(state, width, height)
	s.screen.Show()
	return nil
}

// maskDark reports whether the sample under text line i of n in grid row r
// is dark.
func (s *Surface) maskDark(at func(col, row int) bool, maskRows, col, r, i, n int) bool {
	stride := s.layout.SampleStride
	if stride < 1 || s.layout.FrameHeight < 1 {
		return false
	}
	y0 := r * s.layout.FrameHeight / s.layout.Rows
	y1 := (r + 1) * s.layout.FrameHeight / s.layout.Rows
	y := y0 + (y1-y0)*i/n
	row := y / stride
	if row >= maskRows {
		row = maskRows - 1
	}
	return at(col, row)
}

func (s *Surface) drawStatus(state surface.State, width, height int) {
	if width < 1 || height < 1 {
		return
	}
	debug := "off"
	if state.Params.Debug {
		debug = "on"
	}
	text := fmt.Sprintf(" scrollcam  frame %d  threshold %.1f  debug %s  %dx%d cells  [↑↓ threshold  d debug  s save  q quit]",
		state.Seq, state.Params.Threshold, debug, s.layout.Cols, s.layout.Rows)
	text = runewidth.Truncate(text, width, "…")

	y := height - 1
	x := 0
	for _, ch := range text {
		s.screen.SetContent(x, y, ch, nil, s.colors.status)
		x += runewidth.RuneWidth(ch)
	}
	for ; x < width; x++ {
		s.screen.SetContent(x, y, ' ', nil, s.colors.status)
	}
}

// KeyCommand maps a key press to a command.
func KeyCommand(ev *tcell.EventKey) (config.Command, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return config.CmdThresholdUp, true
	case tcell.KeyDown:
		return config.CmdThresholdDown, true
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return config.CmdQuit, true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'd', 'D':
			return config.CmdToggleDebug, true
		case 's', 'S':
			return config.CmdSaveRuns, true
		case 'q', 'Q':
			return config.CmdQuit, true
		}
	}
	return config.CmdNone, false
}

// Input polls screen events until ctx is done or the screen is closed and
// passes recognized commands to submit.
func (s *Surface) Input(ctx context.Context, submit func(config.Command) error) {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go s.screen.ChannelEvents(events, quit)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				s.screen.Sync()
			case *tcell.EventKey:
				cmd, ok := KeyCommand(ev)
				if !ok {
					continue
				}
				if cmd == config.CmdQuit {
					submitQuit(ctx, submit)
					return
				}
				if err := submit(cmd); err != nil {
					log.Printf("key %s dropped: %v", cmd, err)
				}
			}
		}
	}
}

// quitRetry is how often a rejected quit is resubmitted.
const quitRetry = 20 * time.Millisecond

// submitQuit keeps offering quit until it is accepted or ctx ends; in raw
// mode the key is the only way out.
func submitQuit(ctx context.Context, submit func(config.Command) error) {
	for {
		err := submit(config.CmdQuit)
		if err == nil {
			return
		}
		log.Printf("quit not accepted, retrying: %v", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(quitRetry):
		}
	}
}
