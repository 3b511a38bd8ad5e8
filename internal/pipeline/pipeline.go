// Package pipeline runs the draw loop: it takes the newest frame from a
// source on every display tick, renders it through the grid and presents the
// widgets. Parameters change only through commands handled by the loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"scrollcam-go/internal/config"
	"scrollcam-go/internal/detect"
	"scrollcam-go/internal/grid"
	"scrollcam-go/internal/output"
	"scrollcam-go/internal/processing"
	"scrollcam-go/internal/surface"
	"scrollcam-go/internal/types"
)

// Source delivers frames of a fixed size. The channel is closed when the
// source ends or ctx is done. Received frames belong to the receiver.
type Source interface {
	Frames(ctx context.Context) (<-chan *types.Frame, error)
}

const commandQueue = 32

var ErrCommandQueueFull = errors.New("command queue full")

type metrics struct {
	framesIn      atomic.Uint64
	framesDropped atomic.Uint64
	renders       atomic.Uint64
	renderErrors  atomic.Uint64
	presentErrors atomic.Uint64
	renderNanos   atomic.Uint64
	commands      atomic.Uint64
	saves         atomic.Uint64
	saveErrors    atomic.Uint64
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"frames_in_total":      m.framesIn.Load(),
		"frames_dropped_total": m.framesDropped.Load(),
		"renders_total":        m.renders.Load(),
		"render_errors_total":  m.renderErrors.Load(),
		"present_errors_total": m.presentErrors.Load(),
		"render_nanos_total":   m.renderNanos.Load(),
		"commands_total":       m.commands.Load(),
		"saves_total":          m.saves.Load(),
		"save_errors_total":    m.saveErrors.Load(),
	}
}

// Runner owns the grid, the current parameters and the debug mask. Only the
// goroutine inside Run touches them; other goroutines read published copies.
type Runner struct {
	cfg     config.AppConfig
	surface surface.Surface
	grid    *grid.Grid
	agg     *processing.Aggregator

	commands chan config.Command
	metrics  metrics

	params   config.Params
	mask     *detect.Mask
	lastSeq  uint64
	rendered bool
	runTS    string

	published atomic.Pointer[config.Params]
	layout    atomic.Pointer[surface.Layout]
}

func NewRunner(cfg config.AppConfig, s surface.Surface) *Runner {
	r := &Runner{
		cfg:      cfg,
		surface:  s,
		grid:     grid.New(cfg.SampleStride, cfg.Rows, cfg.DisplaySize),
		agg:      processing.NewAggregator(),
		commands: make(chan config.Command, commandQueue),
		params:   cfg.InitialParams(),
	}
	r.publishParams()
	return r
}

// Submit queues cmd for the loop without blocking.
func (r *Runner) Submit(cmd config.Command) error {
	select {
	case r.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("%w: dropped %s", ErrCommandQueueFull, cmd)
	}
}

// Params returns the parameters as of the last handled command.
func (r *Runner) Params() config.Params {
	return *r.published.Load()
}

// Layout returns the grid layout once the first frame has been seen.
func (r *Runner) Layout() (surface.Layout, bool) {
	l := r.layout.Load()
	if l == nil {
		return surface.Layout{}, false
	}
	return *l, true
}

func (r *Runner) Coverage() processing.CoverageStats {
	return r.agg.Snapshot()
}

// Status is the payload served on /status.
func (r *Runner) Status() map[string]any {
	p := r.Params()
	status := map[string]any{
		"source":    r.cfg.Source,
		"surface":   r.cfg.Surface,
		"threshold": p.Threshold,
		"debug":     p.Debug,
		"metrics":   r.metrics.snapshot(),
		"coverage":  r.agg.Snapshot(),
	}
	if l, ok := r.Layout(); ok {
		status["grid"] = map[string]any{"rows": l.Rows, "cols": l.Cols}
	}
	return status
}

// Run consumes src until ctx is done, the source ends or a quit command
// arrives. A frame still pending when the source ends is drawn first.
func (r *Runner) Run(ctx context.Context, src Source) error {
	frames, err := src.Frames(ctx)
	if err != nil {
		return fmt.Errorf("start source: %w", err)
	}
	r.runTS = processing.Timestamp()

	ticker := time.NewTicker(r.cfg.TickInterval())
	defer ticker.Stop()

	var statsC <-chan time.Time
	if r.cfg.StatsEvery > 0 {
		stats := time.NewTicker(r.cfg.StatsEvery)
		defer stats.Stop()
		statsC = stats.C
	}

	var pending *types.Frame
	defer func() { pending.Release() }()

	sourceDone := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				frames = nil
				sourceDone = true
				log.Printf("frame source ended after %d frames", r.metrics.framesIn.Load())
				if pending == nil {
					return nil
				}
				continue
			}
			r.metrics.framesIn.Add(1)
			if pending != nil {
				pending.Release()
				r.metrics.framesDropped.Add(1)
			}
			pending = f
		case cmd := <-r.commands:
			if !r.handle(cmd) {
				return nil
			}
		case <-ticker.C:
			if pending == nil {
				continue
			}
			r.tick(pending)
			pending.Release()
			pending = nil
			if sourceDone {
				return nil
			}
		case <-statsC:
			r.logStats()
		}
	}
}

// handle applies one command. It returns false when the loop should stop.
func (r *Runner) handle(cmd config.Command) bool {
	r.metrics.commands.Add(1)
	switch cmd {
	case config.CmdQuit:
		log.Printf("quit requested")
		return false
	case config.CmdSaveRuns:
		r.saveRuns()
		return true
	}
	next := r.params.Apply(cmd)
	if next != r.params {
		r.params = next
		r.publishParams()
		log.Printf("%s: threshold=%.1f debug=%v", cmd, next.Threshold, next.Debug)
	}
	return true
}

func (r *Runner) publishParams() {
	p := r.params
	r.published.Store(&p)
}

func (r *Runner) tick(f *types.Frame) {
	if !r.grid.Ready() {
		if err := r.grid.Init(f.Width, f.Height, r.surface); err != nil {
			r.metrics.renderErrors.Add(1)
			r.logEveryN(r.metrics.renderErrors.Load(), "grid init failed: %v", err)
			return
		}
		layout := r.grid.Layout()
		r.layout.Store(&layout)
		log.Printf("grid ready: %dx%d frame, %d rows x %d cols, cell %.0fx%.1f",
			layout.FrameWidth, layout.FrameHeight, layout.Rows, layout.Cols, layout.CellWidth, layout.CellHeight)
	}

	start := time.Now()
	if err := r.grid.Render(f, r.params.Threshold); err != nil {
		r.metrics.renderErrors.Add(1)
		r.logEveryN(r.metrics.renderErrors.Load(), "render frame %d: %v", f.Seq, err)
		return
	}
	var mask *detect.Mask
	if r.params.Debug {
		r.mask = detect.SampleMask(f, r.cfg.SampleStride, r.params.Threshold, r.mask)
		mask = r.mask
	}
	r.metrics.renderNanos.Add(uint64(time.Since(start).Nanoseconds()))
	r.metrics.renders.Add(1)
	r.lastSeq = f.Seq
	r.rendered = true

	if err := r.surface.Present(surface.State{Seq: f.Seq, Params: r.params, Mask: mask}); err != nil {
		r.metrics.presentErrors.Add(1)
		r.logEveryN(r.metrics.presentErrors.Load(), "present frame %d: %v", f.Seq, err)
	}
	r.agg.AddResults(f.Seq, r.grid.Results())
}

func (r *Runner) saveRuns() {
	if !r.rendered {
		log.Printf("save requested before the first frame; nothing written")
		return
	}
	path, err := output.WriteRuns(r.cfg.OutputDir, r.runTS, r.lastSeq, r.grid.Layout(), r.params.Threshold, r.grid.Results())
	if err != nil {
		r.metrics.saveErrors.Add(1)
		log.Printf("save runs failed: %v", err)
		return
	}
	r.metrics.saves.Add(1)
	log.Printf("saved runs for frame %d to %s", r.lastSeq, path)
}

func (r *Runner) logStats() {
	m := r.metrics.snapshot()
	cov := r.agg.Snapshot()
	renders := r.metrics.renders.Load()
	avg := time.Duration(0)
	if renders > 0 {
		avg = time.Duration(r.metrics.renderNanos.Load() / renders)
	}
	log.Printf("loop stats: frames=%v dropped=%v renders=%v errors=%v avg_render=%s segments=%d/%d",
		m["frames_in_total"], m["frames_dropped_total"], renders, m["render_errors_total"], avg, cov.Segments, cov.Cells)
}

func (r *Runner) logEveryN(count uint64, format string, args ...any) {
	every := uint64(r.cfg.IngestLogEvery)
	if every <= 1 || count == 1 || count%every == 0 {
		log.Printf(format, args...)
	}
}
