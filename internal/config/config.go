package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultThreshold    = 255.0 / 2
	DefaultSampleStride = 8
	DefaultRows         = 6
	DefaultDisplaySize  = 12
	DefaultWidth        = 640
	DefaultHeight       = 480
	DefaultFPS          = 30

	ThresholdStep = 10.0
	MinThreshold  = 0.0
	MaxThreshold  = 255.0
)

type AppConfig struct {
	Port    int
	Surface string
	Source  string

	Endpoint       string
	ReplayPath     string
	InputPath      string
	InputFormat    string
	CameraDevice   string
	Width          int
	Height         int
	FPS            float64
	IngestLogEvery int
	IngestFallback bool

	SampleStride int
	Rows         int
	DisplaySize  int
	Threshold    float64
	Debug        bool

	RawLogEnabled bool
	RawLogDir     string
	OutputDir     string
	LogFile       string
	StatsEvery    time.Duration
}

var (
	ErrInvalidSurface = errors.New("surface must be one of web, term, both")
	ErrInvalidSource  = errors.New("source must be one of sim, zmq, replay, ffmpeg, camera")
)

// Validate checks the settings that cannot be fixed up silently.
func (c AppConfig) Validate() error {
	switch c.Surface {
	case "web", "term", "both":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSurface, c.Surface)
	}
	switch c.Source {
	case "sim", "zmq", "camera":
	case "replay":
		if c.ReplayPath == "" {
			return errors.New("source replay requires -replay")
		}
	case "ffmpeg":
		if c.InputPath == "" {
			return errors.New("source ffmpeg requires -input")
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSource, c.Source)
	}
	if c.SampleStride < 1 {
		return fmt.Errorf("sample stride must be positive, got %d", c.SampleStride)
	}
	if c.Rows < 1 {
		return fmt.Errorf("rows must be positive, got %d", c.Rows)
	}
	if c.DisplaySize < 1 {
		return fmt.Errorf("display size must be positive, got %d", c.DisplaySize)
	}
	if c.Width < 1 || c.Height < 1 {
		return fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", c.FPS)
	}
	return nil
}

// DisplayScale converts frame pixels to display pixels.
func (c AppConfig) DisplayScale() float64 {
	return float64(c.DisplaySize) / float64(c.SampleStride)
}

// TickInterval is the period of the draw loop.
func (c AppConfig) TickInterval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / DefaultFPS
	}
	return time.Duration(float64(time.Second) / c.FPS)
}

// InitialParams seeds the runtime parameters from the startup flags.
func (c AppConfig) InitialParams() Params {
	return Params{
		Threshold: ClampThreshold(c.Threshold),
		Debug:     c.Debug,
	}
}
