package config

import (
	"errors"
	"testing"
)

func validConfig() AppConfig {
	return AppConfig{
		Surface:      "web",
		Source:       "sim",
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		FPS:          DefaultFPS,
		SampleStride: DefaultSampleStride,
		Rows:         DefaultRows,
		DisplaySize:  DefaultDisplaySize,
		Threshold:    DefaultThreshold,
	}
}

func TestParamsApplyThresholdClamps(t *testing.T) {
	p := DefaultParams()
	for i := 0; i < 20; i++ {
		p = p.Apply(CmdThresholdUp)
	}
	if p.Threshold != MaxThreshold {
		t.Fatalf("threshold after many ups: got %v want %v", p.Threshold, MaxThreshold)
	}
	for i := 0; i < 40; i++ {
		p = p.Apply(CmdThresholdDown)
	}
	if p.Threshold != MinThreshold {
		t.Fatalf("threshold after many downs: got %v want %v", p.Threshold, MinThreshold)
	}
}

func TestParamsApplyStep(t *testing.T) {
	p := DefaultParams().Apply(CmdThresholdDown)
	if p.Threshold != 117.5 {
		t.Fatalf("unexpected threshold: %v", p.Threshold)
	}
}

func TestParamsApplyDoesNotMutateReceiver(t *testing.T) {
	p := DefaultParams()
	next := p.Apply(CmdToggleDebug)
	if p.Debug {
		t.Fatalf("receiver was mutated")
	}
	if !next.Debug {
		t.Fatalf("debug not toggled")
	}
	if next.Apply(CmdToggleDebug).Debug {
		t.Fatalf("debug not toggled back")
	}
	if got := p.Apply(CmdSaveRuns); got != p {
		t.Fatalf("save changed params: %+v", got)
	}
}

func TestParseCommand(t *testing.T) {
	for _, cmd := range []Command{CmdThresholdUp, CmdThresholdDown, CmdToggleDebug, CmdSaveRuns} {
		got, ok := ParseCommand(cmd.String())
		if !ok || got != cmd {
			t.Fatalf("ParseCommand(%q) = %v, %v", cmd.String(), got, ok)
		}
	}
	if _, ok := ParseCommand("quit"); ok {
		t.Fatalf("quit must not be accepted from clients")
	}
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg.Surface = "gtk"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidSurface) {
		t.Fatalf("expected ErrInvalidSurface, got %v", err)
	}

	cfg = validConfig()
	cfg.Source = "replay"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("replay without path accepted")
	}

	cfg = validConfig()
	cfg.SampleStride = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero stride accepted")
	}
}

func TestInitialParamsClampsThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Threshold = 400
	if got := cfg.InitialParams().Threshold; got != MaxThreshold {
		t.Fatalf("unexpected threshold: %v", got)
	}
	if got := cfg.DisplayScale(); got != 1.5 {
		t.Fatalf("unexpected display scale: %v", got)
	}
}
