package config

// Params are the values that may change while the loop runs.
// They are passed by value: input handlers never mutate the loop's copy.
type Params struct {
	Threshold float64
	Debug     bool
}

func DefaultParams() Params {
	return Params{Threshold: DefaultThreshold}
}

// Command is a request produced by an input handler (keyboard, websocket).
type Command int

const (
	CmdNone Command = iota
	CmdThresholdUp
	CmdThresholdDown
	CmdToggleDebug
	CmdSaveRuns
	CmdQuit
)

func (c Command) String() string {
	switch c {
	case CmdThresholdUp:
		return "threshold_up"
	case CmdThresholdDown:
		return "threshold_down"
	case CmdToggleDebug:
		return "toggle_debug"
	case CmdSaveRuns:
		return "save_request"
	case CmdQuit:
		return "quit"
	default:
		return "none"
	}
}

// ParseCommand maps a websocket request type to a Command.
func ParseCommand(name string) (Command, bool) {
	switch name {
	case "threshold_up":
		return CmdThresholdUp, true
	case "threshold_down":
		return CmdThresholdDown, true
	case "toggle_debug":
		return CmdToggleDebug, true
	case "save_request":
		return CmdSaveRuns, true
	default:
		return CmdNone, false
	}
}

// Apply returns the parameters after cmd. Commands that do not touch
// parameters return p unchanged.
func (p Params) Apply(cmd Command) Params {
	switch cmd {
	case CmdThresholdUp:
		p.Threshold = ClampThreshold(p.Threshold + ThresholdStep)
	case CmdThresholdDown:
		p.Threshold = ClampThreshold(p.Threshold - ThresholdStep)
	case CmdToggleDebug:
		p.Debug = !p.Debug
	}
	return p
}

func ClampThreshold(v float64) float64 {
	if v < MinThreshold {
		return MinThreshold
	}
	if v > MaxThreshold {
		return MaxThreshold
	}
	return v
}
