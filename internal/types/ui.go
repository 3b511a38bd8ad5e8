package types

type GridMessage struct {
	Type         string  `json:"type"`
	Rows         int     `json:"rows"`
	Cols         int     `json:"cols"`
	CellWidth    float64 `json:"cell_width"`
	CellHeight   float64 `json:"cell_height"`
	FrameWidth   int     `json:"frame_width"`
	FrameHeight  int     `json:"frame_height"`
	SampleStride int     `json:"sample_stride"`
}

// MaskPayload carries the debug overlay: one byte per sample point,
// '1' for dark, '0' for light, row-major.
type MaskPayload struct {
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
	Bits string `json:"bits"`
}

type WidgetFrame struct {
	Type      string       `json:"type"`
	Seq       uint64       `json:"seq"`
	Content   []float64    `json:"content"`
	Scroll    []float64    `json:"scroll"`
	Threshold float64      `json:"threshold"`
	Debug     bool         `json:"debug"`
	Mask      *MaskPayload `json:"mask,omitempty"`
}
