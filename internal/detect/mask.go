package detect

import "scrollcam-go/internal/types"

// Mask is the dark/light classification of every sample point of a frame,
// row-major over the sample lattice.
type Mask struct {
	Cols int
	Rows int
	Dark []bool
}

func (m *Mask) At(col, row int) bool {
	if col < 0 || col >= m.Cols || row < 0 || row >= m.Rows {
		return false
	}
	return m.Dark[row*m.Cols+col]
}

// Count returns the number of dark samples.
func (m *Mask) Count() int {
	n := 0
	for _, d := range m.Dark {
		if d {
			n++
		}
	}
	return n
}

// Bits encodes the mask as '1'/'0' bytes for the web overlay.
func (m *Mask) Bits() string {
	buf := make([]byte, len(m.Dark))
	for i, d := range m.Dark {
		if d {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

// SampleMask fills dst with the classification of f sampled every stride
// pixels in both directions. dst is reused when it has the right shape.
func SampleMask(f *types.Frame, stride int, threshold float64, dst *Mask) *Mask {
	if stride < 1 {
		stride = 1
	}
	cols := (f.Width + stride - 1) / stride
	rows := (f.Height + stride - 1) / stride
	if dst == nil {
		dst = &Mask{}
	}
	if dst.Cols != cols || dst.Rows != rows || len(dst.Dark) != cols*rows {
		dst.Cols = cols
		dst.Rows = rows
		dst.Dark = make([]bool, cols*rows)
	}
	if len(f.Pix) < f.Width*f.Height*types.BytesPerPixel {
		for i := range dst.Dark {
			dst.Dark[i] = false
		}
		return dst
	}
	for row := 0; row < rows; row++ {
		y := row * stride
		for col := 0; col < cols; col++ {
			dst.Dark[row*cols+col] = IsDark(f, col*stride, y, threshold)
		}
	}
	return dst
}
