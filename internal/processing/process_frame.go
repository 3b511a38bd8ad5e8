package processing

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"scrollcam-go/internal/types"
)

// Pixel formats accepted in RawFrame.Format.
const (
	FormatRGBA = "rgba"
	FormatRGB  = "rgb"
	FormatGray = "gray"
)

// ProcessRawFrame converts a decoded image message into an RGBA frame taken
// from pool. The pool's dimensions must match the message.
func ProcessRawFrame(raw types.RawFrame, pool *types.FramePool) (*types.Frame, error) {
	width, height := pool.Size()
	if raw.Width != width || raw.Height != height {
		return nil, fmt.Errorf("frame %d is %dx%d, pool holds %dx%d", raw.FrameID, raw.Width, raw.Height, width, height)
	}

	samples, err := flattenSamples(raw.Pixels)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", raw.FrameID, err)
	}

	channels, err := channelCount(raw.Format, len(samples), width*height)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", raw.FrameID, err)
	}

	f := pool.Get()
	f.Seq = uint64(raw.FrameID)
	f.Timestamp = timestampOf(raw.Timestamp)
	expand(f.Pix, samples, channels)
	return f, nil
}

func channelCount(format string, samples, pixels int) (int, error) {
	want := 0
	switch format {
	case FormatRGBA:
		want = 4
	case FormatRGB:
		want = 3
	case FormatGray:
		want = 1
	case "":
		if pixels > 0 && samples%pixels == 0 {
			want = samples / pixels
		}
	default:
		return 0, fmt.Errorf("unsupported pixel format %q", format)
	}
	if want < 1 || want > 4 || samples != want*pixels {
		return 0, fmt.Errorf("got %d samples for %d pixels (format %q)", samples, pixels, format)
	}
	return want, nil
}

func expand(dst, src []uint8, channels int) {
	switch channels {
	case 4:
		copy(dst, src)
	case 3:
		for i, j := 0, 0; j+2 < len(src); i, j = i+4, j+3 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[j], src[j+1], src[j+2], 255
		}
	case 2:
		// gray + alpha
		for i, j := 0, 0; j+1 < len(src); i, j = i+4, j+2 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[j], src[j], src[j], src[j+1]
		}
	default:
		for i, j := 0, 0; j < len(src); i, j = i+4, j+1 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[j], src[j], src[j], 255
		}
	}
}

func timestampOf(seconds float64) time.Time {
	if seconds <= 0 {
		return time.Now()
	}
	sec, frac := math.Modf(seconds)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// flattenSamples accepts the payload shapes the ingest decoder produces and
// returns 8-bit samples. Wider integer types are scaled down, floats are
// taken as 0..1.
func flattenSamples(payload any) ([]uint8, error) {
	switch v := payload.(type) {
	case []uint8:
		return v, nil
	case [][]uint8:
		return flattenUint8(v), nil
	case [][][]uint8:
		out := make([]uint8, 0)
		for _, plane := range v {
			out = append(out, flattenUint8(plane)...)
		}
		return out, nil
	case []uint16:
		return scaleUint16(v), nil
	case [][]uint16:
		return scaleUint16(flattenUint16(v)), nil
	case []uint32:
		return scaleUint32(v), nil
	case [][]uint32:
		return scaleUint32(flattenUint32(v)), nil
	case []float32:
		return scaleFloat32(v), nil
	case [][]float32:
		return scaleFloat32(flattenFloat32(v)), nil
	case []any:
		return samplesFromAny(v)
	case nil:
		return nil, fmt.Errorf("missing pixel payload")
	default:
		rv := reflect.ValueOf(payload)
		if rv.Kind() == reflect.Slice {
			return samplesFromAny(sliceToAny(rv))
		}
		return nil, fmt.Errorf("unsupported pixel payload %T", payload)
	}
}

func samplesFromAny(values []any) ([]uint8, error) {
	out := make([]uint8, 0, len(values))
	for _, v := range values {
		switch n := v.(type) {
		case uint64:
			out = append(out, clampByte(float64(n)))
		case int64:
			out = append(out, clampByte(float64(n)))
		case int:
			out = append(out, clampByte(float64(n)))
		case uint8:
			out = append(out, n)
		case float64:
			out = append(out, clampByte(n))
		case []any:
			nested, err := samplesFromAny(n)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		default:
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Slice {
				return nil, fmt.Errorf("unsupported sample type %T", v)
			}
			nested, err := samplesFromAny(sliceToAny(rv))
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
	}
	return out, nil
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(v)
}

func scaleUint16(values []uint16) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		out[i] = uint8(v >> 8)
	}
	return out
}

func scaleUint32(values []uint32) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		out[i] = uint8(v >> 24)
	}
	return out
}

func scaleFloat32(values []float32) []uint8 {
	out := make([]uint8, len(values))
	for i, v := range values {
		out[i] = clampByte(float64(v) * math.MaxUint8)
	}
	return out
}

func flattenUint8(values [][]uint8) []uint8 {
	flat := make([]uint8, 0)
	for _, row := range values {
		flat = append(flat, row...)
	}
	return flat
}

func flattenUint16(values [][]uint16) []uint16 {
	flat := make([]uint16, 0)
	for _, row := range values {
		flat = append(flat, row...)
	}
	return flat
}

func flattenUint32(values [][]uint32) []uint32 {
	flat := make([]uint32, 0)
	for _, row := range values {
		flat = append(flat, row...)
	}
	return flat
}

func flattenFloat32(values [][]float32) []float32 {
	flat := make([]float32, 0)
	for _, row := range values {
		flat = append(flat, row...)
	}
	return flat
}

func sliceToAny(rv reflect.Value) []any {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
