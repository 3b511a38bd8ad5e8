package thumb

import "scrollcam-go/internal/detect"

type SegmentKind int

const (
	NoSegment SegmentKind = iota
	PartialSegment
	FullSegment
)

func (k SegmentKind) String() string {
	switch k {
	case PartialSegment:
		return "partial"
	case FullSegment:
		return "full"
	default:
		return "none"
	}
}

// Segment is a detection result with the two degenerate cases spelled out.
// Offset and Size are only meaningful for PartialSegment; a FullSegment
// always has Offset 0 and Size 1.
type Segment struct {
	Kind   SegmentKind
	Offset float64
	Size   float64
}

// Classify normalizes run and tags it.
func Classify(run detect.DarkRun, windowStart, windowHeight int) Segment {
	f := Normalize(run, windowStart, windowHeight)
	switch {
	case f.Size <= 0:
		return Segment{Kind: NoSegment}
	case f.Size >= 1:
		return Segment{Kind: FullSegment, Size: 1}
	default:
		return Segment{Kind: PartialSegment, Offset: f.Offset, Size: f.Size}
	}
}

// Encoding chooses how a segment is drawn.
type Encoding interface {
	Encode(s Segment) Fraction
}

// ScrollbarEncoding draws segments with plain scroll widgets: a full segment
// becomes a thumb of FullSize, no segment becomes a track with no thumb.
type ScrollbarEncoding struct{}

func (ScrollbarEncoding) Encode(s Segment) Fraction {
	switch s.Kind {
	case NoSegment:
		return Fraction{Size: NoneSize}
	case FullSegment:
		return Fraction{Size: FullSize}
	default:
		return Fraction{Offset: s.Offset, Size: s.Size}
	}
}
