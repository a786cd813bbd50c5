package frames

import (
	"fmt"
	"math"
	"strings"
)

// DefaultExt is the file extension of exported frames.
const DefaultExt = "jpg"

// FormatIndex pads a frame number to four digits (7 -> "0007").
func FormatIndex(n int) string {
	return fmt.Sprintf("%04d", n)
}

// Generate returns the ordered asset identifiers of an animation:
// "{name}/{pad4(start+i)}.{ext}" for i in [0, count).
func Generate(name string, count, start int, ext string) []string {
	if count <= 0 {
		return []string{}
	}
	if ext == "" {
		ext = DefaultExt
	}
	name = strings.Trim(name, "/")

	ids := make([]string, count)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s/%s.%s", name, FormatIndex(start+i), ext)
	}
	return ids
}

// FrameIndex maps scroll progress to a frame index: clamp(floor(progress*n), 0, n-1).
func FrameIndex(progress float64, n int) int {
	if n <= 0 || math.IsNaN(progress) {
		return 0
	}
	idx := int(math.Floor(progress * float64(n)))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// Sequence describes one named animation.
type Sequence struct {
	Name  string
	Count int
	Start int
	Ext   string
}

// URLs generates every identifier of the sequence.
func (s Sequence) URLs() []string {
	return Generate(s.Name, s.Count, s.Start, s.Ext)
}

// URL returns the identifier of frame i, or "" when i is out of range.
func (s Sequence) URL(i int) string {
	if i < 0 || i >= s.Count {
		return ""
	}
	ext := s.Ext
	if ext == "" {
		ext = DefaultExt
	}
	return fmt.Sprintf("%s/%s.%s", strings.Trim(s.Name, "/"), FormatIndex(s.Start+i), ext)
}

// Index maps progress onto this sequence.
func (s Sequence) Index(progress float64) int {
	return FrameIndex(progress, s.Count)
}
