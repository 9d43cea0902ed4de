package subtitle

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// Cue is one displayed subtitle unit.
// Start and End are whole milliseconds and Start < End holds for every cue of a Document.
type Cue struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Lines []string      `json:"lines"`
}

// Document is an ordered sequence of cues sorted ascending by start.
// Operations on a Document never modify it; they return new values instead.
type Document struct {
	Cues []Cue `json:"cues"`
}

// NewDocument builds a Document from arbitrary cues. Times are truncated to
// whole milliseconds and negative starts are clamped to zero. Lines are split
// at line breaks and blank lines are removed. Cues left with a non-positive
// duration or without lines are dropped, the rest are sorted by start.
func NewDocument(cues []Cue) Document {
	ret := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		start := max(cue.Start.Truncate(time.Millisecond), 0)
		end := cue.End.Truncate(time.Millisecond)
		if end <= start {
			continue
		}
		lines := textLines(cue.Lines)
		if len(lines) == 0 {
			continue
		}
		ret = append(ret, Cue{Start: start, End: end, Lines: lines})
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Start < ret[j].Start
	})
	return Document{Cues: ret}
}

// textLines returns the lines Write can render without breaking the block
// grammar: one entry per physical line, none of them blank.
func textLines(lines []string) []string {
	ret := make([]string, 0, len(lines))
	for _, line := range lines {
		for _, part := range strings.Split(normalizeLineEndings(line), "\n") {
			if isBlank(part) {
				continue
			}
			ret = append(ret, part)
		}
	}
	return ret
}

// Len returns the number of cues.
func (d Document) Len() int {
	return len(d.Cues)
}

// IsEmpty reports whether the document has no cues.
func (d Document) IsEmpty() bool {
	return len(d.Cues) == 0
}

// Duration returns the end of the last-ending cue.
func (d Document) Duration() time.Duration {
	var ret time.Duration
	for _, cue := range d.Cues {
		if cue.End > ret {
			ret = cue.End
		}
	}
	return ret
}

// Size returns the byte size of the document in its written form.
func (d Document) Size() int {
	return len(Write(d, false))
}

// Shift returns a copy of the document with every cue moved by offset.
// Cues that end at or before zero are dropped and starts are clamped to zero.
func (d Document) Shift(offset time.Duration) Document {
	cues := make([]Cue, 0, len(d.Cues))
	for _, cue := range d.Cues {
		shifted := cloneCue(cue)
		shifted.Start += offset
		shifted.End += offset
		if shifted.End <= 0 {
			continue
		}
		if shifted.Start < 0 {
			shifted.Start = 0
		}
		cues = append(cues, shifted)
	}
	return NewDocument(cues)
}

// Equal reports whether both documents have the same ordered sequence of
// (start, end, lines). Lines are compared byte for byte.
func Equal(a, b Document) bool {
	if len(a.Cues) != len(b.Cues) {
		return false
	}
	for i := range a.Cues {
		if !cuesEqual(a.Cues[i], b.Cues[i]) {
			return false
		}
	}
	return true
}

// DocumentsEqual is an alias of Equal kept for callers that compare whole tracks.
func DocumentsEqual(a, b Document) bool {
	return Equal(a, b)
}

func cuesEqual(a, b Cue) bool {
	return a.Start == b.Start && a.End == b.End && slices.Equal(a.Lines, b.Lines)
}

func cloneCue(cue Cue) Cue {
	return Cue{
		Start: cue.Start,
		End:   cue.End,
		Lines: append([]string(nil), cue.Lines...),
	}
}
