package subtitle

import (
	"slices"
	"time"
)

// Merge combines two tracks into one timeline. At every instant the merged
// cue shows the active upper lines followed by the active lower lines.
//
// When a track has overlapping cues, the first cue in document order that
// covers an interval wins and later ones are shadowed. When both active cues
// carry identical lines they are shown once.
func Merge(upper, lower Document) Document {
	boundaries := collectBoundaries(upper, lower)
	if len(boundaries) < 2 {
		return Document{Cues: []Cue{}}
	}

	upperTrack := newTrackCursor(upper.Cues)
	lowerTrack := newTrackCursor(lower.Cues)

	ret := make([]Cue, 0, len(upper.Cues)+len(lower.Cues))
	for i := 0; i+1 < len(boundaries); i++ {
		t0, t1 := boundaries[i], boundaries[i+1]

		upperCue := upperTrack.activeAt(t0)
		lowerCue := lowerTrack.activeAt(t0)
		if upperCue == nil && lowerCue == nil {
			continue
		}

		lines := combineLines(upperCue, lowerCue)
		if n := len(ret); n > 0 && ret[n-1].End == t0 && slices.Equal(ret[n-1].Lines, lines) {
			ret[n-1].End = t1
			continue
		}
		ret = append(ret, Cue{Start: t0, End: t1, Lines: lines})
	}

	return Document{Cues: ret}
}

// IsDuplicate reports whether merged is structurally equal to any candidate.
func IsDuplicate(merged Document, candidates ...Document) bool {
	for _, candidate := range candidates {
		if Equal(merged, candidate) {
			return true
		}
	}
	return false
}

func collectBoundaries(docs ...Document) []time.Duration {
	seen := make(map[time.Duration]struct{})
	ret := make([]time.Duration, 0)
	for _, doc := range docs {
		for _, cue := range doc.Cues {
			for _, point := range [2]time.Duration{cue.Start, cue.End} {
				if _, ok := seen[point]; ok {
					continue
				}
				seen[point] = struct{}{}
				ret = append(ret, point)
			}
		}
	}
	slices.Sort(ret)
	return ret
}

func combineLines(upper, lower *Cue) []string {
	switch {
	case upper == nil:
		return append([]string(nil), lower.Lines...)
	case lower == nil:
		return append([]string(nil), upper.Lines...)
	case slices.Equal(upper.Lines, lower.Lines):
		return append([]string(nil), upper.Lines...)
	}

	ret := make([]string, 0, len(upper.Lines)+len(lower.Lines))
	ret = append(ret, upper.Lines...)
	return append(ret, lower.Lines...)
}

// trackCursor walks one track's cues in start order while the sweep advances.
// open holds indices of cues that started and have not ended yet, in
// document order.
type trackCursor struct {
	cues []Cue
	next int
	open []int
}

func newTrackCursor(cues []Cue) *trackCursor {
	return &trackCursor{cues: cues}
}

// activeAt returns the first cue in document order covering the interval
// that starts at t. Calls must use non-decreasing t.
func (c *trackCursor) activeAt(t time.Duration) *Cue {
	for c.next < len(c.cues) && c.cues[c.next].Start <= t {
		c.open = append(c.open, c.next)
		c.next++
	}

	kept := c.open[:0]
	for _, idx := range c.open {
		if c.cues[idx].End > t {
			kept = append(kept, idx)
		}
	}
	c.open = kept

	if len(c.open) == 0 {
		return nil
	}
	return &c.cues[c.open[0]]
}
