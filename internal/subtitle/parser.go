package subtitle

import (
	"bytes"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dimchansky/utfbom"
)

// SRT timing line: 00:02:16,612 --> 00:02:19,376
// Hours have unbounded width, everything else is fixed.
var timingPattern = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2}),(\d{3}) --> (\d+):(\d{2}):(\d{2}),(\d{3})$`)

// largest hour value that still fits into time.Duration
var maxHours = int64(math.MaxInt64 / int64(time.Hour))

type block struct {
	number    int
	firstLine int
	lines     []string
}

// ParseBytes parses raw UTF-8 subtitle data, skipping a byte order mark if present.
func ParseBytes(raw []byte) (Document, error) {
	data, err := io.ReadAll(utfbom.SkipOnly(bytes.NewReader(raw)))
	if err != nil {
		return Document{}, err
	}
	return Parse(string(data))
}

// Parse parses SubRip text into a Document.
// Both \n and \r\n line endings are accepted. Any violation of the block
// grammar is reported as a *FormatError.
func Parse(text string) (Document, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	blocks := splitBlocks(normalizeLineEndings(text))
	if len(blocks) == 0 {
		return Document{}, &FormatError{Kind: ErrEmptyInput}
	}

	cues := make([]Cue, 0, len(blocks))
	for _, b := range blocks {
		cue, err := parseBlock(b)
		if err != nil {
			return Document{}, err
		}
		cues = append(cues, cue)
	}

	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].Start < cues[j].Start
	})
	return Document{Cues: cues}, nil
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// splitBlocks groups lines into blocks separated by one or more blank lines.
func splitBlocks(text string) []block {
	lines := strings.Split(text, "\n")
	ret := make([]block, 0)
	var current *block
	for i, line := range lines {
		if isBlank(line) {
			if current != nil {
				ret = append(ret, *current)
				current = nil
			}
			continue
		}
		if current == nil {
			current = &block{
				number:    len(ret) + 1,
				firstLine: i + 1,
			}
		}
		current.lines = append(current.lines, line)
	}
	if current != nil {
		ret = append(ret, *current)
	}
	return ret
}

func parseBlock(b block) (Cue, error) {
	indexLine := strings.TrimSpace(b.lines[0])
	if _, err := strconv.Atoi(indexLine); err != nil {
		return Cue{}, &FormatError{
			Kind:  ErrInvalidIndex,
			Block: b.number,
			Line:  b.firstLine,
			Value: indexLine,
		}
	}

	if len(b.lines) < 2 {
		return Cue{}, &FormatError{
			Kind:  ErrInvalidTiming,
			Block: b.number,
			Line:  b.firstLine + 1,
		}
	}
	timingLine := strings.TrimSpace(b.lines[1])
	start, end, ok := parseTiming(timingLine)
	if !ok {
		return Cue{}, &FormatError{
			Kind:  ErrInvalidTiming,
			Block: b.number,
			Line:  b.firstLine + 1,
			Value: timingLine,
		}
	}
	if end <= start {
		return Cue{}, &FormatError{
			Kind:  ErrNonPositiveDuration,
			Block: b.number,
			Line:  b.firstLine + 1,
			Value: timingLine,
		}
	}

	if len(b.lines) < 3 {
		return Cue{}, &FormatError{
			Kind:  ErrEmptyText,
			Block: b.number,
			Line:  b.firstLine + 2,
		}
	}

	return Cue{
		Start: start,
		End:   end,
		Lines: append([]string(nil), b.lines[2:]...),
	}, nil
}

func parseTiming(line string) (time.Duration, time.Duration, bool) {
	matches := timingPattern.FindStringSubmatch(line)
	if len(matches) != 9 {
		return 0, 0, false
	}
	start, ok := parseTimestamp(matches[1:5])
	if !ok {
		return 0, 0, false
	}
	end, ok := parseTimestamp(matches[5:9])
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

// parseTimestamp converts hours, minutes, seconds and milliseconds fields.
func parseTimestamp(parts []string) (time.Duration, bool) {
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || hours > maxHours-1 {
		return 0, false
	}
	minutes, _ := strconv.Atoi(parts[1])
	seconds, _ := strconv.Atoi(parts[2])
	millis, _ := strconv.Atoi(parts[3])
	if minutes > 59 || seconds > 59 {
		return 0, false
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, true
}
