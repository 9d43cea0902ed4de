package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// Write renders the document as SubRip text.
// Indices are regenerated from 1. With plainText set, markup tags are
// stripped from every line and cues without text after stripping are left
// out. An empty document renders as the empty string.
func Write(doc Document, plainText bool) string {
	var sb strings.Builder
	// strings.Builder never fails
	_, _ = WriteTo(&sb, doc, plainText)
	return sb.String()
}

// WriteTo streams the document to w and returns the number of bytes written.
func WriteTo(w io.Writer, doc Document, plainText bool) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	index := 0
	for _, cue := range doc.Cues {
		lines := cue.Lines
		if plainText {
			if lines = stripMarkup(lines); len(lines) == 0 {
				continue
			}
		}

		if index > 0 {
			bw.WriteString("\n")
		}
		index++
		fmt.Fprintf(bw, "%d\n", index)
		fmt.Fprintf(bw, "%s --> %s\n", formatTimestamp(cue.Start), formatTimestamp(cue.End))
		for _, line := range lines {
			bw.WriteString(line)
			bw.WriteString("\n")
		}
	}

	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("failed to write subtitles: %w", err)
	}
	return cw.n, nil
}

// StripMarkup removes angle-bracket tags from a single line.
func StripMarkup(line string) string {
	return markupPattern.ReplaceAllString(line, "")
}

// stripMarkup drops lines left blank by tag removal.
func stripMarkup(lines []string) []string {
	ret := make([]string, 0, len(lines))
	for _, line := range lines {
		stripped := StripMarkup(line)
		if isBlank(stripped) {
			continue
		}
		ret = append(ret, stripped)
	}
	return ret
}

// formatTimestamp formats time.Duration to SRT time format
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / int64(time.Hour/time.Millisecond)
	minutes := (ms / int64(time.Minute/time.Millisecond)) % 60
	seconds := (ms / 1000) % 60
	millis := ms % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
