package subtitle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func TestParse(t *testing.T) {
	input := "1\n00:00:01,000 --> 00:00:03,000\nHello\n<i>there</i>\n\n2\n00:00:04,500 --> 00:00:06,250\nWorld\n"

	doc, err := Parse(input)
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())

	assert.Equal(t, Cue{Start: ms(1000), End: ms(3000), Lines: []string{"Hello", "<i>there</i>"}}, doc.Cues[0])
	assert.Equal(t, Cue{Start: ms(4500), End: ms(6250), Lines: []string{"World"}}, doc.Cues[1])
}

func TestParseLineEndings(t *testing.T) {
	unix := "1\n00:00:01,000 --> 00:00:02,000\nA\nB\n\n2\n00:00:03,000 --> 00:00:04,000\nC\n"
	windows := "1\r\n00:00:01,000 --> 00:00:02,000\r\nA\r\nB\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nC\r\n"

	a, err := Parse(unix)
	require.NoError(t, err)
	b, err := Parse(windows)
	require.NoError(t, err)

	assert.True(t, Equal(a, b))
}

func TestParseSeparators(t *testing.T) {
	input := "\n\n1\n00:00:01,000 --> 00:00:02,000\nA\n\n\n  \n\t\n2\n00:00:03,000 --> 00:00:04,000\nB\n\n\n"

	doc, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Len())
}

func TestParseBytesSkipsBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("7\n00:00:01,000 --> 00:00:02,000\nA\n")...)

	doc, err := ParseBytes(raw)
	require.NoError(t, err)
	require.Equal(t, 1, doc.Len())
	assert.Equal(t, []string{"A"}, doc.Cues[0].Lines)
}

func TestParseSortsByStart(t *testing.T) {
	input := "1\n00:00:05,000 --> 00:00:06,000\nsecond\n\n2\n00:00:01,000 --> 00:00:02,000\nfirst\n"

	doc, err := Parse(input)
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())
	assert.Equal(t, []string{"first"}, doc.Cues[0].Lines)
	assert.Equal(t, []string{"second"}, doc.Cues[1].Lines)
}

func TestParseAcceptsOverlap(t *testing.T) {
	input := "1\n00:00:01,000 --> 00:00:05,000\nA\n\n2\n00:00:02,000 --> 00:00:03,000\nB\n"

	doc, err := Parse(input)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Len())
}

func TestParseLargeHours(t *testing.T) {
	doc, err := Parse("1\n123:04:05,006 --> 123:04:06,000\nlate\n")
	require.NoError(t, err)

	want := 123*time.Hour + 4*time.Minute + 5*time.Second + 6*time.Millisecond
	assert.Equal(t, want, doc.Cues[0].Start)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  FormatErrorKind
		line  int
	}{
		{
			name:  "empty",
			input: "",
			kind:  ErrEmptyInput,
		},
		{
			name:  "blank",
			input: " \n\r\n\t\n",
			kind:  ErrEmptyInput,
		},
		{
			name:  "non numeric index",
			input: "one\n00:00:01,000 --> 00:00:02,000\nA\n",
			kind:  ErrInvalidIndex,
			line:  1,
		},
		{
			name:  "missing index",
			input: "00:00:01,000 --> 00:00:02,000\nA\n",
			kind:  ErrInvalidIndex,
			line:  1,
		},
		{
			name:  "period separator",
			input: "1\n00:00:01.000 --> 00:00:03,000\nA\n",
			kind:  ErrInvalidTiming,
			line:  2,
		},
		{
			name:  "missing timing",
			input: "1\n",
			kind:  ErrInvalidTiming,
			line:  2,
		},
		{
			name:  "minutes out of range",
			input: "1\n00:61:01,000 --> 00:62:03,000\nA\n",
			kind:  ErrInvalidTiming,
			line:  2,
		},
		{
			name:  "end before start",
			input: "1\n00:00:03,000 --> 00:00:01,000\nA\n",
			kind:  ErrNonPositiveDuration,
			line:  2,
		},
		{
			name:  "zero duration",
			input: "1\n00:00:03,000 --> 00:00:03,000\nA\n",
			kind:  ErrNonPositiveDuration,
			line:  2,
		},
		{
			name:  "empty text",
			input: "1\n00:00:01,000 --> 00:00:02,000\n\n2\n00:00:03,000 --> 00:00:04,000\nB\n",
			kind:  ErrEmptyText,
			line:  3,
		},
		{
			name:  "error in second block",
			input: "1\n00:00:01,000 --> 00:00:02,000\nA\n\n2\n00:00:03,000 -> 00:00:04,000\nB\n",
			kind:  ErrInvalidTiming,
			line:  6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)

			var formatErr *FormatError
			require.True(t, errors.As(err, &formatErr))
			assert.Equal(t, tt.kind, formatErr.Kind)
			assert.Equal(t, tt.line, formatErr.Line)
			assert.ErrorIs(t, err, ErrFormat)
			assert.True(t, IsFormatError(err))
			assert.NotEmpty(t, err.Error())
		})
	}
}
