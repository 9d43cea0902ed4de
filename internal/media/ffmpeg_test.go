package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func fakeProbe(t *testing.T, dir, output string, exitCode int) string {
	return writeScript(t, dir, "ffprobe", "cat <<'JSON'\n"+output+"\nJSON\nexit "+strconv.Itoa(exitCode)+"\n")
}

const matroskaProbe = `{
	"streams": [
		{"index": 0, "codec_type": "video", "codec_name": "h264", "tags": {"language": "eng"}},
		{"index": 1, "codec_type": "audio", "codec_name": "aac", "tags": {"language": "eng"}},
		{"index": 2, "codec_type": "subtitle", "codec_name": "subrip",
			"tags": {"language": "eng", "title": "English SDH", "NUMBER_OF_BYTES": "51234"},
			"disposition": {"default": 1}},
		{"index": 3, "codec_type": "subtitle", "codec_name": "ass",
			"tags": {"language": "jpn", "title": "Signs/Songs"}},
		{"index": 4, "codec_type": "subtitle", "codec_name": "subrip"}
	],
	"format": {"format_name": "matroska,webm", "size": "1048576"}
}`

func TestFFmpeg_Probe(t *testing.T) {
	tests := []struct {
		name        string
		mockOutput  string
		exitCode    int
		format      VideoFormat
		streams     []Stream
		expectError bool
	}{
		{
			name:       "matroska with subtitle streams",
			mockOutput: matroskaProbe,
			format:     FormatMatroska,
			streams: []Stream{
				{Index: 2, CodecName: "subrip", Language: "eng", LangTag: language.MustParse("eng"), Title: "English SDH", Default: true, Size: 51234},
				{Index: 3, CodecName: "ass", Language: "jpn", LangTag: language.MustParse("jpn"), Title: "Signs/Songs"},
				{Index: 4, CodecName: "subrip", Language: "und", LangTag: language.Und},
			},
		},
		{
			name: "mp4 without subtitles",
			mockOutput: `{"streams": [{"index": 0, "codec_type": "video", "codec_name": "h264"}],
				"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2"}}`,
			format:  FormatOther,
			streams: []Stream{},
		},
		{
			name:        "invalid json",
			mockOutput:  `{"streams": [invalid json`,
			expectError: true,
		},
		{
			name: "non-zero exit with streams",
			mockOutput: `{"streams": [{"index": 5, "codec_type": "subtitle", "codec_name": "subrip",
				"tags": {"language": "rus"}}], "format": {"format_name": "matroska,webm"}}`,
			exitCode: 1,
			format:   FormatMatroska,
			streams: []Stream{
				{Index: 5, CodecName: "subrip", Language: "rus", LangTag: language.MustParse("rus")},
			},
		},
		{
			name:        "non-zero exit without streams",
			mockOutput:  `{}`,
			exitCode:    1,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probePath := fakeProbe(t, t.TempDir(), tt.mockOutput, tt.exitCode)
			ff := NewFFmpeg(WithFFprobePath(probePath))

			probe, err := ff.Probe(context.Background(), "dummy.mkv")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.format, probe.Format)
			assert.Equal(t, tt.streams, probe.Streams)
			assert.Equal(t, "dummy.mkv", probe.Path)
		})
	}
}

func TestFFmpeg_ProbeFromPath(t *testing.T) {
	dir := t.TempDir()
	fakeProbe(t, dir, matroskaProbe, 0)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	probe, err := NewFFmpeg().Probe(context.Background(), "movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, int64(1048576), probe.Size)
	assert.Len(t, probe.Streams, 3)
}

func TestFFmpeg_ToolNotFound(t *testing.T) {
	ff := NewFFmpeg(
		WithFFprobePath(filepath.Join(t.TempDir(), "missing-ffprobe")),
		WithFFmpegPath(filepath.Join(t.TempDir(), "missing-ffmpeg")),
	)

	_, err := ff.Probe(context.Background(), "movie.mkv")
	assert.ErrorIs(t, err, ErrToolNotFound)
	_, err = ff.ExtractSubtitle(context.Background(), "movie.mkv", 2)
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.ErrorIs(t, ff.CheckTools(), ErrToolNotFound)
}

func TestStreamAvailability(t *testing.T) {
	assert.Equal(t, Available, Stream{CodecName: "subrip"}.Unavailable())
	assert.Equal(t, ReasonNotAllowedCodec, Stream{CodecName: "hdmv_pgs_subtitle"}.Unavailable())
	assert.NotEmpty(t, ReasonNotAllowedCodec.String())

	probe := Probe{Streams: []Stream{
		{Index: 2, CodecName: "subrip", LangTag: language.English},
		{Index: 3, CodecName: "ass", LangTag: language.English},
		{Index: 4, CodecName: "subrip", LangTag: language.MustParse("en-GB")},
		{Index: 5, CodecName: "subrip", LangTag: language.MustParse("rus")},
	}}
	english := probe.StreamsByLanguage(language.English)
	require.Len(t, english, 2)
	assert.Equal(t, 2, english[0].Index)
	assert.Equal(t, 4, english[1].Index)
	assert.Empty(t, probe.StreamsByLanguage(language.Und))
}

func TestFFmpeg_ExtractSubtitle(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	ffmpegPath := writeScript(t, dir, "ffmpeg",
		"echo \"$@\" > '"+argsFile+"'\nprintf '1\\n00:00:01,000 --> 00:00:02,000\\nHello\\n'\n")

	ff := NewFFmpeg(WithFFmpegPath(ffmpegPath))
	text, err := ff.ExtractSubtitle(context.Background(), "/videos/movie.mkv", 3)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nHello\n", text)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-i /videos/movie.mkv")
	assert.Contains(t, string(args), "-map 0:3")
	assert.Contains(t, string(args), "-f srt -")
}

func TestFFmpeg_ExtractSubtitleFailure(t *testing.T) {
	dir := t.TempDir()
	ffmpegPath := writeScript(t, dir, "ffmpeg", "echo 'Stream map matches no streams' >&2\nexit 1\n")

	_, err := NewFFmpeg(WithFFmpegPath(ffmpegPath)).ExtractSubtitle(context.Background(), "movie.mkv", 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches no streams")
}

func TestFFmpeg_InjectSubtitle(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(video, []byte("original"), 0644))

	argsFile := filepath.Join(dir, "args")
	probePath := fakeProbe(t, dir, matroskaProbe, 0)
	ffmpegPath := writeScript(t, dir, "ffmpeg",
		"echo \"$@\" > '"+argsFile+"'\nfor last; do :; done\necho muxed > \"$last\"\n")

	ff := NewFFmpeg(WithFFprobePath(probePath), WithFFmpegPath(ffmpegPath))
	err := ff.InjectSubtitle(context.Background(), InjectRequest{
		VideoPath:   video,
		Subtitle:    "1\n00:00:01,000 --> 00:00:02,000\nHello\n",
		Language:    language.Russian,
		Title:       "eng-rus",
		MakeDefault: true,
	})
	require.NoError(t, err)

	content, err := os.ReadFile(video)
	require.NoError(t, err)
	assert.Equal(t, "muxed\n", string(content))

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-metadata:s:s:3 language=rus")
	assert.Contains(t, string(args), "-metadata:s:s:3 title=eng-rus")
	assert.Contains(t, string(args), "-disposition:s:3 default")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".submerge-"), entry.Name())
	}
}

func TestFFmpeg_InjectSubtitleRequiresMatroska(t *testing.T) {
	dir := t.TempDir()
	probePath := fakeProbe(t, dir, `{"streams": [], "format": {"format_name": "avi"}}`, 0)

	err := NewFFmpeg(WithFFprobePath(probePath)).InjectSubtitle(context.Background(), InjectRequest{
		VideoPath: filepath.Join(dir, "movie.avi"),
		Subtitle:  "x",
	})
	assert.ErrorIs(t, err, ErrNotMatroska)
}
