package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	upperSubtitles = "1\n00:00:01,000 --> 00:00:03,000\n<i>Hello</i>\n\n2\n00:00:04,000 --> 00:00:05,000\nBye\n"
	lowerSubtitles = "1\n00:00:01,000 --> 00:00:03,000\nПривет\n"

	mergedSubtitles = "1\n00:00:01,000 --> 00:00:03,000\n<i>Hello</i>\nПривет\n\n2\n00:00:04,000 --> 00:00:05,000\nBye\n"
)

func writeSubtitles(t *testing.T, dir string) (string, string) {
	t.Helper()
	upper := filepath.Join(dir, "movie.en.srt")
	lower := filepath.Join(dir, "movie.ru.srt")
	require.NoError(t, os.WriteFile(upper, []byte(upperSubtitles), 0o644))
	require.NoError(t, os.WriteFile(lower, []byte(lowerSubtitles), 0o644))
	return upper, lower
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	upper, lower := writeSubtitles(t, dir)

	out, err := executeCommand(t, "merge", upper, lower)
	require.NoError(t, err)

	output := filepath.Join(dir, "movie.en.merged.srt")
	assert.Contains(t, out, "Merged 2 cues into "+output+" (until 5s)")
	written, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, mergedSubtitles, string(written))

	_, err = executeCommand(t, "merge", upper, lower)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = executeCommand(t, "merge", "--force", "--plain", "-o", filepath.Join(dir, "out.srt"), upper, lower)
	require.NoError(t, err)
	assert.Contains(t, out, "out.srt")
	written, err = os.ReadFile(filepath.Join(dir, "out.srt"))
	require.NoError(t, err)
	assert.NotContains(t, string(written), "<i>")
}

func TestMergeCommandRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	upper, _ := writeSubtitles(t, dir)

	_, err := executeCommand(t, "merge", "-o", filepath.Join(dir, "same.srt"), upper, upper)
	require.ErrorIs(t, err, errDuplicate)
	assert.NoFileExists(t, filepath.Join(dir, "same.srt"))
}

func TestMergeCommandReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	upper, _ := writeSubtitles(t, dir)
	broken := filepath.Join(dir, "broken.srt")
	require.NoError(t, os.WriteFile(broken, []byte("1\n00:00:05,000 --> 00:00:01,000\nBackwards\n"), 0o644))

	_, err := executeCommand(t, "merge", upper, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incorrect format")
}

func TestPreviewCommand(t *testing.T) {
	dir := t.TempDir()
	upper, lower := writeSubtitles(t, dir)

	out, err := executeCommand(t, "preview", upper, lower)
	require.NoError(t, err)
	assert.Equal(t, mergedSubtitles, out)
	assert.NoFileExists(t, filepath.Join(dir, "movie.en.merged.srt"))
}

func TestPreviewCommandLowerOffset(t *testing.T) {
	dir := t.TempDir()
	upper, lower := writeSubtitles(t, dir)

	out, err := executeCommand(t, "preview", "--lower-offset", "500ms", upper, lower)
	require.NoError(t, err)

	want := "1\n00:00:01,000 --> 00:00:01,500\n<i>Hello</i>\n\n" +
		"2\n00:00:01,500 --> 00:00:03,000\n<i>Hello</i>\nПривет\n\n" +
		"3\n00:00:03,000 --> 00:00:03,500\nПривет\n\n" +
		"4\n00:00:04,000 --> 00:00:05,000\nBye\n"
	assert.Equal(t, want, out)
}

func TestScanCommandWithoutProbe(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movie.mkv"), []byte("video"), 0o644))
	writeSubtitles(t, dir)

	out, err := executeCommand(t, "scan", "--no-probe", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "movie.mkv")
	assert.Contains(t, out, "en, ru")

	out, err = executeCommand(t, "scan", "--no-probe", "--output", "yaml", dir)
	require.NoError(t, err)
	var videos []videoView
	require.NoError(t, yaml.Unmarshal([]byte(out), &videos))
	require.Len(t, videos, 1)
	assert.Equal(t, filepath.Join(dir, "movie.mkv"), videos[0].Path)
	assert.Len(t, videos[0].Files, 2)
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    outputFormat
		wantErr bool
	}{
		{in: "", want: outputTable},
		{in: "JSON", want: outputJSON},
		{in: "yml", want: outputYAML},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseOutputFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAutoOptionsRequests(t *testing.T) {
	opts := autoOptions{upperLanguage: "en", lowerLanguage: "ru", mode: "inject", overwrite: true}

	reqs, err := opts.requests([]string{"/videos/a.mkv", "/videos/b.mkv"})
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "/videos/b.mkv", reqs[1].VideoPath)
	assert.Equal(t, "inject", string(reqs[0].Mode))
	assert.True(t, reqs[0].MakeDefault)
	assert.True(t, reqs[0].Overwrite)

	opts.lowerLanguage = "en"
	_, err = opts.requests([]string{"/videos/a.mkv"})
	require.Error(t, err)
}

func TestPrintErrorAddsAdvice(t *testing.T) {
	dir := t.TempDir()
	_, err := executeCommand(t, "merge", filepath.Join(dir, "missing.srt"), filepath.Join(dir, "other.srt"))
	require.Error(t, err)

	var buf bytes.Buffer
	printError(&buf, err)
	assert.Contains(t, buf.String(), err.Error()+"\n")
	assert.Contains(t, buf.String(), "advice: Please check that the file path is correct")

	buf.Reset()
	printError(&buf, errDuplicate)
	assert.Equal(t, errDuplicate.Error()+"\n", buf.String())
}
