package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
	"golang.org/x/text/language"
)

var (
	ErrToolNotFound = errors.New("media tool not found")
	ErrNotMatroska  = errors.New("subtitles can only be injected into matroska videos")
	ErrNoStream     = errors.New("subtitle stream not found")
)

type Option func(*FFmpeg)

func WithFFmpegPath(path string) Option {
	return func(f *FFmpeg) {
		if strings.TrimSpace(path) != "" {
			f.ffmpegCmd = path
		}
	}
}

func WithFFprobePath(path string) Option {
	return func(f *FFmpeg) {
		if strings.TrimSpace(path) != "" {
			f.ffprobeCmd = path
		}
	}
}

// FFmpeg runs the ffprobe and ffmpeg binaries.
type FFmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
}

func NewFFmpeg(opts ...Option) *FFmpeg {
	ff := &FFmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
	}
	for _, opt := range opts {
		opt(ff)
	}
	return ff
}

// CheckTools verifies both binaries can be resolved.
func (ff *FFmpeg) CheckTools() error {
	if _, err := ff.lookPath(ff.ffprobeCmd); err != nil {
		return err
	}
	_, err := ff.lookPath(ff.ffmpegCmd)
	return err
}

type probeOutput struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Tags      struct {
			Language      string `json:"language"`
			Title         string `json:"title"`
			NumberOfBytes string `json:"NUMBER_OF_BYTES"`
		} `json:"tags"`
		Disposition struct {
			Default int `json:"default"`
		} `json:"disposition"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Size       string `json:"size"`
	} `json:"format"`
}

func (ff *FFmpeg) Probe(ctx context.Context, videoPath string) (Probe, error) {
	cmdPath, err := ff.lookPath(ff.ffprobeCmd)
	if err != nil {
		return Probe{}, err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, ff.probeArgs(videoPath)...)
	cmd.Stderr = &stderr
	output, runErr := cmd.Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Probe{}, ctxErr
	}

	var result probeOutput
	if err := json.Unmarshal(output, &result); err != nil {
		if runErr != nil {
			log.Error("Failed to run ffprobe for %s: %v", videoPath, runErr)
			return Probe{}, fmt.Errorf("ffprobe failed: %w: %s", runErr, strings.TrimSpace(stderr.String()))
		}
		log.Error("Failed to parse ffprobe output: %v", err)
		return Probe{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	// ffprobe exits non-zero on some damaged files while still printing streams
	if runErr != nil && len(result.Streams) == 0 {
		return Probe{}, fmt.Errorf("ffprobe failed: %w", runErr)
	}
	if runErr != nil {
		log.Warn("ffprobe exited with %v for %s, using partial output", runErr, videoPath)
	}

	probe := Probe{
		Path:    videoPath,
		Format:  parseFormat(result.Format.FormatName),
		Streams: make([]Stream, 0),
	}
	probe.Size, _ = strconv.ParseInt(result.Format.Size, 10, 64)

	for _, s := range result.Streams {
		if s.CodecType != "subtitle" {
			continue
		}
		stream := Stream{
			Index:     s.Index,
			CodecName: s.CodecName,
			Language:  s.Tags.Language,
			LangTag:   parseLanguage(s.Tags.Language),
			Title:     s.Tags.Title,
			Default:   s.Disposition.Default == 1,
		}
		stream.Size, _ = strconv.ParseInt(s.Tags.NumberOfBytes, 10, 64)
		if stream.Language == "" {
			stream.Language = "und" // undefined
		}
		probe.Streams = append(probe.Streams, stream)
	}

	return probe, nil
}

// ExtractSubtitle converts the stream to SubRip and returns its text.
func (ff *FFmpeg) ExtractSubtitle(ctx context.Context, videoPath string, streamIndex int) (string, error) {
	cmdPath, err := ff.lookPath(ff.ffmpegCmd)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdPath, ff.extractArgs(videoPath, streamIndex)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("failed to extract stream %d from %s: %w: %s",
			streamIndex, filepath.Base(videoPath), err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// InjectSubtitle adds the subtitle as a new stream of a Matroska video.
// The video is rewritten into a temporary file next to it that replaces the
// original on success.
func (ff *FFmpeg) InjectSubtitle(ctx context.Context, req InjectRequest) error {
	probe, err := ff.Probe(ctx, req.VideoPath)
	if err != nil {
		return err
	}
	if probe.Format != FormatMatroska {
		return ErrNotMatroska
	}

	cmdPath, err := ff.lookPath(ff.ffmpegCmd)
	if err != nil {
		return err
	}

	dir := filepath.Dir(req.VideoPath)
	subFile, err := os.CreateTemp(dir, ".submerge-*.srt")
	if err != nil {
		return fmt.Errorf("failed to create temporary subtitle file: %w", err)
	}
	defer os.Remove(subFile.Name())
	if _, err := subFile.WriteString(req.Subtitle); err != nil {
		subFile.Close()
		return fmt.Errorf("failed to write temporary subtitle file: %w", err)
	}
	if err := subFile.Close(); err != nil {
		return err
	}

	output := filepath.Join(dir, ".submerge-"+filepath.Base(req.VideoPath))
	defer os.Remove(output)

	var stderr bytes.Buffer
	args := ff.injectArgs(req, subFile.Name(), output, len(probe.Streams))
	cmd := exec.CommandContext(ctx, cmdPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to inject subtitles into %s: %w: %s",
			filepath.Base(req.VideoPath), err, strings.TrimSpace(stderr.String()))
	}

	if err := os.Rename(output, req.VideoPath); err != nil {
		return fmt.Errorf("failed to replace video file: %w", err)
	}
	log.Info("Injected subtitles into %s", req.VideoPath)
	return nil
}

func (ff *FFmpeg) lookPath(name string) (string, error) {
	cmdPath, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolNotFound, name, err)
	}
	return cmdPath, nil
}

func (*FFmpeg) probeArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	}
}

func (*FFmpeg) extractArgs(path string, streamIndex int) []string {
	return []string{
		"-v", "error",
		"-i", path,
		"-map", fmt.Sprintf("0:%d", streamIndex),
		"-c:s", "srt", // convert to srt
		"-f", "srt", // output format
		"-",
	}
}

// injectArgs keeps every existing stream and appends the subtitle file as
// subtitle stream number subCount.
func (*FFmpeg) injectArgs(req InjectRequest, subPath, output string, subCount int) []string {
	args := []string{
		"-y",
		"-v", "error",
		"-i", req.VideoPath,
		"-i", subPath,
		"-map", "0",
		"-map", "1:0",
		"-c", "copy",
		"-max_interleave_delta", "0",
	}

	newStream := fmt.Sprintf("s:%d", subCount)
	if base, conf := req.Language.Base(); req.Language != language.Und && conf != language.No {
		args = append(args, "-metadata:s:"+newStream, "language="+base.ISO3())
	}
	if req.Title != "" {
		args = append(args, "-metadata:s:"+newStream, "title="+req.Title)
	}
	if req.MakeDefault {
		// clear default flag on existing subtitle streams first
		args = append(args, "-disposition:s", "0", "-disposition:"+newStream, "default")
	}

	return append(args, "-f", "matroska", output)
}

func parseLanguage(code string) language.Tag {
	if code == "" || code == "und" {
		return language.Und
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und
	}
	return tag
}
