package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/bilingual-sub-merger/internal/library"
	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
)

type mediaToolOptions struct {
	ffmpegPath  string
	ffprobePath string
}

func (o *mediaToolOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.ffmpegPath, "ffmpeg", "", "ffmpeg binary (default from FFMPEG_PATH or PATH)")
	cmd.Flags().StringVar(&o.ffprobePath, "ffprobe", "", "ffprobe binary (default from FFPROBE_PATH or PATH)")
}

func (o mediaToolOptions) ffmpeg() *media.FFmpeg {
	return newFFmpeg(firstNonEmpty(o.ffmpegPath, os.Getenv("FFMPEG_PATH")), firstNonEmpty(o.ffprobePath, os.Getenv("FFPROBE_PATH")))
}

type streamView struct {
	Index    int    `json:"index" yaml:"index"`
	Language string `json:"language" yaml:"language"`
	Codec    string `json:"codec" yaml:"codec"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Default  bool   `json:"default" yaml:"default"`
	Size     int64  `json:"size,omitempty" yaml:"size,omitempty"`
	Status   string `json:"status" yaml:"status"`
}

type probeView struct {
	Path    string       `json:"path" yaml:"path"`
	Format  string       `json:"format" yaml:"format"`
	Size    int64        `json:"size" yaml:"size"`
	Streams []streamView `json:"streams" yaml:"streams"`
}

func newProbeView(probe media.Probe) probeView {
	ret := probeView{
		Path:    probe.Path,
		Format:  string(probe.Format),
		Size:    probe.Size,
		Streams: make([]streamView, 0, len(probe.Streams)),
	}
	for _, stream := range probe.Streams {
		status := "mergeable"
		if reason := stream.Unavailable(); reason != media.Available {
			status = reason.String()
		}
		ret.Streams = append(ret.Streams, streamView{
			Index:    stream.Index,
			Language: orDash(stream.Language),
			Codec:    stream.CodecName,
			Title:    stream.Title,
			Default:  stream.Default,
			Size:     stream.Size,
			Status:   status,
		})
	}
	return ret
}

func newStreamsCommand() *cobra.Command {
	var tools mediaToolOptions
	var format string

	cmd := &cobra.Command{
		Use:   "streams <video>",
		Short: "List the subtitle streams of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseOutputFormat(format)
			if err != nil {
				return err
			}
			probe, err := tools.ffmpeg().Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view := newProbeView(probe)
			if outFormat != outputTable {
				return writeStructured(cmd.OutOrStdout(), outFormat, view)
			}

			out := cmd.OutOrStdout()
			painter := newStatusPainter(out)
			fmt.Fprintf(out, "%s (%s, %s)\n", filepath.Base(view.Path), view.Format, formatSize(view.Size))
			if len(view.Streams) == 0 {
				fmt.Fprintln(out, "No subtitle streams")
				return nil
			}
			rows := make([][]string, 0, len(view.Streams))
			for _, stream := range view.Streams {
				rows = append(rows, []string{
					strconv.Itoa(stream.Index),
					stream.Language,
					stream.Codec,
					stream.Title,
					yesNo(stream.Default),
					formatSize(stream.Size),
					painter.paint(stream.Status),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Language", "Codec", "Title", "Default", "Size", "Status"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	tools.bindFlags(cmd)
	cmd.Flags().StringVar(&format, "output", "table", "Output format: table, json or yaml")

	return cmd
}

func newScanCommand() *cobra.Command {
	var tools mediaToolOptions
	var format string
	var noProbe bool

	cmd := &cobra.Command{
		Use:   "scan <dir>...",
		Short: "List videos with their subtitle streams and files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseOutputFormat(format)
			if err != nil {
				return err
			}
			opts := []library.Option{library.WithLanguageDetection(true)}
			if !noProbe {
				opts = append(opts, library.WithStreamProber(tools.ffmpeg()))
			}
			lib, err := library.NewScanner(library.SourcesFromDirs(args), opts...).Scan(cmd.Context())
			if err != nil {
				return err
			}
			if outFormat != outputTable {
				// library types carry json tags only
				if outFormat == outputJSON {
					return writeStructured(cmd.OutOrStdout(), outFormat, lib)
				}
				return writeStructured(cmd.OutOrStdout(), outFormat, newLibraryView(lib))
			}

			out := cmd.OutOrStdout()
			if len(lib.Videos) == 0 {
				fmt.Fprintln(out, "No videos found")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Video", "Size", "Streams", "Files", "Merged"},
				libraryRows(lib),
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	tools.bindFlags(cmd)
	cmd.Flags().StringVar(&format, "output", "table", "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip ffprobe and only list subtitle files")

	return cmd
}

func libraryRows(lib *library.Library) [][]string {
	rows := make([][]string, 0, len(lib.Videos))
	for _, video := range lib.Videos {
		streams := make([]string, 0, len(video.Streams))
		for _, stream := range video.Streams {
			if stream.Mergeable() {
				streams = append(streams, orDash(stream.Language))
			}
		}
		streamText := strings.Join(streams, ", ")
		if video.ProbeError != "" {
			streamText = "probe failed"
		}

		files := make([]string, 0, len(video.External))
		for _, sub := range video.External {
			files = append(files, orDash(sub.Language))
		}

		rows = append(rows, []string{
			video.Name,
			formatSize(video.Size),
			orDash(streamText),
			orDash(strings.Join(files, ", ")),
			strconv.Itoa(len(video.MergedFiles)),
		})
	}
	return rows
}

type videoView struct {
	Path       string       `yaml:"path"`
	Size       int64        `yaml:"size"`
	Streams    []streamView `yaml:"streams,omitempty"`
	Files      []string     `yaml:"files,omitempty"`
	Merged     []string     `yaml:"merged,omitempty"`
	ProbeError string       `yaml:"probe_error,omitempty"`
}

func newLibraryView(lib *library.Library) []videoView {
	ret := make([]videoView, 0, len(lib.Videos))
	for _, video := range lib.Videos {
		view := videoView{
			Path:       video.Path,
			Size:       video.Size,
			Streams:    newProbeView(media.Probe{Streams: video.Streams}).Streams,
			Merged:     video.MergedFiles,
			ProbeError: video.ProbeError,
		}
		for _, sub := range video.External {
			view.Files = append(view.Files, sub.Path)
		}
		ret = append(ret, view)
	}
	return ret
}
