package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/service"
)

type autoOptions struct {
	tools         mediaToolOptions
	upperLanguage string
	lowerLanguage string
	mode          string
	plainText     bool
	overwrite     bool
	noDefault     bool
	format        string
}

func newAutoCommand() *cobra.Command {
	var opts autoOptions

	cmd := &cobra.Command{
		Use:   "auto <video>...",
		Short: "Merge the largest upper and lower language streams of each video",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseOutputFormat(opts.format)
			if err != nil {
				return err
			}
			reqs, err := opts.requests(args)
			if err != nil {
				return err
			}

			merger := service.NewMerger(opts.tools.ffmpeg())
			result := merger.Batch(cmd.Context(), reqs)
			if outFormat != outputTable {
				return writeStructured(cmd.OutOrStdout(), outFormat, newBatchView(result))
			}
			renderBatch(cmd.OutOrStdout(), result)
			if result.Counts.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", result.Counts.Failed, result.Counts.All)
			}
			return nil
		},
	}

	defaults := config.Default().Merge
	opts.tools.bindFlags(cmd)
	cmd.Flags().StringVar(&opts.upperLanguage, "upper", defaults.UpperLanguage.String(), "Language shown on top")
	cmd.Flags().StringVar(&opts.lowerLanguage, "lower", defaults.LowerLanguage.String(), "Language shown below")
	cmd.Flags().StringVar(&opts.mode, "mode", string(defaults.Mode), "file writes a separate .srt, inject adds a stream to mkv videos")
	cmd.Flags().BoolVar(&opts.plainText, "plain", false, "Strip markup tags from the merged subtitles")
	cmd.Flags().BoolVarP(&opts.overwrite, "force", "f", false, "Replace existing merged files")
	cmd.Flags().BoolVar(&opts.noDefault, "no-default", false, "Do not mark an injected stream as default")
	cmd.Flags().StringVar(&opts.format, "output", "table", "Output format: table, json or yaml")

	return cmd
}

func (o autoOptions) requests(videos []string) ([]service.MergeRequest, error) {
	upper, err := language.Parse(o.upperLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid upper language %q: %w", o.upperLanguage, err)
	}
	lower, err := language.Parse(o.lowerLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid lower language %q: %w", o.lowerLanguage, err)
	}
	if upper == lower {
		return nil, fmt.Errorf("upper and lower languages must differ")
	}
	mode, err := config.ParseMergeMode(o.mode)
	if err != nil {
		return nil, err
	}

	reqs := make([]service.MergeRequest, 0, len(videos))
	for _, video := range videos {
		reqs = append(reqs, service.MergeRequest{
			VideoPath:     video,
			UpperLanguage: upper,
			LowerLanguage: lower,
			Mode:          mode,
			PlainText:     o.plainText,
			MakeDefault:   !o.noDefault,
			Overwrite:     o.overwrite,
		})
	}
	return reqs, nil
}

type fileResultView struct {
	Video  string `json:"video" yaml:"video"`
	Status string `json:"status" yaml:"status"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

type batchView struct {
	Files   []fileResultView `json:"files" yaml:"files"`
	Summary string           `json:"summary" yaml:"summary"`
}

func newBatchView(result service.BatchResult) batchView {
	ret := batchView{
		Files:   make([]fileResultView, 0, len(result.Files)),
		Summary: result.Result.String(),
	}
	for _, res := range result.Files {
		ret.Files = append(ret.Files, fileResultView{
			Video:  res.VideoPath,
			Status: res.State,
			Output: res.Output,
			Reason: res.Reason,
			Error:  res.Error,
		})
	}
	return ret
}

func renderBatch(out io.Writer, result service.BatchResult) {
	painter := newStatusPainter(out)
	rows := make([][]string, 0, len(result.Files))
	for _, res := range result.Files {
		detail := res.Reason
		switch {
		case res.Error != "":
			detail = res.Error
		case detail == "" && res.Output != "":
			detail = filepath.Base(res.Output)
		}
		rows = append(rows, []string{filepath.Base(res.VideoPath), painter.paint(res.State), orDash(detail)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Video", "Status", "Details"}, rows, nil))
	}
	if !result.Result.IsEmpty() {
		fmt.Fprintln(out, result.Result.String())
	}
}
