package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/bilingual-sub-merger/internal/service"
	"github.com/MimeLyc/bilingual-sub-merger/internal/subtitle"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/file"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

var errDuplicate = errors.New("merged subtitles are identical to one of the inputs")

type mergeFileOptions struct {
	output       string
	plainText    bool
	overwrite    bool
	upperCharset string
	lowerCharset string
	lowerOffset  time.Duration
}

func (o *mergeFileOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.plainText, "plain", false, "Strip markup tags from the merged subtitles")
	cmd.Flags().StringVar(&o.upperCharset, "upper-charset", "", "Charset of the upper file, detected when empty")
	cmd.Flags().StringVar(&o.lowerCharset, "lower-charset", "", "Charset of the lower file, detected when empty")
	cmd.Flags().DurationVar(&o.lowerOffset, "lower-offset", 0, "Move the lower subtitles by this offset before merging (e.g. 1.5s, -200ms)")
}

func newMergeCommand() *cobra.Command {
	var opts mergeFileOptions

	cmd := &cobra.Command{
		Use:   "merge <upper.srt> <lower.srt>",
		Short: "Merge two subtitle files into one bilingual file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, merged, err := mergeFiles(args[0], args[1], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d cues into %s (until %s)\n", merged.Len(), output, merged.Duration())
			return nil
		},
	}

	opts.bindFlags(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default <upper>.merged.srt)")
	cmd.Flags().BoolVarP(&opts.overwrite, "force", "f", false, "Replace an existing output file")

	return cmd
}

func newPreviewCommand() *cobra.Command {
	var opts mergeFileOptions

	cmd := &cobra.Command{
		Use:   "preview <upper.srt> <lower.srt>",
		Short: "Print the merged subtitles without writing a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			merged, err := loadAndMerge(args[0], args[1], opts)
			if err != nil && !errors.Is(err, errDuplicate) {
				return err
			}
			if err != nil {
				log.Warn("%v", err)
			}
			_, err = subtitle.WriteTo(cmd.OutOrStdout(), merged, opts.plainText)
			return err
		},
	}

	opts.bindFlags(cmd)

	return cmd
}

// loadAndMerge returns errDuplicate together with the merged document when
// merging produced nothing new.
func loadAndMerge(upperPath, lowerPath string, opts mergeFileOptions) (subtitle.Document, error) {
	loader := service.NewLoader(nil, nil)
	upper, err := loader.LoadFile(upperPath, opts.upperCharset)
	if err != nil {
		return subtitle.Document{}, err
	}
	lower, err := loader.LoadFile(lowerPath, opts.lowerCharset)
	if err != nil {
		return subtitle.Document{}, err
	}
	log.Debug("Loaded %s (%s) and %s (%s)", upperPath, upper.Charset, lowerPath, lower.Charset)
	if opts.lowerOffset != 0 {
		lower.Doc = lower.Doc.Shift(opts.lowerOffset)
	}

	merged := subtitle.Merge(upper.Doc, lower.Doc)
	if subtitle.IsDuplicate(merged, upper.Doc, lower.Doc) {
		return merged, errDuplicate
	}
	return merged, nil
}

func mergeFiles(upperPath, lowerPath string, opts mergeFileOptions) (string, subtitle.Document, error) {
	output := opts.output
	if output == "" {
		output = file.ReplaceExt(upperPath, ".merged.srt")
	}
	if !opts.overwrite && file.Exists(output) {
		return "", subtitle.Document{}, fmt.Errorf("%s already exists, use --force to replace it", output)
	}

	merged, err := loadAndMerge(upperPath, lowerPath, opts)
	if err != nil {
		return "", subtitle.Document{}, err
	}
	if err := file.WriteAtomic(output, []byte(subtitle.Write(merged, opts.plainText)), 0o644); err != nil {
		return "", subtitle.Document{}, service.WrapError(err, service.ErrFileWrite, "failed to write merged subtitles").WithContext("path", output)
	}
	return output, merged, nil
}
