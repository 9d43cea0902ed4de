package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
	"github.com/MimeLyc/bilingual-sub-merger/internal/subtitle"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/file"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

// Merger prepares and performs merges of video subtitles.
type Merger struct {
	op     media.Operator
	loader *Loader
}

type Option func(*mergerOptions)

type mergerOptions struct {
	cache StreamCache
}

// WithStreamCache keeps extracted streams in cache.
func WithStreamCache(cache StreamCache) Option {
	return func(o *mergerOptions) {
		o.cache = cache
	}
}

func NewMerger(op media.Operator, opts ...Option) *Merger {
	var options mergerOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Merger{
		op:     op,
		loader: NewLoader(op, options.cache),
	}
}

func (m *Merger) Loader() *Loader {
	return m.loader
}

func (m *Merger) probe(ctx context.Context, videoPath string) (media.Probe, error) {
	if m.op == nil {
		return media.Probe{}, NewError(ErrConfig, "no media operator configured")
	}
	probe, err := m.op.Probe(ctx, videoPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return media.Probe{}, ctxErr
		}
		return media.Probe{}, WrapError(err, ErrMedia, "failed to probe video").WithContext("video", videoPath)
	}
	return probe, nil
}

// Prepare resolves the sources of a request, loads and merges them and
// decides where the result would go. Nothing is written.
func (m *Merger) Prepare(ctx context.Context, req MergeRequest) (MergePlan, error) {
	if err := ctx.Err(); err != nil {
		return MergePlan{}, err
	}
	if strings.TrimSpace(req.VideoPath) == "" {
		return MergePlan{}, NewError(ErrValidation, "video path is required")
	}
	mode, err := config.ParseMergeMode(string(req.Mode))
	if err != nil {
		return MergePlan{}, WrapError(err, ErrValidation, "invalid merge mode")
	}
	req.Mode = mode

	plan := MergePlan{Request: req, Status: PlanOK, Upper: req.Upper, Lower: req.Lower}

	var probe media.Probe
	if needsProbe(req) {
		if probe, err = m.probe(ctx, req.VideoPath); err != nil {
			return MergePlan{}, err
		}
	}

	if req.Mode == config.ModeInject && probe.Format != media.FormatMatroska {
		return notPossible(plan, "subtitles can be injected into matroska videos only"), nil
	}

	s := m.loader.session(req.VideoPath)
	if plan.Upper == nil {
		if plan.Upper, err = autoSelect(ctx, s, probe, req.UpperLanguage); err != nil {
			return planFromSelectError(plan, err)
		}
	}
	if plan.Lower == nil {
		if plan.Lower, err = autoSelect(ctx, s, probe, req.LowerLanguage); err != nil {
			return planFromSelectError(plan, err)
		}
	}
	if plan.Upper.Key() == plan.Lower.Key() {
		return notPossible(plan, "upper and lower subtitles are the same"), nil
	}

	upper, upperErr := s.load(ctx, plan.Upper)
	lower, lowerErr := s.load(ctx, plan.Lower)
	if err := ctx.Err(); err != nil {
		return MergePlan{}, err
	}
	for _, loadErr := range []error{upperErr, lowerErr} {
		if loadErr != nil {
			log.Warn("Failed to load subtitles of %s: %v", req.VideoPath, loadErr)
			plan.FailedToLoad++
		}
	}
	if plan.FailedToLoad > 0 {
		plan.Status = PlanFailedToLoad
		plan.Reason = countText(plan.FailedToLoad, "failed to load subtitles", "failed to load %d subtitles")
		return plan, nil
	}

	plan.Merged = subtitle.Merge(upper.Doc, lower.Doc)

	candidates := []subtitle.Document{upper.Doc, lower.Doc}
	for _, stream := range probe.Streams {
		if !stream.Mergeable() || !usesLanguage(plan, stream.LangTag) {
			continue
		}
		loaded, err := s.load(ctx, builtInSource(stream))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return MergePlan{}, ctxErr
			}
			log.Warn("Failed to load stream %d of %s: %v", stream.Index, req.VideoPath, err)
			plan.FailedToLoad++
			continue
		}
		candidates = append(candidates, loaded.Doc)
	}
	if plan.FailedToLoad > 0 {
		plan.Status = PlanFailedToLoad
		plan.Reason = countText(plan.FailedToLoad, "failed to load subtitles", "failed to load %d subtitles")
		return plan, nil
	}

	switch req.Mode {
	case config.ModeInject:
		plan.Output = req.VideoPath
	default:
		plan.Output = OutputPath(req.VideoPath, plan.Upper, plan.Lower)
		plan.Overwrites = file.Exists(plan.Output)
	}

	if subtitle.IsDuplicate(plan.Merged, candidates...) {
		plan.Status = PlanDuplicate
		plan.Reason = "merged subtitles are the same as existing ones, merging is pointless"
		return plan, nil
	}
	if plan.Overwrites && !req.Overwrite {
		return notPossible(plan, fmt.Sprintf("file %s already exists", plan.Output)), nil
	}
	return plan, nil
}

// Execute writes the merged subtitles of a prepared plan.
func (m *Merger) Execute(ctx context.Context, plan MergePlan) error {
	if plan.Status != PlanOK {
		return NewError(ErrValidation, fmt.Sprintf("merge is not possible: %s", plan.Status)).
			WithContext("video", plan.Request.VideoPath)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := subtitle.Write(plan.Merged, plan.Request.PlainText)

	switch plan.Request.Mode {
	case config.ModeInject:
		err := m.op.InjectSubtitle(ctx, media.InjectRequest{
			VideoPath:   plan.Request.VideoPath,
			Subtitle:    text,
			Language:    injectLanguage(plan),
			Title:       StreamTitle(plan.Upper, plan.Lower),
			MakeDefault: plan.Request.MakeDefault,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return WrapError(err, ErrMedia, "failed to inject subtitles").WithContext("video", plan.Request.VideoPath)
		}
	default:
		if !plan.Request.Overwrite && file.Exists(plan.Output) {
			return NewError(ErrFileWrite, "result file already exists").WithContext("path", plan.Output)
		}
		if err := file.WriteAtomic(plan.Output, []byte(text), 0o644); err != nil {
			return WrapError(err, ErrFileWrite, "failed to write merged subtitles").WithContext("path", plan.Output)
		}
	}

	log.Info("Merged %s and %s of %s into %s", plan.Upper, plan.Lower, plan.Request.VideoPath, plan.Output)
	return nil
}

// Merge prepares a request and executes it when possible.
func (m *Merger) Merge(ctx context.Context, req MergeRequest) (MergePlan, error) {
	plan, err := m.Prepare(ctx, req)
	if err != nil {
		return plan, err
	}
	if plan.Status != PlanOK {
		return plan, nil
	}
	return plan, m.Execute(ctx, plan)
}

func needsProbe(req MergeRequest) bool {
	if req.Mode == config.ModeInject || req.Upper == nil || req.Lower == nil {
		return true
	}
	_, upperBuiltIn := req.Upper.(SourceBuiltIn)
	_, lowerBuiltIn := req.Lower.(SourceBuiltIn)
	return upperBuiltIn || lowerBuiltIn
}

// usesLanguage reports whether a built-in source of the plan has the language.
func usesLanguage(plan MergePlan, tag language.Tag) bool {
	for _, src := range []Source{plan.Upper, plan.Lower} {
		if builtIn, ok := src.(SourceBuiltIn); ok && media.SameLanguage(builtIn.Language, tag) {
			return true
		}
	}
	return false
}

func injectLanguage(plan MergePlan) language.Tag {
	if builtIn, ok := plan.Upper.(SourceBuiltIn); ok && builtIn.Language != language.Und {
		return builtIn.Language
	}
	return plan.Request.UpperLanguage
}

func notPossible(plan MergePlan, reason string) MergePlan {
	plan.Status = PlanNotPossible
	plan.Reason = reason
	return plan
}

func planFromSelectError(plan MergePlan, err error) (MergePlan, error) {
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) {
		return MergePlan{}, err
	}
	switch mergeErr.Type {
	case ErrNotPossible:
		return notPossible(plan, mergeErr.Message), nil
	case ErrFailedToLoad:
		plan.Status = PlanFailedToLoad
		plan.Reason = mergeErr.Message
		if failed, ok := mergeErr.Context["failed"].(int); ok {
			plan.FailedToLoad = failed
		}
		return plan, nil
	default:
		return MergePlan{}, err
	}
}
