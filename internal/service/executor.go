package service

import (
	"context"
	"fmt"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/jobs"
)

// RequestFromJob builds the merge request of a queued job. Values missing
// from the payload come from defaults.
func RequestFromJob(payload jobs.JobPayload, defaults config.MergeConfig) (MergeRequest, error) {
	upper, err := SourceFromRef(payload.Upper)
	if err != nil {
		return MergeRequest{}, err
	}
	lower, err := SourceFromRef(payload.Lower)
	if err != nil {
		return MergeRequest{}, err
	}

	mode := defaults.Mode
	if payload.Mode != "" {
		if mode, err = config.ParseMergeMode(payload.Mode); err != nil {
			return MergeRequest{}, WrapError(err, ErrValidation, "invalid merge mode")
		}
	}

	return MergeRequest{
		VideoPath:     payload.VideoFile,
		Upper:         upper,
		Lower:         lower,
		UpperLanguage: defaults.UpperLanguage,
		LowerLanguage: defaults.LowerLanguage,
		Mode:          mode,
		PlainText:     payload.PlainText || defaults.PlainText,
		MakeDefault:   defaults.MakeDefault,
		Overwrite:     payload.Overwrite || defaults.Overwrite,
	}, nil
}

// JobExecutor runs queued merge jobs. settings is consulted for every job so
// runtime changes apply to jobs that have not started yet.
func (m *Merger) JobExecutor(settings func() config.MergeConfig) jobs.Executor {
	return func(ctx context.Context, job *jobs.MergeJob) (jobs.Result, error) {
		req, err := RequestFromJob(job.Payload, settings())
		if err != nil {
			return jobs.Result{}, err
		}

		plan, err := m.Merge(ctx, req)
		if err != nil {
			return jobs.Result{Output: plan.Output}, err
		}

		switch plan.Status {
		case PlanOK:
			return jobs.Result{
				Output:  plan.Output,
				Message: fmt.Sprintf("merged %s and %s into %d cues", plan.Upper, plan.Lower, plan.Merged.Len()),
			}, nil
		case PlanDuplicate, PlanNotPossible:
			return jobs.Result{Output: plan.Output, Message: plan.Reason}, fmt.Errorf("%s: %w", plan.Reason, jobs.ErrSkipped)
		default:
			return jobs.Result{}, NewError(ErrFailedToLoad, plan.Reason).WithContext("video", req.VideoPath)
		}
	}
}
