package service

import (
	"context"

	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

// FileResult is the outcome of one request of a batch.
type FileResult struct {
	VideoPath string     `json:"video_path"`
	Status    PlanStatus `json:"-"`
	State     string     `json:"status"`
	Output    string     `json:"output,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Err       error      `json:"-"`
	Error     string     `json:"error,omitempty"`
}

type BatchResult struct {
	Files  []FileResult `json:"files"`
	Counts BatchCounts  `json:"counts"`
	Result ActionResult `json:"result"`
}

// Batch merges the requests one after another. Cancellation is checked
// between files, a running merge is allowed to finish.
func (m *Merger) Batch(ctx context.Context, reqs []MergeRequest) BatchResult {
	ret := BatchResult{
		Files:  make([]FileResult, 0, len(reqs)),
		Counts: BatchCounts{All: len(reqs)},
	}

	for i, req := range reqs {
		if ctx.Err() != nil {
			log.Info("Batch cancelled after %d/%d files", i, len(reqs))
			break
		}
		log.Info("%d/%d processing %s", i+1, len(reqs), req.VideoPath)

		res := m.mergeOne(ctx, req)
		if res.Err != nil && ctx.Err() != nil {
			// interrupted mid-file, counts as not processed
			break
		}
		ret.Counts.Processed++
		switch {
		case res.Err != nil:
			ret.Counts.Failed++
		case res.Status == PlanOK:
			ret.Counts.Success++
		case res.Status == PlanDuplicate:
			ret.Counts.Duplicate++
		case res.Status == PlanNotPossible:
			ret.Counts.NotPossible++
		default:
			ret.Counts.Failed++
		}
		ret.Files = append(ret.Files, res)
	}

	ret.Result = ret.Counts.ActionResult()
	return ret
}

func (m *Merger) mergeOne(ctx context.Context, req MergeRequest) FileResult {
	res := FileResult{VideoPath: req.VideoPath}
	var plan MergePlan
	err := SafeExecute(func() error {
		var err error
		plan, err = m.Merge(ctx, req)
		return err
	})
	res.Status = plan.Status
	res.Reason = plan.Reason
	res.Output = plan.Output
	res.State = plan.Status.String()
	if err != nil {
		log.Error("Failed to merge %s: %v", req.VideoPath, err)
		res.Err = err
		res.Error = err.Error()
		res.State = "failed"
	}
	return res
}
