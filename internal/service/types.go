package service

import (
	"golang.org/x/text/language"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/subtitle"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/file"
)

// MergeRequest describes the merge of one video. A nil Upper or Lower is
// selected automatically among the built-in streams of its language.
type MergeRequest struct {
	VideoPath     string
	Upper         Source
	Lower         Source
	UpperLanguage language.Tag
	LowerLanguage language.Tag
	Mode          config.MergeMode
	PlainText     bool
	MakeDefault   bool
	Overwrite     bool
}

type PlanStatus int

const (
	PlanOK PlanStatus = iota
	PlanDuplicate
	PlanFailedToLoad
	PlanNotPossible
)

func (s PlanStatus) String() string {
	switch s {
	case PlanOK:
		return "ok"
	case PlanDuplicate:
		return "duplicate"
	case PlanFailedToLoad:
		return "failed_to_load"
	case PlanNotPossible:
		return "not_possible"
	default:
		return "unknown"
	}
}

// MergePlan is the outcome of preparing a merge. Merged is set for PlanOK
// and PlanDuplicate.
type MergePlan struct {
	Request      MergeRequest
	Status       PlanStatus
	Reason       string
	Upper        Source
	Lower        Source
	Merged       subtitle.Document
	Output       string
	Overwrites   bool
	FailedToLoad int
}

// OutputPath is the separate file written for a merge, e.g. movie_eng-rus.srt.
func OutputPath(videoPath string, upper, lower Source) string {
	return file.TrimExt(videoPath) + "_" + upper.Label() + "-" + lower.Label() + ".srt"
}

// StreamTitle is the title given to an injected stream.
func StreamTitle(upper, lower Source) string {
	return "Merged " + upper.Label() + "-" + lower.Label()
}
