package service

import (
	"fmt"
	"strings"
)

// ActionResult summarizes an action over several files. Any combination of
// the three texts may be set.
type ActionResult struct {
	Success string `json:"success,omitempty"`
	Warn    string `json:"warn,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (r ActionResult) IsEmpty() bool {
	return r.Success == "" && r.Warn == "" && r.Error == ""
}

func (r ActionResult) String() string {
	parts := make([]string, 0, 3)
	for _, text := range []string{r.Success, r.Warn, r.Error} {
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", ")
}

// BatchCounts are the per-outcome file counts of a batch.
type BatchCounts struct {
	All         int `json:"all"`
	Processed   int `json:"processed"`
	Success     int `json:"success"`
	Duplicate   int `json:"duplicate"`
	NotPossible int `json:"not_possible"`
	Failed      int `json:"failed"`
}

func (c BatchCounts) ActionResult() ActionResult {
	var ret ActionResult
	switch {
	case c.All == 0:
		return ret
	case c.Processed == 0:
		ret.Warn = "Task has been cancelled, nothing was done"
	case c.Success == c.All:
		ret.Success = countText(c.Success,
			"Merge has finished successfully for the file",
			"Merge has finished successfully for all %d files")
	case c.NotPossible == c.All:
		ret.Warn = countText(c.NotPossible,
			"Merge is not possible for this file",
			"Merge is not possible for all %d files")
	case c.Duplicate == c.All:
		ret.Warn = countText(c.Duplicate,
			"Merged subtitles duplicate existing ones for the file",
			"Merged subtitles duplicate existing ones for all %d files")
	case c.Failed == c.All:
		ret.Error = countText(c.Failed,
			"Failed to merge the file",
			"Failed to merge all %d files")
	default:
		if c.Success != 0 {
			ret.Success = fmt.Sprintf("Merge has finished for %d/%d files successfully", c.Success, c.All)
		}

		warnings := make([]string, 0, 3)
		if c.Processed != c.All {
			warnings = append(warnings, fmt.Sprintf("cancelled for %d/%d", c.All-c.Processed, c.All))
		}
		if c.NotPossible != 0 {
			warnings = append(warnings, fmt.Sprintf("not possible for %d/%d", c.NotPossible, c.All))
		}
		if c.Duplicate != 0 {
			warnings = append(warnings, fmt.Sprintf("duplicate for %d/%d", c.Duplicate, c.All))
		}
		if len(warnings) > 0 {
			ret.Warn = strings.Join(warnings, ", ")
			if c.Success == 0 {
				ret.Warn = "Merge has been " + ret.Warn
			}
		}

		if c.Failed != 0 {
			ret.Error = fmt.Sprintf("failed for %d/%d", c.Failed, c.All)
		}
	}
	return ret
}

// countText picks the singular text for one item and formats the plural one
// with the count otherwise.
func countText(count int, one string, many string) string {
	if count == 1 {
		return one
	}
	if strings.Contains(many, "%d") {
		return fmt.Sprintf(many, count)
	}
	return many
}
