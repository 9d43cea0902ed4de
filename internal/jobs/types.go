package jobs

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ErrSkipped marks a job that finished without producing anything,
// e.g. when the merged result duplicates one of its inputs.
var ErrSkipped = errors.New("job skipped")

type SourceType string

const (
	SourceBuiltIn  SourceType = "builtin"
	SourceExternal SourceType = "external"
)

// SourceRef points at one subtitle track of a merge. An empty Type asks the
// executor to pick the best stream for the configured language.
type SourceRef struct {
	Type        SourceType `json:"type,omitempty"`
	StreamIndex int        `json:"stream_index,omitempty"`
	Language    string     `json:"language,omitempty"`
	Title       string     `json:"title,omitempty"`
	Path        string     `json:"path,omitempty"`
	Charset     string     `json:"charset,omitempty"`
}

func (r SourceRef) IsAuto() bool {
	return r.Type == ""
}

func (r SourceRef) key() string {
	switch r.Type {
	case SourceBuiltIn:
		return "stream:" + strconv.Itoa(r.StreamIndex)
	case SourceExternal:
		return "file:" + r.Path
	default:
		return "auto"
	}
}

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

type JobPayload struct {
	VideoFile string    `json:"video_file"`
	Upper     SourceRef `json:"upper"`
	Lower     SourceRef `json:"lower"`
	Mode      string    `json:"mode,omitempty"`
	PlainText bool      `json:"plain_text,omitempty"`
	Overwrite bool      `json:"overwrite,omitempty"`
}

// DedupeKey identifies the work a payload describes.
func (p JobPayload) DedupeKey() string {
	return strings.Join([]string{p.VideoFile, p.Upper.key(), p.Lower.key()}, "|")
}

// Result is what an executor reports for a finished job.
type Result struct {
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
}

type MergeJob struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Output    string     `json:"output,omitempty"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (j *MergeJob) Terminal() bool {
	return j.Status != StatusPending && j.Status != StatusRunning
}
