package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/bilingual-sub-merger/internal/jobs"
	"github.com/MimeLyc/bilingual-sub-merger/internal/subtitle"
)

const (
	defaultJobPreviewLimit = 80
	maxJobPreviewLimit     = 500
)

var (
	errJobNotFound   = errors.New("job not found")
	errJobInProgress = errors.New("job is running")
)

type jobDetailResponse struct {
	Job           *jobs.MergeJob  `json:"job"`
	Video         jobVideoInfo    `json:"video"`
	Preview       []jobPreviewCue `json:"preview"`
	PreviewOffset int             `json:"preview_offset"`
	PreviewLimit  int             `json:"preview_limit"`
	TotalCues     int             `json:"total_cues"`
	Retryable     bool            `json:"retryable"`
}

type jobVideoInfo struct {
	Name   string `json:"name"`
	Dir    string `json:"dir"`
	Path   string `json:"path"`
	Output string `json:"output,omitempty"`
}

type jobPreviewCue struct {
	Index int      `json:"index"`
	Start string   `json:"start"`
	End   string   `json:"end"`
	Lines []string `json:"lines"`
}

func (s *Server) handleJobDetailRoutes(w http.ResponseWriter, r *http.Request) {
	jobID, action, ok := parseJobRoute(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch action {
	case "":
		s.handleJobDetail(w, r, jobID)
	case "retry":
		s.handleRetryJob(w, r, jobID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func parseJobRoute(path string) (jobID string, action string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/api/jobs/")
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 2 {
		return "", "", false
	}
	rawID, err := url.PathUnescape(parts[0])
	if err != nil || strings.TrimSpace(rawID) == "" {
		return "", "", false
	}
	if len(parts) == 1 {
		return rawID, "", true
	}
	return rawID, parts[1], true
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	offset := parsePositiveIntWithDefault(r.URL.Query().Get("offset"), 0)
	limit := parsePositiveIntWithDefault(r.URL.Query().Get("limit"), defaultJobPreviewLimit)
	if limit <= 0 {
		limit = defaultJobPreviewLimit
	}
	if limit > maxJobPreviewLimit {
		limit = maxJobPreviewLimit
	}

	detail, err := s.buildJobDetail(jobID, offset, limit)
	if err != nil {
		switch {
		case errors.Is(err, errJobNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeServiceError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleRetryJob queues the payload of a finished job again.
func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	job, ok := s.queue.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, errJobNotFound.Error())
		return
	}
	if !job.Terminal() {
		writeError(w, http.StatusConflict, errJobInProgress.Error())
		return
	}

	next, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    "retry",
		DedupeKey: job.DedupeKey,
		Payload:   job.Payload,
	})
	code := http.StatusCreated
	if !created {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"created": created,
		"job":     next,
	})
}

func parsePositiveIntWithDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (s *Server) buildJobDetail(jobID string, offset int, limit int) (jobDetailResponse, error) {
	job, ok := s.queue.Get(jobID)
	if !ok {
		return jobDetailResponse{}, errJobNotFound
	}

	doc, err := readMergedOutput(job)
	if err != nil {
		return jobDetailResponse{}, err
	}

	videoPath := job.Payload.VideoFile
	return jobDetailResponse{
		Job: job,
		Video: jobVideoInfo{
			Name:   strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath)),
			Dir:    filepath.Base(filepath.Dir(videoPath)),
			Path:   videoPath,
			Output: job.Output,
		},
		Preview:       buildPreviewCues(doc, offset, limit),
		PreviewOffset: offset,
		PreviewLimit:  limit,
		TotalCues:     doc.Len(),
		Retryable:     job.Terminal(),
	}, nil
}

// readMergedOutput loads the separate file written by a successful job.
// Injected results and missing files yield an empty document.
func readMergedOutput(job *jobs.MergeJob) (subtitle.Document, error) {
	output := strings.TrimSpace(job.Output)
	if job.Status != jobs.StatusSuccess || output == "" || !strings.EqualFold(filepath.Ext(output), ".srt") {
		return subtitle.Document{}, nil
	}
	raw, err := os.ReadFile(output)
	if err != nil {
		if os.IsNotExist(err) {
			return subtitle.Document{}, nil
		}
		return subtitle.Document{}, err
	}
	return subtitle.ParseBytes(raw)
}

func buildPreviewCues(doc subtitle.Document, offset int, limit int) []jobPreviewCue {
	total := doc.Len()
	if total <= 0 || offset >= total {
		return []jobPreviewCue{}
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultJobPreviewLimit
	}

	end := min(total, offset+limit)
	ret := make([]jobPreviewCue, 0, end-offset)
	for i := offset; i < end; i++ {
		cue := doc.Cues[i]
		ret = append(ret, jobPreviewCue{
			Index: i + 1,
			Start: formatOffset(cue.Start),
			End:   formatOffset(cue.End),
			Lines: cue.Lines,
		})
	}
	return ret
}

func formatOffset(d time.Duration) string {
	return d.Truncate(time.Millisecond).String()
}
