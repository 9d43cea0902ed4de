package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/jobs"
	"github.com/MimeLyc/bilingual-sub-merger/internal/library"
	"github.com/MimeLyc/bilingual-sub-merger/internal/service"
	"github.com/MimeLyc/bilingual-sub-merger/internal/subtitle"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	lib, err := s.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lib.Sources)
}

type videoResponse struct {
	library.Video
	InProgress bool        `json:"in_progress"`
	JobStatus  jobs.Status `json:"job_status,omitempty"`
	JobSource  string      `json:"job_source,omitempty"`
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	lib, err := s.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sourceID := r.URL.Query().Get("source")
	activeJobsByVideo := inProgressJobsByVideo(s.queue.List())
	ret := make([]videoResponse, 0, len(lib.Videos))
	for _, video := range lib.Videos {
		if sourceID != "" && video.SourceID != sourceID {
			continue
		}
		ret = append(ret, withJobState(video, activeJobsByVideo))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	videoPath := strings.TrimSpace(r.URL.Query().Get("path"))
	if videoPath == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	video, ok, err := s.scanner.Find(r.Context(), videoPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "video not found")
		return
	}
	writeJSON(w, http.StatusOK, withJobState(video, inProgressJobsByVideo(s.queue.List())))
}

func withJobState(video library.Video, active map[string]*jobs.MergeJob) videoResponse {
	ret := videoResponse{Video: video}
	if job, ok := active[video.Path]; ok {
		ret.InProgress = true
		ret.JobStatus = job.Status
		ret.JobSource = job.Source
	}
	return ret
}

func inProgressJobsByVideo(jobList []*jobs.MergeJob) map[string]*jobs.MergeJob {
	ret := make(map[string]*jobs.MergeJob)
	for _, job := range jobList {
		if job == nil || job.Payload.VideoFile == "" {
			continue
		}
		if job.Status != jobs.StatusPending && job.Status != jobs.StatusRunning {
			continue
		}
		existing, ok := ret[job.Payload.VideoFile]
		if !ok || preferInProgressJob(job, existing) {
			ret[job.Payload.VideoFile] = job
		}
	}
	return ret
}

func preferInProgressJob(next, current *jobs.MergeJob) bool {
	nextRank := inProgressRank(next.Status)
	currentRank := inProgressRank(current.Status)
	if nextRank != currentRank {
		return nextRank > currentRank
	}
	return next.UpdatedAt.After(current.UpdatedAt)
}

func inProgressRank(status jobs.Status) int {
	switch status {
	case jobs.StatusRunning:
		return 2
	case jobs.StatusPending:
		return 1
	default:
		return 0
	}
}

type enqueueJobRequest struct {
	Source    string         `json:"source"`
	DedupeKey string         `json:"dedupe_key"`
	VideoPath string         `json:"video_path"`
	Upper     jobs.SourceRef `json:"upper"`
	Lower     jobs.SourceRef `json:"lower"`
	Mode      string         `json:"mode"`
	PlainText bool           `json:"plain_text"`
	Overwrite bool           `json:"overwrite"`
}

func (req enqueueJobRequest) validate() error {
	if strings.TrimSpace(req.VideoPath) == "" {
		return errors.New("video_path is required")
	}
	if _, err := config.ParseMergeMode(req.Mode); err != nil {
		return err
	}
	for _, ref := range []jobs.SourceRef{req.Upper, req.Lower} {
		if _, err := service.SourceFromRef(ref); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.queue.List())
	case http.MethodPost:
		var req enqueueJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Source == "" {
			req.Source = "manual"
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    req.Source,
			DedupeKey: req.DedupeKey,
			Payload: jobs.JobPayload{
				VideoFile: req.VideoPath,
				Upper:     req.Upper,
				Lower:     req.Lower,
				Mode:      req.Mode,
				PlainText: req.PlainText,
				Overwrite: req.Overwrite,
			},
		})
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": created,
			"job":     job,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.scanner.Invalidate()

	if r.URL.Query().Get("enqueue") != "true" {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"ok": true,
		})
		return
	}
	if s.runner == nil {
		writeError(w, http.StatusNotImplemented, "scheduled merges are not configured")
		return
	}
	report, err := s.runner.RunOnce(r.Context())
	if err != nil {
		writeServiceError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type previewRequest struct {
	Upper     string `json:"upper"`
	Lower     string `json:"lower"`
	PlainText bool   `json:"plain_text"`
}

type previewResponse struct {
	Merged        string `json:"merged"`
	Cues          int    `json:"cues"`
	UpperLanguage string `json:"upper_language,omitempty"`
	LowerLanguage string `json:"lower_language,omitempty"`
}

type formatErrorResponse struct {
	Error string `json:"error"`
	Side  string `json:"side"`
	Kind  string `json:"kind"`
	Block int    `json:"block,omitempty"`
	Line  int    `json:"line,omitempty"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	docs := make([]subtitle.Document, 0, 2)
	for _, side := range []struct {
		name string
		text string
	}{{"upper", req.Upper}, {"lower", req.Lower}} {
		doc, err := subtitle.Parse(side.text)
		if err != nil {
			writeFormatError(w, side.name, err)
			return
		}
		docs = append(docs, doc)
	}

	merged := subtitle.Merge(docs[0], docs[1])
	resp := previewResponse{
		Merged: subtitle.Write(merged, req.PlainText),
		Cues:   merged.Len(),
	}
	if tag := subtitle.DetectLanguage(docs[0]); !tag.IsRoot() {
		resp.UpperLanguage = tag.String()
	}
	if tag := subtitle.DetectLanguage(docs[1]); !tag.IsRoot() {
		resp.LowerLanguage = tag.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeFormatError(w http.ResponseWriter, side string, err error) {
	var formatErr *subtitle.FormatError
	if !errors.As(err, &formatErr) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, formatErrorResponse{
		Error: side + " subtitles: " + formatErr.Error(),
		Side:  side,
		Kind:  formatErr.Kind.String(),
		Block: formatErr.Block,
		Line:  formatErr.Line,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "settings store is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.GetRuntimeSettings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var req config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		saved, err := s.settings.UpdateRuntimeSettings(req)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if s.apply != nil {
			if err := s.apply(saved); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

// writeServiceError adds the resolution hint of merge errors to the response.
func writeServiceError(w http.ResponseWriter, status int, err error) {
	advice := service.Advice(err)
	if advice == "" {
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, status, map[string]any{
		"error":  err.Error(),
		"advice": advice,
	})
}
