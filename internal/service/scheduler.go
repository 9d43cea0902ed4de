package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/jobs"
	"github.com/MimeLyc/bilingual-sub-merger/internal/library"
	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/file"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/icron"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

// Scheduler periodically looks for new videos and queues automatic merges.
type Scheduler struct {
	scanner *library.Scanner
	queue   *jobs.Queue
	cron    *cron.Cron
	group   singleflight.Group

	mu          sync.Mutex
	cfg         config.MergeConfig
	entryID     cron.EntryID
	scheduled   bool
	ctx         context.Context
	lastTrigger time.Time
	now         func() time.Time
}

// RunReport describes one scheduled run.
type RunReport struct {
	ID       string    `json:"id"`
	Since    time.Time `json:"since"`
	Checked  int       `json:"checked"`
	Enqueued int       `json:"enqueued"`
	Skipped  int       `json:"skipped"`
}

func NewScheduler(cfg config.MergeConfig, scanner *library.Scanner, queue *jobs.Queue, engine *cron.Cron) *Scheduler {
	return &Scheduler{
		scanner: scanner,
		queue:   queue,
		cron:    engine,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Settings returns the merge configuration currently in use.
func (s *Scheduler) Settings() config.MergeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Scheduler) Schedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
	return s.scheduleLocked()
}

func (s *Scheduler) scheduleLocked() error {
	if s.scheduled {
		s.cron.Remove(s.entryID)
		s.scheduled = false
	}
	if strings.TrimSpace(s.cfg.CronExpr) == "" {
		log.Info("No cron expression, scheduled merges are disabled")
		return nil
	}

	ctx := s.ctx
	id, err := s.cron.AddFunc(s.cfg.CronExpr, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Error("Scheduled run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.cfg.CronExpr, err)
	}
	s.entryID = id
	s.scheduled = true
	log.Info("Scheduled merges with %q", s.cfg.CronExpr)
	return nil
}

// ApplyRuntimeSettings updates the merge configuration and reschedules.
func (s *Scheduler) ApplyRuntimeSettings(settings config.RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	upper, err := language.Parse(settings.UpperLanguage)
	if err != nil {
		return err
	}
	lower, err := language.Parse(settings.LowerLanguage)
	if err != nil {
		return err
	}
	mode, err := config.ParseMergeMode(settings.MergeMode)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cronChanged := s.cfg.CronExpr != settings.CronExpr
	s.cfg.UpperLanguage = upper
	s.cfg.LowerLanguage = lower
	s.cfg.Mode = mode
	s.cfg.PlainText = settings.PlainText
	s.cfg.MakeDefault = settings.MakeDefault
	s.cfg.Overwrite = settings.Overwrite
	s.cfg.CronExpr = settings.CronExpr

	if cronChanged && s.ctx != nil {
		return s.scheduleLocked()
	}
	return nil
}

// RunOnce scans the library and queues merges for videos changed since the
// previous run. Concurrent calls share one run.
func (s *Scheduler) RunOnce(ctx context.Context) (RunReport, error) {
	v, err, _ := s.group.Do("run", func() (any, error) {
		return s.run(ctx)
	})
	if err != nil {
		return RunReport{}, err
	}
	return v.(RunReport), nil
}

func (s *Scheduler) run(ctx context.Context) (RunReport, error) {
	report := RunReport{ID: uuid.NewString()}
	started := s.now()

	since, err := s.startTime()
	if err != nil {
		return report, err
	}
	report.Since = since
	log.Info("Run %s: looking for videos changed after %v", report.ID, since)

	recent := make(map[string]bool)
	for _, source := range s.scanner.Sources() {
		paths, err := file.FindRecentAfter(source.Path, since, func(path string) bool {
			return library.IsVideoFile(path) || strings.EqualFold(filepath.Ext(path), ".srt")
		})
		if err != nil {
			log.Error("Run %s: failed to search %s: %v", report.ID, source.Path, err)
			continue
		}
		for _, path := range paths {
			recent[filepath.Clean(path)] = true
		}
	}

	s.scanner.Invalidate()
	lib, err := s.scanner.Scan(ctx)
	if err != nil {
		return report, err
	}

	cfg := s.Settings()
	for _, video := range lib.Videos {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !changedSince(video, recent) {
			continue
		}
		report.Checked++

		if reason := skipReason(video, cfg); reason != "" {
			log.Debug("Run %s: skipping %s: %s", report.ID, video.Path, reason)
			report.Skipped++
			continue
		}

		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source: "cron",
			Payload: jobs.JobPayload{
				VideoFile: video.Path,
				Mode:      string(cfg.Mode),
				PlainText: cfg.PlainText,
				Overwrite: cfg.Overwrite,
			},
		})
		if created {
			log.Info("Run %s: queued %s as %s", report.ID, video.Path, job.ID)
			report.Enqueued++
		} else {
			report.Skipped++
		}
	}

	s.mu.Lock()
	s.lastTrigger = started
	s.mu.Unlock()

	log.Info("Run %s: checked %d videos, queued %d, skipped %d", report.ID, report.Checked, report.Enqueued, report.Skipped)
	return report, nil
}

// startTime is the previous run, or on the first run a point derived from
// the cron expression: a week back when it fired recently, else its last trigger.
func (s *Scheduler) startTime() (time.Time, error) {
	s.mu.Lock()
	last := s.lastTrigger
	cronExpr := s.cfg.CronExpr
	s.mu.Unlock()

	if !last.IsZero() {
		return last, nil
	}

	now := s.now()
	week := now.Add(-7 * 24 * time.Hour)
	if strings.TrimSpace(cronExpr) == "" {
		return week, nil
	}
	info, err := icron.GetTriggerInfo(cronExpr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get cron schedule: %w", err)
	}
	if info.Last.IsZero() || now.Add(-24*time.Hour).Before(info.Last) {
		return week, nil
	}
	return info.Last, nil
}

func changedSince(video library.Video, recent map[string]bool) bool {
	if recent[video.Path] {
		return true
	}
	for _, sub := range video.External {
		if recent[filepath.Clean(sub.Path)] {
			return true
		}
	}
	return false
}

func skipReason(video library.Video, cfg config.MergeConfig) string {
	if video.ProbeError != "" {
		return "probe failed"
	}
	probe := media.Probe{Format: video.Format, Streams: video.Streams}
	if len(probe.StreamsByLanguage(cfg.UpperLanguage)) == 0 || len(probe.StreamsByLanguage(cfg.LowerLanguage)) == 0 {
		return "no streams for both languages"
	}
	if cfg.Mode == config.ModeInject && video.Format != media.FormatMatroska {
		return "not a matroska video"
	}
	if cfg.Mode != config.ModeInject && len(video.MergedFiles) > 0 && !cfg.Overwrite {
		return "already merged"
	}
	return ""
}
