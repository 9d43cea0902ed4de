package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/jobs"
	"github.com/MimeLyc/bilingual-sub-merger/internal/library"
	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
)

func newTestScheduler(t *testing.T, dir string, op *mockOperator) (*Scheduler, *jobs.Queue) {
	t.Helper()
	scanner := library.NewScanner(
		[]library.SourceConfig{{ID: "videos", Name: "Videos", Path: dir}},
		library.WithStreamProber(op),
	)
	queue := jobs.NewQueue(1, nil)
	scheduler := NewScheduler(config.Default().Merge, scanner, queue, cron.New())
	return scheduler, queue
}

func TestSchedulerRunOnce(t *testing.T) {
	dir := t.TempDir()
	bilingual := writeFile(t, filepath.Join(dir, "a.mkv"), "video")
	englishOnly := writeFile(t, filepath.Join(dir, "b.mkv"), "video")

	op := &mockOperator{}
	op.On("Probe", mock.Anything, bilingual).Return(bilingualProbe(bilingual), nil)
	op.On("Probe", mock.Anything, englishOnly).Return(media.Probe{
		Format:  media.FormatMatroska,
		Streams: []media.Stream{subripStream(2, "eng")},
	}, nil)

	scheduler, queue := newTestScheduler(t, dir, op)
	future := time.Now().Add(time.Hour)
	scheduler.now = func() time.Time { return future }

	report, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, future.Add(-7*24*time.Hour), report.Since)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Enqueued)
	assert.Equal(t, 1, report.Skipped)

	list := queue.List()
	require.Len(t, list, 1)
	assert.Equal(t, "cron", list[0].Source)
	assert.Equal(t, bilingual, list[0].Payload.VideoFile)
	assert.True(t, list[0].Payload.Upper.IsAuto())
	assert.Equal(t, string(config.ModeSeparateFile), list[0].Payload.Mode)

	// nothing changed after the previous run
	report, err = scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, future, report.Since)
	assert.Equal(t, 0, report.Checked)
	assert.Len(t, queue.List(), 1)
}

func TestSchedulerSkipsMergedVideos(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, filepath.Join(dir, "a.mkv"), "video")
	writeFile(t, filepath.Join(dir, "a_eng-rus.srt"), mergedLongRus)

	op := &mockOperator{}
	op.On("Probe", mock.Anything, video).Return(bilingualProbe(video), nil)

	scheduler, queue := newTestScheduler(t, dir, op)
	report, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, queue.List())
}

func TestSkipReason(t *testing.T) {
	cfg := config.Default().Merge
	streams := bilingualProbe("").Streams

	tests := []struct {
		name   string
		video  library.Video
		mutate func(cfg *config.MergeConfig)
		want   string
	}{
		{name: "ready", video: library.Video{Format: media.FormatMatroska, Streams: streams}},
		{name: "probe failed", video: library.Video{ProbeError: "boom"}, want: "probe failed"},
		{name: "missing language", video: library.Video{Streams: streams[:2]}, want: "no streams for both languages"},
		{
			name:   "inject into mp4",
			video:  library.Video{Format: media.FormatOther, Streams: streams},
			mutate: func(cfg *config.MergeConfig) { cfg.Mode = config.ModeInject },
			want:   "not a matroska video",
		},
		{
			name:  "already merged",
			video: library.Video{Streams: streams, MergedFiles: []string{"/videos/a_eng-rus.srt"}},
			want:  "already merged",
		},
		{
			name:   "merged but overwriting",
			video:  library.Video{Streams: streams, MergedFiles: []string{"/videos/a_eng-rus.srt"}},
			mutate: func(cfg *config.MergeConfig) { cfg.Overwrite = true },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			if tt.mutate != nil {
				tt.mutate(&c)
			}
			assert.Equal(t, tt.want, skipReason(tt.video, c))
		})
	}
}

func TestSchedulerApplyRuntimeSettings(t *testing.T) {
	engine := cron.New()
	scheduler := NewScheduler(config.Default().Merge, library.NewScanner(nil), jobs.NewQueue(1, nil), engine)

	require.NoError(t, scheduler.Schedule(context.Background()))
	require.Len(t, engine.Entries(), 1)
	firstID := engine.Entries()[0].ID

	settings := config.Default().RuntimeSettings()
	settings.UpperLanguage = "ja"
	settings.MergeMode = "inject"
	settings.CronExpr = "*/5 * * * *"
	require.NoError(t, scheduler.ApplyRuntimeSettings(settings))

	require.Len(t, engine.Entries(), 1)
	assert.NotEqual(t, firstID, engine.Entries()[0].ID)
	got := scheduler.Settings()
	assert.Equal(t, "ja", got.UpperLanguage.String())
	assert.Equal(t, config.ModeInject, got.Mode)
	assert.Equal(t, "*/5 * * * *", got.CronExpr)

	settings.CronExpr = "not a cron"
	assert.Error(t, scheduler.ApplyRuntimeSettings(settings))
	assert.Equal(t, "*/5 * * * *", scheduler.Settings().CronExpr)
}
