package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, language.English, cfg.Merge.UpperLanguage)
	assert.Equal(t, language.Russian, cfg.Merge.LowerLanguage)
	assert.Equal(t, ModeSeparateFile, cfg.Merge.Mode)
	assert.True(t, cfg.Merge.MakeDefault)
	assert.False(t, cfg.Merge.PlainText)
	assert.Equal(t, "0 3 * * *", cfg.Merge.CronExpr)
	assert.Equal(t, 1, cfg.System.JobWorkers)
}

func TestNewFromEnv_HTTPFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("UI_ENABLED", "false")
	t.Setenv("UI_STATIC_DIR", "/srv/web")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, HTTPConfig{Addr: "127.0.0.1:9000", UIEnabled: false, UIStaticDir: "/srv/web"}, cfg.HTTP)
}

func TestNewFromEnv_MergeFromEnv(t *testing.T) {
	t.Setenv("UPPER_LANGUAGE", "ja")
	t.Setenv("LOWER_LANGUAGE", "en")
	t.Setenv("MERGE_MODE", "inject")
	t.Setenv("PLAIN_TEXT", "true")
	t.Setenv("JOB_WORKERS", "3")
	t.Setenv("VIDEO_DIRS", strings.Join([]string{"/movies", "/series"}, string(filepath.ListSeparator)))

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "ja", cfg.Merge.UpperLanguage.String())
	assert.Equal(t, "en", cfg.Merge.LowerLanguage.String())
	assert.Equal(t, ModeInject, cfg.Merge.Mode)
	assert.True(t, cfg.Merge.PlainText)
	assert.Equal(t, 3, cfg.System.JobWorkers)
	assert.Equal(t, []string{"/movies", "/series"}, cfg.Media.VideoDirs)
}

func TestNewFromEnv_RejectsInvalidMerge(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "same languages", env: map[string]string{"UPPER_LANGUAGE": "en", "LOWER_LANGUAGE": "en"}},
		{name: "bad cron", env: map[string]string{"CRON_EXPR": "not a cron"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			_, err := NewFromEnv()
			require.Error(t, err)
		})
	}
}

func TestParseMergeMode(t *testing.T) {
	mode, err := ParseMergeMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSeparateFile, mode)

	mode, err = ParseMergeMode(" Inject ")
	require.NoError(t, err)
	assert.Equal(t, ModeInject, mode)

	_, err = ParseMergeMode("burn")
	require.Error(t, err)
}
