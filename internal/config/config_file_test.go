package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submerge.toml")
	content := `
[merge]
upper_language = "ja"
lower_language = "en"
mode = "inject"
plain_text = true

[media]
video_dirs = ["/anime"]
sort_by = "size"

[system]
job_workers = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "ja", cfg.Merge.UpperLanguage.String())
	assert.Equal(t, "en", cfg.Merge.LowerLanguage.String())
	assert.Equal(t, ModeInject, cfg.Merge.Mode)
	assert.True(t, cfg.Merge.PlainText)
	assert.True(t, cfg.Merge.MakeDefault)
	assert.Equal(t, []string{"/anime"}, cfg.Media.VideoDirs)
	assert.Equal(t, "size", cfg.Media.SortBy)
	assert.Equal(t, "ffprobe", cfg.Media.FFprobePath)
	assert.Equal(t, 2, cfg.System.JobWorkers)
}

func TestNewFromEnv_EnvOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submerge.toml")
	require.NoError(t, os.WriteFile(path, []byte("[merge]\nupper_language = \"ja\"\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("UPPER_LANGUAGE", "de")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "de", cfg.Merge.UpperLanguage.String())
}

func TestNewFromEnv_MissingConfigFileIgnored(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Merge.UpperLanguage.String())
}

func TestLoadDotEnv(t *testing.T) {
	const key = "SUBMERGE_DOTENV_TEST_VALUE"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-dotenv\n"), 0o644))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-dotenv", os.Getenv(key))
}
