package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

// Config holds all application configuration.
// Values come from, in increasing priority: defaults, an optional TOML file
// (CONFIG_FILE), environment variables (optionally loaded from a .env file)
// and the runtime settings file written by the HTTP API.
//
// Environment Variables:
// Merge Configuration:
// - UPPER_LANGUAGE: language shown on top (default: en)
// - LOWER_LANGUAGE: language shown below (default: ru)
// - MERGE_MODE: "file" writes a separate .srt, "inject" adds a stream to mkv videos (default: file)
// - PLAIN_TEXT: strip markup tags from merged subtitles (default: false)
// - MAKE_DEFAULT: mark an injected stream as default (default: true)
// - OVERWRITE: replace existing merged files (default: false)
// - CRON_EXPR: schedule of library runs (default: 0 3 * * *)
//
// Media Configuration:
// - VIDEO_DIRS: list of video directories separated by the OS path list separator (default: /videos)
// - FFMPEG_PATH / FFPROBE_PATH: binaries (default: ffmpeg / ffprobe)
// - SORT_BY: name | modification_time | size (default: name)
// - SORT_DIRECTION: asc | desc (default: asc)
// - DETECT_LANGUAGES: guess languages of unlabeled subtitle files (default: true)
//
// System Configuration:
// - HTTP_ADDR: API listen address (default: :8080)
// - UI_ENABLED / UI_STATIC_DIR: serve the web UI from a directory (default: true, /app/web)
// - DATA_DIR: database and lock directory (default: /app/data)
// - JOB_WORKERS: parallel merge workers (default: 1)
// - LOG_LEVEL: debug | info | warn | error (default: info)
// - LOG_FILE: optional log file
type Config struct {
	Merge  MergeConfig  `json:"merge"`
	Media  MediaConfig  `json:"media"`
	HTTP   HTTPConfig   `json:"http"`
	System SystemConfig `json:"system"`
}

type MergeMode string

const (
	ModeSeparateFile MergeMode = "file"
	ModeInject       MergeMode = "inject"
)

func ParseMergeMode(value string) (MergeMode, error) {
	switch MergeMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeSeparateFile:
		return ModeSeparateFile, nil
	case ModeInject:
		return ModeInject, nil
	default:
		return "", fmt.Errorf("unknown merge mode %q", value)
	}
}

type MergeConfig struct {
	UpperLanguage language.Tag `json:"upper_language"`
	LowerLanguage language.Tag `json:"lower_language"`
	Mode          MergeMode    `json:"mode"`
	PlainText     bool         `json:"plain_text"`
	MakeDefault   bool         `json:"make_default"`
	Overwrite     bool         `json:"overwrite"`
	CronExpr      string       `json:"cron_expr"`
}

type MediaConfig struct {
	VideoDirs       []string      `json:"video_dirs" toml:"video_dirs"`
	FFmpegPath      string        `json:"ffmpeg_path" toml:"ffmpeg_path"`
	FFprobePath     string        `json:"ffprobe_path" toml:"ffprobe_path"`
	SortBy          string        `json:"sort_by" toml:"sort_by"`
	SortDirection   string        `json:"sort_direction" toml:"sort_direction"`
	DetectLanguages bool          `json:"detect_languages" toml:"detect_languages"`
	ScanCacheTTL    time.Duration `json:"scan_cache_ttl" toml:"-"`
}

func (c MediaConfig) MediaPaths() []string {
	ret := make([]string, 0, len(c.VideoDirs))
	for _, dir := range c.VideoDirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			ret = append(ret, dir)
		}
	}
	return ret
}

type HTTPConfig struct {
	Addr        string `json:"addr" toml:"addr"`
	UIEnabled   bool   `json:"ui_enabled" toml:"ui_enabled"`
	UIStaticDir string `json:"ui_static_dir" toml:"ui_static_dir"`
}

type SystemConfig struct {
	DataDir    string `json:"data_dir" toml:"data_dir"`
	JobWorkers int    `json:"job_workers" toml:"job_workers"`
	LogLevel   string `json:"log_level" toml:"log_level"`
	LogFile    string `json:"log_file" toml:"log_file"`
}

// fileConfig mirrors Config for TOML decoding; language tags are plain strings there.
type fileConfig struct {
	Merge struct {
		UpperLanguage string    `toml:"upper_language"`
		LowerLanguage string    `toml:"lower_language"`
		Mode          MergeMode `toml:"mode"`
		PlainText     bool      `toml:"plain_text"`
		MakeDefault   bool      `toml:"make_default"`
		Overwrite     bool      `toml:"overwrite"`
		CronExpr      string    `toml:"cron_expr"`
	} `toml:"merge"`
	Media  MediaConfig  `toml:"media"`
	HTTP   HTTPConfig   `toml:"http"`
	System SystemConfig `toml:"system"`
}

// DBPath returns the sqlite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "submerge.db")
}

// LockPath returns the file locked by a running server.
func (c *Config) LockPath() string {
	return filepath.Join(c.System.DataDir, "submerge.lock")
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithFile applies a TOML configuration file. A missing file is ignored.
func WithFile(path string) Option {
	return func(c *Config) {
		if strings.TrimSpace(path) == "" {
			return
		}
		if err := c.applyFile(path); err != nil {
			log.Warn("Ignoring config file %s: %v", path, err)
		}
	}
}

func WithVideoDirs(dirs ...string) Option {
	return func(c *Config) {
		c.Media.VideoDirs = append([]string(nil), dirs...)
	}
}

func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.System.DataDir = dir
	}
}

// LoadDotEnv loads variables from .env files into the environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Merge: MergeConfig{
			UpperLanguage: language.English,
			LowerLanguage: language.Russian,
			Mode:          ModeSeparateFile,
			MakeDefault:   true,
			CronExpr:      "0 3 * * *",
		},
		Media: MediaConfig{
			VideoDirs:       []string{"/videos"},
			FFmpegPath:      "ffmpeg",
			FFprobePath:     "ffprobe",
			SortBy:          "name",
			SortDirection:   "asc",
			DetectLanguages: true,
			ScanCacheTTL:    5 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:        ":8080",
			UIEnabled:   true,
			UIStaticDir: "/app/web",
		},
		System: SystemConfig{
			DataDir:    "/app/data",
			JobWorkers: 1,
			LogLevel:   "info",
		},
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := Default()
	if path := getEnvString("CONFIG_FILE", ""); path != "" {
		WithFile(path)(config)
	}

	config.Merge.UpperLanguage = getEnvLanguage("UPPER_LANGUAGE", config.Merge.UpperLanguage)
	config.Merge.LowerLanguage = getEnvLanguage("LOWER_LANGUAGE", config.Merge.LowerLanguage)
	if mode, err := ParseMergeMode(getEnvString("MERGE_MODE", string(config.Merge.Mode))); err == nil {
		config.Merge.Mode = mode
	}
	config.Merge.PlainText = getEnvBool("PLAIN_TEXT", config.Merge.PlainText)
	config.Merge.MakeDefault = getEnvBool("MAKE_DEFAULT", config.Merge.MakeDefault)
	config.Merge.Overwrite = getEnvBool("OVERWRITE", config.Merge.Overwrite)
	config.Merge.CronExpr = getEnvString("CRON_EXPR", config.Merge.CronExpr)

	if dirs := getEnvString("VIDEO_DIRS", ""); dirs != "" {
		config.Media.VideoDirs = filepath.SplitList(dirs)
	}
	config.Media.FFmpegPath = getEnvString("FFMPEG_PATH", config.Media.FFmpegPath)
	config.Media.FFprobePath = getEnvString("FFPROBE_PATH", config.Media.FFprobePath)
	config.Media.SortBy = getEnvString("SORT_BY", config.Media.SortBy)
	config.Media.SortDirection = getEnvString("SORT_DIRECTION", config.Media.SortDirection)
	config.Media.DetectLanguages = getEnvBool("DETECT_LANGUAGES", config.Media.DetectLanguages)

	config.HTTP.Addr = getEnvString("HTTP_ADDR", config.HTTP.Addr)
	config.HTTP.UIEnabled = getEnvBool("UI_ENABLED", config.HTTP.UIEnabled)
	config.HTTP.UIStaticDir = getEnvString("UI_STATIC_DIR", config.HTTP.UIStaticDir)

	config.System.DataDir = getEnvString("DATA_DIR", config.System.DataDir)
	config.System.JobWorkers = getEnvInt("JOB_WORKERS", config.System.JobWorkers)
	config.System.LogLevel = getEnvString("LOG_LEVEL", config.System.LogLevel)
	config.System.LogFile = getEnvString("LOG_FILE", config.System.LogFile)

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", *config)
	return config, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	var parsed fileConfig
	parsed.Merge.Mode = c.Merge.Mode
	parsed.Merge.PlainText = c.Merge.PlainText
	parsed.Merge.MakeDefault = c.Merge.MakeDefault
	parsed.Merge.Overwrite = c.Merge.Overwrite
	parsed.Merge.CronExpr = c.Merge.CronExpr
	parsed.Media = c.Media
	parsed.HTTP = c.HTTP
	parsed.System = c.System
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	c.Merge.Mode = parsed.Merge.Mode
	c.Merge.PlainText = parsed.Merge.PlainText
	c.Merge.MakeDefault = parsed.Merge.MakeDefault
	c.Merge.Overwrite = parsed.Merge.Overwrite
	c.Merge.CronExpr = parsed.Merge.CronExpr
	if tag, err := language.Parse(parsed.Merge.UpperLanguage); err == nil {
		c.Merge.UpperLanguage = tag
	}
	if tag, err := language.Parse(parsed.Merge.LowerLanguage); err == nil {
		c.Merge.LowerLanguage = tag
	}
	c.Media = parsed.Media
	c.HTTP = parsed.HTTP
	c.System = parsed.System
	return nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Merge.UpperLanguage == language.Und || c.Merge.LowerLanguage == language.Und {
		return fmt.Errorf("UPPER_LANGUAGE and LOWER_LANGUAGE are required")
	}
	if c.Merge.UpperLanguage == c.Merge.LowerLanguage {
		return fmt.Errorf("upper and lower languages must differ")
	}
	if _, err := ParseMergeMode(string(c.Merge.Mode)); err != nil {
		return err
	}
	if strings.TrimSpace(c.Merge.CronExpr) != "" {
		if _, err := cron.ParseStandard(c.Merge.CronExpr); err != nil {
			return fmt.Errorf("invalid CRON_EXPR: %w", err)
		}
	}
	if strings.TrimSpace(c.System.DataDir) == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.System.JobWorkers <= 0 {
		c.System.JobWorkers = 1
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
		log.Warn("Ignoring invalid %s=%q", key, value)
	}
	return defaultValue
}
