package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/bilingual-sub-merger/pkg/file"
)

const DefaultRuntimeSettingsFile = "/app/config/settings.json"

var (
	sortFields     = []string{"name", "modification_time", "size"}
	sortDirections = []string{"asc", "desc"}
)

// RuntimeSettings are the settings editable while the server runs.
type RuntimeSettings struct {
	UpperLanguage string `json:"upper_language"`
	LowerLanguage string `json:"lower_language"`
	MergeMode     string `json:"merge_mode"`
	PlainText     bool   `json:"plain_text"`
	MakeDefault   bool   `json:"make_default"`
	Overwrite     bool   `json:"overwrite"`
	FFmpegPath    string `json:"ffmpeg_path"`
	FFprobePath   string `json:"ffprobe_path"`
	CronExpr      string `json:"cron_expr"`
	SortBy        string `json:"sort_by"`
	SortDirection string `json:"sort_direction"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

// MissingSettings lists the settings that must be filled in before merging.
func (s RuntimeSettings) MissingSettings() []string {
	ret := make([]string, 0)
	if strings.TrimSpace(s.UpperLanguage) == "" {
		ret = append(ret, "upper_language")
	}
	if strings.TrimSpace(s.LowerLanguage) == "" {
		ret = append(ret, "lower_language")
	}
	if strings.TrimSpace(s.FFprobePath) == "" {
		ret = append(ret, "ffprobe_path")
	}
	if strings.TrimSpace(s.FFmpegPath) == "" {
		ret = append(ret, "ffmpeg_path")
	}
	return ret
}

func (s RuntimeSettings) Validate() error {
	if missing := s.MissingSettings(); len(missing) > 0 {
		return fmt.Errorf("%s is required", missing[0])
	}
	upper, err := language.Parse(s.UpperLanguage)
	if err != nil {
		return fmt.Errorf("invalid upper_language: %w", err)
	}
	lower, err := language.Parse(s.LowerLanguage)
	if err != nil {
		return fmt.Errorf("invalid lower_language: %w", err)
	}
	if upper == lower {
		return fmt.Errorf("upper_language and lower_language must differ")
	}
	if _, err := ParseMergeMode(s.MergeMode); err != nil {
		return err
	}
	if strings.TrimSpace(s.CronExpr) == "" {
		return fmt.Errorf("cron_expr is required")
	}
	if _, err := cron.ParseStandard(s.CronExpr); err != nil {
		return fmt.Errorf("invalid cron_expr: %w", err)
	}
	if s.SortBy != "" && !slices.Contains(sortFields, s.SortBy) {
		return fmt.Errorf("invalid sort_by %q", s.SortBy)
	}
	if s.SortDirection != "" && !slices.Contains(sortDirections, s.SortDirection) {
		return fmt.Errorf("invalid sort_direction %q", s.SortDirection)
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		UpperLanguage: c.Merge.UpperLanguage.String(),
		LowerLanguage: c.Merge.LowerLanguage.String(),
		MergeMode:     string(c.Merge.Mode),
		PlainText:     c.Merge.PlainText,
		MakeDefault:   c.Merge.MakeDefault,
		Overwrite:     c.Merge.Overwrite,
		FFmpegPath:    c.Media.FFmpegPath,
		FFprobePath:   c.Media.FFprobePath,
		CronExpr:      c.Merge.CronExpr,
		SortBy:        c.Media.SortBy,
		SortDirection: c.Media.SortDirection,
	}
}

// WithRuntimeSettings overrides the configuration with non-empty settings.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if tag, err := language.Parse(settings.UpperLanguage); err == nil {
			c.Merge.UpperLanguage = tag
		}
		if tag, err := language.Parse(settings.LowerLanguage); err == nil {
			c.Merge.LowerLanguage = tag
		}
		if mode, err := ParseMergeMode(settings.MergeMode); err == nil && settings.MergeMode != "" {
			c.Merge.Mode = mode
		}
		c.Merge.PlainText = settings.PlainText
		c.Merge.MakeDefault = settings.MakeDefault
		c.Merge.Overwrite = settings.Overwrite
		if strings.TrimSpace(settings.FFmpegPath) != "" {
			c.Media.FFmpegPath = settings.FFmpegPath
		}
		if strings.TrimSpace(settings.FFprobePath) != "" {
			c.Media.FFprobePath = settings.FFprobePath
		}
		if strings.TrimSpace(settings.CronExpr) != "" {
			c.Merge.CronExpr = settings.CronExpr
		}
		if settings.SortBy != "" {
			c.Media.SortBy = settings.SortBy
		}
		if settings.SortDirection != "" {
			c.Media.SortDirection = settings.SortDirection
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	return file.WriteAtomic(path, content, 0o600)
}

type RuntimeSettingsStore struct {
	path string

	mu        sync.RWMutex
	current   RuntimeSettings
	listeners []func(RuntimeSettings)
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

// OnUpdate registers a callback run after every successful update.
func (s *RuntimeSettingsStore) OnUpdate(fn func(RuntimeSettings)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}
