package library

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
)

type SourceConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// SourcesFromDirs makes one source per directory, named after its base name.
// Repeated names get a numeric suffix.
func SourcesFromDirs(dirs []string) []SourceConfig {
	ret := make([]SourceConfig, 0, len(dirs))
	seen := make(map[string]int)
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		name := filepath.Base(filepath.Clean(dir))
		if name == string(filepath.Separator) || name == "." {
			name = "videos"
		}
		id := strings.ToLower(strings.Join(strings.Fields(name), "-"))
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		ret = append(ret, SourceConfig{ID: id, Name: name, Path: dir})
	}
	return ret
}

type Source struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	VideoCount int    `json:"video_count"`
}

// ExternalSubtitle is a subtitle file next to a video sharing its basename.
type ExternalSubtitle struct {
	Path string `json:"path"`
	// Language is an ISO 639-1 code, empty when unknown.
	Language string `json:"language,omitempty"`
	// Detected is set when Language was guessed from the file content.
	Detected bool  `json:"detected,omitempty"`
	Size     int64 `json:"size"`
}

type Video struct {
	ID          string             `json:"id"`
	SourceID    string             `json:"source_id"`
	Name        string             `json:"name"`
	Path        string             `json:"path"`
	Size        int64              `json:"size"`
	ModTime     time.Time          `json:"mod_time"`
	Format      media.VideoFormat  `json:"format,omitempty"`
	Streams     []media.Stream     `json:"streams"`
	External    []ExternalSubtitle `json:"external"`
	MergedFiles []string           `json:"merged_files"`
	Languages   []string           `json:"languages"`
	ProbeError  string             `json:"probe_error,omitempty"`
}

// HasMergeableStreams reports whether at least two built-in streams can be merged.
func (v Video) HasMergeableStreams() bool {
	count := 0
	for _, stream := range v.Streams {
		if stream.Mergeable() {
			count++
		}
	}
	return count >= 2
}

type Library struct {
	Sources []Source `json:"sources"`
	Videos  []Video  `json:"videos"`
}
