package library

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MimeLyc/bilingual-sub-merger/internal/charset"
	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
	"github.com/MimeLyc/bilingual-sub-merger/internal/subtitle"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
	"golang.org/x/text/language"
)

// StreamProber lists the built-in subtitle streams of a video.
type StreamProber interface {
	Probe(ctx context.Context, videoPath string) (media.Probe, error)
}

type scannerOptions struct {
	prober          StreamProber
	cacheTTL        time.Duration
	sortBy          SortBy
	sortDirection   SortDirection
	detectLanguages bool
}

type Option func(*scannerOptions)

func WithStreamProber(prober StreamProber) Option {
	return func(o *scannerOptions) {
		o.prober = prober
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *scannerOptions) {
		o.cacheTTL = ttl
	}
}

func WithSort(by SortBy, direction SortDirection) Option {
	return func(o *scannerOptions) {
		o.sortBy = by
		o.sortDirection = direction
	}
}

// WithLanguageDetection guesses the language of subtitle files that carry
// no language token in their name.
func WithLanguageDetection(enabled bool) Option {
	return func(o *scannerOptions) {
		o.detectLanguages = enabled
	}
}

type scanCache struct {
	version uint64
	scanned time.Time
	library *Library
}

type Scanner struct {
	sources         []SourceConfig
	prober          StreamProber
	detectLanguages bool

	mu            sync.RWMutex
	cacheTTL      time.Duration
	sortBy        SortBy
	sortDirection SortDirection
	cache         *scanCache
	configVersion uint64
}

func NewScanner(sources []SourceConfig, opts ...Option) *Scanner {
	options := scannerOptions{
		cacheTTL:      5 * time.Second,
		sortBy:        SortByName,
		sortDirection: SortAscending,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Scanner{
		sources:         sources,
		prober:          options.prober,
		detectLanguages: options.detectLanguages,
		cacheTTL:        options.cacheTTL,
		sortBy:          options.sortBy,
		sortDirection:   options.sortDirection,
	}
}

func (s *Scanner) Sources() []SourceConfig {
	return append([]SourceConfig(nil), s.sources...)
}

// UpdateSort changes the order of subsequent scan results.
func (s *Scanner) UpdateSort(by SortBy, direction SortDirection) {
	s.mu.Lock()
	if s.sortBy != by || s.sortDirection != direction {
		s.sortBy = by
		s.sortDirection = direction
		s.cache = nil
		s.configVersion++
	}
	s.mu.Unlock()
}

func (s *Scanner) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.configVersion++
	s.mu.Unlock()
}

// Find returns the video with the given path from the latest scan.
func (s *Scanner) Find(ctx context.Context, videoPath string) (Video, bool, error) {
	lib, err := s.Scan(ctx)
	if err != nil {
		return Video{}, false, err
	}
	cleaned := filepath.Clean(videoPath)
	for _, video := range lib.Videos {
		if video.Path == cleaned {
			return video, true, nil
		}
	}
	return Video{}, false, nil
}

func (s *Scanner) Scan(ctx context.Context) (*Library, error) {
	s.mu.RLock()
	version := s.configVersion
	cacheTTL := s.cacheTTL
	if s.cache != nil && s.cache.version == version && (cacheTTL <= 0 || time.Since(s.cache.scanned) < cacheTTL) {
		cached := cloneLibrary(s.cache.library)
		s.mu.RUnlock()
		return cached, nil
	}
	sources := append([]SourceConfig(nil), s.sources...)
	sortBy := s.sortBy
	sortDirection := s.sortDirection
	s.mu.RUnlock()

	ret := &Library{
		Sources: make([]Source, 0, len(sources)),
		Videos:  make([]Video, 0),
	}

	for _, sourceCfg := range sources {
		if sourceCfg.Path == "" {
			continue
		}
		if _, err := os.Stat(sourceCfg.Path); err != nil {
			if os.IsNotExist(err) {
				log.Warn("Library source %s does not exist, skipping", sourceCfg.Path)
				continue
			}
			return nil, err
		}

		source := Source{
			ID:   sourceCfg.ID,
			Name: sourceCfg.Name,
			Path: sourceCfg.Path,
		}

		videoFiles, err := findVideoFiles(sourceCfg.Path)
		if err != nil {
			return nil, err
		}
		for _, videoPath := range videoFiles {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			video, err := s.scanVideo(ctx, sourceCfg.ID, videoPath)
			if err != nil {
				return nil, err
			}
			ret.Videos = append(ret.Videos, video)
			source.VideoCount++
		}

		ret.Sources = append(ret.Sources, source)
	}

	SortVideos(ret.Videos, sortBy, sortDirection)

	s.mu.Lock()
	if s.configVersion == version {
		s.cache = &scanCache{
			version: version,
			scanned: time.Now(),
			library: cloneLibrary(ret),
		}
	}
	s.mu.Unlock()

	return ret, nil
}

// ScanVideo inspects a single video outside of any configured source.
func (s *Scanner) ScanVideo(ctx context.Context, videoPath string) (Video, error) {
	return s.scanVideo(ctx, "", filepath.Clean(videoPath))
}

func (s *Scanner) scanVideo(ctx context.Context, sourceID, videoPath string) (Video, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return Video{}, err
	}

	baseName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	external, merged, err := s.findExternalSubtitles(filepath.Dir(videoPath), baseName)
	if err != nil {
		return Video{}, err
	}

	video := Video{
		ID:          videoPath,
		SourceID:    sourceID,
		Name:        filepath.Base(videoPath),
		Path:        videoPath,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Streams:     make([]media.Stream, 0),
		External:    external,
		MergedFiles: merged,
	}

	if s.prober != nil {
		probe, err := s.prober.Probe(ctx, videoPath)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Video{}, ctxErr
			}
			log.Warn("Failed to probe %s: %v", videoPath, err)
			video.ProbeError = err.Error()
		} else {
			video.Format = probe.Format
			video.Streams = append(video.Streams, probe.Streams...)
		}
	}

	// Merge external and built-in languages (deduplicated, normalized)
	seen := make(map[string]bool)
	video.Languages = make([]string, 0)
	addLanguage := func(code string) {
		normalized := normalizeLangCode(code)
		if normalized == "" || seen[normalized] {
			return
		}
		seen[normalized] = true
		video.Languages = append(video.Languages, normalized)
	}
	for _, sub := range video.External {
		addLanguage(sub.Language)
	}
	for _, stream := range video.Streams {
		addLanguage(stream.Language)
	}

	return video, nil
}

var subtitleExts = []string{
	".srt", ".ass", ".ssa", ".vtt", ".sub",
}

var videoExts = []string{
	".mkv", ".mp4", ".m4v", ".mov", ".avi", ".wmv", ".flv", ".webm",
	".ogv", ".3gp", ".ts", ".m2ts", ".mts", ".vob", ".mpg", ".mpeg",
}

// IsVideoFile reports whether the path has a known video extension.
func IsVideoFile(path string) bool {
	return slices.Contains(videoExts, strings.ToLower(filepath.Ext(path)))
}

func findVideoFiles(root string) ([]string, error) {
	ret := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if IsVideoFile(path) {
			ret = append(ret, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// matches the suffix of a merged output, e.g. movie_eng-rus
var mergedSuffixPattern = regexp.MustCompile(`^_([a-z]{3}|external|unknown)-([a-z]{3}|external|unknown)$`)

func (s *Scanner) findExternalSubtitles(dir string, videoBase string) ([]ExternalSubtitle, []string, error) {
	external := make([]ExternalSubtitle, 0)
	merged := make([]string, 0)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !slices.Contains(subtitleExts, ext) {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if !subtitleMatchesVideoBase(stem, videoBase) {
			continue
		}

		fullPath := filepath.Join(dir, name)
		if ext == ".srt" && mergedSuffixPattern.MatchString(strings.TrimPrefix(stem, videoBase)) {
			merged = append(merged, fullPath)
			continue
		}

		sub := ExternalSubtitle{
			Path:     fullPath,
			Language: normalizeLangCode(subtitleLangToken(stem, videoBase)),
		}
		if info, err := entry.Info(); err == nil {
			sub.Size = info.Size()
		}
		if sub.Language == "" && s.detectLanguages && ext == ".srt" {
			if tag := detectFileLanguage(fullPath); tag != language.Und {
				base, _ := tag.Base()
				sub.Language = base.String()
				sub.Detected = true
			}
		}
		external = append(external, sub)
	}

	return external, merged, nil
}

// files above this size are not read for language detection
const maxDetectSize = 5 << 20

func detectFileLanguage(path string) language.Tag {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxDetectSize {
		return language.Und
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return language.Und
	}
	text, _, err := charset.DecodeAuto(raw, charset.DefaultCharset)
	if err != nil {
		return language.Und
	}
	doc, err := subtitle.Parse(text)
	if err != nil {
		log.Debug("Skipping language detection for %s: %v", path, err)
		return language.Und
	}
	return subtitle.DetectLanguage(doc)
}

func subtitleLangToken(stem, videoBase string) string {
	remain := strings.TrimPrefix(stem, videoBase)
	remain = strings.TrimLeft(remain, "._- ")
	if remain == "" {
		return ""
	}

	parts := strings.FieldsFunc(remain, func(r rune) bool {
		return r == '.' || r == '_' || r == ' '
	})
	for i := len(parts) - 1; i >= 0; i-- {
		token := strings.ToLower(parts[i])
		if normalizeLangCode(token) != "" {
			return token
		}
	}
	return ""
}

// normalizeLangCode validates a language token and returns its normalized
// ISO 639-1 base code (e.g. "fre"→"fr", "eng"→"en", "chi"→"zh").
// Returns "" if the token is not a recognized language code.
func normalizeLangCode(token string) string {
	if token == "" || token == "und" {
		return ""
	}
	tag, err := language.Parse(token)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

func subtitleMatchesVideoBase(stem, videoBase string) bool {
	if stem == videoBase {
		return true
	}
	if !strings.HasPrefix(stem, videoBase) || len(stem) <= len(videoBase) {
		return false
	}
	switch stem[len(videoBase)] {
	case '.', '_', '-', ' ':
		return true
	default:
		return false
	}
}

func cloneLibrary(src *Library) *Library {
	if src == nil {
		return nil
	}

	dst := &Library{
		Sources: make([]Source, len(src.Sources)),
		Videos:  make([]Video, len(src.Videos)),
	}
	copy(dst.Sources, src.Sources)
	copy(dst.Videos, src.Videos)

	for i := range dst.Videos {
		dst.Videos[i].Streams = append([]media.Stream(nil), src.Videos[i].Streams...)
		dst.Videos[i].External = append([]ExternalSubtitle(nil), src.Videos[i].External...)
		dst.Videos[i].MergedFiles = append([]string(nil), src.Videos[i].MergedFiles...)
		dst.Videos[i].Languages = append([]string(nil), src.Videos[i].Languages...)
	}
	return dst
}
