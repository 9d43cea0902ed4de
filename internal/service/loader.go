package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/bilingual-sub-merger/internal/charset"
	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
	"github.com/MimeLyc/bilingual-sub-merger/internal/persistence"
	"github.com/MimeLyc/bilingual-sub-merger/internal/subtitle"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

// StreamCache keeps extracted stream texts between runs.
type StreamCache interface {
	GetStreamCache(ctx context.Context, videoPath string, streamIndex int, size int64, mtime time.Time) (string, bool, error)
	PutStreamCache(ctx context.Context, entry persistence.StreamCacheEntry) error
}

// Loader turns sources into documents.
type Loader struct {
	extractor media.Operator
	cache     StreamCache
	group     singleflight.Group
}

func NewLoader(extractor media.Operator, cache StreamCache) *Loader {
	return &Loader{extractor: extractor, cache: cache}
}

// Loaded is a parsed source together with the charset it was decoded with.
type Loaded struct {
	Doc     subtitle.Document
	Charset string
}

func (l *Loader) Load(ctx context.Context, videoPath string, src Source) (Loaded, error) {
	switch s := src.(type) {
	case SourceBuiltIn:
		return l.LoadStream(ctx, videoPath, s.StreamIndex)
	case SourceExternal:
		return l.LoadFile(s.Path, s.Charset)
	default:
		return Loaded{}, NewError(ErrValidation, "no subtitle source")
	}
}

// LoadStream extracts and parses a built-in subtitle stream.
func (l *Loader) LoadStream(ctx context.Context, videoPath string, streamIndex int) (Loaded, error) {
	text, err := l.streamText(ctx, videoPath, streamIndex)
	if err != nil {
		return Loaded{}, err
	}
	doc, err := subtitle.Parse(text)
	if err != nil {
		return Loaded{}, WrapError(err, ErrParse, "stream has an incorrect subtitle format").
			WithContext("video", videoPath).
			WithContext("stream", streamIndex)
	}
	return Loaded{Doc: doc, Charset: charset.DefaultCharset}, nil
}

// LoadFile reads a subtitle file. With an empty charset the encoding is detected.
func (l *Loader) LoadFile(path string, charsetName string) (Loaded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Loaded{}, WrapError(err, ErrFileNotFound, "subtitle file not found").WithContext("path", path)
		}
		return Loaded{}, WrapError(err, ErrFileRead, "failed to read subtitle file").WithContext("path", path)
	}

	var text, used string
	if strings.TrimSpace(charsetName) == "" {
		text, used, err = charset.DecodeAuto(raw, charset.DefaultCharset)
	} else {
		used = charsetName
		text, err = charset.Decode(raw, charsetName)
	}
	if err != nil {
		return Loaded{}, WrapError(err, ErrEncoding, "failed to decode subtitle file").WithContext("path", path)
	}

	doc, err := subtitle.Parse(text)
	if err != nil {
		return Loaded{}, WrapError(err, ErrParse, "subtitle file has an incorrect format").WithContext("path", path)
	}
	return Loaded{Doc: doc, Charset: used}, nil
}

func (l *Loader) streamText(ctx context.Context, videoPath string, streamIndex int) (string, error) {
	if l.extractor == nil {
		return "", NewError(ErrConfig, "no media operator configured")
	}

	key := fmt.Sprintf("%s#%d", filepath.Clean(videoPath), streamIndex)
	ch := l.group.DoChan(key, func() (any, error) {
		return l.extract(ctx, videoPath, streamIndex)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (l *Loader) extract(ctx context.Context, videoPath string, streamIndex int) (string, error) {
	info, statErr := os.Stat(videoPath)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return "", WrapError(statErr, ErrFileNotFound, "video not found").WithContext("video", videoPath)
		}
		return "", WrapError(statErr, ErrFileRead, "failed to read video").WithContext("video", videoPath)
	}

	if l.cache != nil {
		text, ok, err := l.cache.GetStreamCache(ctx, videoPath, streamIndex, info.Size(), info.ModTime())
		if err != nil {
			log.Warn("Failed to read stream cache for %s#%d: %v", videoPath, streamIndex, err)
		} else if ok {
			log.Debug("Stream cache hit for %s#%d", videoPath, streamIndex)
			return text, nil
		}
	}

	text, err := l.extractor.ExtractSubtitle(ctx, videoPath, streamIndex)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", WrapError(err, ErrMedia, "failed to extract subtitles").
			WithContext("video", videoPath).
			WithContext("stream", streamIndex)
	}

	if l.cache != nil {
		entry := persistence.StreamCacheEntry{
			VideoPath:   videoPath,
			StreamIndex: streamIndex,
			VideoSize:   info.Size(),
			VideoMTime:  info.ModTime(),
			Content:     text,
		}
		if err := l.cache.PutStreamCache(ctx, entry); err != nil {
			log.Warn("Failed to cache stream %s#%d: %v", videoPath, streamIndex, err)
		}
	}
	return text, nil
}

// session memoizes loads of one video during a single preparation.
type session struct {
	loader    *Loader
	videoPath string
	loaded    map[string]loadResult
}

type loadResult struct {
	loaded Loaded
	err    error
}

func (l *Loader) session(videoPath string) *session {
	return &session{loader: l, videoPath: videoPath, loaded: make(map[string]loadResult)}
}

func (s *session) load(ctx context.Context, src Source) (Loaded, error) {
	if res, ok := s.loaded[src.Key()]; ok {
		return res.loaded, res.err
	}
	loaded, err := s.loader.Load(ctx, s.videoPath, src)
	if ctx.Err() == nil {
		s.loaded[src.Key()] = loadResult{loaded: loaded, err: err}
	}
	return loaded, err
}
