package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

// AutoSelect picks the built-in streams for both languages of a video.
func (m *Merger) AutoSelect(ctx context.Context, videoPath string, upperLang, lowerLang language.Tag) (Source, Source, error) {
	probe, err := m.probe(ctx, videoPath)
	if err != nil {
		return nil, nil, err
	}
	s := m.loader.session(videoPath)
	upper, err := autoSelect(ctx, s, probe, upperLang)
	if err != nil {
		return nil, nil, err
	}
	lower, err := autoSelect(ctx, s, probe, lowerLang)
	if err != nil {
		return nil, nil, err
	}
	return upper, lower, nil
}

// autoSelect returns the mergeable stream of the language. Among several
// candidates the one with the largest text wins; loading them is required to
// know the sizes.
func autoSelect(ctx context.Context, s *session, probe media.Probe, lang language.Tag) (Source, error) {
	candidates := probe.StreamsByLanguage(lang)
	if len(candidates) == 0 {
		return nil, NewError(ErrNotPossible, fmt.Sprintf("no %s subtitle stream", languageName(lang)))
	}
	if len(candidates) == 1 {
		return builtInSource(candidates[0]), nil
	}

	var best media.Stream
	bestSize := -1
	failed := 0
	for _, stream := range candidates {
		loaded, err := s.load(ctx, builtInSource(stream))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("Failed to load stream %d of %s: %v", stream.Index, s.videoPath, err)
			failed++
			continue
		}
		if size := loaded.Doc.Size(); size > bestSize {
			best = stream
			bestSize = size
		}
	}
	if failed > 0 {
		return nil, NewError(ErrFailedToLoad, countText(failed,
			"failed to load subtitles",
			"failed to load %d subtitles")).WithContext("failed", failed)
	}
	return builtInSource(best), nil
}

func builtInSource(stream media.Stream) SourceBuiltIn {
	return SourceBuiltIn{StreamIndex: stream.Index, Language: stream.LangTag, Title: stream.Title}
}

func languageName(tag language.Tag) string {
	if code := iso3(tag); code != "" {
		return strings.ToUpper(code)
	}
	return "UNKNOWN"
}
