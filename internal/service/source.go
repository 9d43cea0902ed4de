package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"github.com/MimeLyc/bilingual-sub-merger/internal/jobs"
)

// Source is where the subtitles of one merge side come from: a stream
// inside the video or a separate file.
type Source interface {
	// Label names the source in output file names: an ISO 639-2 code,
	// "external" or "unknown".
	Label() string
	// Key identifies the source within one video.
	Key() string
	String() string
	isSource()
}

type SourceBuiltIn struct {
	StreamIndex int
	Language    language.Tag
	Title       string
}

func (s SourceBuiltIn) Label() string {
	if code := iso3(s.Language); code != "" {
		return code
	}
	return "unknown"
}

func (s SourceBuiltIn) Key() string {
	return fmt.Sprintf("stream:%d", s.StreamIndex)
}

func (s SourceBuiltIn) String() string {
	text := fmt.Sprintf("stream #%d %s", s.StreamIndex, strings.ToUpper(s.Label()))
	if s.Title != "" {
		text += " " + s.Title
	}
	return text
}

func (SourceBuiltIn) isSource() {}

type SourceExternal struct {
	Path string
	// Charset of the file, empty to detect it.
	Charset string
}

func (SourceExternal) Label() string {
	return "external"
}

func (s SourceExternal) Key() string {
	return "file:" + filepath.Clean(s.Path)
}

func (s SourceExternal) String() string {
	return "file " + filepath.Base(s.Path)
}

func (SourceExternal) isSource() {}

func iso3(tag language.Tag) string {
	if tag == language.Und {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.ISO3()
}

// SourceFromRef converts a queued reference. An automatic reference yields nil.
func SourceFromRef(ref jobs.SourceRef) (Source, error) {
	switch ref.Type {
	case "":
		return nil, nil
	case jobs.SourceBuiltIn:
		if ref.StreamIndex < 0 {
			return nil, NewError(ErrValidation, "stream index must not be negative")
		}
		tag := language.Und
		if ref.Language != "" {
			if parsed, err := language.Parse(ref.Language); err == nil {
				tag = parsed
			}
		}
		return SourceBuiltIn{StreamIndex: ref.StreamIndex, Language: tag, Title: ref.Title}, nil
	case jobs.SourceExternal:
		if strings.TrimSpace(ref.Path) == "" {
			return nil, NewError(ErrValidation, "external subtitle path is required")
		}
		return SourceExternal{Path: ref.Path, Charset: ref.Charset}, nil
	default:
		return nil, NewError(ErrValidation, fmt.Sprintf("unknown source type %q", ref.Type))
	}
}

// RefFromSource is the inverse of SourceFromRef.
func RefFromSource(src Source) jobs.SourceRef {
	switch s := src.(type) {
	case SourceBuiltIn:
		ref := jobs.SourceRef{Type: jobs.SourceBuiltIn, StreamIndex: s.StreamIndex, Title: s.Title}
		if s.Language != language.Und {
			ref.Language = s.Language.String()
		}
		return ref
	case SourceExternal:
		return jobs.SourceRef{Type: jobs.SourceExternal, Path: s.Path, Charset: s.Charset}
	default:
		return jobs.SourceRef{}
	}
}
