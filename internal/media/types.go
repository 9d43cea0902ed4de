package media

import (
	"context"
	"strings"

	"golang.org/x/text/language"
)

// VideoFormat is the container reported by ffprobe.
type VideoFormat string

const (
	FormatMatroska VideoFormat = "matroska"
	FormatOther    VideoFormat = "other"
)

func parseFormat(formatName string) VideoFormat {
	if formatName == "matroska,webm" {
		return FormatMatroska
	}
	return FormatOther
}

// CodecSubRip is the only codec that can be merged.
const CodecSubRip = "subrip"

type UnavailableReason int

const (
	Available UnavailableReason = iota
	ReasonNotAllowedCodec
)

func (r UnavailableReason) String() string {
	switch r {
	case Available:
		return ""
	case ReasonNotAllowedCodec:
		return "subtitle has a not allowed type"
	default:
		return "unknown"
	}
}

// Stream is a subtitle stream inside a video container.
type Stream struct {
	// Index is the absolute ffprobe stream index.
	Index     int          `json:"index"`
	CodecName string       `json:"codec_name"`
	Language  string       `json:"language"`
	LangTag   language.Tag `json:"-"`
	Title     string       `json:"title,omitempty"`
	Default   bool         `json:"default"`
	// Size in bytes, taken from container statistics tags when available.
	Size int64 `json:"size,omitempty"`
}

func (s Stream) Unavailable() UnavailableReason {
	if strings.ToLower(s.CodecName) != CodecSubRip {
		return ReasonNotAllowedCodec
	}
	return Available
}

func (s Stream) Mergeable() bool {
	return s.Unavailable() == Available
}

// Probe holds the container information needed for merging.
type Probe struct {
	Path    string      `json:"path"`
	Format  VideoFormat `json:"format"`
	Size    int64       `json:"size"`
	Streams []Stream    `json:"streams"`
}

// StreamsByLanguage returns mergeable streams whose language matches tag.
func (p Probe) StreamsByLanguage(tag language.Tag) []Stream {
	ret := make([]Stream, 0)
	for _, stream := range p.Streams {
		if stream.Mergeable() && SameLanguage(stream.LangTag, tag) {
			ret = append(ret, stream)
		}
	}
	return ret
}

// SameLanguage compares the base languages of two tags.
func SameLanguage(a, b language.Tag) bool {
	if a == language.Und || b == language.Und {
		return false
	}
	baseA, _ := a.Base()
	baseB, _ := b.Base()
	return baseA == baseB
}

// InjectRequest describes a subtitle track added to a Matroska video.
type InjectRequest struct {
	VideoPath   string
	Subtitle    string
	Language    language.Tag
	Title       string
	MakeDefault bool
}

type Operator interface {
	Probe(ctx context.Context, videoPath string) (Probe, error)
	ExtractSubtitle(ctx context.Context, videoPath string, streamIndex int) (string, error)
	InjectSubtitle(ctx context.Context, req InjectRequest) error
}

func NewOperator(opts ...Option) Operator {
	return NewFFmpeg(opts...)
}
