// Package charset turns raw subtitle bytes into text for a named charset.
package charset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dimchansky/utfbom"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const DefaultCharset = "UTF-8"

var supported = []string{
	"UTF-8",
	"UTF-16LE",
	"UTF-16BE",
	"windows-1250",
	"windows-1251",
	"windows-1252",
	"ISO-8859-1",
	"ISO-8859-2",
	"ISO-8859-5",
	"KOI8-R",
	"GBK",
	"Big5",
	"Shift_JIS",
	"EUC-KR",
}

// chardet reports a few names htmlindex does not know
var detectorAliases = map[string]string{
	"GB-18030": "GB18030",
}

// ErrUnsupportedCharset is wrapped by EncodingError when the name is unknown.
var ErrUnsupportedCharset = errors.New("unsupported charset")

// EncodingError means the bytes can't be represented in the charset.
type EncodingError struct {
	Charset string
	Err     error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("this encoding (%s) doesn't fit: %v", e.Charset, e.Err)
	}
	return fmt.Sprintf("this encoding (%s) doesn't fit", e.Charset)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// Supported returns the charsets offered for subtitle files.
func Supported() []string {
	return append([]string(nil), supported...)
}

// IsSupported reports whether name resolves to a known charset.
func IsSupported(name string) bool {
	_, err := lookup(name)
	return err == nil
}

// Decode decodes raw with the named charset. A leading byte order mark is
// skipped. The result must encode back to the same bytes, otherwise an
// *EncodingError is returned.
func Decode(raw []byte, name string) (string, error) {
	enc, err := lookup(name)
	if err != nil {
		return "", &EncodingError{Charset: name, Err: err}
	}

	data, err := io.ReadAll(utfbom.SkipOnly(bytes.NewReader(raw)))
	if err != nil {
		return "", &EncodingError{Charset: name, Err: err}
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &EncodingError{Charset: name, Err: err}
	}

	encoded, err := enc.NewEncoder().Bytes(decoded)
	if err != nil || !bytes.Equal(encoded, data) {
		return "", &EncodingError{Charset: name}
	}
	return string(decoded), nil
}

// Detect returns the most likely charset of raw, falling back to UTF-8.
func Detect(raw []byte) string {
	if len(raw) == 0 {
		return DefaultCharset
	}

	_, bom := utfbom.Skip(bytes.NewReader(raw))
	switch bom {
	case utfbom.UTF8:
		return "UTF-8"
	case utfbom.UTF16LittleEndian:
		return "UTF-16LE"
	case utfbom.UTF16BigEndian:
		return "UTF-16BE"
	}

	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result == nil {
		return DefaultCharset
	}

	name := result.Charset
	if alias, ok := detectorAliases[name]; ok {
		name = alias
	}
	if !IsSupported(name) {
		return DefaultCharset
	}
	return name
}

// DecodeAuto tries the preferred charset first, then the detected one and
// finally UTF-8. It returns the decoded text with the charset that worked.
// When all attempts fail the error of the first attempt is returned.
func DecodeAuto(raw []byte, preferred string) (string, string, error) {
	candidates := make([]string, 0, 3)
	for _, name := range []string{preferred, Detect(raw), DefaultCharset} {
		if name == "" || containsFold(candidates, name) {
			continue
		}
		candidates = append(candidates, name)
	}

	var firstErr error
	for _, name := range candidates {
		text, err := Decode(raw, name)
		if err == nil {
			return text, name, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", "", firstErr
}

func lookup(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrUnsupportedCharset
	}
	enc, err := htmlindex.Get(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCharset, name)
	}
	return enc, nil
}

func containsFold(list []string, name string) bool {
	for _, item := range list {
		if strings.EqualFold(item, name) {
			return true
		}
	}
	return false
}
