package subtitle

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage guesses the language of a document by majority vote over its cues.
func DetectLanguage(doc Document) language.Tag {
	if doc.IsEmpty() {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, cue := range doc.Cues {
		text := StripMarkup(strings.Join(cue.Lines, " "))
		if strings.TrimSpace(text) == "" {
			continue
		}
		langMap[whatlanggo.DetectLang(text).Iso6391()]++
	}

	// Get top language, ties resolved alphabetically to stay deterministic
	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount || (count == topCount && lang < topLang) {
			topLang = lang
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}

	tag, err := language.Parse(topLang)
	if err != nil {
		return language.Und
	}
	return tag
}
