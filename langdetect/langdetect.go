// Package langdetect guesses the language of transcribed text.
package langdetect

import (
	"strings"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto is the language code meaning "let the engine decide".
const Auto = "auto"

// DefaultLanguages are the languages considered when none are given.
var DefaultLanguages = []lingua.Language{
	lingua.English,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Russian,
	lingua.Dutch,
	lingua.Arabic,
}

// Detector wraps a lingua detector restricted to a set of languages.
type Detector struct {
	detector      lingua.LanguageDetector
	minConfidence float64
}

// New creates a detector for langs, or DefaultLanguages if empty.
func New(langs ...lingua.Language) *Detector {
	if len(langs) < 2 {
		langs = DefaultLanguages
	}
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(langs...).
			WithMinimumRelativeDistance(0.1).
			Build(),
		minConfidence: 0.2,
	}
}

// Detect returns the ISO 639-1 code of text's language and the detector's
// confidence in it. ok is false when the text is too short or ambiguous.
func (d *Detector) Detect(text string) (code string, confidence float64, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, false
	}
	lang, exists := d.detector.DetectLanguageOf(text)
	if !exists {
		return "", 0, false
	}
	confidence = d.detector.ComputeLanguageConfidence(text, lang)
	if confidence < d.minConfidence {
		return "", confidence, false
	}
	return Code(lang), confidence, true
}

// Code returns the lowercase ISO 639-1 code of lang.
func Code(lang lingua.Language) string {
	return strings.ToLower(lang.IsoCode639_1().String())
}

// CodeOf returns the ISO 639-1 code of a language reported either as a code
// ("fr") or as an English name ("french"). ok is false for anything else.
func CodeOf(name string) (code string, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == Auto {
		return "", false
	}
	for _, lang := range lingua.AllLanguages() {
		if strings.ToLower(lang.String()) == name {
			return Code(lang), true
		}
	}
	tag, err := language.Parse(name)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf != language.Exact {
		return "", false
	}
	return base.String(), true
}

// Name returns the English display name of a language code, for example
// "French" for "fr". Unknown codes are returned unchanged.
func Name(code string) string {
	if code == "" || code == Auto {
		return "Auto-detect"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// NativeName returns the language's name in that language, such as
// "français" for "fr".
func NativeName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}
	return Name(code)
}
