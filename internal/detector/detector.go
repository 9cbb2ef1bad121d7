// Package detector guesses the language of subtitle text.
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

type Detector struct {
	detector lingua.LanguageDetector
}

// Result is a detected language with its confidence in [0, 1].
type Result struct {
	Language   lingua.Language
	ISO        string
	Confidence float64
}

// New builds a detector limited to languages, or over every language
// lingua knows when none are given. A small set loads much faster.
func New(languages ...lingua.Language) *Detector {
	var builder lingua.LanguageDetectorBuilder
	if len(languages) >= 2 {
		builder = lingua.NewLanguageDetectorBuilder().FromLanguages(languages...)
	} else {
		builder = lingua.NewLanguageDetectorBuilder().FromAllLanguages()
	}
	return &Detector{detector: builder.Build()}
}

// NewForSubtitles covers the languages subtitles are usually ripped in.
func NewForSubtitles() *Detector {
	return New(
		lingua.Japanese, lingua.Chinese, lingua.Korean, lingua.English,
		lingua.French, lingua.German, lingua.Spanish, lingua.Russian,
		lingua.Ukrainian, lingua.Portuguese, lingua.Italian,
	)
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// DetectLines detects the language of a sample of subtitle lines taken
// together; single lines are often too short to classify on their own.
func (d *Detector) DetectLines(lines []string) (Result, bool) {
	text := strings.Join(lines, " ")
	lang, ok := d.Detect(text)
	if !ok {
		return Result{Language: lingua.Unknown}, false
	}
	return Result{
		Language:   lang,
		ISO:        lang.IsoCode639_1().String(),
		Confidence: d.detector.ComputeLanguageConfidence(text, lang),
	}, true
}
