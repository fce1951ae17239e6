// Package prompt supplies the instruction template sent to generative
// translation backends.
//
// Templates use literal {placeholder} syntax rather than text/template:
// the placeholders are user-facing configuration surface and must survive
// copy-paste through YAML and environment variables untouched.
package prompt

import "strings"

// Placeholders recognized in templates.
const (
	TargetLanguagePlaceholder = "{target_language}"
	SourceLanguagePlaceholder = "{source_language}"
)

// DefaultTemplate is the built-in subtitle translation instruction.
const DefaultTemplate = `You are a professional subtitle translator. Translate the subtitle text provided by the user into {target_language}.

Rules:
- Keep subtitle numbering and timestamps exactly as they appear.
- Translate only the dialogue lines; never add commentary or notes.
- Preserve line breaks within each subtitle block.
- Match the tone and register of the original dialogue.

Return only the translated subtitle text.`

// Template renders translation instructions for a request.
type Template struct {
	text string
}

// New creates a template from text. Empty text selects DefaultTemplate.
func New(text string) Template {
	if text == "" {
		text = DefaultTemplate
	}
	return Template{text: text}
}

// Default returns the built-in template.
func Default() Template {
	return Template{text: DefaultTemplate}
}

// Render substitutes the language placeholders. When the template mentions
// {source_language} but the request has none, the phrase degrades to
// "the source language".
func (t Template) Render(sourceLanguage, targetLanguage string) string {
	source := sourceLanguage
	if source == "" {
		source = "the source language"
	}
	return strings.NewReplacer(
		TargetLanguagePlaceholder, targetLanguage,
		SourceLanguagePlaceholder, source,
	).Replace(t.text)
}
