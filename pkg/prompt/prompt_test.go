package prompt

import (
	"strings"
	"testing"
)

func TestRenderDefault(t *testing.T) {
	got := Default().Render("", "French")
	if strings.Contains(got, TargetLanguagePlaceholder) {
		t.Error("target language placeholder not substituted")
	}
	if !strings.Contains(got, "French") {
		t.Errorf("rendered template missing target language: %q", got)
	}
}

func TestRenderCustomTemplate(t *testing.T) {
	tpl := New("Translate from {source_language} to {target_language}.")

	got := tpl.Render("English", "German")
	if got != "Translate from English to German." {
		t.Errorf("Render = %q", got)
	}

	// Missing source language degrades gracefully.
	got = tpl.Render("", "German")
	if got != "Translate from the source language to German." {
		t.Errorf("Render without source = %q", got)
	}
}

func TestNewEmptySelectsDefault(t *testing.T) {
	if New("").Render("", "Dutch") != Default().Render("", "Dutch") {
		t.Error("New(\"\") should behave like Default()")
	}
}

func TestRenderRepeatedPlaceholders(t *testing.T) {
	tpl := New("{target_language}, again {target_language}")
	if got := tpl.Render("", "Polish"); got != "Polish, again Polish" {
		t.Errorf("Render = %q", got)
	}
}
