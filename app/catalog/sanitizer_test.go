package catalog

import (
	"strings"
	"testing"
)

func TestSanitizerCleanTitle(t *testing.T) {
	s := NewSanitizer()

	if got := s.CleanTitle("<b>Bold</b> Title "); got != "Bold Title" {
		t.Errorf("Expected 'Bold Title', got '%s'", got)
	}
	if got := s.CleanTitle("<script>alert(1)</script>"); got != "" {
		t.Errorf("Expected empty title, got '%s'", got)
	}
}

func TestSanitizerCleanDescription(t *testing.T) {
	s := NewSanitizer()

	got := s.CleanDescription(`<p>Hello</p><script>alert(1)</script>`)
	if got != "<p>Hello</p>" {
		t.Errorf("Expected script stripped, got '%s'", got)
	}

	got = s.CleanDescription(`<img src="https://example.com/t.jpg">`)
	if !strings.Contains(got, "<img") {
		t.Errorf("Expected images preserved, got '%s'", got)
	}
}

func TestSanitizerUnwrapsLegacyDescription(t *testing.T) {
	s := NewSanitizer()

	raw := `<div class="community-description"><p>The real payload</p></div>`
	got := s.CleanDescription(raw)
	if got != "<p>The real payload</p>" {
		t.Errorf("Expected unwrapped payload, got '%s'", got)
	}

	// No wrapper: content passes through untouched.
	if got = s.CleanDescription("<p>Plain</p>"); got != "<p>Plain</p>" {
		t.Errorf("Expected pass-through, got '%s'", got)
	}
}

func TestSanitizerNormalizeTags(t *testing.T) {
	s := NewSanitizer()

	got := s.NormalizeTags([]string{" Music ", "music", "", "Live"}, false)
	if len(got) != 2 || got[0] != "Music" || got[1] != "Live" {
		t.Errorf("Expected [Music Live], got %v", got)
	}

	got = s.NormalizeTags([]string{"MUSIC", "Live"}, true)
	if len(got) != 2 || got[0] != "music" || got[1] != "live" {
		t.Errorf("Expected lowercased tags, got %v", got)
	}
}
