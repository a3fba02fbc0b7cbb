package feed

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractSummary(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		maxLength int
		expected  string
	}{
		{"short text unchanged", "<p>Hello world</p>", 200, "Hello world"},
		{"tags and whitespace collapsed", "<p>Hello   <b>world</b></p>\n<p>Next</p>", 200, "Hello world Next"},
		{"line breaks separate words", "one<br>two", 200, "one two"},
		{"cut on word boundary", "The quick brown fox jumps", 12, "The quick"},
		{"limit lands on a space", "hello world", 5, "hello"},
		{"hard cut when no boundary", "Supercalifragilistic word", 10, "Supercalif"},
		{"hard cut when boundary too early", "a bcdefghijklmnop", 10, "a bcdefghi"},
		{"multibyte counted as characters", "日本語のテキスト", 3, "日本語"},
		{"script content dropped", "<p>Visible</p><script>var x = 1;</script>", 200, "Visible"},
		{"empty input", "", 200, ""},
		{"zero length uses default", strings.Repeat("word ", 100), 0, strings.TrimSpace(strings.Repeat("word ", 40))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractSummary(tt.html, tt.maxLength)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestExtractSummary_NeverExceedsLimit(t *testing.T) {
	inputs := []string{
		"<p>Lorem ipsum dolor sit amet, consectetur adipiscing elit.</p>",
		"<div><h1>Title</h1><ul><li>one</li><li>two</li></ul></div>",
		"Averyveryverylongwordwithoutanyspacesatallthatkeepsgoing",
		"<p>Ünïcödé tëxt wïth àccents and 絵文字 🎉 emoji</p>",
		strings.Repeat("<span>ab </span>", 80),
	}

	for _, input := range inputs {
		for n := 1; n <= 60; n++ {
			result := ExtractSummary(input, n)
			if utf8.RuneCountInString(result) > n {
				t.Errorf("Expected at most %d characters, got %d for input %q: %q", n, utf8.RuneCountInString(result), input, result)
			}
			if strings.Contains(result, "<") {
				t.Errorf("Expected plain text for input %q, got %q", input, result)
			}
		}
	}
}
