package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettings_EmptyPath(t *testing.T) {
	settings, err := LoadSettings("")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !settings.IsEnabled("feed/https://example.com/rss") {
		t.Error("Expected subscriptions to be enabled by default")
	}
	if _, ok := settings.Category("feed/https://example.com/rss"); ok {
		t.Error("Expected no category override by default")
	}
}

func TestLoadSettings_File(t *testing.T) {
	content := `sanitizer:
  allowed_elements: [p, a, strong]
  strip_images: true
subscriptions:
  "feed/https://example.com/rss":
    enabled: false
  "feed/https://blog.example.org/atom":
    category: Engineering
`
	path := filepath.Join(t.TempDir(), "settings.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}

	settings, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if settings.IsEnabled("feed/https://example.com/rss") {
		t.Error("Expected subscription to be disabled")
	}
	if !settings.IsEnabled("feed/https://blog.example.org/atom") {
		t.Error("Expected subscription without enabled key to stay enabled")
	}

	category, ok := settings.Category("feed/https://blog.example.org/atom")
	if !ok || category != "Engineering" {
		t.Errorf("Expected category override 'Engineering', got %q (%v)", category, ok)
	}

	if len(settings.Sanitizer.AllowedElements) != 3 {
		t.Errorf("Expected 3 allowed elements, got %d", len(settings.Sanitizer.AllowedElements))
	}
	if !settings.Sanitizer.StripImages {
		t.Error("Expected strip_images to be true")
	}
}

func TestLoadSettings_MissingFile(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadSettings_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	if err := os.WriteFile(path, []byte("subscriptions: [not, a, map"), 0o644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}

	if _, err := LoadSettings(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadSettings_EmptyAllowedElement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	if err := os.WriteFile(path, []byte("sanitizer:\n  allowed_elements: [p, \"\"]\n"), 0o644); err != nil {
		t.Fatalf("Failed to write settings file: %v", err)
	}

	if _, err := LoadSettings(path); err == nil {
		t.Error("Expected error for empty allowed element")
	}
}
