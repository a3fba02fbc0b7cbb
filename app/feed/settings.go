package feed

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings holds operator overrides loaded from an optional YAML file.
type Settings struct {
	Sanitizer     SanitizerOptions                `yaml:"sanitizer"`
	Subscriptions map[string]SubscriptionSettings `yaml:"subscriptions"`

	mu sync.RWMutex
}

type SubscriptionSettings struct {
	Enabled  *bool  `yaml:"enabled"`
	Category string `yaml:"category"`
}

func NewSettings() *Settings {
	return &Settings{
		Subscriptions: make(map[string]SubscriptionSettings),
	}
}

// LoadSettings reads path. An empty path yields default settings.
func LoadSettings(path string) (*Settings, error) {
	settings := NewSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if settings.Subscriptions == nil {
		settings.Subscriptions = make(map[string]SubscriptionSettings)
	}

	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}

	slog.Debug("Settings loaded", "path", path, "subscriptions", len(settings.Subscriptions), "allowed_elements", len(settings.Sanitizer.AllowedElements))

	return settings, nil
}

func (s *Settings) IsEnabled(subscriptionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.Subscriptions[subscriptionID]
	if !ok || sub.Enabled == nil {
		return true
	}
	return *sub.Enabled
}

// Category returns the configured override for a subscription, if any.
func (s *Settings) Category(subscriptionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.Subscriptions[subscriptionID]
	if !ok || sub.Category == "" {
		return "", false
	}
	return sub.Category, true
}

func (s *Settings) validate() error {
	for id := range s.Subscriptions {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("subscription id is required")
		}
	}

	for i, element := range s.Sanitizer.AllowedElements {
		if strings.TrimSpace(element) == "" {
			return fmt.Errorf("allowed element at index %d is empty", i)
		}
	}

	return nil
}
