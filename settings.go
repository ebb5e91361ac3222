package xrcompose

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bounce copy policies accepted by Settings.BounceCopy.
const (
	BounceCopyAuto   = "auto"
	BounceCopyAlways = "always"
	BounceCopyNever  = "never"
)

// Composition APIs accepted by Settings.CompositionAPI. CompositionAuto
// creates the composition device with the application's API.
const (
	CompositionAuto = "auto"
	CompositionSoft = "soft"
	CompositionHAL  = "hal"
)

// Settings is the layer configuration, usually read from a YAML file
// installed next to the layer manifest.
type Settings struct {
	// CompositionAPI selects the backend of the composition device.
	CompositionAPI string `yaml:"composition_api"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// BounceCopy overrides the quirk probe: "always" forces bounce copies
	// for every submittable swapchain, "never" disables the quirk table.
	BounceCopy string `yaml:"bounce_copy"`

	// Quirks extends the built-in runtime quirk table.
	Quirks []QuirkRule `yaml:"quirks,omitempty"`
}

// QuirkRule matches runtimes whose name contains Runtime (case-insensitive).
type QuirkRule struct {
	Runtime         string `yaml:"runtime"`
	ForceBounceCopy bool   `yaml:"force_bounce_copy"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		CompositionAPI: CompositionAuto,
		LogLevel:       "info",
		BounceCopy:     BounceCopyAuto,
	}
}

// LoadSettings reads and validates a YAML settings file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes and validates YAML settings.
func ParseSettings(data []byte) (*Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

// Validate checks the settings and fills defaults for empty fields.
func (s *Settings) Validate() error {
	if s.CompositionAPI == "" {
		s.CompositionAPI = CompositionAuto
	}
	s.CompositionAPI = strings.ToLower(s.CompositionAPI)
	switch s.CompositionAPI {
	case CompositionAuto, CompositionSoft, CompositionHAL:
	default:
		return fmt.Errorf("composition_api must be auto, soft or hal, got %q", s.CompositionAPI)
	}

	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if _, err := s.Level(); err != nil {
		return err
	}

	if s.BounceCopy == "" {
		s.BounceCopy = BounceCopyAuto
	}
	switch s.BounceCopy {
	case BounceCopyAuto, BounceCopyAlways, BounceCopyNever:
	default:
		return fmt.Errorf("bounce_copy must be auto, always or never, got %q", s.BounceCopy)
	}

	for i, q := range s.Quirks {
		if strings.TrimSpace(q.Runtime) == "" {
			return fmt.Errorf("quirks[%d].runtime is required", i)
		}
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (s *Settings) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
