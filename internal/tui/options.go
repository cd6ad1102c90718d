package tui

import "github.com/evanschultz/brainboard/internal/app"

// ExportConfig controls where the `x` key writes documents.
type ExportConfig struct {
	Dir           string
	Format        app.ExportFormat
	IncludePhases bool
}

type Option func(*Model)

func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Dir:    ".",
		Format: app.ExportJSON,
	}
}

func WithExportConfig(cfg ExportConfig) Option {
	return func(m *Model) {
		if cfg.Dir != "" {
			m.export.Dir = cfg.Dir
		}
		if cfg.Format != "" {
			m.export.Format = cfg.Format
		}
		m.export.IncludePhases = cfg.IncludePhases
	}
}

// WithClipboard replaces the clipboard writer used by the copy key.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}
