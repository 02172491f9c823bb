package tui

import "github.com/atotto/clipboard"

// DisplayConfig controls how amounts and the metrics header render.
type DisplayConfig struct {
	Currency    string
	ShowMetrics bool
}

type Option func(*Model)

// ClipboardWriter copies text to the system clipboard.
type ClipboardWriter func(string) error

func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		Currency:    "$",
		ShowMetrics: true,
	}
}

func WithDisplayConfig(cfg DisplayConfig) Option {
	return func(m *Model) {
		m.display = cfg
	}
}

// WithConfirmDelete asks for y/n before deleting.
func WithConfirmDelete(enabled bool) Option {
	return func(m *Model) {
		m.confirmDelete = enabled
	}
}

func WithClipboard(write ClipboardWriter) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// systemClipboard writes through atotto/clipboard.
func systemClipboard(text string) error {
	return clipboard.WriteAll(text)
}
