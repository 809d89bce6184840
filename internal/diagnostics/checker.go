// Package diagnostics runs startup checks over the external tools and
// directories the service depends on.
package diagnostics

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"transcript-hub/internal/domain"
)

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// NewCheckerForTests builds a checker with injected OS dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkTool("ffmpeg"),
		c.checkTool("ffprobe"),
		c.checkDataDir(settings.DataDir),
		c.checkSpeechToText(settings.SpeechToText),
		c.checkLabelStudio(settings.LabelStudio),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required CLI executable is on PATH.
func (c *Checker) checkTool(name string) domain.DiagnosticItem {
	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      "tool_" + name,
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    "Install it and ensure the binary is available on PATH before uploading audio.",
		}
	}

	return domain.DiagnosticItem{
		ID:      "tool_" + name,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkDataDir validates the data directory exists and is writable.
func (c *Checker) checkDataDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "data_dir",
		Name: "Data directory",
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Data directory is not configured."
		item.Hint = "Set dataDir in the configuration file or TH_DATA_DIR."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create data directory: %s", dir)
		item.Hint = "Check permissions on the parent directory."
		return item
	}

	probe, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrPermission) {
			item.Message = fmt.Sprintf("Data directory is not writable: %s", dir)
		} else {
			item.Message = fmt.Sprintf("Cannot write to data directory: %s", dir)
		}
		item.Hint = "Check permissions for the data directory."
		return item
	}
	name := probe.Name()
	probe.Close()
	if err := c.remove(name); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot remove write probe in: %s", dir)
		item.Hint = "Check permissions for the data directory."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable: %s", dir)
	return item
}

// checkSpeechToText validates the transcription service configuration.
func (c *Checker) checkSpeechToText(cfg domain.SpeechToTextSettings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "speech_to_text",
		Name: "Speech-to-text",
	}

	if strings.TrimSpace(cfg.URL) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Speech-to-text URL is not configured."
		item.Hint = "Set speechToText.url or TH_STT_URL."
		return item
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Speech-to-text API key is not configured."
		item.Hint = "Set speechToText.apiKey or OPENAI_API_KEY."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Configured for %s", cfg.URL)
	return item
}

// checkLabelStudio validates the annotation platform configuration.
// The platform is optional, so an empty URL passes with a note.
func (c *Checker) checkLabelStudio(cfg domain.LabelStudioSettings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "label_studio",
		Name: "Label Studio",
	}

	if strings.TrimSpace(cfg.URL) == "" {
		item.Status = domain.DiagnosticStatusPass
		item.Message = "Not configured, annotation sync is disabled."
		return item
	}
	if strings.TrimSpace(cfg.RefreshToken) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Label Studio refresh token is not configured."
		item.Hint = "Set labelStudio.refreshToken or LABEL_STUDIO_API_KEY."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Configured for %s, project %d", cfg.URL, cfg.ProjectID)
	return item
}
