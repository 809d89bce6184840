package config

import (
	"path/filepath"
	"testing"
)

// TestLoadMissingFileReturnsDefaults verifies first-run behavior.
func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "settings.json"))

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PeakSamples != 1000 {
		t.Fatalf("peak samples = %d, want 1000", cfg.PeakSamples)
	}
	if cfg.LabelStudio.PageSize != 20 {
		t.Fatalf("page size = %d, want 20", cfg.LabelStudio.PageSize)
	}
	if cfg.SpeechToText.Model != "whisper-1" {
		t.Fatalf("model = %q, want whisper-1", cfg.SpeechToText.Model)
	}
}

// TestSaveAndLoadRoundTrip checks persisted values survive a reload.
func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	store := NewJSONStore(path)

	cfg := DefaultSettings()
	cfg.HTTPAddr = ":9999"
	cfg.LabelStudio.ProjectID = 7
	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.HTTPAddr != ":9999" {
		t.Fatalf("http addr = %q, want :9999", loaded.HTTPAddr)
	}
	if loaded.LabelStudio.ProjectID != 7 {
		t.Fatalf("project id = %d, want 7", loaded.LabelStudio.ProjectID)
	}
}

// TestEnvOverridesFileValues checks deploy-time secrets win.
func TestEnvOverridesFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewJSONStore(path)

	cfg := DefaultSettings()
	cfg.LabelStudio.RefreshToken = "from-file"
	if err := store.Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	t.Setenv("LABEL_STUDIO_API_KEY", "from-env")
	t.Setenv("LABEL_STUDIO_PROJECT_ID", "42")

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.LabelStudio.RefreshToken != "from-env" {
		t.Fatalf("refresh token = %q, want from-env", loaded.LabelStudio.RefreshToken)
	}
	if loaded.LabelStudio.ProjectID != 42 {
		t.Fatalf("project id = %d, want 42", loaded.LabelStudio.ProjectID)
	}
}
