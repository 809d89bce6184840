package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"transcript-hub/internal/domain"
)

// Store defines persistence operations for service settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// JSONStore persists settings in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads settings from disk or returns defaults when missing.
// Environment variables override file values for deploy-time secrets.
func (s *JSONStore) Load() (domain.Settings, error) {
	cfg := DefaultSettings()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return domain.Settings{}, err
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

// Save writes settings as indented JSON and creates parent directories.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// applyEnv overlays deploy-time environment variables onto settings.
func applyEnv(cfg *domain.Settings) {
	setString(&cfg.HTTPAddr, "TH_HTTP_ADDR")
	setString(&cfg.PublicBaseURL, "TH_PUBLIC_BASE_URL")
	setString(&cfg.DataDir, "TH_DATA_DIR")
	setString(&cfg.RedisAddr, "TH_REDIS_ADDR")
	setString(&cfg.SpeechToText.APIKey, "OPENAI_API_KEY")
	setString(&cfg.SpeechToText.URL, "TH_STT_URL")
	setString(&cfg.LabelStudio.URL, "LABEL_STUDIO_URL")
	setString(&cfg.LabelStudio.RefreshToken, "LABEL_STUDIO_API_KEY")

	if v := os.Getenv("LABEL_STUDIO_PROJECT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.LabelStudio.ProjectID = id
		}
	}
}

// setString assigns the environment value when present and non-empty.
func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
