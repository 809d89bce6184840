package config

import (
	"os"
	"path/filepath"

	"transcript-hub/internal/domain"
)

// DefaultSettings returns baseline configuration for a first run.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		HTTPAddr:          ":8090",
		PublicBaseURL:     "http://localhost:8090",
		DataDir:           filepath.Join(homeDir, ".transcript-hub", "data"),
		RedisAddr:         "127.0.0.1:6379",
		WorkerConcurrency: 4,
		PeakSamples:       1000,
		SpeechToText: domain.SpeechToTextSettings{
			URL:   "https://api.openai.com/v1/audio/transcriptions",
			Model: "whisper-1",
		},
		LabelStudio: domain.LabelStudioSettings{
			URL:       "http://label-studio:8080",
			ProjectID: 1,
			PageSize:  20,
		},
	}
}
