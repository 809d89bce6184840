package domain

// SpeechToTextSettings configures the external transcription API.
type SpeechToTextSettings struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// LabelStudioSettings configures the annotation platform connection.
// RefreshToken is the long-lived credential exchanged for short-lived
// access tokens.
type LabelStudioSettings struct {
	URL          string `json:"url"`
	RefreshToken string `json:"refreshToken"`
	ProjectID    int64  `json:"projectId"`
	PageSize     int    `json:"pageSize"`
}

// Settings contains service runtime configuration.
type Settings struct {
	HTTPAddr          string               `json:"httpAddr"`
	PublicBaseURL     string               `json:"publicBaseUrl"`
	DataDir           string               `json:"dataDir"`
	RedisAddr         string               `json:"redisAddr"`
	WorkerConcurrency int                  `json:"workerConcurrency"`
	PeakSamples       int                  `json:"peakSamples"`
	SpeechToText      SpeechToTextSettings `json:"speechToText"`
	LabelStudio       LabelStudioSettings  `json:"labelStudio"`
}
