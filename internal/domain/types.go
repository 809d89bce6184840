package domain

import (
	"encoding/json"
	"time"
)

// TaskStatus tracks the lifecycle stage of a single transcription task.
type TaskStatus string

const (
	TaskStatusQueued       TaskStatus = "queued"
	TaskStatusTranscribing TaskStatus = "transcribing"
	TaskStatusTranscribed  TaskStatus = "transcribed"
	TaskStatusReviewed     TaskStatus = "reviewed"
	TaskStatusError        TaskStatus = "error"
)

// Segment is one time-bounded span of transcribed text.
// Start and End are seconds from the beginning of the audio.
type Segment struct {
	ID      string  `json:"id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker *string `json:"speaker"`
}

// PeakEnvelope is a fixed-length series of normalized amplitude
// samples used to draw a waveform without decoding the full audio.
type PeakEnvelope struct {
	Data   []float64 `json:"data"`
	Length int       `json:"length"`
}

// Task is one audio file's transcription job and its lifecycle state.
// Segment order is playback order and is preserved end-to-end.
type Task struct {
	ID                string          `json:"id"`
	Filename          string          `json:"filename"`
	Status            TaskStatus      `json:"status"`
	AudioURL          string          `json:"audioUrl"`
	StoragePath       string          `json:"storagePath,omitempty"`
	Duration          *float64        `json:"duration"`
	Segments          []Segment       `json:"segments"`
	PeaksURL          string          `json:"peaksUrl,omitempty"`
	LabelStudioTaskID int64           `json:"labelStudioTaskId,omitempty"`
	LabelStudioURL    string          `json:"labelStudioUrl,omitempty"`
	Error             string          `json:"error,omitempty"`
	STTRaw            json.RawMessage `json:"sttRaw,omitempty"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	ReviewedAt        *time.Time      `json:"reviewedAt,omitempty"`
}

// HasMirror reports whether the task is linked to an annotation
// platform task.
func (t Task) HasMirror() bool {
	return t.LabelStudioTaskID != 0
}
