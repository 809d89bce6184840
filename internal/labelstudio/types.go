package labelstudio

import (
	"encoding/json"
	"time"
)

// predictionValue carries one audio region with its transcription
// text. Label Studio expects text as an array of strings.
type predictionValue struct {
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Text  []string `json:"text"`
}

// PredictionItem is one pre-annotation result entry tied to the
// project's transcription field.
type PredictionItem struct {
	FromName string          `json:"from_name"`
	ToName   string          `json:"to_name"`
	Type     string          `json:"type"`
	Value    predictionValue `json:"value"`
}

// prediction wraps the per-segment items with model attribution.
type prediction struct {
	ModelVersion string           `json:"model_version"`
	Score        float64          `json:"score"`
	Result       []PredictionItem `json:"result"`
}

// taskData embeds the internal task identity in the platform task so
// identity resolution can correlate it after import.
type taskData struct {
	Audio    string `json:"audio"`
	TaskID   string `json:"taskId"`
	Filename string `json:"filename"`
}

// importTask is one element of the bulk-import payload.
type importTask struct {
	Data        taskData     `json:"data"`
	Predictions []prediction `json:"predictions"`
}

// ImportResponse is the bulk-import summary. The created task id is
// notably absent; see identity resolution.
type ImportResponse struct {
	TaskCount       int `json:"task_count"`
	PredictionCount int `json:"prediction_count"`
	AnnotationCount int `json:"annotation_count"`
}

// QueriedTask is one task row from the project task listing.
type QueriedTask struct {
	ID               int64     `json:"id"`
	Data             taskData  `json:"data"`
	TotalPredictions int       `json:"total_predictions"`
	CreatedAt        time.Time `json:"created_at"`
}

// taskPage tolerates both listing shapes the platform has shipped:
// an object with a tasks array, or a bare array.
type taskPage struct {
	Tasks []QueriedTask
}

// UnmarshalJSON accepts {"tasks": [...]} and [...] bodies.
func (p *taskPage) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Tasks []QueriedTask `json:"tasks"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Tasks != nil {
		p.Tasks = wrapped.Tasks
		return nil
	}

	var bare []QueriedTask
	if err := json.Unmarshal(data, &bare); err != nil {
		return err
	}
	p.Tasks = bare
	return nil
}

// TextValue tolerates both a bare string and an array of strings in
// annotation result values.
type TextValue []string

// UnmarshalJSON accepts "text" and ["text", ...] shapes.
func (v *TextValue) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*v = many
		return nil
	}

	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*v = []string{one}
	return nil
}

// First returns the leading text element or an empty string.
func (v TextValue) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// ResultValue is the value block of one annotation result entry.
type ResultValue struct {
	Start *float64  `json:"start"`
	End   *float64  `json:"end"`
	Text  TextValue `json:"text"`
}

// AnnotationResult is one result entry inside an annotation.
type AnnotationResult struct {
	ID       string      `json:"id"`
	Type     string      `json:"type"`
	FromName string      `json:"from_name"`
	Value    ResultValue `json:"value"`
}

// Annotation is one human review pass over a task.
type Annotation struct {
	ID           int64              `json:"id"`
	WasCancelled bool               `json:"was_cancelled"`
	CreatedAt    *time.Time         `json:"created_at"`
	Result       []AnnotationResult `json:"result"`
}

// refreshRequest and refreshResponse are the token exchange payloads.
type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// Created identifies the platform task resolved after import.
type Created struct {
	ID  int64
	URL string
}

// Project is the subset of project metadata the service reads.
type Project struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	TaskCount int    `json:"task_number"`
}
