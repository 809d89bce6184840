package labelstudio

import (
	"testing"
	"time"
)

func ts(offset time.Duration) *time.Time {
	t := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	return &t
}

func floatPtr(v float64) *float64 { return &v }

// TestParseAnnotationsPicksLatestPass checks that a later review pass
// supersedes an earlier one.
func TestParseAnnotationsPicksLatestPass(t *testing.T) {
	annotations := []Annotation{
		{
			ID: 1, CreatedAt: ts(0),
			Result: []AnnotationResult{{
				ID: "a", Type: "textarea", FromName: "transcription",
				Value: ResultValue{Start: floatPtr(0), End: floatPtr(2), Text: TextValue{"first draft"}},
			}},
		},
		{
			ID: 2, CreatedAt: ts(time.Hour),
			Result: []AnnotationResult{{
				ID: "a", Type: "textarea", FromName: "transcription",
				Value: ResultValue{Start: floatPtr(0), End: floatPtr(2.5), Text: TextValue{"final wording"}},
			}},
		},
	}

	segments := ParseAnnotations(annotations)
	if len(segments) != 1 {
		t.Fatalf("segments = %+v", segments)
	}
	if segments[0].Text != "final wording" || segments[0].End != 2.5 {
		t.Fatalf("segment = %+v", segments[0])
	}
}

// TestParseAnnotationsSkipsCancelled checks cancelled passes never
// contribute, including an all-cancelled list.
func TestParseAnnotationsSkipsCancelled(t *testing.T) {
	cancelled := Annotation{
		ID: 3, WasCancelled: true, CreatedAt: ts(2 * time.Hour),
		Result: []AnnotationResult{{
			ID: "a", Type: "textarea", FromName: "transcription",
			Value: ResultValue{Start: floatPtr(0), End: floatPtr(1), Text: TextValue{"discarded"}},
		}},
	}
	kept := Annotation{
		ID: 2, CreatedAt: ts(time.Hour),
		Result: []AnnotationResult{{
			ID: "a", Type: "textarea", FromName: "transcription",
			Value: ResultValue{Start: floatPtr(0), End: floatPtr(1), Text: TextValue{"kept"}},
		}},
	}

	segments := ParseAnnotations([]Annotation{kept, cancelled})
	if len(segments) != 1 || segments[0].Text != "kept" {
		t.Fatalf("segments = %+v", segments)
	}

	if got := ParseAnnotations([]Annotation{cancelled}); len(got) != 0 {
		t.Fatalf("all-cancelled list must yield nothing, got %+v", got)
	}
}

// TestParseAnnotationsFiltersForeignResults checks only transcription
// textarea entries with a start bound map to segments.
func TestParseAnnotationsFiltersForeignResults(t *testing.T) {
	annotations := []Annotation{{
		ID: 1, CreatedAt: ts(0),
		Result: []AnnotationResult{
			{ID: "lbl", Type: "labels", FromName: "speaker",
				Value: ResultValue{Start: floatPtr(0), End: floatPtr(1)}},
			{ID: "nostart", Type: "textarea", FromName: "transcription",
				Value: ResultValue{Text: TextValue{"no region"}}},
			{ID: "ok", Type: "textarea", FromName: "transcription",
				Value: ResultValue{Start: floatPtr(3), Text: TextValue{"open ended"}}},
		},
	}}

	segments := ParseAnnotations(annotations)
	if len(segments) != 1 {
		t.Fatalf("segments = %+v", segments)
	}
	got := segments[0]
	if got.ID != "ok" || got.Start != 3 || got.End != 0 || got.Text != "open ended" {
		t.Fatalf("segment = %+v", got)
	}
}

// TestParseAnnotationsGeneratesMissingIDs checks fallback ids follow
// result position.
func TestParseAnnotationsGeneratesMissingIDs(t *testing.T) {
	annotations := []Annotation{{
		ID: 1,
		Result: []AnnotationResult{
			{Type: "textarea", FromName: "transcription",
				Value: ResultValue{Start: floatPtr(0), End: floatPtr(1), Text: TextValue{"one"}}},
			{Type: "textarea", FromName: "transcription",
				Value: ResultValue{Start: floatPtr(1), End: floatPtr(2), Text: TextValue{"two"}}},
		},
	}}

	segments := ParseAnnotations(annotations)
	if len(segments) != 2 {
		t.Fatalf("segments = %+v", segments)
	}
	if segments[0].ID != "s1" || segments[1].ID != "s2" {
		t.Fatalf("ids = %q, %q", segments[0].ID, segments[1].ID)
	}
}
