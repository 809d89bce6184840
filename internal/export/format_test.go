package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"transcript-hub/internal/domain"
)

func strPtr(s string) *string { return &s }

func sampleSegments() []domain.Segment {
	return []domain.Segment{
		{ID: "s1", Start: 0, End: 2.5, Text: "hello there"},
		{ID: "s2", Start: 2.5, End: 3661.25, Text: "long tail", Speaker: strPtr("S1")},
	}
}

// TestTimestamp covers the documented timestamp fixtures.
func TestTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		sep     string
		want    string
	}{
		{3661.25, ",", "01:01:01,250"},
		{0, ".", "00:00:00.000"},
		{2.5, ",", "00:00:02,500"},
		{59.9994, ".", "00:00:59.999"},
	}
	for _, tc := range cases {
		if got := Timestamp(tc.seconds, tc.sep); got != tc.want {
			t.Fatalf("Timestamp(%v, %q) = %q, want %q", tc.seconds, tc.sep, got, tc.want)
		}
	}
}

// TestRenderSRT checks block shape, speaker prefix, and separators.
func TestRenderSRT(t *testing.T) {
	got := RenderSRT(sampleSegments())
	want := "1\n00:00:00,000 --> 00:00:02,500\nhello there\n" +
		"\n" +
		"2\n00:00:02,500 --> 01:01:01,250\n[S1] long tail\n"
	if got != want {
		t.Fatalf("RenderSRT mismatch:\ngot  %q\nwant %q", got, want)
	}
}

// TestRenderSRTEmpty checks empty input renders to an empty string.
func TestRenderSRTEmpty(t *testing.T) {
	if got := RenderSRT(nil); got != "" {
		t.Fatalf("RenderSRT(nil) = %q, want empty", got)
	}
}

// TestRenderSRTRoundTrip re-parses the rendered output and compares
// triples in order, modulo sub-millisecond truncation.
func TestRenderSRTRoundTrip(t *testing.T) {
	segments := sampleSegments()
	blocks := strings.Split(strings.TrimSpace(RenderSRT(segments)), "\n\n")
	if len(blocks) != len(segments) {
		t.Fatalf("block count = %d, want %d", len(blocks), len(segments))
	}

	for i, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			t.Fatalf("block %d has %d lines", i, len(lines))
		}
		parts := strings.Split(lines[1], " --> ")
		start := parseSRTStamp(t, parts[0])
		end := parseSRTStamp(t, parts[1])
		if diff := segments[i].Start - start; diff < 0 || diff >= 0.001 {
			t.Fatalf("block %d start = %v, want %v", i, start, segments[i].Start)
		}
		if diff := segments[i].End - end; diff < 0 || diff >= 0.001 {
			t.Fatalf("block %d end = %v, want %v", i, end, segments[i].End)
		}
		if !strings.HasSuffix(lines[2], segments[i].Text) {
			t.Fatalf("block %d text = %q, want suffix %q", i, lines[2], segments[i].Text)
		}
	}
}

// parseSRTStamp converts HH:MM:SS,mmm back to seconds.
func parseSRTStamp(t *testing.T, stamp string) float64 {
	t.Helper()
	var h, m, s, ms int
	if n, err := fmt.Sscanf(stamp, "%d:%d:%d,%d", &h, &m, &s, &ms); err != nil || n != 4 {
		t.Fatalf("bad stamp %q: %v", stamp, err)
	}
	return float64(h*3600+m*60+s) + float64(ms)/1000
}

// TestRenderVTT checks header presence and voice tags.
func TestRenderVTT(t *testing.T) {
	got := RenderVTT(sampleSegments())
	if !strings.HasPrefix(got, "WEBVTT\n\n") {
		t.Fatalf("missing WEBVTT header: %q", got)
	}
	if !strings.Contains(got, "00:00:02.500 --> 01:01:01.250") {
		t.Fatalf("missing period-separated stamps: %q", got)
	}
	if !strings.Contains(got, "<v S1>long tail") {
		t.Fatalf("missing voice tag: %q", got)
	}
}

// TestRenderVTTEmpty checks the header survives empty input.
func TestRenderVTTEmpty(t *testing.T) {
	if got := RenderVTT(nil); got != "WEBVTT\n\n" {
		t.Fatalf("RenderVTT(nil) = %q", got)
	}
}

// TestRenderPlainText checks timestamp prefixes toggle correctly.
func TestRenderPlainText(t *testing.T) {
	segments := sampleSegments()

	with := RenderPlainText(segments, true)
	lines := strings.Split(with, "\n")
	if len(lines) != 2 {
		t.Fatalf("line count = %d, want 2", len(lines))
	}
	if lines[0] != "[00:00 - 00:02] hello there" {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if lines[1] != "[00:02 - 61:01] [S1] long tail" {
		t.Fatalf("line 1 = %q", lines[1])
	}

	without := RenderPlainText(segments, false)
	if strings.Contains(without, "[00:00") {
		t.Fatalf("timestamps leaked into %q", without)
	}
}

// TestRenderStructured checks the fixed field set and determinism.
func TestRenderStructured(t *testing.T) {
	dur := 12.5
	task := domain.Task{
		ID:        "t1",
		Filename:  "interview.mp3",
		Status:    domain.TaskStatusTranscribed,
		Duration:  &dur,
		Segments:  sampleSegments(),
		STTRaw:    json.RawMessage(`{"model":"whisper-1"}`),
		CreatedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 3, 1, 10, 5, 0, 0, time.UTC),
	}

	first, err := RenderStructured(task)
	if err != nil {
		t.Fatalf("RenderStructured error = %v", err)
	}
	second, err := RenderStructured(task)
	if err != nil {
		t.Fatalf("RenderStructured error = %v", err)
	}
	if first != second {
		t.Fatal("structured export must be deterministic")
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(first), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"id", "filename", "duration", "status", "segments", "sttRaw", "createdAt", "updatedAt", "metadata"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q in structured export", key)
		}
	}
}

// TestContentTypeAndExtensionDefaults checks unknown format fallbacks.
func TestContentTypeAndExtensionDefaults(t *testing.T) {
	if got := ContentType("vtt"); got != "text/vtt" {
		t.Fatalf("ContentType(vtt) = %q", got)
	}
	if got := ContentType("ass"); got != "text/plain" {
		t.Fatalf("ContentType(ass) = %q, want text/plain", got)
	}
	if got := FileExtension("json"); got != ".json" {
		t.Fatalf("FileExtension(json) = %q", got)
	}
	if got := FileExtension("ass"); got != ".txt" {
		t.Fatalf("FileExtension(ass) = %q, want .txt", got)
	}
	if IsSupported("ass") {
		t.Fatal("ass must not be supported")
	}
	if !IsSupported("SRT") {
		t.Fatal("format matching must be case-insensitive")
	}
}
