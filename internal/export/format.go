// Package export renders reviewed transcripts into subtitle and text
// formats. All functions are pure; callers hold the task data.
package export

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"transcript-hub/internal/domain"
)

// Formats lists the supported export formats in the order surfaced to
// callers in validation errors.
var Formats = []string{"srt", "vtt", "txt", "json"}

var contentTypes = map[string]string{
	"srt":  "application/x-subrip",
	"vtt":  "text/vtt",
	"txt":  "text/plain",
	"json": "application/json",
}

var fileExtensions = map[string]string{
	"srt":  ".srt",
	"vtt":  ".vtt",
	"txt":  ".txt",
	"json": ".json",
}

// IsSupported reports whether the format has a renderer.
func IsSupported(format string) bool {
	_, ok := contentTypes[strings.ToLower(format)]
	return ok
}

// ContentType returns the MIME type for a format, defaulting to plain
// text for unknown formats.
func ContentType(format string) string {
	if ct, ok := contentTypes[strings.ToLower(format)]; ok {
		return ct
	}
	return "text/plain"
}

// FileExtension returns the filename extension for a format,
// defaulting to .txt for unknown formats.
func FileExtension(format string) string {
	if ext, ok := fileExtensions[strings.ToLower(format)]; ok {
		return ext
	}
	return ".txt"
}

// Timestamp converts seconds to a zero-padded HH:MM:SS<sep>mmm
// subtitle timestamp. SRT uses a comma separator, VTT a period.
func Timestamp(seconds float64, sep string) string {
	hours := int(seconds / 3600)
	minutes := int(math.Mod(seconds, 3600) / 60)
	secs := int(math.Mod(seconds, 60))
	millis := int(math.Mod(seconds, 1) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, sep, millis)
}

// shortTimestamp formats seconds as MM:SS for plain-text exports.
func shortTimestamp(seconds float64) string {
	minutes := int(seconds / 60)
	secs := int(math.Mod(seconds, 60))
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// RenderSRT renders segments as SubRip subtitles. Empty input renders
// to an empty string.
func RenderSRT(segments []domain.Segment) string {
	if len(segments) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(segments))
	for i, seg := range segments {
		speaker := ""
		if seg.Speaker != nil && *seg.Speaker != "" {
			speaker = fmt.Sprintf("[%s] ", *seg.Speaker)
		}
		blocks = append(blocks, fmt.Sprintf(
			"%d\n%s --> %s\n%s%s\n",
			i+1,
			Timestamp(seg.Start, ","),
			Timestamp(seg.End, ","),
			speaker,
			seg.Text,
		))
	}
	return strings.Join(blocks, "\n")
}

// RenderVTT renders segments as WebVTT. The header is present even for
// empty input.
func RenderVTT(segments []domain.Segment) string {
	if len(segments) == 0 {
		return "WEBVTT\n\n"
	}

	cues := make([]string, 0, len(segments))
	for i, seg := range segments {
		speaker := ""
		if seg.Speaker != nil && *seg.Speaker != "" {
			speaker = fmt.Sprintf("<v %s>", *seg.Speaker)
		}
		cues = append(cues, fmt.Sprintf(
			"%d\n%s --> %s\n%s%s\n",
			i+1,
			Timestamp(seg.Start, "."),
			Timestamp(seg.End, "."),
			speaker,
			seg.Text,
		))
	}
	return "WEBVTT\n\n" + strings.Join(cues, "\n")
}

// RenderPlainText renders one line per segment, optionally prefixed
// with a [MM:SS - MM:SS] range.
func RenderPlainText(segments []domain.Segment, includeTimestamps bool) string {
	if len(segments) == 0 {
		return ""
	}

	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		if includeTimestamps {
			fmt.Fprintf(&b, "[%s - %s] ", shortTimestamp(seg.Start), shortTimestamp(seg.End))
		}
		if seg.Speaker != nil && *seg.Speaker != "" {
			fmt.Fprintf(&b, "[%s] ", *seg.Speaker)
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

// structuredTask fixes the field set and key order of the JSON export
// so repeated renders are byte-for-byte identical.
type structuredTask struct {
	ID        string            `json:"id"`
	Filename  string            `json:"filename"`
	Duration  *float64          `json:"duration"`
	Status    domain.TaskStatus `json:"status"`
	Segments  []domain.Segment  `json:"segments"`
	STTRaw    json.RawMessage   `json:"sttRaw"`
	CreatedAt string            `json:"createdAt"`
	UpdatedAt string            `json:"updatedAt"`
	Metadata  map[string]any    `json:"metadata"`
}

// RenderStructured renders the full task as indented JSON.
func RenderStructured(task domain.Task) (string, error) {
	segments := task.Segments
	if segments == nil {
		segments = []domain.Segment{}
	}
	metadata := task.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	out := structuredTask{
		ID:        task.ID,
		Filename:  task.Filename,
		Duration:  task.Duration,
		Status:    task.Status,
		Segments:  segments,
		STTRaw:    task.STTRaw,
		CreatedAt: task.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: task.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Metadata:  metadata,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
