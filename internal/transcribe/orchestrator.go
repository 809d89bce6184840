// Package transcribe runs the transcription pipeline for one task:
// claim, fetch audio, probe duration, generate peaks, call
// speech-to-text, and persist the result in a single write.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"transcript-hub/internal/blob"
	"transcript-hub/internal/domain"
	"transcript-hub/internal/store"
	"transcript-hub/internal/stt"
)

// Stage identifies the pipeline step an error originated in.
type Stage string

// Pipeline stages in execution order.
const (
	StageResolve    Stage = "resolve"
	StageFetch      Stage = "fetch"
	StageProbe      Stage = "probe"
	StagePeaks      Stage = "peaks"
	StageTranscribe Stage = "transcribe"
	StagePersist    Stage = "persist"
)

// StageError wraps a failure with the stage it happened in. The stage
// string is what lands in the task's error field, so operators can see
// where a run died without reading logs.
type StageError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// taskStore is the persistence subset the pipeline needs.
type taskStore interface {
	Get(ctx context.Context, id string) (domain.Task, error)
	Claim(ctx context.Context, id string) (bool, error)
	MarkTranscribed(ctx context.Context, id string, result store.TranscriptionResult) error
	MarkError(ctx context.Context, id, message string) error
}

// peakGenerator produces the waveform envelope; it never fails.
type peakGenerator interface {
	Generate(ctx context.Context, audioPath string) domain.PeakEnvelope
}

// durationProber reads the media duration, nil when unknown.
type durationProber interface {
	Duration(ctx context.Context, path string) (*float64, error)
}

// Pipeline orchestrates one task's journey from queued to transcribed.
type Pipeline struct {
	tasks       taskStore
	blobs       blob.Store
	transcriber stt.Transcriber
	peaks       peakGenerator
	prober      durationProber
	scratchDir  string
}

// NewPipeline wires the pipeline's collaborators. scratchDir holds
// per-run working copies of the audio; empty means the OS temp dir.
func NewPipeline(tasks taskStore, blobs blob.Store, transcriber stt.Transcriber, peaks peakGenerator, prober durationProber, scratchDir string) *Pipeline {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Pipeline{
		tasks:       tasks,
		blobs:       blobs,
		transcriber: transcriber,
		peaks:       peaks,
		prober:      prober,
		scratchDir:  scratchDir,
	}
}

// Run processes one task end to end. A task that is no longer queued,
// has no audio, or loses the claim race is skipped without error:
// duplicate deliveries are expected and must be harmless. Any stage
// failure after the claim funnels the task into error status.
func (p *Pipeline) Run(ctx context.Context, taskID string) error {
	task, err := p.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != domain.TaskStatusQueued {
		log.Printf("transcribe: task %s is %s, skipping", taskID, task.Status)
		return nil
	}
	if task.AudioURL == "" {
		log.Printf("transcribe: task %s has no audio, skipping", taskID)
		return nil
	}

	claimed, err := p.tasks.Claim(ctx, taskID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("transcribe: task %s already claimed, skipping", taskID)
		return nil
	}

	result, runErr := p.process(ctx, task)
	if runErr != nil {
		if markErr := p.tasks.MarkError(ctx, taskID, runErr.Error()); markErr != nil {
			log.Printf("transcribe: task %s failed and error write also failed: %v", taskID, markErr)
		}
		return runErr
	}

	if err := p.tasks.MarkTranscribed(ctx, taskID, result); err != nil {
		return &StageError{Stage: StagePersist, Err: err}
	}
	return nil
}

// process runs the post-claim stages and assembles the single result
// write.
func (p *Pipeline) process(ctx context.Context, task domain.Task) (store.TranscriptionResult, error) {
	key := task.StoragePath
	if key == "" {
		key = blob.ResolveStorageKey(task.AudioURL)
	}
	if key == "" {
		return store.TranscriptionResult{}, &StageError{
			Stage: StageResolve,
			Err:   fmt.Errorf("cannot derive storage key from %q", task.AudioURL),
		}
	}

	exists, err := p.blobs.Exists(ctx, key)
	if err != nil {
		return store.TranscriptionResult{}, &StageError{Stage: StageFetch, Err: err}
	}
	if !exists {
		return store.TranscriptionResult{}, &StageError{
			Stage: StageFetch,
			Err:   fmt.Errorf("audio object %s not found", key),
		}
	}

	scratch := filepath.Join(p.scratchDir, "transcribe-"+task.ID+filepath.Ext(key))
	if err := p.blobs.Download(ctx, key, scratch); err != nil {
		return store.TranscriptionResult{}, &StageError{Stage: StageFetch, Err: err}
	}
	defer func() {
		if err := os.Remove(scratch); err != nil && !os.IsNotExist(err) {
			log.Printf("transcribe: leaking scratch file %s: %v", scratch, err)
		}
	}()

	// A probe that runs but reports no duration leaves it unknown; a
	// probe process failure is fatal like every other stage.
	duration, err := p.prober.Duration(ctx, scratch)
	if err != nil {
		return store.TranscriptionResult{}, &StageError{Stage: StageProbe, Err: err}
	}

	envelope := p.peaks.Generate(ctx, scratch)
	peaksBody, err := json.Marshal(envelope.Data)
	if err != nil {
		return store.TranscriptionResult{}, &StageError{Stage: StagePeaks, Err: err}
	}
	peaksKey := fmt.Sprintf("peaks/%s/peaks.json", task.ID)
	err = p.blobs.Upload(ctx, peaksKey, peaksBody, blob.UploadOptions{
		ContentType:  "application/json",
		CacheControl: "public, max-age=31536000",
	})
	if err != nil {
		return store.TranscriptionResult{}, &StageError{Stage: StagePeaks, Err: err}
	}

	transcript, err := p.transcriber.Transcribe(ctx, scratch, task.Filename)
	if err != nil {
		return store.TranscriptionResult{}, &StageError{Stage: StageTranscribe, Err: err}
	}

	if duration == nil && transcript.Duration > 0 {
		d := transcript.Duration
		duration = &d
	}

	segments := make([]domain.Segment, 0, len(transcript.Segments))
	for i, raw := range transcript.Segments {
		segments = append(segments, domain.Segment{
			ID:    fmt.Sprintf("s%d", i+1),
			Start: raw.Start,
			End:   raw.End,
			Text:  strings.TrimSpace(raw.Text),
		})
	}

	return store.TranscriptionResult{
		Duration: duration,
		Segments: segments,
		PeaksURL: p.blobs.PublicURL(peaksKey),
		STTRaw:   transcript.Raw,
	}, nil
}
