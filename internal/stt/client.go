// Package stt calls the external speech-to-text service. The service
// is a black box: audio bytes in, duration plus time-coded segments
// out.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"transcript-hub/internal/apperr"
)

// RawSegment is one time-coded span as returned by the service.
type RawSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the parsed transcription response plus the raw body for
// archival alongside the task.
type Result struct {
	Duration float64
	Segments []RawSegment
	Raw      json.RawMessage
}

// Transcriber is the speech-to-text boundary used by the pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, filename string) (Result, error)
}

// Client talks to a Whisper-compatible transcription endpoint.
type Client struct {
	url    string
	apiKey string
	model  string
	httpc  *http.Client
}

// NewClient constructs a transcription client.
func NewClient(url, apiKey, model string) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		model:  model,
		httpc:  &http.Client{Timeout: 8 * time.Minute},
	}
}

// verboseResponse mirrors the verbose_json response shape.
type verboseResponse struct {
	Duration float64      `json:"duration"`
	Segments []RawSegment `json:"segments"`
}

// Transcribe uploads the audio as multipart form data and parses the
// segment-level response. A non-2xx status is an upstream error
// carrying the response body.
func (c *Client) Transcribe(ctx context.Context, audioPath, filename string) (Result, error) {
	if c.apiKey == "" {
		return Result{}, apperr.New(apperr.CodeValidation, "speech-to-text API key not configured")
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.CodeStorage, err, "open audio file %s", audioPath)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", c.model); err != nil {
		return Result{}, fmt.Errorf("write model field: %w", err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, fmt.Errorf("write response_format field: %w", err)
	}
	if err := mw.WriteField("timestamp_granularities[]", "segment"); err != nil {
		return Result{}, fmt.Errorf("write granularity field: %w", err)
	}

	if filename == "" {
		filename = "audio.mp3"
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Result{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return Result{}, fmt.Errorf("copy audio bytes: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.CodeUpstream, err, "speech-to-text call failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.CodeUpstream, err, "read speech-to-text response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, apperr.New(apperr.CodeUpstream, "speech-to-text error: %d - %s", resp.StatusCode, string(raw))
	}

	var parsed verboseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, apperr.Wrap(apperr.CodeUpstream, err, "decode speech-to-text response")
	}

	return Result{
		Duration: parsed.Duration,
		Segments: parsed.Segments,
		Raw:      json.RawMessage(raw),
	}, nil
}
