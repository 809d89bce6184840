// Package media wraps the ffprobe metadata probe used to measure
// audio duration before transcription.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner executes commands via os/exec and captures stdout.
type execRunner struct{}

// Output runs one command, returning stdout and stderr-laced errors.
func (r *execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s exit %d: %s", name, exitErr.ExitCode(), stderr.String())
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Prober reads container-level duration from a local media file.
type Prober struct {
	ffprobePath string
	runner      commandRunner
}

// NewProber constructs a prober backed by the ffprobe binary.
func NewProber() *Prober {
	return &Prober{ffprobePath: "ffprobe", runner: &execRunner{}}
}

// NewProberForTests constructs a prober with an injected runner.
func NewProberForTests(runner commandRunner) *Prober {
	return &Prober{ffprobePath: "ffprobe", runner: runner}
}

// Duration returns the audio duration in seconds, or nil when the
// container does not declare one. A probe process failure is an error;
// an unparseable or absent duration is not.
func (p *Prober) Duration(ctx context.Context, path string) (*float64, error) {
	out, err := p.runner.Output(ctx, p.ffprobePath,
		"-hide_banner",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("probe duration: %w", err)
	}

	raw := strings.TrimSpace(string(out))
	if raw == "" || raw == "N/A" {
		return nil, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, nil
	}
	return &seconds, nil
}
