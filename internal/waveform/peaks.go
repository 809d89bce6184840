// Package waveform turns an audio file into a fixed-length peak
// envelope for waveform rendering. Peak generation is a cosmetic aid:
// a decode failure is absorbed into a synthetic envelope so the
// transcription pipeline never fails because of an exotic container.
package waveform

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os/exec"

	"transcript-hub/internal/domain"
)

// DefaultSamples is the envelope length used across the system.
const DefaultSamples = 1000

// decoder abstracts the streaming PCM decode for testability.
type decoder interface {
	DecodePCM(ctx context.Context, audioPath string, sampleRate int) ([]byte, error)
}

// ffmpegDecoder shells out to ffmpeg for a mono f32le resample.
type ffmpegDecoder struct {
	ffmpegPath string
}

// DecodePCM runs ffmpeg and returns raw little-endian float32 frames.
// The output sample rate equals the requested envelope length, so one
// decoded frame maps to one peak sample.
func (d *ffmpegDecoder) DecodePCM(ctx context.Context, audioPath string, sampleRate int) ([]byte, error) {
	args := buildDecodeArgs(audioPath, sampleRate)
	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffmpeg exit %d: %s", exitErr.ExitCode(), stderr.String())
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// buildDecodeArgs builds the mono resample filter chain for ffmpeg.
func buildDecodeArgs(audioPath string, sampleRate int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", audioPath,
		"-af", fmt.Sprintf("aformat=channel_layouts=mono,aresample=resampler=swr:osr=%d", sampleRate),
		"-f", "f32le",
		"-",
	}
}

// Generator produces peak envelopes of a fixed sample count.
type Generator struct {
	samples int
	decoder decoder
	randVal func() float64
}

// NewGenerator constructs the production generator backed by ffmpeg.
func NewGenerator(samples int) *Generator {
	if samples <= 0 {
		samples = DefaultSamples
	}
	return &Generator{
		samples: samples,
		decoder: &ffmpegDecoder{ffmpegPath: "ffmpeg"},
		randVal: rand.Float64,
	}
}

// NewGeneratorForTests constructs a generator with an injected decoder
// and random source.
func NewGeneratorForTests(samples int, dec decoder, randVal func() float64) *Generator {
	g := NewGenerator(samples)
	if dec != nil {
		g.decoder = dec
	}
	if randVal != nil {
		g.randVal = randVal
	}
	return g
}

// Generate decodes the audio into exactly g.samples peak values in
// arrival order, truncating extra frames and zero-padding short reads.
// Decode failures are logged and replaced with a synthetic envelope of
// pseudo-random values in [0.25, 0.75]; Generate never fails.
func (g *Generator) Generate(ctx context.Context, audioPath string) domain.PeakEnvelope {
	pcm, err := g.decoder.DecodePCM(ctx, audioPath, g.samples)
	if err != nil {
		log.Printf("waveform: decode failed for %s, using synthetic envelope: %v", audioPath, err)
		return g.synthetic()
	}

	data := make([]float64, 0, g.samples)
	for off := 0; off+4 <= len(pcm) && len(data) < g.samples; off += 4 {
		bits := binary.LittleEndian.Uint32(pcm[off : off+4])
		value := math.Abs(float64(math.Float32frombits(bits)))
		if value > 1 {
			value = 1
		}
		data = append(data, value)
	}
	for len(data) < g.samples {
		data = append(data, 0)
	}

	return domain.PeakEnvelope{Data: data, Length: g.samples}
}

// synthetic fills the envelope with values in [0.25, 0.75].
func (g *Generator) synthetic() domain.PeakEnvelope {
	data := make([]float64, g.samples)
	for i := range data {
		data[i] = g.randVal()*0.5 + 0.25
	}
	return domain.PeakEnvelope{Data: data, Length: g.samples}
}
