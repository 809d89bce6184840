package waveform

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// fakeDecoder returns canned PCM bytes or an error.
type fakeDecoder struct {
	pcm []byte
	err error
}

// DecodePCM delegates to injected values.
func (f *fakeDecoder) DecodePCM(ctx context.Context, audioPath string, sampleRate int) ([]byte, error) {
	return f.pcm, f.err
}

// pcmBytes encodes float32 frames as little-endian bytes.
func pcmBytes(values ...float32) []byte {
	out := make([]byte, 0, len(values)*4)
	for _, v := range values {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		out = append(out, buf[:]...)
	}
	return out
}

// TestGenerateAbsoluteValuesInOrder checks decode mapping and padding.
func TestGenerateAbsoluteValuesInOrder(t *testing.T) {
	gen := NewGeneratorForTests(5, &fakeDecoder{pcm: pcmBytes(0.5, -0.25, 0.1)}, nil)

	env := gen.Generate(context.Background(), "clip.mp3")
	if env.Length != 5 {
		t.Fatalf("length = %d, want 5", env.Length)
	}
	if len(env.Data) != 5 {
		t.Fatalf("data len = %d, want 5", len(env.Data))
	}

	want := []float64{0.5, 0.25, 0.1, 0, 0}
	for i, v := range want {
		if math.Abs(env.Data[i]-v) > 1e-6 {
			t.Fatalf("data[%d] = %v, want %v", i, env.Data[i], v)
		}
	}
}

// TestGenerateTruncatesExtraFrames checks long decodes clamp to N.
func TestGenerateTruncatesExtraFrames(t *testing.T) {
	gen := NewGeneratorForTests(2, &fakeDecoder{pcm: pcmBytes(0.1, 0.2, 0.3, 0.4)}, nil)

	env := gen.Generate(context.Background(), "clip.mp3")
	if env.Length != 2 || len(env.Data) != 2 {
		t.Fatalf("envelope = %d/%d, want 2/2", env.Length, len(env.Data))
	}
	if math.Abs(env.Data[1]-0.2) > 1e-6 {
		t.Fatalf("data[1] = %v, want 0.2", env.Data[1])
	}
}

// TestGenerateClampsHotSamples checks values stay within [0, 1].
func TestGenerateClampsHotSamples(t *testing.T) {
	gen := NewGeneratorForTests(1, &fakeDecoder{pcm: pcmBytes(-1.8)}, nil)

	env := gen.Generate(context.Background(), "clip.mp3")
	if env.Data[0] != 1 {
		t.Fatalf("data[0] = %v, want 1", env.Data[0])
	}
}

// TestGenerateDecodeFailureSyntheticEnvelope asserts the fallback:
// a full-length envelope with every value in [0.25, 0.75], no error.
func TestGenerateDecodeFailureSyntheticEnvelope(t *testing.T) {
	gen := NewGeneratorForTests(DefaultSamples, &fakeDecoder{err: errors.New("unknown container")}, nil)

	env := gen.Generate(context.Background(), "weird.xyz")
	if env.Length != 1000 {
		t.Fatalf("length = %d, want 1000", env.Length)
	}
	if len(env.Data) != 1000 {
		t.Fatalf("data len = %d, want 1000", len(env.Data))
	}
	for i, v := range env.Data {
		if v < 0.25 || v > 0.75 {
			t.Fatalf("data[%d] = %v outside [0.25, 0.75]", i, v)
		}
	}
}

// TestBuildDecodeArgs pins the resample filter chain.
func TestBuildDecodeArgs(t *testing.T) {
	args := buildDecodeArgs("in.mp3", 1000)
	joined := ""
	for _, a := range args {
		joined += a + " "
	}
	want := "aformat=channel_layouts=mono,aresample=resampler=swr:osr=1000"
	found := false
	for _, a := range args {
		if a == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("filter chain missing in %q", joined)
	}
	if args[len(args)-1] != "-" {
		t.Fatal("ffmpeg must stream to stdout")
	}
}
