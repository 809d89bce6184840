package media

import (
	"context"
	"errors"
	"testing"
)

// fakeRunner returns canned stdout or an error.
type fakeRunner struct {
	out []byte
	err error
}

// Output delegates to injected values.
func (f *fakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.out, f.err
}

// TestDurationParsesSeconds checks the happy path.
func TestDurationParsesSeconds(t *testing.T) {
	p := NewProberForTests(&fakeRunner{out: []byte("123.456\n")})

	d, err := p.Duration(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("Duration error = %v", err)
	}
	if d == nil || *d != 123.456 {
		t.Fatalf("duration = %v, want 123.456", d)
	}
}

// TestDurationUnknownIsNotFatal checks N/A and garbage map to nil.
func TestDurationUnknownIsNotFatal(t *testing.T) {
	for _, out := range []string{"", "N/A\n", "garbage"} {
		p := NewProberForTests(&fakeRunner{out: []byte(out)})
		d, err := p.Duration(context.Background(), "a.mp3")
		if err != nil {
			t.Fatalf("Duration(%q) error = %v", out, err)
		}
		if d != nil {
			t.Fatalf("Duration(%q) = %v, want nil", out, *d)
		}
	}
}

// TestDurationProbeFailureIsFatal checks process errors propagate.
func TestDurationProbeFailureIsFatal(t *testing.T) {
	p := NewProberForTests(&fakeRunner{err: errors.New("no such file")})

	if _, err := p.Duration(context.Background(), "missing.mp3"); err == nil {
		t.Fatal("expected probe error")
	}
}
