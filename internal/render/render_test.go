// ABOUTME: Tests for the render stage buffering and underrun behavior
package render

import (
	"math"
	"testing"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

func drain(s *Stage, frames int) []float32 {
	n := frames * s.format.Channels
	raw := make([]byte, n*4)
	s.dataCallback(raw, uint32(frames))
	out := make([]float32, n)
	audio.BytesToFloat32(out, raw)
	return out
}

func TestCallbackDrainsWrittenSamples(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	s.Write([]float32{0.1, 0.2, 0.3, 0.4})

	out := drain(s, 2)
	want := []float32{0.1, 0.2, 0.3, 0.4}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestCallbackUnderrunPlaysSilence(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	s.Write([]float32{0.5, 0.5})

	out := drain(s, 2)
	if out[0] != 0.5 || out[1] != 0.5 {
		t.Errorf("buffered samples = %v, %v", out[0], out[1])
	}
	if out[2] != 0 || out[3] != 0 {
		t.Errorf("underrun samples = %v, %v, want silence", out[2], out[3])
	}
	if s.Underruns() != 2 {
		t.Errorf("underruns = %d, want 2", s.Underruns())
	}
}

func TestLevelMetersOutput(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	samples := make([]float32, 96)
	for i := range samples {
		samples[i] = 0.25
	}
	s.Write(samples)
	drain(s, 48)

	lvl := s.Level()
	if math.Abs(float64(lvl.Peak-0.25)) > 1e-6 {
		t.Errorf("peak = %v, want 0.25", lvl.Peak)
	}
}

func TestBufferedTracksRing(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	if s.Buffered() != 0 {
		t.Fatalf("buffered = %d, want 0", s.Buffered())
	}
	s.Write(make([]float32, 10))
	if s.Buffered() != 10 {
		t.Errorf("buffered = %d, want 10", s.Buffered())
	}
}

func TestStopIsIdempotentWhenNeverStarted(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop on never-started stage failed: %v", err)
	}
}
