// ABOUTME: Tests for the capture stage gain, mute, and buffering paths
package capture

import (
	"math"
	"testing"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

func feed(s *Stage, samples []float32) {
	raw := make([]byte, len(samples)*4)
	audio.Float32ToBytes(raw, samples)
	s.dataCallback(raw)
}

func TestCallbackAppliesGain(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	s.SetVolume(0.5)

	feed(s, []float32{0.8, 0.8, -0.8, -0.8})

	out := make([]float32, 4)
	s.Read(out)
	for i, got := range out {
		want := float32(0.4)
		if i >= 2 {
			want = -0.4
		}
		if math.Abs(float64(got-want)) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got, want)
		}
	}
}

func TestCallbackMuteZeroesButKeepsFlowing(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	s.SetMuted(true)

	feed(s, []float32{0.5, 0.5, 0.5, 0.5})

	out := make([]float32, 4)
	s.Read(out)
	for i, got := range out {
		if got != 0 {
			t.Errorf("sample %d = %v, want 0 while muted", i, got)
		}
	}
	// Muted frames still count toward the stream.
	if lvl := s.Level(); lvl.Peak != 0 {
		t.Errorf("level peak = %v while muted, want 0", lvl.Peak)
	}
}

func TestCallbackMetersPostGain(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	s.SetVolume(2.0)

	feed(s, []float32{0.25, 0.25, 0.25, 0.25})

	lvl := s.Level()
	if math.Abs(float64(lvl.Peak-0.5)) > 1e-6 {
		t.Errorf("peak = %v, want 0.5 after gain", lvl.Peak)
	}
}

func TestReadUnderrunZeroFills(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	feed(s, []float32{0.1, 0.2})

	out := make([]float32, 6)
	s.Read(out)
	if out[0] != 0.1 || out[1] != 0.2 {
		t.Errorf("buffered samples = %v, %v", out[0], out[1])
	}
	for i := 2; i < 6; i++ {
		if out[i] != 0 {
			t.Errorf("sample %d = %v, want zero fill", i, out[i])
		}
	}
}

func TestVolumeClampedToMicMax(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	s.SetVolume(10)
	if got := s.Volume(); got != audio.MaxMicVolume {
		t.Errorf("volume = %v, want %v", got, audio.MaxMicVolume)
	}
}

func TestStopIsIdempotentWhenNeverStarted(t *testing.T) {
	s := New(audio.Canonical(), nil, nil)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop on never-started stage failed: %v", err)
	}
}
