// ABOUTME: Tests for the audio mixer
// ABOUTME: Covers silence, additivity, clipping, source lifecycle and limits
package mixer

import (
	"errors"
	"math"
	"testing"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

func testFormat() audio.Format {
	return audio.Format{SampleRate: 48000, Channels: 2, Layout: audio.LayoutF32}
}

func constantBuffer(format audio.Format, frames int, value float32) audio.Buffer {
	buf := audio.Zeros(format, frames)
	for i := range buf.Data {
		buf.Data[i] = value
	}
	return buf
}

func TestMixSilence(t *testing.T) {
	m := New(testFormat(), 0)

	out := make([]float32, 960)
	mic := make([]float32, 960)
	m.Mix(out, mic, 0, 1.0, 1.0)

	for i, s := range out {
		if s != 0 {
			t.Fatalf("sample %d = %v, want 0", i, s)
		}
	}
}

func TestMixAdditivity(t *testing.T) {
	format := testFormat()
	m := New(format, 0)

	a := constantBuffer(format, 10, 0.3)
	b := constantBuffer(format, 10, 0.4)
	if err := m.Add("a", a, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := m.Add("b", b, 1.0); err != nil {
		t.Fatal(err)
	}

	out := make([]float32, 20)
	m.Mix(out, nil, 1.0, 1.0, 1.0)

	// |0.3 + 0.4| <= 1.0, so the sum survives unchanged through master
	// volume (unity) and the clip.
	for i, s := range out {
		if math.Abs(float64(s)-0.7) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.7", i, s)
		}
	}
}

func TestMixClippingBoundary(t *testing.T) {
	format := testFormat()
	m := New(format, 0)

	m.Add("hot", constantBuffer(format, 10, 0.9), 1.0)
	m.Add("hotter", constantBuffer(format, 10, 0.9), 1.0)

	out := make([]float32, 20)
	m.Mix(out, nil, 1.0, 1.0, 1.0)

	for i, s := range out {
		if s != 1.0 {
			t.Fatalf("sample %d = %v, want exactly 1.0", i, s)
		}
	}
}

func TestMixClippingIdentityBelowThreshold(t *testing.T) {
	format := testFormat()
	m := New(format, 0)
	m.Add("quiet", constantBuffer(format, 10, -0.25), 1.0)

	out := make([]float32, 20)
	m.Mix(out, nil, 1.0, 1.0, 1.0)

	for i, s := range out {
		if math.Abs(float64(s)+0.25) > 1e-6 {
			t.Fatalf("sample %d = %v, want -0.25", i, s)
		}
	}
}

func TestMicContribution(t *testing.T) {
	m := New(testFormat(), 0)

	mic := []float32{0.5, 0.5, 0.5, 0.5}
	out := make([]float32, 4)
	m.Mix(out, mic, 0.5, 1.0, 1.0)

	for i, s := range out {
		if math.Abs(float64(s)-0.25) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.25", i, s)
		}
	}
}

func TestShortMicBufferMixesSilence(t *testing.T) {
	m := New(testFormat(), 0)

	mic := []float32{0.5, 0.5}
	out := make([]float32, 4)
	m.Mix(out, mic, 1.0, 1.0, 1.0)

	if out[0] != 0.5 || out[1] != 0.5 {
		t.Errorf("mic samples = %v %v, want 0.5 0.5", out[0], out[1])
	}
	if out[2] != 0 || out[3] != 0 {
		t.Errorf("underrun remainder = %v %v, want silence", out[2], out[3])
	}
}

func TestSourceRemovedSameTick(t *testing.T) {
	format := testFormat()
	m := New(format, 0)

	// 3 frames of audio, ticks of 5 frames: source finishes in the first
	// tick and must be gone before the second.
	m.Add("short", constantBuffer(format, 3, 0.5), 1.0)

	out := make([]float32, format.FramesToSamples(5))
	finished := m.Mix(out, nil, 1.0, 1.0, 1.0)

	if len(finished) != 1 || finished[0] != "short" {
		t.Fatalf("finished = %v, want [short]", finished)
	}
	if m.ActiveSources() != 0 {
		t.Fatalf("ActiveSources = %d, want 0", m.ActiveSources())
	}

	m.Mix(out, nil, 1.0, 1.0, 1.0)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("second tick sample %d = %v, want 0", i, s)
		}
	}
}

func TestConcurrentSourceLimit(t *testing.T) {
	format := testFormat()
	m := New(format, 2)

	buf := constantBuffer(format, 10, 0.1)
	if err := m.Add("one", buf, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := m.Add("two", buf, 1.0); err != nil {
		t.Fatal(err)
	}

	err := m.Add("three", buf, 1.0)
	if !errors.Is(err, ErrTooManySources) {
		t.Fatalf("Add past limit = %v, want ErrTooManySources", err)
	}
	if m.ActiveSources() != 2 {
		t.Errorf("ActiveSources = %d, want 2", m.ActiveSources())
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	format := testFormat()
	m := New(format, 0)

	buf := constantBuffer(format, 10, 0.1)
	m.Add("dup", buf, 1.0)
	if err := m.Add("dup", buf, 1.0); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("duplicate Add = %v, want ErrDuplicateID", err)
	}
}

func TestFormatMismatchRejected(t *testing.T) {
	m := New(testFormat(), 0)

	wrong := audio.Zeros(audio.Format{SampleRate: 44100, Channels: 2, Layout: audio.LayoutF32}, 10)
	err := m.Add("wrong", wrong, 1.0)

	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("mismatched Add = %v, want FormatError", err)
	}
}

func TestRemoveByID(t *testing.T) {
	format := testFormat()
	m := New(format, 0)
	m.Add("keep", constantBuffer(format, 100, 0.1), 1.0)
	m.Add("drop", constantBuffer(format, 100, 0.1), 1.0)

	if !m.Remove("drop") {
		t.Fatal("Remove returned false for active source")
	}
	if m.Remove("drop") {
		t.Fatal("Remove returned true for already-removed source")
	}
	if m.ActiveSources() != 1 {
		t.Errorf("ActiveSources = %d, want 1", m.ActiveSources())
	}
}

func TestRemoveAll(t *testing.T) {
	format := testFormat()
	m := New(format, 0)
	m.Add("a", constantBuffer(format, 100, 0.1), 1.0)
	m.Add("b", constantBuffer(format, 100, 0.1), 1.0)

	ids := m.RemoveAll()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("RemoveAll = %v, want [a b]", ids)
	}
	if m.ActiveSources() != 0 {
		t.Errorf("ActiveSources = %d, want 0", m.ActiveSources())
	}
}

func TestEndToEndMixEquation(t *testing.T) {
	format := testFormat()
	m := New(format, 0)

	// Known tone on the mic path, a 0.5 buffer as the sound source.
	const tone = 0.4
	const micVol, effectsVol, masterVol = 1.5, 1.0, 1.0

	mic := make([]float32, 20)
	for i := range mic {
		mic[i] = tone
	}
	m.Add("clip", constantBuffer(format, 10, 0.5), 1.0)

	out := make([]float32, 20)
	m.Mix(out, mic, micVol, effectsVol, masterVol)

	want := tone*micVol + 0.5*effectsVol
	if want > 1.0 {
		want = 1.0
	}
	for i, s := range out {
		if math.Abs(float64(s)-float64(want)) > 1e-6 {
			t.Fatalf("sample %d = %v, want %v", i, s, want)
		}
	}
}

func TestSourceZeroVolumeAdvancesCursor(t *testing.T) {
	format := testFormat()
	src := NewSource("silent", constantBuffer(format, 10, 0.7), 0)

	out := make([]float32, 8)
	n := src.Read(out)
	if n != 8 {
		t.Fatalf("Read = %d, want 8", n)
	}
	for i, s := range out {
		if s != 0 {
			t.Errorf("sample %d = %v, want 0", i, s)
		}
	}
	if src.Position() != 8 {
		t.Errorf("Position = %d, want 8", src.Position())
	}
}

func TestSourceShortReadAtEnd(t *testing.T) {
	format := testFormat()
	src := NewSource("s", constantBuffer(format, 3, 0.5), 1.0)

	out := make([]float32, 10)
	n := src.Read(out)
	if n != 6 {
		t.Fatalf("Read = %d, want 6", n)
	}
	if !src.Finished() {
		t.Error("source should be finished after short read")
	}
}

func TestSourceVolumeClampedOnCreate(t *testing.T) {
	format := testFormat()
	src := NewSource("loud", constantBuffer(format, 1, 1.0), 5.0)
	if src.Volume != audio.MaxEffectsVolume {
		t.Errorf("Volume = %v, want %v", src.Volume, audio.MaxEffectsVolume)
	}
}
