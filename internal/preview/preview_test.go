// ABOUTME: Preview player tests with a fake sink and decoder
package preview

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
	"github.com/sounddeck/sounddeck-go/pkg/audio/output"
)

type fakeSink struct {
	mu      sync.Mutex
	written int
	opens   int
	closed  bool
	openErr error

	// hold makes each Write pause so a preview stays active long enough
	// to be interrupted.
	hold time.Duration
}

func (f *fakeSink) Open(sampleRate, channels int) error {
	f.mu.Lock()
	f.opens++
	f.mu.Unlock()
	return f.openErr
}

func (f *fakeSink) Write(samples []float32) error {
	if f.hold > 0 {
		time.Sleep(f.hold)
	}
	f.mu.Lock()
	f.written += len(samples)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func newTestPlayer(frames int, hold time.Duration) (*Player, *fakeSink) {
	p := New(audio.Canonical())
	sink := &fakeSink{hold: hold}
	p.decodeFile = func(path string, target audio.Format) (audio.Buffer, error) {
		return audio.Zeros(target, frames), nil
	}
	p.newOutput = func(deviceName string) (output.Output, error) {
		return sink, nil
	}
	return p, sink
}

func collectEvents(t *testing.T, events <-chan Event, n int) []Event {
	t.Helper()
	got := make([]Event, 0, n)
	deadline := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("got %d events, want %d", len(got), n)
		}
	}
	return got
}

func TestPlayEmitsStartedThenStopped(t *testing.T) {
	p, sink := newTestPlayer(480, 0)
	if err := p.Play("clip.wav", "", "tok1"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	events := collectEvents(t, p.Events(), 2)
	if !events[0].Started || events[0].Token != "tok1" {
		t.Errorf("first event = %+v, want started tok1", events[0])
	}
	if events[1].Started || events[1].Token != "tok1" {
		t.Errorf("second event = %+v, want stopped tok1", events[1])
	}

	sink.mu.Lock()
	if sink.written != 960 {
		t.Errorf("written = %d samples, want 960", sink.written)
	}
	if sink.closed {
		t.Error("shared default sink closed by a single session")
	}
	sink.mu.Unlock()

	p.Close()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if !sink.closed {
		t.Error("sink not closed by Close")
	}
}

func TestSecondPreviewStopsFirst(t *testing.T) {
	p, _ := newTestPlayer(48000, 5*time.Millisecond)
	if err := p.Play("a.wav", "", "first"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	started := collectEvents(t, p.Events(), 1)[0]
	if !started.Started || started.Token != "first" {
		t.Fatalf("event = %+v, want first started", started)
	}

	if err := p.Play("b.wav", "", "second"); err != nil {
		t.Fatalf("second Play failed: %v", err)
	}

	// The first preview must be fully stopped before the second begins.
	events := collectEvents(t, p.Events(), 2)
	if events[0].Started || events[0].Token != "first" {
		t.Errorf("event 0 = %+v, want first stopped", events[0])
	}
	if !events[1].Started || events[1].Token != "second" {
		t.Errorf("event 1 = %+v, want second started", events[1])
	}

	if got := p.Active(); got != "second" {
		t.Errorf("active = %q, want second", got)
	}
	p.Stop()
}

func TestStopEndsPreview(t *testing.T) {
	p, _ := newTestPlayer(480000, 5*time.Millisecond)
	if err := p.Play("a.wav", "", "tok"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	started := collectEvents(t, p.Events(), 1)[0]
	if !started.Started {
		t.Fatalf("event = %+v, want started", started)
	}
	p.Stop()

	stopped := collectEvents(t, p.Events(), 1)[0]
	if stopped.Started {
		t.Errorf("event = %+v, want stopped", stopped)
	}
	if got := p.Active(); got != "" {
		t.Errorf("active = %q after Stop, want empty", got)
	}
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	p, _ := newTestPlayer(480, 0)
	p.Stop()
	if got := p.Active(); got != "" {
		t.Errorf("active = %q, want empty", got)
	}
}

func TestNaturalCompletionClearsSlot(t *testing.T) {
	p, _ := newTestPlayer(48, 0)
	if err := p.Play("a.wav", "", "tok"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	collectEvents(t, p.Events(), 2)
	if got := p.Active(); got != "" {
		t.Errorf("active = %q after completion, want empty", got)
	}
}

func TestDecodeErrorSurfacesSynchronously(t *testing.T) {
	p, _ := newTestPlayer(480, 0)
	p.decodeFile = func(path string, target audio.Format) (audio.Buffer, error) {
		return audio.Buffer{}, errors.New("bad file")
	}
	if err := p.Play("broken.xyz", "", "tok"); err == nil {
		t.Error("expected decode error from Play")
	}
	if got := p.Active(); got != "" {
		t.Errorf("active = %q, want empty after failed Play", got)
	}
}

func TestSequentialDefaultPreviewsShareSink(t *testing.T) {
	// The default device gets one long-lived sink; a fresh one per
	// session would hit the one-context-per-process limit of the oto
	// backend on the second preview.
	p := New(audio.Canonical())
	sink := &fakeSink{}
	creations := 0
	p.decodeFile = func(path string, target audio.Format) (audio.Buffer, error) {
		return audio.Zeros(target, 48), nil
	}
	p.newOutput = func(deviceName string) (output.Output, error) {
		creations++
		return sink, nil
	}

	for _, tok := range []string{"one", "two"} {
		if err := p.Play("clip.wav", "", tok); err != nil {
			t.Fatalf("Play %s failed: %v", tok, err)
		}
		events := collectEvents(t, p.Events(), 2)
		if !events[0].Started || events[0].Token != tok {
			t.Fatalf("event 0 for %s = %+v, want started", tok, events[0])
		}
		if events[1].Started || events[1].Token != tok {
			t.Fatalf("event 1 for %s = %+v, want stopped", tok, events[1])
		}
	}

	if creations != 1 {
		t.Errorf("sink created %d times, want 1", creations)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.closed {
		t.Error("shared sink closed between sessions")
	}
	if sink.opens != 2 {
		t.Errorf("opens = %d, want 2", sink.opens)
	}
}

func TestNamedDevicePreviewClosesOwnSink(t *testing.T) {
	p := New(audio.Canonical())
	sinks := make([]*fakeSink, 0, 2)
	p.decodeFile = func(path string, target audio.Format) (audio.Buffer, error) {
		return audio.Zeros(target, 48), nil
	}
	p.newOutput = func(deviceName string) (output.Output, error) {
		s := &fakeSink{}
		sinks = append(sinks, s)
		return s, nil
	}

	for _, tok := range []string{"one", "two"} {
		if err := p.Play("clip.wav", "CABLE Input", tok); err != nil {
			t.Fatalf("Play %s failed: %v", tok, err)
		}
		collectEvents(t, p.Events(), 2)
	}

	if len(sinks) != 2 {
		t.Fatalf("created %d sinks, want 2", len(sinks))
	}
	for i, s := range sinks {
		s.mu.Lock()
		if !s.closed {
			t.Errorf("sink %d not closed after its session", i)
		}
		s.mu.Unlock()
	}
}

func TestOpenFailureSurfacesFromPlay(t *testing.T) {
	p, sink := newTestPlayer(480, 0)
	sink.openErr = errors.New("device busy")

	if err := p.Play("clip.wav", "", "tok"); err == nil {
		t.Fatal("expected open error from Play")
	}
	if got := p.Active(); got != "" {
		t.Errorf("active = %q, want empty after failed Play", got)
	}

	// No session ran, so no lifecycle events may appear.
	select {
	case ev := <-p.Events():
		t.Errorf("unexpected event %+v after failed open", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
