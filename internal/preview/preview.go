// ABOUTME: Single-slot preview playback, independent of the main mix
// ABOUTME: Decodes a file and plays it on a chosen sink for monitoring
package preview

import (
	"fmt"
	"log"
	"sync"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
	"github.com/sounddeck/sounddeck-go/pkg/audio/decode"
	"github.com/sounddeck/sounddeck-go/pkg/audio/device"
	"github.com/sounddeck/sounddeck-go/pkg/audio/output"
)

const (
	eventQueueSize = 16

	// chunkFrames is how much audio each write hands to the sink.
	chunkFrames = 480
)

// Event reports preview lifecycle changes.
type Event struct {
	Token   string
	Started bool
}

// Player plays at most one preview at a time. Starting a new preview
// stops the current one first, so consumers never observe two active
// previews.
type Player struct {
	format audio.Format
	events chan Event

	mu      sync.Mutex
	current *session

	// defaultSink is created once and reused across sessions. oto allows
	// only one context per process, so a fresh sink per preview would
	// fail from the second preview on.
	defaultSink output.Output

	// Swapped by tests; defaults decode real files and open real sinks.
	decodeFile func(path string, target audio.Format) (audio.Buffer, error)
	newOutput  func(deviceName string) (output.Output, error)
}

type session struct {
	token  string
	cancel chan struct{}
	done   chan struct{}
}

// New creates an idle preview player.
func New(format audio.Format) *Player {
	return &Player{
		format:     format,
		events:     make(chan Event, eventQueueSize),
		decodeFile: decode.File,
		newOutput:  openSink,
	}
}

// openSink picks a backend for the preview target. A named device needs
// malgo (oto cannot select devices); the default sink uses oto.
func openSink(deviceName string) (output.Output, error) {
	if deviceName == "" {
		return output.NewOto(), nil
	}

	devices, err := device.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	info, ok := device.FindByName(devices.Playback, deviceName)
	if !ok {
		return nil, fmt.Errorf("preview device not found: %q", deviceName)
	}
	id := info.ID
	return output.NewMalgo(&id), nil
}

// Events returns the preview lifecycle stream.
func (p *Player) Events() <-chan Event {
	return p.events
}

func (p *Player) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
	}
}

// Play decodes the file and starts playing it on the named device (empty
// means default). Any active preview is stopped first. The token is
// echoed back in events so callers can correlate. Decode and sink-open
// failures surface here, before any event is emitted.
func (p *Player) Play(path, deviceName, token string) error {
	buf, err := p.decodeFile(path, p.format)
	if err != nil {
		return fmt.Errorf("failed to decode preview: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	sink, owned, err := p.sinkLocked(deviceName)
	if err != nil {
		return err
	}
	if err := sink.Open(buf.Format.SampleRate, buf.Format.Channels); err != nil {
		if owned {
			sink.Close()
		}
		return fmt.Errorf("failed to open preview sink: %w", err)
	}

	p.stopCurrentLocked()

	s := &session{
		token:  token,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.current = s

	go p.run(s, sink, owned, buf)
	return nil
}

// sinkLocked resolves the output for a preview target. A named device
// gets a fresh sink the session owns and closes; the default target
// reuses the long-lived shared sink.
func (p *Player) sinkLocked(deviceName string) (output.Output, bool, error) {
	if deviceName != "" {
		sink, err := p.newOutput(deviceName)
		return sink, true, err
	}
	if p.defaultSink == nil {
		sink, err := p.newOutput("")
		if err != nil {
			return nil, false, err
		}
		p.defaultSink = sink
	}
	return p.defaultSink, false, nil
}

// Stop ends the active preview, if any, and waits for it to wind down.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCurrentLocked()
}

// Close stops any active preview and releases the shared default sink.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopCurrentLocked()
	if p.defaultSink != nil {
		if err := p.defaultSink.Close(); err != nil {
			log.Printf("Preview sink close reported: %v", err)
		}
		p.defaultSink = nil
	}
}

func (p *Player) stopCurrentLocked() {
	if p.current == nil {
		return
	}
	close(p.current.cancel)
	<-p.current.done
	p.current = nil
}

// Active returns the token of the playing preview, or "". A naturally
// finished session is cleared here rather than from its own goroutine,
// which would deadlock against Stop waiting on it.
func (p *Player) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	select {
	case <-p.current.done:
		p.current = nil
		return ""
	default:
	}
	return p.current.token
}

// run streams the decoded buffer to an already-open sink in chunks until
// it runs out or the session is cancelled. Emits Started first, Stopped
// last, for both natural completion and cancellation. Owned sinks are
// closed when the session ends; the shared default sink stays open.
func (p *Player) run(s *session, sink output.Output, owned bool, buf audio.Buffer) {
	defer close(s.done)
	defer func() {
		p.emit(Event{Token: s.token, Started: false})
		if !owned {
			return
		}
		if err := sink.Close(); err != nil {
			log.Printf("Preview sink close reported: %v", err)
		}
	}()

	p.emit(Event{Token: s.token, Started: true})

	chunk := buf.Format.FramesToSamples(chunkFrames)
	data := buf.Data
	for len(data) > 0 {
		select {
		case <-s.cancel:
			return
		default:
		}

		n := chunk
		if n > len(data) {
			n = len(data)
		}
		if err := sink.Write(data[:n]); err != nil {
			log.Printf("Preview write failed: %v", err)
			return
		}
		data = data[n:]
	}
}
