// ABOUTME: Audio mixer combining microphone input and sound sources
// ABOUTME: Sums weighted samples per tick, applies master gain and clipping
package mixer

import (
	"errors"
	"fmt"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

// DefaultMaxSources bounds how many sounds may play at once.
const DefaultMaxSources = 32

var (
	// ErrTooManySources is returned when the concurrent-source limit is
	// reached. New sounds are rejected rather than evicting a playing one.
	ErrTooManySources = errors.New("mixer: too many concurrent sounds")

	// ErrDuplicateID is returned when a source with the same id is already
	// playing.
	ErrDuplicateID = errors.New("mixer: source id already active")
)

// FormatError reports a buffer whose format does not match the mixer's.
type FormatError struct {
	Got  audio.Format
	Want audio.Format
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("mixer: source format %d Hz/%d ch does not match pipeline format %d Hz/%d ch",
		e.Got.SampleRate, e.Got.Channels, e.Want.SampleRate, e.Want.Channels)
}

// Mixer combines the microphone scratch buffer and all active sources into
// one output buffer per tick. It is owned by the mix-loop goroutine; all
// structural mutation happens through that goroutine's command draining,
// never concurrently with Mix.
type Mixer struct {
	format     audio.Format
	maxSources int

	// Insertion order is the mix order. Relative level between two sources
	// is deterministic regardless of scheduling jitter.
	sources []*Source
	byID    map[string]*Source

	scratch []float32
}

// New creates a mixer producing buffers of the given format. maxSources <= 0
// selects DefaultMaxSources.
func New(format audio.Format, maxSources int) *Mixer {
	if maxSources <= 0 {
		maxSources = DefaultMaxSources
	}
	return &Mixer{
		format:     format,
		maxSources: maxSources,
		byID:       make(map[string]*Source),
	}
}

// Format returns the mixer's pipeline format.
func (m *Mixer) Format() audio.Format {
	return m.format
}

// Add registers a new sound source. It rejects mismatched formats, duplicate
// ids and additions past the concurrent-source limit.
func (m *Mixer) Add(id string, buf audio.Buffer, volume audio.Volume) error {
	if !buf.Format.Equal(m.format) {
		return &FormatError{Got: buf.Format, Want: m.format}
	}
	if _, ok := m.byID[id]; ok {
		return ErrDuplicateID
	}
	if len(m.sources) >= m.maxSources {
		return ErrTooManySources
	}

	src := NewSource(id, buf, volume)
	m.sources = append(m.sources, src)
	m.byID[id] = src
	return nil
}

// Remove drops the source with the given id. It returns false when no such
// source is active.
func (m *Mixer) Remove(id string) bool {
	if _, ok := m.byID[id]; !ok {
		return false
	}
	delete(m.byID, id)
	for i, src := range m.sources {
		if src.ID == id {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			break
		}
	}
	return true
}

// RemoveAll drops every active source and returns their ids in mix order.
func (m *Mixer) RemoveAll() []string {
	ids := make([]string, len(m.sources))
	for i, src := range m.sources {
		ids[i] = src.ID
	}
	m.sources = m.sources[:0]
	m.byID = make(map[string]*Source)
	return ids
}

// ActiveSources returns the number of currently-playing sounds.
func (m *Mixer) ActiveSources() int {
	return len(m.sources)
}

// Mix produces one tick's output: mic input scaled by micVol, each source
// scaled by effectsVol, then master gain, then a hard clip to [-1, 1].
// Clipping runs last so intermediate headroom is never lost. Sources that
// finish are removed within the same tick; their ids are returned so the
// caller can emit stopped events.
//
// mic may be shorter than out (capture underrun); the remainder mixes as
// silence.
func (m *Mixer) Mix(out, mic []float32, micVol, effectsVol, masterVol audio.Volume) []string {
	for i := range out {
		out[i] = 0
	}

	if g := float32(micVol); g != 0 {
		n := len(mic)
		if n > len(out) {
			n = len(out)
		}
		for i := 0; i < n; i++ {
			out[i] += mic[i] * g
		}
	}

	var finished []string
	if len(m.sources) > 0 {
		if cap(m.scratch) < len(out) {
			m.scratch = make([]float32, len(out))
		}
		scratch := m.scratch[:len(out)]

		g := float32(effectsVol)
		keep := m.sources[:0]
		for _, src := range m.sources {
			n := src.Read(scratch)
			for i := 0; i < n; i++ {
				out[i] += scratch[i] * g
			}
			if n < len(scratch) {
				// Finished this tick; drop it now so memory and CPU stay
				// bounded by genuinely active sounds.
				delete(m.byID, src.ID)
				finished = append(finished, src.ID)
				continue
			}
			keep = append(keep, src)
		}
		m.sources = keep
	}

	masterVol.Apply(out)

	for i, s := range out {
		if s > 1.0 {
			out[i] = 1.0
		} else if s < -1.0 {
			out[i] = -1.0
		}
	}

	return finished
}
