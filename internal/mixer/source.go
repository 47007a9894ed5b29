// ABOUTME: Playback cursor over a decoded sound buffer
// ABOUTME: Pull-based source read synchronously inside the mixer tick
package mixer

import (
	"github.com/sounddeck/sounddeck-go/pkg/audio"
)

// Source is one concurrently-playing sound: a shared read-only buffer, a
// cursor and a per-sound volume. It has no goroutine of its own; the mixer
// reads it once per tick.
type Source struct {
	ID     string
	Volume audio.Volume

	data []float32
	pos  int
}

// NewSource creates a playback cursor at the start of buf.
func NewSource(id string, buf audio.Buffer, volume audio.Volume) *Source {
	return &Source{
		ID:     id,
		Volume: audio.ClampVolume(volume, audio.MaxEffectsVolume),
		data:   buf.Data,
	}
}

// Read copies up to len(out) samples scaled by the source volume, advancing
// the cursor. A short read means the buffer is exhausted and signals removal.
// A volume of zero still advances the cursor: silence is mixed, not skipped,
// so playback position tracking stays intact.
func (s *Source) Read(out []float32) int {
	remaining := len(s.data) - s.pos
	n := len(out)
	if n > remaining {
		n = remaining
	}

	g := float32(s.Volume)
	for i := 0; i < n; i++ {
		out[i] = s.data[s.pos+i] * g
	}
	s.pos += n
	return n
}

// Position returns the cursor offset in samples.
func (s *Source) Position() int {
	return s.pos
}

// Finished reports whether the cursor has reached the end of the buffer.
func (s *Source) Finished() bool {
	return s.pos >= len(s.data)
}
