// ABOUTME: Playback render stage backed by malgo
// ABOUTME: Buffers mixed audio and feeds the device callback, zero-filling on underrun
package render

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
	"github.com/sounddeck/sounddeck-go/pkg/audio/ring"
)

// bufferMs sizes the ring between the mix loop and the device callback.
const bufferMs = 500

// Stage renders mixed audio to a playback device. The mix loop pushes
// each tick's buffer via Write; the device callback drains the ring and
// zero-fills when the mix loop falls behind, so the device never blocks.
type Stage struct {
	format   audio.Format
	deviceID *malgo.DeviceID

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	buf     *ring.Buffer
	level   audio.AtomicLevel
	scratch []float32

	onStop   func()
	stopping atomic.Bool

	mu      sync.Mutex
	running bool
}

// New creates a render stage. A nil deviceID opens the system default
// playback device. onStop may be nil.
func New(format audio.Format, deviceID *malgo.DeviceID, onStop func()) *Stage {
	return &Stage{
		format:   format,
		deviceID: deviceID,
		buf:      ring.New(format.SampleRate * format.Channels * bufferMs / 1000),
		onStop:   onStop,
	}
}

// Start opens and starts the playback device.
func (s *Stage) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(s.format.Channels)
	deviceConfig.SampleRate = uint32(s.format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if s.deviceID != nil {
		deviceConfig.Playback.DeviceID = s.deviceID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			s.dataCallback(pOutputSample, frameCount)
		},
		Stop: func() {
			if !s.stopping.Load() && s.onStop != nil {
				s.onStop()
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	s.ctx = ctx
	s.device = device
	s.running = true
	s.stopping.Store(false)

	log.Printf("Render started: %dHz, %d channels", s.format.SampleRate, s.format.Channels)

	return nil
}

// dataCallback runs on the audio thread. Pop zero-fills any shortfall so
// an underrun plays silence instead of stale samples.
func (s *Stage) dataCallback(out []byte, frameCount uint32) {
	n := int(frameCount) * s.format.Channels
	if cap(s.scratch) < n {
		s.scratch = make([]float32, n)
	}
	samples := s.scratch[:n]
	s.buf.Pop(samples)
	s.level.Store(audio.LevelOf(samples))
	audio.Float32ToBytes(out, samples)
}

// Write stages one tick of mixed audio for the device callback.
func (s *Stage) Write(samples []float32) {
	s.buf.Push(samples)
}

// Level returns the most recent output level.
func (s *Stage) Level() audio.Level {
	return s.level.Load()
}

// Underruns returns how many samples the callback zero-filled.
func (s *Stage) Underruns() uint64 {
	return s.buf.Underruns()
}

// Buffered returns the number of samples waiting in the ring.
func (s *Stage) Buffered() int {
	return s.buf.Len()
}

// Stop stops the device and releases the context.
func (s *Stage) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.stopping.Store(true)

	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		if err := s.ctx.Uninit(); err != nil {
			return fmt.Errorf("failed to uninit audio context: %w", err)
		}
		s.ctx.Free()
		s.ctx = nil
	}
	s.running = false

	log.Printf("Render stopped")

	return nil
}
