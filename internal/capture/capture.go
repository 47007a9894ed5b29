// ABOUTME: Microphone capture stage backed by malgo
// ABOUTME: Applies mute and gain in the device callback and buffers samples
package capture

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
	"github.com/sounddeck/sounddeck-go/pkg/audio/ring"
)

// bufferMs sizes the ring between the device callback and the mix loop.
const bufferMs = 500

// Stage captures microphone audio. The device callback converts incoming
// bytes to float32, applies mute and gain, meters the result, and pushes
// into a lock-free ring. The mix loop drains the ring via Read.
type Stage struct {
	format   audio.Format
	deviceID *malgo.DeviceID

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	buf     *ring.Buffer
	volume  audio.AtomicVolume
	muted   atomic.Bool
	level   audio.AtomicLevel
	scratch []float32

	// onStop fires when the device stops outside of Stop, which is how
	// device loss surfaces.
	onStop   func()
	stopping atomic.Bool

	mu      sync.Mutex
	running bool
}

// New creates a capture stage for the given format. A nil deviceID opens
// the system default microphone. onStop may be nil.
func New(format audio.Format, deviceID *malgo.DeviceID, onStop func()) *Stage {
	s := &Stage{
		format:   format,
		deviceID: deviceID,
		buf:      ring.New(format.SampleRate * format.Channels * bufferMs / 1000),
		onStop:   onStop,
	}
	s.volume.Store(audio.VolumeUnity)
	return s
}

// Start opens and starts the capture device.
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

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(s.format.Channels)
	deviceConfig.SampleRate = uint32(s.format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if s.deviceID != nil {
		deviceConfig.Capture.DeviceID = s.deviceID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			s.dataCallback(pInputSamples)
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
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	s.ctx = ctx
	s.device = device
	s.running = true
	s.stopping.Store(false)

	log.Printf("Capture started: %dHz, %d channels", s.format.SampleRate, s.format.Channels)

	return nil
}

// dataCallback runs on the audio thread. It must not block or allocate
// beyond the reused scratch buffer.
func (s *Stage) dataCallback(input []byte) {
	n := len(input) / 4
	if cap(s.scratch) < n {
		s.scratch = make([]float32, n)
	}
	samples := s.scratch[:n]
	audio.BytesToFloat32(samples, input)

	if s.muted.Load() {
		for i := range samples {
			samples[i] = 0
		}
	} else if v := s.volume.Load(); v != audio.VolumeUnity {
		v.Apply(samples)
	}

	s.level.Store(audio.LevelOf(samples))
	s.buf.Push(samples)
}

// Read fills out with captured samples, zero-filling on underrun.
func (s *Stage) Read(out []float32) {
	s.buf.Pop(out)
}

// SetVolume sets the mic gain, clamped to the mic maximum.
func (s *Stage) SetVolume(v audio.Volume) {
	s.volume.Store(audio.ClampVolume(v, audio.MaxMicVolume))
}

// Volume returns the current mic gain.
func (s *Stage) Volume() audio.Volume {
	return s.volume.Load()
}

// SetMuted sets the mute state. Muting zeroes samples but keeps the
// stream flowing so timing is unaffected.
func (s *Stage) SetMuted(muted bool) {
	s.muted.Store(muted)
}

// Muted returns the mute state.
func (s *Stage) Muted() bool {
	return s.muted.Load()
}

// Level returns the most recent post-gain input level.
func (s *Stage) Level() audio.Level {
	return s.level.Load()
}

// Overruns returns how many samples the callback dropped because the
// mix loop fell behind.
func (s *Stage) Overruns() uint64 {
	return s.buf.Overruns()
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

	log.Printf("Capture stopped")

	return nil
}
