// ABOUTME: Malgo-based audio output implementation with device selection
// ABOUTME: Uses miniaudio via malgo so playback can target a named device
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
	"github.com/sounddeck/sounddeck-go/pkg/audio/ring"
)

// malgoBufferMs sizes the staging buffer between Write and the device
// callback.
const malgoBufferMs = 500

// Malgo output implementation using the malgo/miniaudio library. Unlike
// the oto backend it can open a specific playback device, which is what
// routing into a virtual cable needs.
type Malgo struct {
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	deviceID   *malgo.DeviceID
	sampleRate int
	channels   int
	ready      bool

	buf *ring.Buffer
	mu  sync.Mutex
}

// NewMalgo creates a Malgo output. A nil deviceID selects the system
// default playback device.
func NewMalgo(deviceID *malgo.DeviceID) Output {
	return &Malgo{deviceID: deviceID}
}

// Open initializes the playback device with the given format.
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		return nil
	}
	if m.device != nil {
		if err := m.closeDevice(); err != nil {
			return fmt.Errorf("failed to close old device: %w", err)
		}
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.buf = ring.New(sampleRate * channels * malgoBufferMs / 1000)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if m.deviceID != nil {
		deviceConfig.Playback.DeviceID = m.deviceID.Pointer()
	}

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	m.device = device
	m.sampleRate = sampleRate
	m.channels = channels
	m.ready = true

	log.Printf("Audio output initialized via malgo: %dHz, %d channels", sampleRate, channels)

	return nil
}

// dataCallback feeds the device from the staging buffer, zero-filling on
// underrun.
func (m *Malgo) dataCallback(out []byte, frameCount uint32) {
	samples := make([]float32, int(frameCount)*m.channels)
	m.buf.Pop(samples)
	audio.Float32ToBytes(out, samples)
}

// Write stages samples for the device callback, blocking until the
// staging buffer has accepted all of them. Callers can stream a whole
// clip without pacing; the device drain rate sets the pace.
func (m *Malgo) Write(samples []float32) error {
	for len(samples) > 0 {
		m.mu.Lock()
		if !m.ready {
			m.mu.Unlock()
			return fmt.Errorf("output not initialized")
		}
		// Stage only what fits so nothing is counted as dropped.
		room := m.buf.Cap() - m.buf.Len()
		if room > len(samples) {
			room = len(samples)
		}
		if room > 0 {
			n := m.buf.Push(samples[:room])
			samples = samples[n:]
		}
		m.mu.Unlock()
		if len(samples) > 0 {
			time.Sleep(time.Millisecond)
		}
	}
	return nil
}

func (m *Malgo) closeDevice() error {
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	m.ready = false
	return nil
}

// Close releases the device and the malgo context.
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.closeDevice(); err != nil {
		return err
	}
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			return fmt.Errorf("failed to uninit malgo context: %w", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}
