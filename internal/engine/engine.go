// ABOUTME: Engine orchestrator: command queue, mix loop, level meter loop
// ABOUTME: Owns the capture and render stages and the mixer between them
package engine

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/sounddeck/sounddeck-go/internal/capture"
	"github.com/sounddeck/sounddeck-go/internal/dsp"
	"github.com/sounddeck/sounddeck-go/internal/mixer"
	"github.com/sounddeck/sounddeck-go/internal/render"
	"github.com/sounddeck/sounddeck-go/pkg/audio"
	"github.com/sounddeck/sounddeck-go/pkg/audio/device"
)

const (
	// DefaultBufferFrames is one 10ms tick at 48kHz.
	DefaultBufferFrames = 480

	commandQueueSize = 64
	eventQueueSize   = 128

	// levelInterval paces LevelUpdate events, decoupled from the tick.
	levelInterval = 33 * time.Millisecond

	// peakDecayDBPerSec is the peak envelope release rate.
	peakDecayDBPerSec = 20.0
)

// ErrNotRunning is returned by commands that need a running engine.
var ErrNotRunning = fmt.Errorf("engine is not running")

// Config holds the engine's startup parameters.
type Config struct {
	Format       audio.Format
	BufferFrames int
	MaxSources   int

	// InputDevice and OutputDevice are matched against device names,
	// case-insensitively. Empty means default; an empty OutputDevice
	// first tries to find a virtual cable.
	InputDevice  string
	OutputDevice string
}

func (c *Config) fillDefaults() {
	if c.Format.SampleRate == 0 {
		c.Format = audio.Canonical()
	}
	if c.BufferFrames == 0 {
		c.BufferFrames = DefaultBufferFrames
	}
	if c.MaxSources == 0 {
		c.MaxSources = mixer.DefaultMaxSources
	}
}

// captureStage is what the mix loop needs from the capture side.
type captureStage interface {
	Start() error
	Stop() error
	Read(out []float32)
	SetVolume(audio.Volume)
	SetMuted(bool)
	Level() audio.Level
}

// renderStage is what the mix loop needs from the render side.
type renderStage interface {
	Start() error
	Stop() error
	Write(samples []float32)
	Level() audio.Level
}

type command interface{ command() }

type playCmd struct {
	id  string
	buf audio.Buffer
	vol audio.Volume
}
type stopCmd struct{ id string }
type stopAllCmd struct{}

func (playCmd) command()    {}
func (stopCmd) command()    {}
func (stopAllCmd) command() {}

// Engine serializes all structural control through a command queue that
// the mix loop drains once per tick, and all scalar control through
// atomics read by the audio callbacks. External callers never touch the
// mixer directly.
type Engine struct {
	cfg Config

	state  atomicState
	events chan Event

	mu sync.Mutex

	// stagesMu guards the stage references alone, so the mix and level
	// loops can read them without contending on mu (which Stop holds
	// while joining those very loops).
	stagesMu sync.RWMutex
	capture  captureStage
	render   renderStage

	mix      *mixer.Mixer
	chain    *dsp.Chain
	commands chan command
	done     chan struct{}
	wg       sync.WaitGroup

	micVol     audio.AtomicVolume
	effectsVol audio.AtomicVolume
	masterVol  audio.AtomicVolume
	micMuted   bool

	// pending counts sources queued or active, so the source limit can
	// reject synchronously before the tick drains the command.
	pending struct {
		sync.Mutex
		count int
	}

	// Factories are swapped out by tests; the defaults open real devices.
	newCapture func(format audio.Format, id *malgo.DeviceID, onStop func()) captureStage
	newRender  func(format audio.Format, id *malgo.DeviceID, onStop func()) renderStage
	resolve    func(name string, isCapture bool) (*malgo.DeviceID, string, error)
}

// New creates an engine in the Stopped state. A non-nil chain is applied
// to the mic signal between capture and mixing.
func New(cfg Config, chain *dsp.Chain) *Engine {
	cfg.fillDefaults()

	e := &Engine{
		cfg:    cfg,
		events: make(chan Event, eventQueueSize),
		chain:  chain,
		newCapture: func(format audio.Format, id *malgo.DeviceID, onStop func()) captureStage {
			return capture.New(format, id, onStop)
		},
		newRender: func(format audio.Format, id *malgo.DeviceID, onStop func()) renderStage {
			return render.New(format, id, onStop)
		},
		resolve: resolveDevice,
	}
	e.micVol.Store(audio.VolumeUnity)
	e.effectsVol.Store(audio.VolumeUnity)
	e.masterVol.Store(audio.VolumeUnity)
	e.state.Store(Stopped)
	return e
}

// resolveDevice maps a device name to a malgo ID. An empty playback name
// prefers a virtual cable when one is present.
func resolveDevice(name string, isCapture bool) (*malgo.DeviceID, string, error) {
	devices, err := device.List()
	if err != nil {
		return nil, "", err
	}

	list := devices.Playback
	if isCapture {
		list = devices.Capture
	}

	if name == "" {
		if !isCapture {
			if cable, ok := device.FindVirtualCable(list); ok {
				log.Printf("Auto-selected virtual cable: %s", cable.Name)
				id := cable.ID
				return &id, cable.Name, nil
			}
		}
		return nil, "", nil
	}

	info, ok := device.FindByName(list, name)
	if !ok {
		return nil, "", fmt.Errorf("audio device not found: %q", name)
	}
	id := info.ID
	return &id, info.Name, nil
}

func (e *Engine) stages() (captureStage, renderStage) {
	e.stagesMu.RLock()
	defer e.stagesMu.RUnlock()
	return e.capture, e.render
}

func (e *Engine) setStages(capt captureStage, ren renderStage) {
	e.stagesMu.Lock()
	e.capture = capt
	e.render = ren
	e.stagesMu.Unlock()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state.Load()
}

// Events returns the outward event stream.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// emit delivers an event without ever blocking the engine.
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// Start opens the capture and render streams and starts the mix loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state.Load() {
	case Stopped, Failed:
	case Running, Starting:
		return nil
	default:
		return fmt.Errorf("cannot start engine while %s", e.state.Load())
	}
	e.state.Store(Starting)

	inID, _, err := e.resolve(e.cfg.InputDevice, true)
	if err != nil {
		e.state.Store(Failed)
		return fmt.Errorf("failed to resolve input device: %w", err)
	}
	outID, _, err := e.resolve(e.cfg.OutputDevice, false)
	if err != nil {
		e.state.Store(Failed)
		return fmt.Errorf("failed to resolve output device: %w", err)
	}

	capt := e.newCapture(e.cfg.Format, inID, func() { e.deviceLost("capture stream stopped unexpectedly") })
	if err := capt.Start(); err != nil {
		e.state.Store(Failed)
		return fmt.Errorf("failed to start capture: %w", err)
	}
	capt.SetVolume(e.micVol.Load())
	capt.SetMuted(e.micMuted)

	ren := e.newRender(e.cfg.Format, outID, func() { e.deviceLost("render stream stopped unexpectedly") })
	if err := ren.Start(); err != nil {
		_ = capt.Stop()
		e.state.Store(Failed)
		return fmt.Errorf("failed to start render: %w", err)
	}

	e.setStages(capt, ren)
	e.mix = mixer.New(e.cfg.Format, e.cfg.MaxSources)
	e.commands = make(chan command, commandQueueSize)
	e.done = make(chan struct{})

	e.wg.Add(2)
	go e.mixLoop()
	go e.levelLoop()

	e.state.Store(Running)
	log.Printf("Engine running: %dHz, %d channels, %d frame ticks",
		e.cfg.Format.SampleRate, e.cfg.Format.Channels, e.cfg.BufferFrames)

	return nil
}

// Stop tears down streams and joins the loops. Render stops before
// capture so no callback fires against freed mix state.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked(Stopped)
}

func (e *Engine) stopLocked(final State) error {
	if e.state.Load() != Running && e.state.Load() != Failed {
		return nil
	}
	if e.done == nil {
		e.state.Store(final)
		return nil
	}
	e.state.Store(Stopping)

	capt, ren := e.stages()

	var firstErr error
	if err := ren.Stop(); err != nil {
		firstErr = err
	}
	if err := capt.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}

	close(e.done)
	e.wg.Wait()
	e.done = nil
	e.setStages(nil, nil)
	e.mix = nil

	e.pending.Lock()
	e.pending.count = 0
	e.pending.Unlock()

	e.state.Store(final)
	log.Printf("Engine %s", final)
	return firstErr
}

// Restart re-attempts Starting from the Failed state.
func (e *Engine) Restart() error {
	e.mu.Lock()
	if e.state.Load() == Failed {
		if err := e.stopLocked(Stopped); err != nil {
			log.Printf("Teardown before restart reported: %v", err)
		}
	}
	e.mu.Unlock()
	return e.Start()
}

// deviceLost drives the engine to Failed. No automatic retry: a broken
// device setup must be visible, not masked by silent reconnects.
func (e *Engine) deviceLost(reason string) {
	err := fmt.Errorf("device error: %s", reason)
	e.emit(EngineError{Err: err})

	// Teardown happens off the callback goroutine.
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.state.Load() != Running {
			return
		}
		if err := e.stopLocked(Failed); err != nil {
			log.Printf("Teardown after device loss reported: %v", err)
		}
	}()
}

// PlaySound queues a pre-decoded buffer into the mix. Format mismatch and
// the concurrent-source limit are rejected here, synchronously, before
// anything reaches the audio path. An empty id gets a generated one. The
// returned id appears later in SoundStarted and SoundStopped events.
func (e *Engine) PlaySound(id string, buf audio.Buffer, vol audio.Volume) (string, error) {
	if e.state.Load() != Running {
		return "", ErrNotRunning
	}
	if !buf.Format.Equal(e.cfg.Format) {
		return "", &mixer.FormatError{Want: e.cfg.Format, Got: buf.Format}
	}
	if id == "" {
		id = uuid.NewString()
	}

	e.pending.Lock()
	if e.pending.count >= e.cfg.MaxSources {
		e.pending.Unlock()
		return "", mixer.ErrTooManySources
	}
	e.pending.count++
	e.pending.Unlock()

	select {
	case e.commands <- playCmd{id: id, buf: buf, vol: vol}:
		return id, nil
	default:
		e.pending.Lock()
		e.pending.count--
		e.pending.Unlock()
		return "", fmt.Errorf("command queue full")
	}
}

// StopSound removes a source at the next tick boundary.
func (e *Engine) StopSound(id string) error {
	if e.state.Load() != Running {
		return ErrNotRunning
	}
	select {
	case e.commands <- stopCmd{id: id}:
		return nil
	default:
		return fmt.Errorf("command queue full")
	}
}

// StopAllSounds removes every source at the next tick boundary.
func (e *Engine) StopAllSounds() error {
	if e.state.Load() != Running {
		return ErrNotRunning
	}
	select {
	case e.commands <- stopAllCmd{}:
		return nil
	default:
		return fmt.Errorf("command queue full")
	}
}

// SetMicVolume sets the mic gain, clamped to [0, 2].
func (e *Engine) SetMicVolume(v audio.Volume) {
	v = audio.ClampVolume(v, audio.MaxMicVolume)
	e.micVol.Store(v)
	if capt, _ := e.stages(); capt != nil {
		capt.SetVolume(v)
	}
}

// SetEffectsVolume sets the sound-clip bus gain, clamped to [0, 2].
func (e *Engine) SetEffectsVolume(v audio.Volume) {
	e.effectsVol.Store(audio.ClampVolume(v, audio.MaxEffectsVolume))
}

// SetMasterVolume sets the output gain, clamped to [0, 1].
func (e *Engine) SetMasterVolume(v audio.Volume) {
	e.masterVol.Store(audio.ClampVolume(v, audio.MaxMasterVolume))
}

// SetMicMuted mutes or unmutes the mic.
func (e *Engine) SetMicMuted(muted bool) {
	e.mu.Lock()
	e.micMuted = muted
	e.mu.Unlock()
	if capt, _ := e.stages(); capt != nil {
		capt.SetMuted(muted)
	}
}

// SelectInputDevice tears down the capture stream and reopens it on the
// named device.
func (e *Engine) SelectInputDevice(name string) error {
	return e.selectDevice(name, true)
}

// SelectOutputDevice tears down the render stream and reopens it on the
// named device.
func (e *Engine) SelectOutputDevice(name string) error {
	return e.selectDevice(name, false)
}

func (e *Engine) selectDevice(name string, isCapture bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if isCapture {
		e.cfg.InputDevice = name
	} else {
		e.cfg.OutputDevice = name
	}
	if e.state.Load() != Running {
		return nil
	}

	id, resolved, err := e.resolve(name, isCapture)
	if err != nil {
		return fmt.Errorf("failed to resolve device: %w", err)
	}
	if resolved == "" {
		resolved = "default"
	}

	oldCapt, oldRen := e.stages()
	if isCapture {
		if err := oldCapt.Stop(); err != nil {
			return fmt.Errorf("failed to stop capture: %w", err)
		}
		capt := e.newCapture(e.cfg.Format, id, func() { e.deviceLost("capture stream stopped unexpectedly") })
		if err := capt.Start(); err != nil {
			e.deviceLost(fmt.Sprintf("failed to open input device %q: %v", name, err))
			return fmt.Errorf("failed to start capture: %w", err)
		}
		capt.SetVolume(e.micVol.Load())
		capt.SetMuted(e.micMuted)
		e.setStages(capt, oldRen)
	} else {
		if err := oldRen.Stop(); err != nil {
			return fmt.Errorf("failed to stop render: %w", err)
		}
		ren := e.newRender(e.cfg.Format, id, func() { e.deviceLost("render stream stopped unexpectedly") })
		if err := ren.Start(); err != nil {
			e.deviceLost(fmt.Sprintf("failed to open output device %q: %v", name, err))
			return fmt.Errorf("failed to start render: %w", err)
		}
		e.setStages(oldCapt, ren)
	}

	e.emit(DeviceChanged{Name: resolved, Capture: isCapture})
	return nil
}

// mixLoop runs one tick per buffer period: drain commands, read mic,
// apply the effect chain, mix, hand off to render.
func (e *Engine) mixLoop() {
	defer e.wg.Done()

	samples := e.cfg.Format.FramesToSamples(e.cfg.BufferFrames)
	mic := make([]float32, samples)
	out := make([]float32, samples)

	period := e.cfg.Format.FramesDuration(e.cfg.BufferFrames)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
		}

		e.drainCommands()

		capt, ren := e.stages()
		if capt == nil || ren == nil {
			continue
		}

		capt.Read(mic)
		if e.chain != nil {
			e.chain.Process(mic)
		}

		// Capture already applied mic gain in its callback, so the mix
		// takes the mic bus at unity.
		finished := e.mix.Mix(out, mic, audio.VolumeUnity, e.effectsVol.Load(), e.masterVol.Load())
		for _, id := range finished {
			e.sourceRemoved(id)
		}

		ren.Write(out)
	}
}

// drainCommands applies all queued structural changes. Runs only at the
// start of a tick so the mix composition is stable for its duration.
func (e *Engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			switch c := cmd.(type) {
			case playCmd:
				if err := e.mix.Add(c.id, c.buf, c.vol); err != nil {
					e.pending.Lock()
					e.pending.count--
					e.pending.Unlock()
					e.emit(EngineError{Err: fmt.Errorf("failed to add sound %s: %w", c.id, err)})
					continue
				}
				e.emit(SoundStarted{ID: c.id})
			case stopCmd:
				if e.mix.Remove(c.id) {
					e.sourceRemoved(c.id)
				}
			case stopAllCmd:
				for _, id := range e.mix.RemoveAll() {
					e.sourceRemoved(id)
				}
			}
		default:
			return
		}
	}
}

func (e *Engine) sourceRemoved(id string) {
	e.pending.Lock()
	e.pending.count--
	e.pending.Unlock()
	e.emit(SoundStopped{ID: id})
}

// levelLoop publishes meter readings at a fixed rate, decoupled from the
// audio tick. RMS is instantaneous; peaks ride a decay envelope so short
// transients stay visible.
func (e *Engine) levelLoop() {
	defer e.wg.Done()

	// Linear decay factor per interval for the configured dB/s rate.
	decay := float32(dbToLinear(-peakDecayDBPerSec * levelInterval.Seconds()))

	var inPeak, outPeak float32

	ticker := time.NewTicker(levelInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
		}

		capt, ren := e.stages()
		if capt == nil || ren == nil {
			continue
		}
		in := capt.Level()
		out := ren.Level()

		inPeak *= decay
		if in.Peak > inPeak {
			inPeak = in.Peak
		}
		outPeak *= decay
		if out.Peak > outPeak {
			outPeak = out.Peak
		}

		e.emit(LevelUpdate{
			InputRMS:   in.RMS,
			InputPeak:  inPeak,
			OutputRMS:  out.RMS,
			OutputPeak: outPeak,
		})
	}
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
