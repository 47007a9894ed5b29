// ABOUTME: Outward event types emitted by the engine
package engine

// Event is anything the engine reports to its consumer. Events are
// advisory; a slow consumer drops events rather than stalling the engine.
type Event interface {
	event()
}

// LevelUpdate carries input and output meter readings. RMS is
// instantaneous; Peak uses a slow decay envelope.
type LevelUpdate struct {
	InputRMS   float32
	InputPeak  float32
	OutputRMS  float32
	OutputPeak float32
}

// SoundStarted reports that a sound source entered the mix.
type SoundStarted struct {
	ID string
}

// SoundStopped reports that a sound source left the mix, either by
// finishing or by an explicit stop.
type SoundStopped struct {
	ID string
}

// DeviceChanged reports a successful device switch.
type DeviceChanged struct {
	Name    string
	Capture bool
}

// EngineError reports a fatal or structural error.
type EngineError struct {
	Err error
}

func (LevelUpdate) event()   {}
func (SoundStarted) event()  {}
func (SoundStopped) event()  {}
func (DeviceChanged) event() {}
func (EngineError) event()   {}
