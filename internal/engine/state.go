// ABOUTME: Engine lifecycle state machine
package engine

import "sync/atomic"

// State is the engine lifecycle state.
type State int32

const (
	// Stopped means no streams are open.
	Stopped State = iota
	// Starting means capture and render streams are being opened.
	Starting
	// Running means both streams are open and the mix loop is ticking.
	Running
	// Stopping means streams are being torn down.
	Stopping
	// Failed means a device error stopped the engine. Terminal until an
	// explicit Restart.
	Failed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type atomicState struct {
	v atomic.Int32
}

func (a *atomicState) Store(s State) { a.v.Store(int32(s)) }
func (a *atomicState) Load() State   { return State(a.v.Load()) }
