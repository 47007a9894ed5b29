// ABOUTME: Audio device enumeration via malgo
// ABOUTME: Lists capture and playback devices and finds virtual cables by name
package device

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// Info describes one audio device.
type Info struct {
	ID        malgo.DeviceID
	Name      string
	IsDefault bool
}

// Devices holds the enumeration result for both directions.
type Devices struct {
	Capture  []Info
	Playback []Info
}

// virtualCableMarkers are substrings that identify virtual audio cable
// devices (VB-Audio Cable, VoiceMeeter, BlackHole and the like) in a
// lowercased device name.
var virtualCableMarkers = []string{"cable", "voicemeeter", "virtual", "blackhole"}

func listDevices(ctx *malgo.AllocatedContext, typ malgo.DeviceType) ([]Info, error) {
	devices, err := ctx.Devices(typ)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	res := make([]Info, 0, len(devices))
	for _, dev := range devices {
		full, err := ctx.DeviceInfo(typ, dev.ID, malgo.Shared)
		if err != nil {
			// A device can disappear between enumeration and query.
			continue
		}
		res = append(res, Info{
			ID:        full.ID,
			Name:      full.Name(),
			IsDefault: full.IsDefault == 1,
		})
	}

	return res, nil
}

// List enumerates all capture and playback devices.
func List() (Devices, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return Devices{}, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	capture, err := listDevices(ctx, malgo.Capture)
	if err != nil {
		return Devices{}, err
	}
	playback, err := listDevices(ctx, malgo.Playback)
	if err != nil {
		return Devices{}, err
	}

	return Devices{Capture: capture, Playback: playback}, nil
}

// FindByName returns the first device whose name contains the given
// substring, case-insensitively.
func FindByName(devices []Info, name string) (Info, bool) {
	want := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), want) {
			return d, true
		}
	}
	return Info{}, false
}

// IsVirtualCable reports whether a device name looks like a virtual
// audio cable.
func IsVirtualCable(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range virtualCableMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// FindVirtualCable returns the first playback device that looks like a
// virtual audio cable.
func FindVirtualCable(playback []Info) (Info, bool) {
	for _, d := range playback {
		if IsVirtualCable(d.Name) {
			return d, true
		}
	}
	return Info{}, false
}
