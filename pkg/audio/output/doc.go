// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output interface with oto, malgo and PortAudio backends
// Package output provides audio playback interfaces.
//
// The oto backend plays to the system default device, the malgo backend
// can target a specific playback device, and a PortAudio backend is
// available behind the portaudio build tag.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(48000, 2)
//	err = out.Write(samples)
package output
