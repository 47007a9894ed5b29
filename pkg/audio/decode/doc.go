// ABOUTME: Audio decoder package for loading sound files
// ABOUTME: Dispatches by extension to WAV, MP3, FLAC, Vorbis, Opus and raw PCM decoders
// Package decode loads audio files into float32 PCM buffers.
//
// Supports: WAV, MP3, FLAC, Ogg Vorbis, Opus, raw 16-bit PCM
//
// Decoded audio is converted to the caller's target format so downstream
// stages always see one sample rate and channel count.
//
// Example:
//
//	buf, err := decode.File("clip.wav", audio.Canonical())
package decode
