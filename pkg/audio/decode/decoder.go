// ABOUTME: File decoder dispatch for loading sound clips
// ABOUTME: Decodes a whole file to float32 PCM and normalizes the format
package decode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sounddeck/sounddeck-go/pkg/audio"
	"github.com/sounddeck/sounddeck-go/pkg/audio/resample"
)

// fileDecoder decodes one container format from a reader into PCM at the
// file's native format.
type fileDecoder func(r io.Reader) (audio.Buffer, error)

var decoders = map[string]fileDecoder{
	".wav":  decodeWAV,
	".mp3":  decodeMP3,
	".flac": decodeFLAC,
	".ogg":  decodeVorbis,
	".opus": decodeOpus,
	".pcm":  decodePCM,
	".raw":  decodePCM,
}

// Supported reports whether the file extension maps to a known decoder.
func Supported(path string) bool {
	_, ok := decoders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// File decodes an audio file and converts it to the target format. The
// decoder is picked by file extension.
func File(path string, target audio.Format) (audio.Buffer, error) {
	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return audio.Buffer{}, fmt.Errorf("unsupported audio format: %s", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	buf, err := dec(f)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(buf.Data) == 0 {
		return audio.Buffer{}, fmt.Errorf("no audio data in %s", path)
	}

	return resample.Convert(buf, target), nil
}
