// Package source provides seekable, frame-oriented readers over decoded
// audio files. A Source yields interleaved float32 samples in [-1, 1] and
// supports frame-accurate repositioning, which is what the playback engine
// needs to drive its real-time callback.
package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnreadableFile indicates a file that is missing, corrupt, or in an
// unsupported format. It is surfaced per-track and never aborts a session.
var ErrUnreadableFile = errors.New("unreadable audio file")

// Source is a sequential, seekable reader over one decoded audio file.
type Source interface {
	// SampleRate returns the sample rate in Hz.
	SampleRate() int

	// Channels returns the interleaved channel count.
	Channels() int

	// TotalFrames returns the total number of frames in the file.
	TotalFrames() int64

	// ReadFrames fills dst (whose length must be a multiple of the channel
	// count) with up to len(dst)/Channels() frames of interleaved float32
	// samples scaled to [-1, 1]. It returns the number of frames read,
	// which is less than requested only at end of stream or on a read
	// failure.
	ReadFrames(dst []float32) (int, error)

	// Seek repositions the read pointer to the given frame offset,
	// clamping to [0, TotalFrames].
	Seek(frame int64) error

	// Tell returns the current frame offset.
	Tell() int64

	// Close releases the underlying file.
	Close() error
}

// Open opens path with the decoder matching its extension. Any open or
// header-parse failure is reported as ErrUnreadableFile.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return openWAV(path)
	case ".flac":
		return openFLAC(path)
	case ".mp3":
		return openMP3(path)
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrUnreadableFile, filepath.Ext(path))
	}
}

// clampFrame bounds a frame offset to [0, total].
func clampFrame(frame, total int64) int64 {
	if frame < 0 {
		return 0
	}
	if frame > total {
		return total
	}
	return frame
}
