// Package device abstracts the audio output subsystem. A Device opens
// pull-style output streams: the stream periodically invokes a callback on
// its own execution context, asking for the next block of interleaved
// float32 samples.
package device

import "errors"

// ErrDeviceFailed indicates an output-device failure (e.g. the device
// disappeared). Playback is halted and not automatically retried.
var ErrDeviceFailed = errors.New("audio output device failed")

// Callback fills out with exactly blockSize*channels interleaved float32
// samples. It runs on the stream's real-time context and must not block.
// Returning false tells the stream to flush this final block and stop
// invoking the callback.
type Callback func(out []float32) bool

// ErrorFunc receives asynchronous device-level errors for a stream.
type ErrorFunc func(error)

// Device opens output streams.
type Device interface {
	// OpenStream prepares an output stream at the given format. The
	// callback starts firing only after Stream.Start.
	OpenStream(sampleRate, channels, blockSize int, cb Callback, onErr ErrorFunc) (Stream, error)
}

// Stream is one open output stream, exclusively owned by its engine.
type Stream interface {
	// Start begins periodic callback invocation.
	Start() error

	// Stop halts the stream. It blocks until no callback invocation is in
	// flight, so the caller may safely tear down callback state after it
	// returns.
	Stop() error

	// Close releases the stream. Idempotent.
	Close() error
}
