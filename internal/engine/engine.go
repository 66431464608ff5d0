// Package engine bridges a decoded source to the audio device's real-time
// callback. One Engine is created per loaded track and owns the output
// stream for its lifetime.
//
// The callback and every control operation share a single mutex. Control
// critical sections only read or write fields (never I/O), so the callback
// never waits on the lock for more than a negligible duration.
package engine

import (
	"sync"

	"github.com/sirupsen/logrus"

	"rubato/internal/device"
	"rubato/internal/source"
)

// FinishedFunc is invoked exactly once when playback reaches the natural
// end of the stream. It runs on a dedicated worker goroutine, never on the
// real-time callback context.
type FinishedFunc func()

// Engine streams one source into one output stream.
type Engine struct {
	dev       device.Device
	blockSize int
	log       *logrus.Entry

	mu       sync.Mutex
	src      source.Source
	stream   device.Stream
	volume   float64 // 0.0-1.0, applied per whole block
	paused   bool
	active   bool
	finished bool
	cursor   int64 // frame offset, advanced only by the callback or Seek

	// Single-slot end-of-stream hand-off, drained by the completion
	// worker so the notification never runs inside the callback.
	done     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once

	onFinished  FinishedFunc
	onDeviceErr func(error)
}

// New creates an engine for src. The engine takes ownership of the source
// and closes it on Close.
func New(src source.Source, dev device.Device, blockSize int, log *logrus.Logger) *Engine {
	return &Engine{
		dev:       dev,
		blockSize: blockSize,
		src:       src,
		volume:    1.0,
		done:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		log: log.WithFields(logrus.Fields{
			"sample_rate": src.SampleRate(),
			"channels":    src.Channels(),
		}),
	}
}

// SetOnFinished registers the end-of-stream notification. Must be called
// before Start.
func (e *Engine) SetOnFinished(fn FinishedFunc) {
	e.mu.Lock()
	e.onFinished = fn
	e.mu.Unlock()
}

// SetOnDeviceError registers a handler for output-device failures. Must be
// called before Start.
func (e *Engine) SetOnDeviceError(fn func(error)) {
	e.mu.Lock()
	e.onDeviceErr = fn
	e.mu.Unlock()
}

// Start opens the output stream and begins playback from the current
// cursor position.
func (e *Engine) Start() error {
	e.mu.Lock()
	sr := e.src.SampleRate()
	ch := e.src.Channels()
	e.mu.Unlock()

	stream, err := e.dev.OpenStream(sr, ch, e.blockSize, e.fill, e.handleDeviceErr)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.stream = stream
	e.active = true
	e.mu.Unlock()

	go e.completionWorker()

	if err := stream.Start(); err != nil {
		e.Stop()
		return err
	}
	return nil
}

// fill is the real-time callback. It must not block, allocate, or perform
// I/O beyond the bounded source read.
func (e *Engine) fill(out []float32) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		zero(out)
		return false
	}
	if e.paused {
		// Silence without touching the reader or the cursor.
		zero(out)
		return true
	}

	channels := e.src.Channels()
	want := len(out) / channels
	n, err := e.src.ReadFrames(out)

	vol := float32(e.volume)
	for i := 0; i < n*channels; i++ {
		out[i] *= vol
	}
	zero(out[n*channels:])

	e.cursor = e.src.Tell()

	if err != nil || n < want {
		// A short read means the file is exhausted; a mid-stream read
		// error is treated the same way rather than destabilizing the
		// real-time path.
		e.active = false
		e.finished = true
		select {
		case e.done <- struct{}{}:
		default:
		}
		return false
	}
	return true
}

// completionWorker waits for the end-of-stream signal and dispatches the
// notification outside the real-time context.
func (e *Engine) completionWorker() {
	select {
	case <-e.done:
	case <-e.quit:
		return
	}

	e.mu.Lock()
	fn := e.onFinished
	e.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (e *Engine) handleDeviceErr(err error) {
	e.mu.Lock()
	e.active = false
	fn := e.onDeviceErr
	e.mu.Unlock()

	e.log.WithError(err).Error("Playback device failure, halting")
	if fn != nil {
		fn(err)
	}
}

// Pause makes the callback emit silence without advancing. Idempotent.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume continues playback from where Pause left off. Idempotent.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// SetVolume sets the playback scale, clamped to [0, 1]. The new value
// applies no later than the next callback block, never mid-block.
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
}

// Volume returns the current playback scale.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// Seek repositions playback to the given frame, clamped to the valid
// range. The cursor and reader move under one lock hold, so the callback
// never observes a half-updated pair.
func (e *Engine) Seek(frame int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.src == nil {
		return nil
	}
	frame = clampFrame(frame, e.src.TotalFrames())
	if err := e.src.Seek(frame); err != nil {
		return err
	}
	e.cursor = e.src.Tell()
	return nil
}

// Cursor returns the current frame offset.
func (e *Engine) Cursor() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Position returns the playback position in seconds.
func (e *Engine) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == nil {
		return 0
	}
	return float64(e.cursor) / float64(e.src.SampleRate())
}

// SampleRate returns the source sample rate in Hz, or 0 when the source
// has been released.
func (e *Engine) SampleRate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == nil {
		return 0
	}
	return e.src.SampleRate()
}

// Duration returns the total source duration in seconds.
func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == nil {
		return 0
	}
	return float64(e.src.TotalFrames()) / float64(e.src.SampleRate())
}

// Active reports whether an output stream is attached and running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Finished reports whether playback reached the natural end of stream.
func (e *Engine) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finished
}

// Stop halts the stream and rewinds to frame 0. It blocks until no
// callback is in flight, so the source is safe to touch once it returns.
// Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	stream := e.stream
	e.stream = nil
	e.active = false
	e.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}

	e.quitOnce.Do(func() { close(e.quit) })

	e.mu.Lock()
	if e.src != nil {
		e.src.Seek(0)
		e.cursor = 0
	}
	e.mu.Unlock()
}

// Close stops playback and releases the source.
func (e *Engine) Close() error {
	e.Stop()

	e.mu.Lock()
	src := e.src
	e.src = nil
	e.mu.Unlock()

	if src != nil {
		return src.Close()
	}
	return nil
}

func clampFrame(frame, total int64) int64 {
	if frame < 0 {
		return 0
	}
	if frame > total {
		return total
	}
	return frame
}

func zero(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
