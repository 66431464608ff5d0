// Package player exposes the transport control surface over the playback
// engine: play, stop, pause, resume, seek, volume, and position reads. All
// operations are safe for concurrent use.
package player

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"rubato/internal/device"
	"rubato/internal/engine"
	"rubato/internal/source"
	"rubato/pkg/models"
)

// FinishedFunc receives the path of a track that reached its natural end.
// It is invoked off the real-time context, after the finished track's
// resources have been released, so it may immediately start new playback.
type FinishedFunc func(path string)

// loaded bundles the resources of the currently loaded track.
type loaded struct {
	path  string
	track models.Track
	eng   *engine.Engine
}

// Controller is the transport controller. At most one track is active at a
// time; starting a new one synchronously stops the previous.
type Controller struct {
	dev       device.Device
	blockSize int
	state     *StateManager
	log       *logrus.Logger

	// playMu serializes play/stop transitions so no two engines ever run
	// concurrently.
	playMu sync.Mutex

	mu         sync.RWMutex
	current    *loaded
	volume     int // 0-100, remembered across tracks
	onFinished FinishedFunc
}

// NewController creates a transport controller writing status changes to
// state.
func NewController(dev device.Device, blockSize, volume int, state *StateManager, log *logrus.Logger) *Controller {
	return &Controller{
		dev:       dev,
		blockSize: blockSize,
		state:     state,
		volume:    clampVolume(volume),
		log:       log,
	}
}

// SetOnFinished registers the natural-end notification consumer (the
// playlist sequencer). Must be set before playback starts.
func (c *Controller) SetOnFinished(fn FinishedFunc) {
	c.mu.Lock()
	c.onFinished = fn
	c.mu.Unlock()
}

// Play starts playback of track. Any active track is stopped first; a
// failed open leaves nothing playing and is reported once, not retried.
func (c *Controller) Play(track models.Track) error {
	c.playMu.Lock()
	defer c.playMu.Unlock()

	c.stopCurrent()

	// Open the reader before any lock the callback contends on.
	src, err := source.Open(track.Path)
	if err != nil {
		c.log.WithError(err).WithField("path", track.Path).Error("Cannot play track")
		c.state.ClearTrack()
		return fmt.Errorf("play %s: %w", track.Path, err)
	}

	eng := engine.New(src, c.dev, c.blockSize, c.log)
	path := track.Path
	eng.SetOnFinished(func() { c.handleFinished(path) })
	eng.SetOnDeviceError(func(err error) { c.handleDeviceErr(path, err) })

	c.mu.Lock()
	eng.SetVolume(float64(c.volume) / 100.0)
	c.mu.Unlock()

	if err := eng.Start(); err != nil {
		eng.Close()
		c.log.WithError(err).WithField("path", track.Path).Error("Cannot start output stream")
		c.state.ClearTrack()
		return fmt.Errorf("play %s: %w", track.Path, err)
	}

	c.mu.Lock()
	c.current = &loaded{path: path, track: track, eng: eng}
	c.mu.Unlock()

	c.state.UpdateTrack(&track, eng.Duration())
	c.log.WithFields(logrus.Fields{
		"path":  track.Path,
		"title": track.Title,
	}).Info("Playing track")
	return nil
}

// handleFinished runs on the engine's completion worker when a track ends
// naturally. It releases the finished track and then hands the path to the
// sequencer hook.
func (c *Controller) handleFinished(path string) {
	c.playMu.Lock()

	c.mu.Lock()
	cur := c.current
	if cur == nil || cur.path != path {
		c.mu.Unlock()
		c.playMu.Unlock()
		return
	}
	c.current = nil
	fn := c.onFinished
	c.mu.Unlock()

	cur.eng.Close()
	c.playMu.Unlock()

	c.state.ClearTrack()
	c.log.WithField("path", path).Debug("Track finished")

	if fn != nil {
		fn(path)
	}
}

// handleDeviceErr tears down playback after an output-device failure. The
// engine is already inactive; no retry is attempted.
func (c *Controller) handleDeviceErr(path string, err error) {
	c.playMu.Lock()

	c.mu.Lock()
	cur := c.current
	if cur == nil || cur.path != path {
		c.mu.Unlock()
		c.playMu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()

	cur.eng.Close()
	c.playMu.Unlock()

	c.state.ClearTrack()
	c.log.WithError(err).WithField("path", path).Error("Playback halted by device error")
}

// Stop halts playback, closes the reader, and resets the position to 0.
// Idempotent: stopping when nothing is playing is a no-op.
func (c *Controller) Stop() {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	c.stopCurrent()
	c.state.ClearTrack()
}

// stopCurrent releases the active track. Caller holds playMu.
func (c *Controller) stopCurrent() {
	c.mu.Lock()
	cur := c.current
	c.current = nil
	c.mu.Unlock()

	if cur != nil {
		cur.eng.Close()
		c.log.WithField("path", cur.path).Info("Stopped playback")
	}
}

// Pause makes the callback emit silence without advancing. No-op when
// nothing is playing.
func (c *Controller) Pause() {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()

	if cur == nil {
		return
	}
	cur.eng.Pause()
	c.state.UpdatePlaybackState(true, true)
}

// Resume continues paused playback exactly where it left off.
func (c *Controller) Resume() {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()

	if cur == nil {
		return
	}
	cur.eng.Resume()
	c.state.UpdatePlaybackState(true, false)
}

// SetVolume sets the volume on a 0-100 scale. Out-of-range values are
// clamped, never rejected; it always succeeds.
func (c *Controller) SetVolume(v int) {
	v = clampVolume(v)

	c.mu.Lock()
	c.volume = v
	cur := c.current
	c.mu.Unlock()

	if cur != nil {
		cur.eng.SetVolume(float64(v) / 100.0)
	}
	c.state.UpdateVolume(v)
}

// Volume returns the current volume on the 0-100 scale.
func (c *Controller) Volume() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

// Seek repositions playback to the given offset in seconds. Targets past
// the end of the track are clamped rather than rejected. No-op when
// nothing is playing.
func (c *Controller) Seek(seconds float64) {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()

	if cur == nil {
		return
	}
	frame := int64(seconds * float64(cur.eng.SampleRate()))
	if err := cur.eng.Seek(frame); err != nil {
		c.log.WithError(err).WithField("path", cur.path).Warn("Seek failed")
		return
	}
	c.state.UpdatePosition(cur.eng.Position())
}

// Position returns the playback position in seconds, derived from the
// engine's read cursor.
func (c *Controller) Position() float64 {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()

	if cur == nil {
		return 0
	}
	return cur.eng.Position()
}

// Current returns the path of the loaded track, or "" when idle.
func (c *Controller) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return ""
	}
	return c.current.path
}

// Playing reports whether a track is loaded and not paused.
func (c *Controller) Playing() bool {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	return cur != nil && !cur.eng.Paused()
}

// Close stops playback and releases resources.
func (c *Controller) Close() {
	c.Stop()
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
