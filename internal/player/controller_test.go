package player

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"rubato/internal/device"
	"rubato/pkg/models"
)

// stubDevice pumps the stream callback from a plain goroutine, standing in
// for the audio backend.
type stubDevice struct {
	mu      sync.Mutex
	streams []*stubStream
}

type stubStream struct {
	cb       device.Callback
	out      []float32
	interval time.Duration

	mu      sync.Mutex // held while the callback runs, mirrors Stop's handshake
	quit    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

func (d *stubDevice) OpenStream(sampleRate, channels, blockSize int, cb device.Callback, onErr device.ErrorFunc) (device.Stream, error) {
	s := &stubStream{
		cb:       cb,
		out:      make([]float32, blockSize*channels),
		interval: 5 * time.Millisecond,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *stubDevice) openStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.streams {
		if s.started && !s.stopped {
			n++
		}
	}
	return n
}

func (s *stubStream) Start() error {
	s.started = true
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				s.mu.Lock()
				keep := s.cb(s.out)
				s.mu.Unlock()
				if !keep {
					return
				}
			}
		}
	}()
	return nil
}

func (s *stubStream) Stop() error {
	if !s.stopped {
		s.stopped = true
		close(s.quit)
		<-s.done
	}
	// Any in-flight callback has completed once this lock is acquired.
	s.mu.Lock()
	s.mu.Unlock()
	return nil
}

func (s *stubStream) Close() error { return s.Stop() }

// writeTestWAV writes a mono 16-bit 8 kHz file of the given duration and
// returns its path.
func writeTestWAV(t *testing.T, dir, name string, seconds float64) string {
	t.Helper()

	const sampleRate = 8000
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	frames := int(math.Round(seconds * sampleRate))
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, frames),
	}
	for i := range buf.Data {
		buf.Data[i] = 8192
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize %s: %v", path, err)
	}
	return path
}

func newTestController(t *testing.T) (*Controller, *stubDevice, *StateManager) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests

	dev := &stubDevice{}
	state := NewStateManager()
	c := NewController(dev, 256, 100, state, logger)
	t.Cleanup(c.Close)
	return c, dev, state
}

func TestPlayUnreadableFile(t *testing.T) {
	c, dev, state := newTestController(t)

	err := c.Play(models.Track{Path: filepath.Join(t.TempDir(), "missing.wav")})
	if err == nil {
		t.Fatal("Play on a missing file must fail")
	}
	if got := c.Current(); got != "" {
		t.Errorf("Current() = %q after failed play, want empty", got)
	}
	if dev.openStreams() != 0 {
		t.Error("failed play left a stream open")
	}
	if s := state.GetState(); s.Track != nil {
		t.Error("failed play left a track in the shared state")
	}
}

func TestPlayReplacesCurrentTrack(t *testing.T) {
	c, dev, _ := newTestController(t)
	dir := t.TempDir()
	a := writeTestWAV(t, dir, "a.wav", 2.0)
	b := writeTestWAV(t, dir, "b.wav", 2.0)

	if err := c.Play(models.Track{Path: a, Title: "a"}); err != nil {
		t.Fatalf("Play(a): %v", err)
	}
	if err := c.Play(models.Track{Path: b, Title: "b"}); err != nil {
		t.Fatalf("Play(b): %v", err)
	}

	if got := c.Current(); got != b {
		t.Errorf("Current() = %q, want %q", got, b)
	}
	if n := dev.openStreams(); n != 1 {
		t.Errorf("open streams = %d, want 1", n)
	}
}

func TestVolumeClampedAndRemembered(t *testing.T) {
	c, _, state := newTestController(t)

	tests := []struct {
		set  int
		want int
	}{
		{set: 50, want: 50},
		{set: -10, want: 0},
		{set: 150, want: 100},
		{set: 0, want: 0},
	}
	for _, tt := range tests {
		c.SetVolume(tt.set)
		if got := c.Volume(); got != tt.want {
			t.Errorf("Volume() after SetVolume(%d) = %d, want %d", tt.set, got, tt.want)
		}
		if got := state.GetState().Volume; got != tt.want {
			t.Errorf("state volume after SetVolume(%d) = %d, want %d", tt.set, got, tt.want)
		}
	}
}

func TestSeekClampsToTrackEnd(t *testing.T) {
	c, _, _ := newTestController(t)
	path := writeTestWAV(t, t.TempDir(), "a.wav", 1.0)

	if err := c.Play(models.Track{Path: path}); err != nil {
		t.Fatalf("Play: %v", err)
	}
	c.Pause() // hold the cursor still for the assertions

	c.Seek(0.5)
	if got := c.Position(); math.Abs(got-0.5) > 0.05 {
		t.Errorf("Position() after Seek(0.5) = %v, want ~0.5", got)
	}

	c.Seek(9999)
	if got := c.Position(); math.Abs(got-1.0) > 0.05 {
		t.Errorf("Position() after Seek(9999) = %v, want ~1.0 (clamped)", got)
	}
}

func TestPauseHoldsPosition(t *testing.T) {
	c, _, _ := newTestController(t)
	path := writeTestWAV(t, t.TempDir(), "a.wav", 2.0)

	if err := c.Play(models.Track{Path: path}); err != nil {
		t.Fatalf("Play: %v", err)
	}
	c.Pause()
	before := c.Position()
	time.Sleep(50 * time.Millisecond)
	if got := c.Position(); got != before {
		t.Errorf("position moved while paused: %v -> %v", before, got)
	}
	if c.Playing() {
		t.Error("Playing() = true while paused")
	}

	c.Resume()
	if !c.Playing() {
		t.Error("Playing() = false after resume")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c, dev, _ := newTestController(t)

	c.Stop() // nothing playing

	path := writeTestWAV(t, t.TempDir(), "a.wav", 2.0)
	if err := c.Play(models.Track{Path: path}); err != nil {
		t.Fatalf("Play: %v", err)
	}
	c.Stop()
	c.Stop()

	if got := c.Current(); got != "" {
		t.Errorf("Current() after Stop = %q, want empty", got)
	}
	if n := dev.openStreams(); n != 0 {
		t.Errorf("open streams after Stop = %d, want 0", n)
	}
}

func TestFinishedNotificationCarriesPath(t *testing.T) {
	c, _, _ := newTestController(t)

	finished := make(chan string, 1)
	c.SetOnFinished(func(path string) { finished <- path })

	path := writeTestWAV(t, t.TempDir(), "short.wav", 0.05)
	if err := c.Play(models.Track{Path: path}); err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case got := <-finished:
		if got != path {
			t.Errorf("finished path = %q, want %q", got, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("finished notification never arrived")
	}

	if got := c.Current(); got != "" {
		t.Errorf("Current() after natural end = %q, want empty", got)
	}
}
