// Package library maintains the set of playable files under the music
// directory. Every scan produces a fresh, immutable Snapshot that is
// swapped in atomically; consumers therefore always see a self-consistent
// track list, never one mid-rebuild.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rubato/internal/metadata"
	"rubato/pkg/models"
)

// Snapshot is one immutable version of the library, in discovery order.
type Snapshot struct {
	Version     uuid.UUID
	GeneratedAt time.Time
	Tracks      []models.Track

	index map[string]int // path -> position in Tracks
}

// NewSnapshot builds a snapshot over tracks, preserving their order.
func NewSnapshot(tracks []models.Track) *Snapshot {
	snap := &Snapshot{
		Version:     uuid.New(),
		GeneratedAt: time.Now(),
		Tracks:      tracks,
		index:       make(map[string]int, len(tracks)),
	}
	for i, t := range tracks {
		snap.index[t.Path] = i
	}
	return snap
}

// Len returns the number of tracks in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Tracks)
}

// IndexOf returns the position of path in the snapshot, or false when the
// path is not (or no longer) present.
func (s *Snapshot) IndexOf(path string) (int, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.index[path]
	return i, ok
}

// At returns the track at position i.
func (s *Snapshot) At(i int) models.Track {
	return s.Tracks[i]
}

// Library scans and watches the music directory.
type Library struct {
	root   string
	prober *metadata.Prober
	cache  *Cache // may be nil
	logger *logrus.Logger

	mutex     sync.RWMutex
	snapshot  *Snapshot
	listeners []chan *Snapshot

	watcher *watcher
}

// New creates a library over root. cache may be nil to disable the
// metadata cache.
func New(root string, prober *metadata.Prober, cache *Cache, logger *logrus.Logger) *Library {
	return &Library{
		root:      root,
		prober:    prober,
		cache:     cache,
		logger:    logger,
		listeners: make([]chan *Snapshot, 0),
	}
}

// Current returns the latest snapshot, or nil before the first scan.
func (l *Library) Current() *Snapshot {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.snapshot
}

// SetSnapshot installs snap as the current snapshot and notifies
// subscribers. Rescan builds snapshots from disk; this entry point serves
// callers that already hold a track list.
func (l *Library) SetSnapshot(snap *Snapshot) {
	l.mutex.Lock()
	l.snapshot = snap
	l.notifyListeners(snap)
	l.mutex.Unlock()
}

// Rescan walks the music directory, probes (or cache-loads) every
// supported file in discovery order, and swaps in a new snapshot.
func (l *Library) Rescan() (*Snapshot, error) {
	started := time.Now()

	paths, err := l.listAudioFiles()
	if err != nil {
		return nil, fmt.Errorf("library scan: %w", err)
	}

	tracks := make([]models.Track, 0, len(paths))
	for _, path := range paths {
		tracks = append(tracks, l.loadTrack(path))
	}

	snap := NewSnapshot(tracks)

	if l.cache != nil {
		if err := l.cache.Prune(snap.index); err != nil {
			l.logger.WithError(err).Warn("Failed to prune metadata cache")
		}
	}

	l.mutex.Lock()
	l.snapshot = snap
	l.notifyListeners(snap)
	l.mutex.Unlock()

	l.logger.WithFields(logrus.Fields{
		"tracks":   len(tracks),
		"version":  snap.Version,
		"duration": time.Since(started),
	}).Info("Library scan complete")

	return snap, nil
}

// listAudioFiles walks root recursively and returns supported audio files
// in discovery order.
func (l *Library) listAudioFiles() ([]string, error) {
	var paths []string
	err := filepath.Walk(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := filepath.Base(path)
		if len(name) > 0 && name[0] == '.' {
			return nil
		}
		if l.prober.IsAudioFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// loadTrack resolves a path to track metadata, preferring a cache entry
// that is still valid for the file's current mtime and size.
func (l *Library) loadTrack(path string) models.Track {
	stat, err := os.Stat(path)
	if err != nil {
		return models.Track{
			Path:       path,
			Title:      trimExt(path),
			Artist:     "Unknown Artist",
			Unreadable: true,
		}
	}

	if l.cache != nil {
		if track, ok, err := l.cache.Lookup(path, stat.ModTime(), stat.Size()); err != nil {
			l.logger.WithError(err).WithField("file_path", path).Warn("Metadata cache lookup failed")
		} else if ok {
			return track
		}
	}

	track, err := l.prober.Probe(path)
	if err != nil {
		l.logger.WithError(err).WithField("file_path", path).Warn("Track is unplayable")
	}

	if l.cache != nil {
		if err := l.cache.Store(track); err != nil {
			l.logger.WithError(err).WithField("file_path", path).Warn("Metadata cache store failed")
		}
	}
	return track
}

// Subscribe adds a listener for new snapshots
func (l *Library) Subscribe() <-chan *Snapshot {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	ch := make(chan *Snapshot, 4) // Buffered channel to prevent blocking
	l.listeners = append(l.listeners, ch)
	return ch
}

// Unsubscribe removes a listener
func (l *Library) Unsubscribe(ch <-chan *Snapshot) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for i, listener := range l.listeners {
		if listener == ch {
			close(listener)
			l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
			break
		}
	}
}

// notifyListeners sends the snapshot to all subscribers (lock held)
func (l *Library) notifyListeners(snap *Snapshot) {
	for i, listener := range l.listeners {
		select {
		case listener <- snap:
			// Successfully sent
		default:
			// Channel is full or closed, remove it
			close(listener)
			l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
		}
	}
}

// Close stops the watcher, if running.
func (l *Library) Close() {
	l.StopWatcher()
}

func trimExt(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
