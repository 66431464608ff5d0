package library

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// rescanDebounce batches bursts of filesystem events (a copy of an album
// fires many) into a single rescan.
const rescanDebounce = 500 * time.Millisecond

// watcher drives rescans from fsnotify events.
type watcher struct {
	fs   *fsnotify.Watcher
	kick chan struct{}
	quit chan struct{}
}

// StartWatcher initializes fsnotify for recursive music dir monitoring.
// Every relevant event schedules a debounced rescan.
func (l *Library) StartWatcher() error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w := &watcher{
		fs:   fs,
		kick: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	l.watcher = w

	go l.watchFiles(w)
	go l.rescanLoop(w)

	// Add the music directory tree to the watcher
	if err := l.addDirectoryToWatcher(l.root); err != nil {
		fs.Close()
		return err
	}

	l.logger.WithField("library_path", l.root).Info("File watcher started")
	return nil
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (l *Library) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return l.watcher.fs.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and dispatches events.
func (l *Library) watchFiles(w *watcher) {
	defer w.fs.Close()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			l.handleFileEvent(w, event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			l.logger.WithError(err).Error("File watcher error")

		case <-w.quit:
			return
		}
	}
}

// handleFileEvent filters noise and schedules a rescan for anything that
// could change the playable set.
func (l *Library) handleFileEvent(w *watcher, event fsnotify.Event) {
	// Ignore temporary files and hidden files
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}

	if event.Has(fsnotify.Create) {
		// Watch newly created directories
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.fs.Add(event.Name)
			l.logger.WithField("directory", event.Name).Info("Watching new directory")
			l.scheduleRescan(w)
			return
		}
	}

	if !l.prober.IsAudioFile(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write),
		event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		l.logger.WithFields(map[string]interface{}{
			"file_path": event.Name,
			"op":        event.Op.String(),
		}).Debug("Library change detected")
		l.scheduleRescan(w)
	}
}

// scheduleRescan requests a debounced rescan (non-blocking).
func (l *Library) scheduleRescan(w *watcher) {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// rescanLoop coalesces rescan requests and runs them off the event loop.
func (l *Library) rescanLoop(w *watcher) {
	for {
		select {
		case <-w.quit:
			return
		case <-w.kick:
			// Let the file settle; a fresh copy may still be in flight.
			time.Sleep(rescanDebounce)

			// Drain any requests that arrived while sleeping.
			select {
			case <-w.kick:
			default:
			}

			if _, err := l.Rescan(); err != nil {
				l.logger.WithError(err).Error("Rescan after file change failed")
			}
		}
	}
}

// StopWatcher closes the watcher (idempotent).
func (l *Library) StopWatcher() {
	if l.watcher != nil {
		select {
		case <-l.watcher.quit:
		default:
			close(l.watcher.quit)
		}
	}
}
