// Package playlist decides what plays after a track reaches its natural
// end, based on the current loop mode and the latest library snapshot.
package playlist

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"rubato/internal/library"
	"rubato/pkg/models"
)

// Mode is the loop policy applied when a track finishes.
type Mode int

const (
	LoopNone Mode = iota
	LoopSong
	LoopList
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case LoopSong:
		return "song"
	case LoopList:
		return "list"
	default:
		return "none"
	}
}

// ParseMode parses a loop mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "none":
		return LoopNone, nil
	case "song":
		return LoopSong, nil
	case "list":
		return LoopList, nil
	default:
		return LoopNone, fmt.Errorf("invalid loop mode: %q", s)
	}
}

// ActionKind classifies the decision made at a completion event.
type ActionKind int

const (
	// ActionStop clears the current track; nothing further plays. Also
	// used when a loop=list notification is dropped because the finished
	// path left the library.
	ActionStop ActionKind = iota

	// ActionReplay restarts the finished track from frame 0.
	ActionReplay

	// ActionAdvance plays Track (the next list entry, wrapping).
	ActionAdvance
)

// Action is the sequencer's decision for one completion event.
type Action struct {
	Kind  ActionKind
	Track models.Track
}

// NextAction decides what follows the finished track at path under mode,
// against the given snapshot. The snapshot may be nil (empty library).
func NextAction(mode Mode, path string, snap *library.Snapshot) Action {
	switch mode {
	case LoopSong:
		if snap != nil {
			if i, ok := snap.IndexOf(path); ok {
				return Action{Kind: ActionReplay, Track: snap.At(i)}
			}
		}
		// The file vanished while playing; replaying by path still
		// expresses the user's intent, the open will fail cleanly.
		return Action{Kind: ActionReplay, Track: models.Track{Path: path}}

	case LoopList:
		i, ok := snap.IndexOf(path)
		if !ok {
			// The finished track is no longer in the list (removed from
			// disk, rescanned away): drop the notification.
			return Action{Kind: ActionStop}
		}
		next := (i + 1) % snap.Len()
		return Action{Kind: ActionAdvance, Track: snap.At(next)}

	default:
		return Action{Kind: ActionStop}
	}
}

// Transport is the slice of the controller the sequencer drives.
type Transport interface {
	Play(track models.Track) error
}

// StatePublisher receives loop-mode changes for UI consumers.
type StatePublisher interface {
	UpdateLoopMode(mode string)
}

// Sequencer consumes completion notifications and drives the transport
// according to the loop mode. Switching modes never interrupts the
// current track; the mode is only read at the next completion event.
type Sequencer struct {
	lib       *library.Library
	transport Transport
	state     StatePublisher
	logger    *logrus.Logger

	mutex sync.RWMutex
	mode  Mode
}

// NewSequencer creates a sequencer with the given initial mode.
func NewSequencer(lib *library.Library, transport Transport, state StatePublisher, mode Mode, logger *logrus.Logger) *Sequencer {
	if state != nil {
		state.UpdateLoopMode(mode.String())
	}
	return &Sequencer{
		lib:       lib,
		transport: transport,
		state:     state,
		logger:    logger,
		mode:      mode,
	}
}

// Mode returns the current loop mode.
func (s *Sequencer) Mode() Mode {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.mode
}

// SetMode changes the loop mode. It only affects the decision made at the
// next completion event.
func (s *Sequencer) SetMode(mode Mode) {
	s.mutex.Lock()
	s.mode = mode
	s.mutex.Unlock()

	if s.state != nil {
		s.state.UpdateLoopMode(mode.String())
	}
	s.logger.WithField("loop_mode", mode.String()).Info("Loop mode changed")
}

// HandleFinished consumes one completion notification. It runs on the
// engine's completion worker, never on the real-time callback context.
func (s *Sequencer) HandleFinished(path string) {
	action := NextAction(s.Mode(), path, s.lib.Current())

	switch action.Kind {
	case ActionReplay:
		s.logger.WithField("file_path", path).Info("Looping track")
		if err := s.transport.Play(action.Track); err != nil {
			s.logger.WithError(err).WithField("file_path", path).Error("Failed to replay track")
		}

	case ActionAdvance:
		s.logger.WithFields(logrus.Fields{
			"finished": path,
			"next":     action.Track.Path,
		}).Info("Advancing to next track")
		if err := s.transport.Play(action.Track); err != nil {
			s.logger.WithError(err).WithField("file_path", action.Track.Path).Error("Failed to advance to next track")
		}

	default:
		s.logger.WithField("file_path", path).Debug("Playback finished, nothing to do")
	}
}
