package player

import (
	"sync"
	"time"

	"rubato/pkg/models"
)

// State represents the current playback state as seen by UI consumers.
type State struct {
	Track         *models.Track `json:"track,omitempty"`
	IsPlaying     bool          `json:"isPlaying"`
	IsPaused      bool          `json:"isPaused"`
	Position      float64       `json:"position"`      // in seconds
	TotalDuration float64       `json:"totalDuration"` // in seconds
	Volume        int           `json:"volume"`        // 0 to 100
	LoopMode      string        `json:"loopMode"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// StateManager manages the playback state and notifies listeners
type StateManager struct {
	state     *State
	mutex     sync.RWMutex
	listeners []chan *State
}

// NewStateManager creates a new playback state manager
func NewStateManager() *StateManager {
	return &StateManager{
		state: &State{
			Volume:    100,
			LoopMode:  "none",
			UpdatedAt: time.Now(),
		},
		listeners: make([]chan *State, 0),
	}
}

// GetState returns the current playback state (thread-safe)
func (sm *StateManager) GetState() *State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	// Create a copy to avoid race conditions
	stateCopy := *sm.state
	return &stateCopy
}

// UpdateTrack updates the currently playing track
func (sm *StateManager) UpdateTrack(track *models.Track, duration float64) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.Track = track
	sm.state.TotalDuration = duration
	sm.state.Position = 0
	sm.state.IsPlaying = true
	sm.state.IsPaused = false
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// UpdatePlaybackState updates playing/paused flags
func (sm *StateManager) UpdatePlaybackState(isPlaying, isPaused bool) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.IsPlaying = isPlaying
	sm.state.IsPaused = isPaused
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// UpdatePosition updates the playback position in seconds
func (sm *StateManager) UpdatePosition(position float64) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.Position = position
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// UpdateVolume updates the volume
func (sm *StateManager) UpdateVolume(volume int) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.Volume = volume
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// UpdateLoopMode updates the loop mode shown to consumers
func (sm *StateManager) UpdateLoopMode(mode string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.LoopMode = mode
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// ClearTrack clears the current track (when playback stops)
func (sm *StateManager) ClearTrack() {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.Track = nil
	sm.state.IsPlaying = false
	sm.state.IsPaused = false
	sm.state.Position = 0
	sm.state.TotalDuration = 0
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// Subscribe adds a listener for state changes
func (sm *StateManager) Subscribe() <-chan *State {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	ch := make(chan *State, 10) // Buffered channel to prevent blocking
	sm.listeners = append(sm.listeners, ch)
	return ch
}

// Unsubscribe removes a listener (call this when done to prevent memory leaks)
func (sm *StateManager) Unsubscribe(ch <-chan *State) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for i, listener := range sm.listeners {
		if listener == ch {
			close(listener)
			sm.listeners = append(sm.listeners[:i], sm.listeners[i+1:]...)
			break
		}
	}
}

// notifyListeners sends state updates to all subscribers (must be called with lock held)
func (sm *StateManager) notifyListeners() {
	stateCopy := *sm.state
	for i, listener := range sm.listeners {
		select {
		case listener <- &stateCopy:
			// Successfully sent
		default:
			// Channel is full or closed, remove it
			close(listener)
			sm.listeners = append(sm.listeners[:i], sm.listeners[i+1:]...)
		}
	}
}
