package models

import (
	"fmt"
	"time"
)

// Track represents an audio file discovered in the music library.
type Track struct {
	Path       string    `json:"-"` // absolute path, not exposed to clients
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	Duration   int       `json:"duration"` // in seconds, 0 when unknown
	FileSize   int64     `json:"fileSize"`
	ModTime    time.Time `json:"modTime"`
	Unreadable bool      `json:"unreadable"` // could not be opened or decoded
}

// DisplayTime formats the track duration as m:ss, or "--:--" for
// unreadable tracks whose duration could not be determined.
func (t Track) DisplayTime() string {
	if t.Unreadable {
		return "--:--"
	}
	return FormatSeconds(t.Duration)
}

// FormatSeconds renders a second count as m:ss.
func FormatSeconds(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
