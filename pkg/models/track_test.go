package models

import "testing"

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{secs: 0, want: "0:00"},
		{secs: 9, want: "0:09"},
		{secs: 59, want: "0:59"},
		{secs: 60, want: "1:00"},
		{secs: 125, want: "2:05"},
		{secs: 3600, want: "60:00"},
		{secs: -5, want: "0:00"},
	}

	for _, tt := range tests {
		if got := FormatSeconds(tt.secs); got != tt.want {
			t.Errorf("FormatSeconds(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestDisplayTime(t *testing.T) {
	readable := Track{Duration: 75}
	if got := readable.DisplayTime(); got != "1:15" {
		t.Errorf("DisplayTime() = %q, want 1:15", got)
	}

	broken := Track{Duration: 75, Unreadable: true}
	if got := broken.DisplayTime(); got != "--:--" {
		t.Errorf("DisplayTime() for unreadable track = %q, want --:--", got)
	}
}
