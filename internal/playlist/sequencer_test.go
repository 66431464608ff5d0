package playlist

import (
	"testing"

	"github.com/sirupsen/logrus"

	"rubato/internal/library"
	"rubato/pkg/models"
)

func snapshotOf(paths ...string) *library.Snapshot {
	tracks := make([]models.Track, len(paths))
	for i, p := range paths {
		tracks[i] = models.Track{Path: p, Title: p}
	}
	return library.NewSnapshot(tracks)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{input: "none", want: LoopNone},
		{input: "song", want: LoopSong},
		{input: "list", want: LoopList},
		{input: "shuffle", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMode(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.String() != tt.input {
				t.Errorf("Mode.String() = %q, want %q", got.String(), tt.input)
			}
		})
	}
}

func TestNextAction(t *testing.T) {
	abc := snapshotOf("/m/a.mp3", "/m/b.mp3", "/m/c.mp3")

	tests := []struct {
		name     string
		mode     Mode
		finished string
		snap     *library.Snapshot
		wantKind ActionKind
		wantPath string
	}{
		{
			name:     "none stops",
			mode:     LoopNone,
			finished: "/m/b.mp3",
			snap:     abc,
			wantKind: ActionStop,
		},
		{
			name:     "song replays the same track",
			mode:     LoopSong,
			finished: "/m/b.mp3",
			snap:     abc,
			wantKind: ActionReplay,
			wantPath: "/m/b.mp3",
		},
		{
			name:     "list advances to the next track",
			mode:     LoopList,
			finished: "/m/a.mp3",
			snap:     abc,
			wantKind: ActionAdvance,
			wantPath: "/m/b.mp3",
		},
		{
			name:     "list wraps from last to first",
			mode:     LoopList,
			finished: "/m/c.mp3",
			snap:     abc,
			wantKind: ActionAdvance,
			wantPath: "/m/a.mp3",
		},
		{
			name:     "list drops notification for a removed track",
			mode:     LoopList,
			finished: "/m/gone.mp3",
			snap:     abc,
			wantKind: ActionStop,
		},
		{
			name:     "list with empty library stops",
			mode:     LoopList,
			finished: "/m/a.mp3",
			snap:     nil,
			wantKind: ActionStop,
		},
		{
			name:     "single-track list loops onto itself",
			mode:     LoopList,
			finished: "/m/only.flac",
			snap:     snapshotOf("/m/only.flac"),
			wantKind: ActionAdvance,
			wantPath: "/m/only.flac",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextAction(tt.mode, tt.finished, tt.snap)
			if got.Kind != tt.wantKind {
				t.Fatalf("NextAction kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if tt.wantPath != "" && got.Track.Path != tt.wantPath {
				t.Errorf("NextAction track = %q, want %q", got.Track.Path, tt.wantPath)
			}
		})
	}
}

type fakeTransport struct {
	played []string
	err    error
}

func (f *fakeTransport) Play(track models.Track) error {
	f.played = append(f.played, track.Path)
	return f.err
}

type fakePublisher struct {
	modes []string
}

func (f *fakePublisher) UpdateLoopMode(mode string) {
	f.modes = append(f.modes, mode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

// libraryWith builds a Library whose current snapshot contains the given
// paths, without touching the filesystem.
func libraryWith(t *testing.T, paths ...string) *library.Library {
	t.Helper()
	lib := library.New(t.TempDir(), nil, nil, quietLogger())
	lib.SetSnapshot(snapshotOf(paths...))
	return lib
}

func TestSequencerHandleFinished(t *testing.T) {
	t.Run("mode change takes effect at the next completion", func(t *testing.T) {
		transport := &fakeTransport{}
		seq := NewSequencer(libraryWith(t, "/m/a.mp3", "/m/b.mp3"), transport, nil, LoopNone, quietLogger())

		seq.HandleFinished("/m/a.mp3")
		if len(transport.played) != 0 {
			t.Fatalf("loop none should not play anything, got %v", transport.played)
		}

		seq.SetMode(LoopList)
		seq.HandleFinished("/m/a.mp3")
		if len(transport.played) != 1 || transport.played[0] != "/m/b.mp3" {
			t.Fatalf("loop list should advance to b, got %v", transport.played)
		}
	})

	t.Run("song mode replays", func(t *testing.T) {
		transport := &fakeTransport{}
		seq := NewSequencer(libraryWith(t, "/m/a.mp3"), transport, nil, LoopSong, quietLogger())

		seq.HandleFinished("/m/a.mp3")
		if len(transport.played) != 1 || transport.played[0] != "/m/a.mp3" {
			t.Fatalf("loop song should replay a, got %v", transport.played)
		}
	})

	t.Run("loop mode changes are published", func(t *testing.T) {
		pub := &fakePublisher{}
		seq := NewSequencer(libraryWith(t), &fakeTransport{}, pub, LoopNone, quietLogger())
		seq.SetMode(LoopSong)
		seq.SetMode(LoopList)

		want := []string{"none", "song", "list"}
		if len(pub.modes) != len(want) {
			t.Fatalf("published modes = %v, want %v", pub.modes, want)
		}
		for i := range want {
			if pub.modes[i] != want[i] {
				t.Fatalf("published modes = %v, want %v", pub.modes, want)
			}
		}
	})
}
