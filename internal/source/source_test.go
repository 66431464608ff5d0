package source

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes an interleaved 16-bit file whose sample values follow a
// ramp, so positions are recognizable after seeks.
func writeWAV(t *testing.T, path string, sampleRate, channels, frames int) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, frames*channels),
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			buf.Data[i*channels+c] = i % 1000
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize %s: %v", path, err)
	}
}

func TestOpenWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeWAV(t, path, 8000, 2, 4000)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if got := src.SampleRate(); got != 8000 {
		t.Errorf("SampleRate() = %d, want 8000", got)
	}
	if got := src.Channels(); got != 2 {
		t.Errorf("Channels() = %d, want 2", got)
	}
	if got := src.TotalFrames(); got != 4000 {
		t.Errorf("TotalFrames() = %d, want 4000", got)
	}
}

func TestReadFramesRamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeWAV(t, path, 8000, 1, 100)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	dst := make([]float32, 10)
	n, err := src.ReadFrames(dst)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if n != 10 {
		t.Fatalf("ReadFrames = %d frames, want 10", n)
	}
	for i := 0; i < n; i++ {
		want := float32(i) / 32768
		if math.Abs(float64(dst[i]-want)) > 1e-6 {
			t.Fatalf("sample %d = %v, want %v", i, dst[i], want)
		}
	}
	if got := src.Tell(); got != 10 {
		t.Errorf("Tell() = %d, want 10", got)
	}
}

func TestSeekThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeWAV(t, path, 8000, 1, 500)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if err := src.Seek(200); err != nil {
		t.Fatalf("Seek(200): %v", err)
	}
	dst := make([]float32, 1)
	if _, err := src.ReadFrames(dst); err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	want := float32(200) / 32768
	if math.Abs(float64(dst[0]-want)) > 1e-6 {
		t.Errorf("sample after Seek(200) = %v, want %v", dst[0], want)
	}

	// Clamped seeks
	if err := src.Seek(-5); err != nil {
		t.Fatalf("Seek(-5): %v", err)
	}
	if got := src.Tell(); got != 0 {
		t.Errorf("Tell() after Seek(-5) = %d, want 0", got)
	}
	if err := src.Seek(1 << 30); err != nil {
		t.Fatalf("Seek past end: %v", err)
	}
	if got := src.Tell(); got != 500 {
		t.Errorf("Tell() after seek past end = %d, want 500", got)
	}
}

func TestShortReadAtEndOfStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeWAV(t, path, 8000, 1, 20)

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	dst := make([]float32, 64)
	n, err := src.ReadFrames(dst)
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if n != 20 {
		t.Errorf("ReadFrames = %d frames, want short read of 20", n)
	}

	n, err = src.ReadFrames(dst)
	if err != nil {
		t.Fatalf("ReadFrames at EOF: %v", err)
	}
	if n != 0 {
		t.Errorf("ReadFrames at EOF = %d frames, want 0", n)
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	junk := filepath.Join(dir, "junk.wav")
	if err := os.WriteFile(junk, []byte("not audio"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "nope.wav")},
		{name: "unsupported extension", path: filepath.Join(dir, "song.ogg")},
		{name: "corrupt header", path: junk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrUnreadableFile) {
				t.Errorf("error = %v, want ErrUnreadableFile", err)
			}
		})
	}
}
