package source

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// wavSource reads WAV files. The full PCM chunk is decoded up front into an
// interleaved float buffer, so reads and seeks are plain slice arithmetic.
type wavSource struct {
	data       []float32 // interleaved, normalized to [-1, 1]
	sampleRate int
	channels   int
	pos        int64 // frame cursor
}

func openWAV(path string) (*wavSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav file", ErrUnreadableFile)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if channels < 1 || dec.SampleRate == 0 || bitDepth < 8 {
		return nil, fmt.Errorf("%w: invalid wav header", ErrUnreadableFile)
	}

	scale := float32(int64(1) << (bitDepth - 1))
	data := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		data[i] = float32(v) / scale
	}
	// Drop any trailing partial frame
	if rem := len(data) % channels; rem != 0 {
		data = data[:len(data)-rem]
	}

	return &wavSource{
		data:       data,
		sampleRate: int(dec.SampleRate),
		channels:   channels,
	}, nil
}

func (s *wavSource) SampleRate() int    { return s.sampleRate }
func (s *wavSource) Channels() int      { return s.channels }
func (s *wavSource) TotalFrames() int64 { return int64(len(s.data) / s.channels) }

func (s *wavSource) ReadFrames(dst []float32) (int, error) {
	want := len(dst) / s.channels
	avail := s.TotalFrames() - s.pos
	if int64(want) > avail {
		want = int(avail)
	}
	if want <= 0 {
		return 0, nil
	}
	start := s.pos * int64(s.channels)
	copy(dst, s.data[start:start+int64(want*s.channels)])
	s.pos += int64(want)
	return want, nil
}

func (s *wavSource) Seek(frame int64) error {
	s.pos = clampFrame(frame, s.TotalFrames())
	return nil
}

func (s *wavSource) Tell() int64 { return s.pos }

func (s *wavSource) Close() error {
	s.data = nil
	return nil
}
