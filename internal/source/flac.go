package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

// flacSource streams FLAC files frame by frame via mewkiz/flac. Decoded
// blocks are interleaved into a pending buffer; seeks land on the nearest
// preceding FLAC frame boundary and the remainder is skipped sample-exact.
type flacSource struct {
	f          *os.File
	stream     *flac.Stream
	sampleRate int
	channels   int
	scale      float32
	total      int64
	pos        int64     // frame cursor
	pending    []float32 // decoded but undelivered interleaved samples
	skip       int64     // frames to drop after a coarse stream seek
}

func openFLAC(path string) (*flacSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	info := stream.Info
	if info.SampleRate == 0 || info.NChannels == 0 || info.NSamples == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: flac stream missing sample info", ErrUnreadableFile)
	}

	return &flacSource{
		f:          f,
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
		scale:      float32(int64(1) << (info.BitsPerSample - 1)),
		total:      int64(info.NSamples),
	}, nil
}

func (s *flacSource) SampleRate() int    { return s.sampleRate }
func (s *flacSource) Channels() int      { return s.channels }
func (s *flacSource) TotalFrames() int64 { return s.total }

func (s *flacSource) ReadFrames(dst []float32) (int, error) {
	want := len(dst) / s.channels
	filled := 0

	for filled < want {
		if len(s.pending) == 0 {
			if err := s.decodeNext(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				s.pos += int64(filled)
				return filled, err
			}
			continue
		}

		n := copy(dst[filled*s.channels:want*s.channels], s.pending)
		s.pending = s.pending[n:]
		filled += n / s.channels
	}

	s.pos += int64(filled)
	return filled, nil
}

// decodeNext parses one FLAC frame into the pending buffer, honoring any
// outstanding post-seek skip.
func (s *flacSource) decodeNext() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		return err
	}

	blockSize := int64(len(frame.Subframes[0].Samples))
	start := int64(0)
	if s.skip > 0 {
		if s.skip >= blockSize {
			s.skip -= blockSize
			return nil
		}
		start = s.skip
		s.skip = 0
	}

	n := int(blockSize - start)
	if cap(s.pending) < n*s.channels {
		s.pending = make([]float32, 0, n*s.channels)
	}
	s.pending = s.pending[:0]
	for i := start; i < blockSize; i++ {
		for ch := 0; ch < s.channels; ch++ {
			s.pending = append(s.pending, float32(frame.Subframes[ch].Samples[i])/s.scale)
		}
	}
	return nil
}

func (s *flacSource) Seek(frame int64) error {
	frame = clampFrame(frame, s.total)
	actual, err := s.stream.Seek(uint64(frame))
	if err != nil {
		return fmt.Errorf("flac seek: %w", err)
	}
	s.pending = s.pending[:0]
	s.skip = frame - int64(actual)
	if s.skip < 0 {
		s.skip = 0
	}
	s.pos = frame
	return nil
}

func (s *flacSource) Tell() int64 { return s.pos }

func (s *flacSource) Close() error {
	return s.f.Close()
}
