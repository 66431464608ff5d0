package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces interleaved 16-bit little-endian stereo, so one
// frame is a fixed four bytes of decoded output.
const (
	mp3Channels      = 2
	mp3BytesPerFrame = 4
)

// mp3Source streams MP3 files through go-mp3's seekable PCM view.
type mp3Source struct {
	f     *os.File
	dec   *mp3.Decoder
	total int64 // frames
	pos   int64 // frame cursor
	buf   []byte
}

func openMP3(path string) (*mp3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	length := dec.Length()
	if length < 0 {
		f.Close()
		return nil, fmt.Errorf("%w: mp3 stream length unavailable", ErrUnreadableFile)
	}

	return &mp3Source{
		f:     f,
		dec:   dec,
		total: length / mp3BytesPerFrame,
	}, nil
}

func (s *mp3Source) SampleRate() int    { return s.dec.SampleRate() }
func (s *mp3Source) Channels() int      { return mp3Channels }
func (s *mp3Source) TotalFrames() int64 { return s.total }

func (s *mp3Source) ReadFrames(dst []float32) (int, error) {
	want := len(dst) / mp3Channels
	need := want * mp3BytesPerFrame
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	b := s.buf[:need]

	n, err := io.ReadFull(s.dec, b)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		// Deliver whatever decoded cleanly; the caller treats the short
		// read as end of stream.
		frames := n / mp3BytesPerFrame
		s.decodeInto(dst, b[:frames*mp3BytesPerFrame])
		s.pos += int64(frames)
		return frames, err
	}

	frames := n / mp3BytesPerFrame
	s.decodeInto(dst, b[:frames*mp3BytesPerFrame])
	s.pos += int64(frames)
	return frames, nil
}

// decodeInto converts 16-bit little-endian PCM bytes to float32 samples.
func (s *mp3Source) decodeInto(dst []float32, b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		v := int16(binary.LittleEndian.Uint16(b[i:]))
		dst[i/2] = float32(v) / 32768.0
	}
}

func (s *mp3Source) Seek(frame int64) error {
	frame = clampFrame(frame, s.total)
	if _, err := s.dec.Seek(frame*mp3BytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("mp3 seek: %w", err)
	}
	s.pos = frame
	return nil
}

func (s *mp3Source) Tell() int64 { return s.pos }

func (s *mp3Source) Close() error {
	return s.f.Close()
}
