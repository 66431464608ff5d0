package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// Oto is the production Device backed by ebitengine/oto. The oto context is
// process-wide and cannot be reinitialized, so the first stream's format
// wins; later format changes are logged and played through the existing
// context.
type Oto struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
	log        *logrus.Logger
}

// NewOto creates an Oto device.
func NewOto(log *logrus.Logger) *Oto {
	return &Oto{log: log}
}

// OpenStream implements Device.
func (d *Oto) OpenStream(sampleRate, channels, blockSize int, cb Callback, onErr ErrorFunc) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceFailed, err)
		}
		<-readyChan

		d.ctx = ctx
		d.sampleRate = sampleRate
		d.channels = channels
		d.log.WithFields(logrus.Fields{
			"sample_rate": sampleRate,
			"channels":    channels,
		}).Info("Audio output initialized")
	} else if d.sampleRate != sampleRate || d.channels != channels {
		d.log.WithFields(logrus.Fields{
			"have_rate": d.sampleRate,
			"want_rate": sampleRate,
			"have_ch":   d.channels,
			"want_ch":   channels,
		}).Warn("Audio format change requested but output context cannot be reinitialized")
	}

	reader := newCallbackReader(cb, blockSize, channels)
	player := d.ctx.NewPlayer(reader)

	return &otoStream{
		player: player,
		reader: reader,
		onErr:  onErr,
		quit:   make(chan struct{}),
	}, nil
}

// otoStream wraps one oto player pulling from a callbackReader.
type otoStream struct {
	player *oto.Player
	reader *callbackReader
	onErr  ErrorFunc

	mu      sync.Mutex
	started bool
	closed  bool
	quit    chan struct{}
}

func (s *otoStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return nil
	}
	s.started = true
	s.player.Play()
	go s.watch()
	return nil
}

// watch polls the player for device-level errors until the stream stops.
func (s *otoStream) watch() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			if err := s.player.Err(); err != nil {
				if s.onErr != nil {
					s.onErr(fmt.Errorf("%w: %v", ErrDeviceFailed, err))
				}
				return
			}
		}
	}
}

func (s *otoStream) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.quit)
	s.mu.Unlock()

	// Block until any in-flight callback has finished, then detach the
	// player so no further reads occur.
	s.reader.halt()
	return s.player.Close()
}

func (s *otoStream) Close() error {
	return s.Stop()
}
