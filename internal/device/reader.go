package device

import (
	"io"
	"math"
	"sync"
)

// callbackReader adapts a block Callback to the io.Reader the output
// backend pulls from. Each refill invokes the callback once for a full
// block and encodes it as float32 little-endian bytes. All buffers are
// allocated up front; the steady-state Read path performs no allocation.
type callbackReader struct {
	mu       sync.Mutex
	cb       Callback
	block    []float32 // one block of interleaved samples
	buf      []byte    // encoded block
	off      int       // read offset into buf
	stopped  bool
	draining bool // deliver remaining bytes, then EOF
}

func newCallbackReader(cb Callback, blockSize, channels int) *callbackReader {
	samples := blockSize * channels
	return &callbackReader{
		cb:    cb,
		block: make([]float32, samples),
		buf:   make([]byte, 0, samples*4),
	}
}

func (r *callbackReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.off >= len(r.buf) {
		if r.stopped || r.draining {
			return 0, io.EOF
		}
		keep := r.cb(r.block)
		r.encodeBlock()
		if !keep {
			r.draining = true
		}
	}

	n := copy(p, r.buf[r.off:])
	r.off += n
	return n, nil
}

// encodeBlock serializes the current block into buf as float32 LE.
func (r *callbackReader) encodeBlock() {
	r.buf = r.buf[:len(r.block)*4]
	r.off = 0
	for i, s := range r.block {
		bits := math.Float32bits(s)
		r.buf[i*4] = byte(bits)
		r.buf[i*4+1] = byte(bits >> 8)
		r.buf[i*4+2] = byte(bits >> 16)
		r.buf[i*4+3] = byte(bits >> 24)
	}
}

// halt stops callback invocation. It blocks until any in-flight Read (and
// therefore any in-flight callback) has completed, which is the handshake
// Stream.Stop relies on.
func (r *callbackReader) halt() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}
