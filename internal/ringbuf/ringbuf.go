// Package ringbuf implements the FramedRingBuffer (spec.md §4.2): a
// fixed-capacity byte-level SPSC ring carrying length-prefixed packets from
// a driver callback (the sole producer) to the Reader (the sole consumer).
//
// Grounded conceptually on the head/tail-cursor, no-allocation-on-the-hot-path
// SPSC ring shape shared by hz.tools/sdr's stream.RingBuffer
// (other_examples: 29e80933_hztools-go-sdr__stream-ring) and the
// submission/completion ring mechanics of the zero-dependency
// ehrlich-b-go-iouring / ehrlich-b-go-ublk repos; implemented here with
// stdlib sync primitives only (SPEC_FULL.md §B.1) since no pack repo wraps
// a third-party library for exactly this shape.
package ringbuf

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/pclov3r/iqtool/internal/sampleformat"
)

// DefaultSDRCapacityBytes is IO_SDR_INPUT_BUFFER_BYTES (spec.md §6.5).
const DefaultSDRCapacityBytes = 256 * 1024 * 1024

// ErrEndOfStream is returned by ReadPacket once the buffer has been fully
// drained after SignalEndOfStream or SignalShutdown.
var ErrEndOfStream = errors.New("ringbuf: end of stream")

// FramedRingBuffer is a strict byte FIFO carrying whole frames only: no
// frame is ever read partially (spec.md §3 invariant), and an over-capacity
// frame is dropped whole rather than split (spec.md §4.2).
type FramedRingBuffer struct {
	mu       sync.Mutex
	notEmpty sync.Cond

	buf      []byte
	readPos  int
	writePos int
	used     int

	endOfStream bool
	shutdown    bool

	overrunCount uint64
	log          *log.Logger
}

// New builds a FramedRingBuffer with the given byte capacity. logger may be
// nil, in which case overrun events are not logged (used by tests).
func New(capacityBytes int, logger *log.Logger) *FramedRingBuffer {
	if capacityBytes < 1 {
		panic("ringbuf: capacity must be >= 1")
	}
	r := &FramedRingBuffer{buf: make([]byte, capacityBytes), log: logger}
	r.notEmpty.L = &r.mu
	return r
}

// OverrunCount reports how many frames have been dropped whole for lack of
// space, for progress reporting and tests.
func (r *FramedRingBuffer) OverrunCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overrunCount
}

// WriteReset emits a RESET frame (spec.md §6.4's write_reset_event). It is
// dropped whole, like any other frame, if there isn't room.
func (r *FramedRingBuffer) WriteReset() bool {
	return r.writeFrame(Reset, sampleformat.Invalid, nil)
}

// WriteInterleavedChunk emits a DATA frame carrying pre-interleaved,
// already-encoded wire bytes (spec.md §6.4's write_interleaved_chunk).
func (r *FramedRingBuffer) WriteInterleavedChunk(format sampleformat.Format, payload []byte) bool {
	return r.writeFrame(Data, format, payload)
}

// WriteDeinterleavedChunk encodes count samples from separate I/Q float32
// slices into format's wire representation and emits one DATA frame
// (spec.md §6.4's write_deinterleaved_chunk). For real formats q is ignored
// sample-by-sample (encoded as zero).
func (r *FramedRingBuffer) WriteDeinterleavedChunk(format sampleformat.Format, i, q []float32, count int) bool {
	enc := sampleformat.EncoderFor(format)
	pairBytes := format.BytesPerSamplePair()
	payload := make([]byte, count*pairBytes)
	for n := 0; n < count; n++ {
		var qn float32
		if q != nil {
			qn = q[n]
		}
		enc(complex(i[n], qn), payload[n*pairBytes:(n+1)*pairBytes])
	}
	return r.WriteInterleavedChunk(format, payload)
}

func (r *FramedRingBuffer) writeFrame(tag FrameTag, format sampleformat.Format, payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown {
		return false
	}

	var total int
	if tag == Reset {
		total = resetFrameSize
	} else {
		total = dataFrameSize(len(payload))
	}

	if total > len(r.buf)-r.used {
		r.overrunCount++
		if r.log != nil {
			r.log.Warn("ringbuf: frame dropped, buffer overrun", "bytes", total, "used", r.used, "capacity", len(r.buf))
		}
		return false
	}

	r.pushLocked([]byte{byte(tag)})
	if tag == Data {
		var hdr [5]byte
		hdr[0] = byte(format)
		binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(payload)))
		r.pushLocked(hdr[:])
		r.pushLocked(payload)
	}
	r.used += total
	r.notEmpty.Signal()
	return true
}

// ReadPacket blocks until a complete frame is available, copies a DATA
// frame's payload into dst (which must be at least as large as the
// payload), and returns the decoded Packet. It returns ErrEndOfStream once
// the buffer is drained and end-of-stream or shutdown has been signalled.
func (r *FramedRingBuffer) ReadPacket(dst []byte) (Packet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.used == 0 && !r.endOfStream && !r.shutdown {
		r.notEmpty.Wait()
	}
	if r.used == 0 {
		return Packet{}, ErrEndOfStream
	}

	tagByte := r.peekLocked(1)[0]
	tag := FrameTag(tagByte)

	if tag == Reset {
		r.discardLocked(resetFrameSize)
		r.used -= resetFrameSize
		return Packet{Tag: Reset}, nil
	}

	hdr := r.peekAtLocked(1, 5)
	format := sampleformat.Format(hdr[0])
	payloadLen := int(binary.LittleEndian.Uint32(hdr[1:5]))

	if len(dst) < payloadLen {
		return Packet{}, errors.New("ringbuf: destination buffer too small for frame payload")
	}

	r.discardLocked(dataHeaderSize)
	r.popLocked(dst[:payloadLen])
	r.used -= dataFrameSize(payloadLen)

	return Packet{Tag: Data, Format: format, Payload: dst[:payloadLen]}, nil
}

// SignalEndOfStream marks a clean, driver-initiated end of input. Pending
// frames already buffered are still delivered by ReadPacket before it
// starts returning ErrEndOfStream.
func (r *FramedRingBuffer) SignalEndOfStream() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endOfStream = true
	r.notEmpty.Broadcast()
}

// SignalShutdown is the cooperative-cancel path (spec.md §5): it wakes the
// blocked reader immediately, without waiting for the buffer to drain
// first, matching every other queue's shutdown semantics.
func (r *FramedRingBuffer) SignalShutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
	r.notEmpty.Broadcast()
}

func (r *FramedRingBuffer) pushLocked(b []byte) {
	n := len(b)
	off := 0
	for n > 0 {
		space := len(r.buf) - r.writePos
		if space > n {
			space = n
		}
		copy(r.buf[r.writePos:r.writePos+space], b[off:off+space])
		r.writePos = (r.writePos + space) % len(r.buf)
		off += space
		n -= space
	}
}

func (r *FramedRingBuffer) popLocked(dst []byte) {
	n := len(dst)
	off := 0
	for n > 0 {
		avail := len(r.buf) - r.readPos
		if avail > n {
			avail = n
		}
		copy(dst[off:off+avail], r.buf[r.readPos:r.readPos+avail])
		r.readPos = (r.readPos + avail) % len(r.buf)
		off += avail
		n -= avail
	}
}

func (r *FramedRingBuffer) discardLocked(n int) {
	r.readPos = (r.readPos + n) % len(r.buf)
}

// peekLocked returns n bytes starting at readPos without advancing it.
func (r *FramedRingBuffer) peekLocked(n int) []byte {
	return r.peekAtLocked(0, n)
}

// peekAtLocked returns n bytes starting skip bytes past readPos, without
// advancing readPos. Used to read a DATA frame's header before deciding
// how much payload to copy.
func (r *FramedRingBuffer) peekAtLocked(skip, n int) []byte {
	tmp := make([]byte, n)
	pos := (r.readPos + skip) % len(r.buf)
	rem := n
	off := 0
	for rem > 0 {
		avail := len(r.buf) - pos
		if avail > rem {
			avail = rem
		}
		copy(tmp[off:off+avail], r.buf[pos:pos+avail])
		pos = (pos + avail) % len(r.buf)
		off += avail
		rem -= avail
	}
	return tmp
}
