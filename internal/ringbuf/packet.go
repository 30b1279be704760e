package ringbuf

import "github.com/pclov3r/iqtool/internal/sampleformat"

// FrameTag is the one-byte frame tag at the head of every packet on the
// FramedRingBuffer (spec.md §3/§4.2).
type FrameTag uint8

const (
	// Data carries {format_tag, payload_bytes (u32 LE), payload}.
	Data FrameTag = iota
	// Reset carries no payload; it is the in-band discontinuity marker
	// (spec.md §4.3/§4.4).
	Reset
)

// dataHeaderSize is the DATA frame header: 1 tag byte + 1 format byte + 4
// little-endian length bytes.
const dataHeaderSize = 1 + 1 + 4
const resetFrameSize = 1

// dataFrameSize returns the total on-wire size of a DATA frame carrying
// payloadLen bytes (a RESET frame is resetFrameSize).
func dataFrameSize(payloadLen int) int {
	return dataHeaderSize + payloadLen
}

// Packet is the decoded form of one frame read off the ring, used by the
// Reader (spec.md §4.4, §6.4).
type Packet struct {
	Tag     FrameTag
	Format  sampleformat.Format
	Payload []byte // valid only when Tag == Data; owned by the caller's destination buffer
}
