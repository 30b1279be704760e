package pipeline

import "time"

// QueueCapacity sizes every inter-stage queue (Reader→PreProcessor→...→
// Writer, and the side path to the I/Q optimizer). spec.md §4.1 mandates
// the bounded-FIFO abstraction but leaves each queue's concrete capacity
// unspecified; 64 gives several chunks of slack without materially eating
// into the 512-chunk pool's headroom.
const QueueCapacity = 64

// WriterHighWaterMark is IO_WRITER_BUFFER_HIGH_WATER_MARK (spec.md §6.5).
const WriterHighWaterMark = 0.95

// BackpressurePause is the fixed pause a fast-path file Reader takes when
// the Writer's byte-ring fill ratio (or, in raw_passthrough, its input
// queue's) exceeds WriterHighWaterMark (spec.md §4.1).
const BackpressurePause = 10 * time.Millisecond
