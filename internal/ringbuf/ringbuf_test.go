package ringbuf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pclov3r/iqtool/internal/sampleformat"
)

func TestWriteReadDataFrameRoundtrip(t *testing.T) {
	r := New(4096, nil)
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.True(t, r.WriteInterleavedChunk(sampleformat.CS16, payload))

	dst := make([]byte, 64)
	pkt, err := r.ReadPacket(dst)
	require.NoError(t, err)
	assert.Equal(t, Data, pkt.Tag)
	assert.Equal(t, sampleformat.CS16, pkt.Format)
	assert.Equal(t, payload, pkt.Payload)
}

func TestWriteResetFrame(t *testing.T) {
	r := New(64, nil)
	require.True(t, r.WriteReset())

	dst := make([]byte, 16)
	pkt, err := r.ReadPacket(dst)
	require.NoError(t, err)
	assert.Equal(t, Reset, pkt.Tag)
}

func TestFramesPreserveOrder(t *testing.T) {
	r := New(4096, nil)
	for i := 0; i < 10; i++ {
		if i == 5 {
			require.True(t, r.WriteReset())
			continue
		}
		require.True(t, r.WriteInterleavedChunk(sampleformat.CU8, []byte{byte(i)}))
	}

	dst := make([]byte, 16)
	for i := 0; i < 10; i++ {
		pkt, err := r.ReadPacket(dst)
		require.NoError(t, err)
		if i == 5 {
			assert.Equal(t, Reset, pkt.Tag)
			continue
		}
		require.Len(t, pkt.Payload, 1)
		assert.Equal(t, byte(i), pkt.Payload[0])
	}
}

func TestOverrunDropsWholeFrame(t *testing.T) {
	r := New(dataHeaderSize+4, nil) // room for exactly one 4-byte-payload frame
	require.True(t, r.WriteInterleavedChunk(sampleformat.CU8, []byte{1, 2, 3, 4}))
	assert.False(t, r.WriteInterleavedChunk(sampleformat.CU8, []byte{5, 6, 7, 8}), "second frame should overrun and be dropped whole")
	assert.Equal(t, uint64(1), r.OverrunCount())

	dst := make([]byte, 16)
	pkt, err := r.ReadPacket(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, pkt.Payload, "no partial frame should ever be observable")
}

func TestReadBlocksUntilWriteThenEndOfStream(t *testing.T) {
	r := New(4096, nil)
	done := make(chan error, 1)
	go func() {
		dst := make([]byte, 16)
		_, err := r.ReadPacket(dst)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("read should have blocked on an empty buffer")
	case <-time.After(30 * time.Millisecond):
	}

	r.SignalEndOfStream()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrEndOfStream)
	case <-time.After(time.Second):
		t.Fatal("read should unblock once end-of-stream is signalled")
	}
}

func TestShutdownWakesBlockedReaderImmediately(t *testing.T) {
	r := New(4096, nil)
	done := make(chan error, 1)
	go func() {
		dst := make([]byte, 16)
		_, err := r.ReadPacket(dst)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	r.SignalShutdown()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrEndOfStream)
	case <-time.After(time.Second):
		t.Fatal("shutdown should wake the blocked reader")
	}
}

func TestDeinterleavedChunkEncodesFormat(t *testing.T) {
	r := New(4096, nil)
	i := []float32{0.5, -0.5}
	q := []float32{0.25, -0.25}
	require.True(t, r.WriteDeinterleavedChunk(sampleformat.CF32, i, q, 2))

	dst := make([]byte, 64)
	pkt, err := r.ReadPacket(dst)
	require.NoError(t, err)
	require.Len(t, pkt.Payload, 2*8)

	dec := sampleformat.DecoderFor(sampleformat.CF32)
	s0 := dec(pkt.Payload[0:8])
	assert.InDelta(t, 0.5, real(s0), 1e-6)
	assert.InDelta(t, 0.25, imag(s0), 1e-6)
}
