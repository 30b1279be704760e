package agc

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRMSConvergesTowardTarget(t *testing.T) {
	eng := New(DX, 2_000_000)
	block := make([]complex64, 4096)
	for i := range block {
		block[i] = complex(0.05, 0)
	}

	var last []complex64
	for i := 0; i < 200; i++ {
		in := make([]complex64, len(block))
		copy(in, block)
		eng.Process(in)
		last = in
	}

	mag := cmplx.Abs(complex128(last[0]))
	assert.InDelta(t, dxTarget, mag, 0.05)
}

func TestLocalConvergesFasterThanDX(t *testing.T) {
	mkBlock := func() []complex64 {
		b := make([]complex64, 4096)
		for i := range b {
			b[i] = complex(0.05, 0)
		}
		return b
	}

	dx := New(DX, 2_000_000)
	local := New(Local, 2_000_000)

	var dxOut, localOut []complex64
	for i := 0; i < 10; i++ {
		dxOut = mkBlock()
		dx.Process(dxOut)
		localOut = mkBlock()
		local.Process(localOut)
	}

	dxErr := dxTarget - cmplx.Abs(complex128(dxOut[0]))
	localErr := localTarget - cmplx.Abs(complex128(localOut[0]))
	assert.Less(t, localErr, dxErr)
}

func TestDigitalNeverSilentDuringScan(t *testing.T) {
	eng := New(Digital, 48000).(*digital)
	block := make([]complex64, 4096)
	for i := range block {
		block[i] = complex(0.001, 0)
	}
	eng.Process(block)

	for _, v := range block {
		assert.Greater(t, cmplx.Abs(complex128(v)), 0.0)
	}
	assert.False(t, eng.locked)
}

func TestDigitalLocksAfterScanWindow(t *testing.T) {
	eng := New(Digital, 1000).(*digital) // scan window = 2000 samples

	block := make([]complex64, 500)
	for i := range block {
		block[i] = complex(0.2, 0)
	}
	for i := 0; i < 5; i++ {
		eng.Process(block)
	}
	assert.True(t, eng.locked)
	assert.Greater(t, eng.currentGain, 0.0)
}

func TestDigitalSoftClipRatchetsGainDown(t *testing.T) {
	eng := New(Digital, 1000).(*digital)
	eng.locked = true
	eng.currentGain = 10.0

	block := []complex64{complex(0.5, 0)}
	eng.Process(block)

	assert.Less(t, eng.currentGain, 10.0)
	assert.LessOrEqual(t, cmplx.Abs(complex128(block[0])), 1.0+1e-9)
}

func TestResetRestoresInitialState(t *testing.T) {
	eng := New(Digital, 48000).(*digital)
	eng.locked = true
	eng.currentGain = 5
	eng.Reset()
	assert.False(t, eng.locked)
	assert.Equal(t, peakMemorySeed, eng.peakMemory)
}
