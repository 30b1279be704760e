// Package soundcard implements driver.SDRDriver over a local audio input
// device via gordonklaus/portaudio, for the "soundcard SDR" front-end used
// by direct-sampling/SSB-downconverted receivers that present as a sound
// card (spec.md §4.3, §6.1).
package soundcard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/pclov3r/iqtool/internal/driver"
	"github.com/pclov3r/iqtool/internal/ringbuf"
	"github.com/pclov3r/iqtool/internal/sampleformat"
)

// Driver captures a stereo (I/Q) input stream from a portaudio device and
// frames it onto a FramedRingBuffer as the Capture stage's producer
// (spec.md §4.3). Samples are pulled with blocking stream.Read calls on a
// portaudio stream; the framing itself never blocks: WriteInterleavedChunk
// drops the frame whole on overrun rather than stalling the read loop.
type Driver struct {
	deviceName string
	sampleRate float64
	frameSize  int // samples (frames) per stream.Read block

	mu      sync.Mutex
	stopped bool
	stream  *portaudio.Stream
}

// New builds a Driver for the named input device (empty = default input
// device) at sampleRate.
func New(deviceName string, sampleRate float64, frameSize int) *Driver {
	if frameSize <= 0 {
		frameSize = 4096
	}
	return &Driver{deviceName: deviceName, sampleRate: sampleRate, frameSize: frameSize}
}

func (d *Driver) Validate() error {
	if d.sampleRate <= 0 {
		return fmt.Errorf("soundcard: sample rate must be positive")
	}
	return nil
}

func (d *Driver) Initialize() (driver.InitResult, error) {
	if err := portaudio.Initialize(); err != nil {
		return driver.InitResult{}, fmt.Errorf("soundcard: portaudio init: %w", err)
	}
	return driver.InitResult{
		Format:             sampleformat.CS16,
		BytesPerSamplePair: sampleformat.CS16.BytesPerSamplePair(),
		SampleRateHz:       d.sampleRate,
	}, nil
}

// Run opens a stereo input stream and blocks, writing one DATA frame per
// stream.Read buffer until Stop is called.
func (d *Driver) Run(rb *ringbuf.FramedRingBuffer, hb *driver.Heartbeat) error {
	dev, err := d.resolveDevice()
	if err != nil {
		return err
	}

	buf := make([]int16, d.frameSize*2) // interleaved stereo I/Q
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 2,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      d.sampleRate,
		FramesPerBuffer: d.frameSize,
	}

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return fmt.Errorf("soundcard: opening stream: %w", err)
	}
	d.mu.Lock()
	d.stream = stream
	d.mu.Unlock()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("soundcard: starting stream: %w", err)
	}
	defer stream.Close()

	payload := make([]byte, len(buf)*2)
	for {
		if d.isStopped() {
			rb.SignalEndOfStream()
			return nil
		}
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				rb.WriteReset()
				continue
			}
			rb.SignalEndOfStream()
			return fmt.Errorf("soundcard: stream read: %w", err)
		}
		for i, v := range buf {
			binary.LittleEndian.PutUint16(payload[i*2:i*2+2], uint16(v))
		}
		rb.WriteInterleavedChunk(sampleformat.CS16, payload)
		hb.Touch(time.Now())
	}
}

func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.stream != nil {
		d.stream.Abort()
	}
}

func (d *Driver) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

func (d *Driver) Cleanup() error {
	return portaudio.Terminate()
}

func (d *Driver) HasKnownLength() bool { return false }

func (d *Driver) SummaryInfo() string {
	return fmt.Sprintf("soundcard %q: rate=%.0fHz frame=%d", d.deviceName, d.sampleRate, d.frameSize)
}

func (d *Driver) resolveDevice() (*portaudio.DeviceInfo, error) {
	if d.deviceName == "" {
		hostapi, err := portaudio.DefaultHostApi()
		if err != nil {
			return nil, fmt.Errorf("soundcard: default host API: %w", err)
		}
		if hostapi.DefaultInputDevice == nil {
			return nil, fmt.Errorf("soundcard: no default input device")
		}
		return hostapi.DefaultInputDevice, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("soundcard: enumerating devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name == d.deviceName && dev.MaxInputChannels >= 2 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("soundcard: input device %q not found", d.deviceName)
}
