package sdr

import (
	"io"
	"log"
	"sync"
	"sync/atomic"

	"audiotv/config"
	"audiotv/video"
)

// Device is the part of a HackRF device configured before transmitting.
type Device interface {
	SetFreq(freqHz uint64) error
	SetSampleRate(rate float64) error
	SetTXVGAGain(gain int) error
	SetAmpEnable(enable bool) error
}

// LevelToAmplitude maps a video level to carrier amplitude with negative
// modulation: blanking at full carrier, peak white at 12.5%.
func LevelToAmplitude(level int16) float64 {
	if level < 0 {
		level = 0
	}
	return 1.0 - float64(level)/float64(video.WhiteLevel)*(1.0-0.125)
}

// Transmitter queues the video channel of the pumped stream for the HackRF
// TX callback. Write blocks while the queue is full, so the radio paces the
// pump the way a sound card would.
type Transmitter struct {
	mutex   sync.Mutex
	notFull *sync.Cond
	ring    []int8
	head    int
	size    int
	closed  bool

	blank     int8
	underruns atomic.Uint64
}

// NewTransmitter creates a transmitter queueing up to depth samples.
func NewTransmitter(depth int) *Transmitter {
	if depth <= 0 {
		depth = 1 << 16
	}
	t := &Transmitter{
		ring:  make([]int8, depth),
		blank: int8(LevelToAmplitude(video.BlankLevel) * 127.0),
	}
	t.notFull = sync.NewCond(&t.mutex)
	return t
}

// Write implements pump.Sink. Only the right (video) channel is sent.
func (t *Transmitter) Write(samples []int16) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for i := 1; i < len(samples); i += 2 {
		for t.size == len(t.ring) && !t.closed {
			t.notFull.Wait()
		}
		if t.closed {
			return io.ErrClosedPipe
		}
		t.ring[(t.head+t.size)%len(t.ring)] = int8(LevelToAmplitude(samples[i]) * 127.0)
		t.size++
	}
	return nil
}

// Fill is the HackRF TX callback: it writes interleaved 8-bit I/Q with the
// amplitude on I. When the queue runs dry the rest of buf is blanking.
func (t *Transmitter) Fill(buf []byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	samplesToWrite := len(buf) / 2
	short := false
	for i := 0; i < samplesToWrite; i++ {
		iSample := t.blank
		if t.size > 0 {
			iSample = t.ring[t.head]
			t.head = (t.head + 1) % len(t.ring)
			t.size--
		} else {
			short = true
		}
		buf[i*2] = byte(iSample)
		buf[i*2+1] = 0
	}
	if short && !t.closed {
		t.underruns.Add(1)
	}
	t.notFull.Broadcast()
	return nil
}

// Underruns counts callbacks that found the queue short.
func (t *Transmitter) Underruns() uint64 {
	return t.underruns.Load()
}

// Close releases any blocked Write.
func (t *Transmitter) Close() error {
	t.mutex.Lock()
	t.closed = true
	t.mutex.Unlock()
	t.notFull.Broadcast()
	return nil
}

// Configure tunes an open device for transmission of the composite signal.
func Configure(dev Device, cfg *config.Config) error {
	txFrequencyHz := uint64(cfg.Frequency * 1_000_000)

	if err := dev.SetFreq(txFrequencyHz); err != nil {
		return err
	}
	if err := dev.SetSampleRate(float64(cfg.SampleRate)); err != nil {
		return err
	}
	if err := dev.SetTXVGAGain(cfg.Gain); err != nil {
		return err
	}
	if err := dev.SetAmpEnable(false); err != nil {
		return err
	}

	log.Printf("Transmitting on %.3f MHz (Sample Rate: %.1f Msps, gain %d)...",
		float64(txFrequencyHz)/1e6, float64(cfg.SampleRate)/1e6, cfg.Gain)
	return nil
}
