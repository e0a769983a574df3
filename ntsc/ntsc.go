// Package ntsc drives a monochrome NTSC composite signal out of a stereo
// audio device. The video waveform travels on the right channel; the left
// channel is silent.
//
// A Handle owns the framebuffer, the scanline encoder and the output sink:
//
//	cfg := ntsc.DefaultConfig()
//	cfg.SampleRateHz = 384000
//	h, err := ntsc.Init(cfg, sink.OpenOto)
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//	h.SetPixel(100, 200, 255)
//	err = h.Run(ctx)
package ntsc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"audiotv/pump"
	"audiotv/video"
)

// Error kinds, for use with errors.Is.
var (
	ErrConfig       = video.ErrConfig
	ErrAllocation   = video.ErrAllocation
	ErrIndex        = video.ErrIndex
	ErrConsistency  = video.ErrConsistency
	ErrDeviceOpen   = pump.ErrDeviceOpen
	ErrDeviceConfig = pump.ErrDeviceConfig
	ErrSink         = pump.ErrSink
)

// DefaultSampleRate is the rate requested from the output device. The
// default timing needs at least MinSampleRate; below that Init fails with
// ErrConfig.
const DefaultSampleRate = 192000

// MinSampleRate is the lowest rate at which the 1.4 µs front porch rounds
// to a whole sample.
const MinSampleRate = 357143

// Config holds everything needed to build a Handle.
type Config struct {
	SampleRateHz int

	ScanlineUs    float64
	SyncTipUs     float64
	BackPorchUs   float64
	ActiveVideoUs float64
	FrontPorchUs  float64

	VSyncLines   int
	HSyncLines   int
	Rows         int
	ChunkDivisor int
}

// DefaultConfig returns the NTSC timing at the default sample rate.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:  DefaultSampleRate,
		ScanlineUs:    video.ScanlineMicroseconds,
		SyncTipUs:     video.SyncTipMicroseconds,
		BackPorchUs:   video.BackPorchMicroseconds,
		ActiveVideoUs: video.ActiveVideoMicroseconds,
		FrontPorchUs:  video.FrontPorchMicroseconds,
		VSyncLines:    video.DefaultVSyncLines,
		HSyncLines:    video.DefaultHSyncLines,
		Rows:          video.FrameRows,
		ChunkDivisor:  pump.DefaultChunkDivisor,
	}
}

// Durations returns the segment durations of c.
func (c Config) Durations() video.Durations {
	return video.Durations{
		Scanline:    c.ScanlineUs,
		SyncTip:     c.SyncTipUs,
		BackPorch:   c.BackPorchUs,
		ActiveVideo: c.ActiveVideoUs,
		FrontPorch:  c.FrontPorchUs,
	}
}

// DeviceOpener opens the output sink at the given sample rate. Sinks that
// implement io.Closer are closed with the Handle.
type DeviceOpener func(sampleRateHz int) (pump.Sink, error)

var allocateFrameBuffer = video.AllocateFrameBuffer

// Handle is one running signal generator.
type Handle struct {
	cfg    Config
	timing video.ScanlineTiming
	fb     *video.FrameBuffer
	enc    *video.Encoder
	sink   pump.Sink
	pump   *pump.Pump

	run    sync.Mutex // held while scanlines are being emitted
	mutex  sync.Mutex
	closed bool
}

// Init derives the timing, allocates the framebuffer and opens the device.
// On failure everything acquired so far is released and no Handle is
// returned.
func Init(cfg Config, open DeviceOpener) (*Handle, error) {
	if cfg.Rows == 0 {
		cfg.Rows = video.FrameRows
	}
	if cfg.ChunkDivisor <= 0 {
		cfg.ChunkDivisor = pump.DefaultChunkDivisor
	}

	timing, err := video.ComputeTiming(cfg.SampleRateHz, cfg.Durations())
	if err != nil {
		return nil, err
	}
	lines := video.LineCounts{VSync: cfg.VSyncLines, HSync: cfg.HSyncLines, Rows: cfg.Rows}
	if err := lines.Validate(); err != nil {
		return nil, err
	}

	fb, err := allocateFrameBuffer(cfg.Rows, timing.SamplesActiveVideo)
	if err != nil {
		return nil, err
	}
	enc, err := video.NewEncoder(timing, fb, cfg.VSyncLines, cfg.HSyncLines)
	if err != nil {
		fb.Release()
		return nil, err
	}

	if open == nil {
		fb.Release()
		return nil, fmt.Errorf("%w: no output device", ErrDeviceOpen)
	}
	sink, err := open(cfg.SampleRateHz)
	if err != nil {
		fb.Release()
		if errors.Is(err, ErrDeviceOpen) || errors.Is(err, ErrDeviceConfig) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDeviceOpen, err)
	}

	log.Printf("ntsc: %d Hz, %v, %d+%d blanking lines, %d rows",
		cfg.SampleRateHz, timing, cfg.VSyncLines, cfg.HSyncLines, cfg.Rows)

	return &Handle{
		cfg:    cfg,
		timing: timing,
		fb:     fb,
		enc:    enc,
		sink:   sink,
		pump:   pump.New(enc, sink, pump.WithChunkDivisor(cfg.ChunkDivisor)),
	}, nil
}

// Config returns the configuration the handle was built with.
func (h *Handle) Config() Config { return h.cfg }

// Timing returns the segment sample counts.
func (h *Handle) Timing() video.ScanlineTiming { return h.timing }

// Rows returns the number of framebuffer rows.
func (h *Handle) Rows() int { return h.fb.Rows() }

// Cols returns the number of luma samples per row.
func (h *Handle) Cols() int { return h.fb.Cols() }

// SetPixel sets the luma of one framebuffer sample.
func (h *Handle) SetPixel(row, col int, value byte) error {
	return h.fb.SetPixel(row, col, value)
}

// SetRow replaces one framebuffer row.
func (h *Handle) SetRow(row int, luma []byte) error {
	return h.fb.SetRow(row, luma)
}

// Row returns a copy of one framebuffer row.
func (h *Handle) Row(row int) ([]byte, error) {
	return h.fb.Row(row)
}

// FrameBuffer exposes the framebuffer for picture sources.
func (h *Handle) FrameBuffer() *video.FrameBuffer { return h.fb }

// State returns the encoder position. It must not be called while Run is
// active; use Metrics from other goroutines.
func (h *Handle) State() video.ScanState { return h.enc.State() }

// Metrics returns the pump counters. Safe to call at any time.
func (h *Handle) Metrics() pump.Metrics { return h.pump.Metrics() }

func (h *Handle) isClosed() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.closed
}

// PumpOnce emits a single scanline.
func (h *Handle) PumpOnce() error {
	h.run.Lock()
	defer h.run.Unlock()
	if h.isClosed() {
		return fmt.Errorf("%w: handle closed", ErrSink)
	}
	return h.pump.Once()
}

// Run streams scanlines until Stop, cancellation of ctx or an error.
func (h *Handle) Run(ctx context.Context) error {
	h.run.Lock()
	defer h.run.Unlock()
	if h.isClosed() {
		return fmt.Errorf("%w: handle closed", ErrSink)
	}
	return h.pump.Run(ctx)
}

// Stop asks a running Run to return once the current scanline is written.
// Stop is permanent: a later Run returns immediately.
func (h *Handle) Stop() {
	h.pump.Stop()
}

// Close stops the pump, waits for the scanline in flight, then releases the
// sink and the framebuffer. Close is safe on a nil Handle and may be called
// more than once.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.pump.Stop()
	h.run.Lock()
	defer h.run.Unlock()

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var err error
	if c, ok := h.sink.(io.Closer); ok {
		err = c.Close()
	}
	h.fb.Release()
	return err
}
