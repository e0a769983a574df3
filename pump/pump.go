// Package pump streams scanlines from an encoder to an output sink.
package pump

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"audiotv/video"
)

// Error kinds of the output side.
var (
	ErrDeviceOpen   = errors.New("output device open failed")
	ErrDeviceConfig = errors.New("output device configuration failed")
	ErrSink         = errors.New("sink write failed")
)

// DefaultChunkDivisor splits each scanline into eighths, matching the
// device period of one eighth of a line.
const DefaultChunkDivisor = 8

// Sink consumes interleaved stereo samples, left then right. Write may
// block, and must not retain samples after it returns.
type Sink interface {
	Write(samples []int16) error
}

// LineSource produces one scanline per call, appended to dst.
type LineSource interface {
	Next(dst []int16) ([]int16, error)
}

// stateSource is implemented by sources that can report their scan position.
type stateSource interface {
	State() video.ScanState
}

// Metrics are the running totals of a pump. All fields are safe to read while
// the pump is running.
type Metrics struct {
	Scanlines uint64
	Chunks    uint64
	Pairs     uint64
	Field     video.Field
	Line      int
}

// Pump moves scanlines from a LineSource to a Sink, one whole scanline at a
// time.
type Pump struct {
	src     LineSource
	sink    Sink
	divisor int
	buf     []int16

	stop      atomic.Bool
	scanlines atomic.Uint64
	chunks    atomic.Uint64
	pairs     atomic.Uint64
	field     atomic.Int64
	line      atomic.Int64
}

// Option configures a Pump.
type Option func(*Pump)

// WithChunkDivisor sets how many chunks each scanline is split into.
func WithChunkDivisor(n int) Option {
	return func(p *Pump) {
		if n > 0 {
			p.divisor = n
		}
	}
}

// New creates a pump. Nothing is emitted until Once or Run is called.
func New(src LineSource, sink Sink, opts ...Option) *Pump {
	p := &Pump{
		src:     src,
		sink:    sink,
		divisor: DefaultChunkDivisor,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.recordState()
	return p
}

func (p *Pump) recordState() {
	if s, ok := p.src.(stateSource); ok {
		st := s.State()
		p.field.Store(int64(st.Field))
		p.line.Store(int64(st.LineInField))
	}
}

// Once emits exactly one scanline. Source errors are returned as they are;
// write errors wrap ErrSink.
func (p *Pump) Once() error {
	var err error
	p.buf, err = p.src.Next(p.buf[:0])
	if err != nil {
		return err
	}

	pairs := len(p.buf) / 2
	chunk := pairs / p.divisor
	if chunk == 0 {
		chunk = pairs
	}
	for start := 0; start < pairs; {
		end := start + chunk
		// the final chunk carries the remainder of the line
		if pairs-end < chunk {
			end = pairs
		}
		if err := p.sink.Write(p.buf[2*start : 2*end]); err != nil {
			return fmt.Errorf("%w: %w", ErrSink, err)
		}
		p.chunks.Add(1)
		p.pairs.Add(uint64(end - start))
		start = end
	}

	p.scanlines.Add(1)
	p.recordState()
	return nil
}

// Run emits scanlines until Stop is called, ctx is cancelled or an error
// occurs. Stop and cancellation take effect between scanlines, so a scanline
// that has started is always written in full. Run returns nil when stopped.
func (p *Pump) Run(ctx context.Context) error {
	for {
		if p.stop.Load() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := p.Once(); err != nil {
			return err
		}
	}
}

// Stop asks Run to return after the scanline in flight.
func (p *Pump) Stop() {
	p.stop.Store(true)
}

// Stopped reports whether Stop has been called.
func (p *Pump) Stopped() bool {
	return p.stop.Load()
}

// Metrics returns a snapshot of the counters.
func (p *Pump) Metrics() Metrics {
	return Metrics{
		Scanlines: p.scanlines.Load(),
		Chunks:    p.chunks.Load(),
		Pairs:     p.pairs.Load(),
		Field:     video.Field(p.field.Load()),
		Line:      int(p.line.Load()),
	}
}
