package video

import (
	"errors"
	"fmt"
	"math"
)

// Error kinds of the video core.
var (
	ErrConfig      = errors.New("invalid configuration")
	ErrAllocation  = errors.New("framebuffer allocation failed")
	ErrIndex       = errors.New("index out of range")
	ErrConsistency = errors.New("scan state inconsistent with framebuffer")
)

// Timing constants for a scanline, in microseconds.
const (
	ScanlineMicroseconds    = 63.5
	SyncTipMicroseconds     = 4.7
	BackPorchMicroseconds   = 5.9
	ActiveVideoMicroseconds = 51.5
	FrontPorchMicroseconds  = 1.4
)

// microsecond is the seconds-per-microsecond scale used for every segment.
const microsecond = 1e-6

// Durations holds the length of each scanline segment in microseconds.
type Durations struct {
	Scanline    float64
	SyncTip     float64
	BackPorch   float64
	ActiveVideo float64
	FrontPorch  float64
}

// DefaultDurations returns the NTSC segment durations.
func DefaultDurations() Durations {
	return Durations{
		Scanline:    ScanlineMicroseconds,
		SyncTip:     SyncTipMicroseconds,
		BackPorch:   BackPorchMicroseconds,
		ActiveVideo: ActiveVideoMicroseconds,
		FrontPorch:  FrontPorchMicroseconds,
	}
}

// ScanlineTiming is the length of every scanline segment in stereo sample
// pairs. It is computed once and never modified.
type ScanlineTiming struct {
	SamplesPerScanline int
	SamplesSyncTip     int
	SamplesBackPorch   int
	SamplesActiveVideo int
	SamplesFrontPorch  int
}

// SegmentSum is the number of pairs covered by the four segments.
func (t ScanlineTiming) SegmentSum() int {
	return t.SamplesSyncTip + t.SamplesBackPorch + t.SamplesActiveVideo + t.SamplesFrontPorch
}

func (t ScanlineTiming) String() string {
	return fmt.Sprintf("%d samples/line (tip %d, back porch %d, active %d, front porch %d)",
		t.SamplesPerScanline, t.SamplesSyncTip, t.SamplesBackPorch, t.SamplesActiveVideo, t.SamplesFrontPorch)
}

type segment struct {
	name string
	us   float64
	dst  *int
}

// ComputeTiming converts segment durations to sample counts at the given rate.
func ComputeTiming(sampleRateHz int, us Durations) (ScanlineTiming, error) {
	if sampleRateHz <= 0 {
		return ScanlineTiming{}, fmt.Errorf("%w: sample rate %d Hz", ErrConfig, sampleRateHz)
	}

	var t ScanlineTiming
	segments := []segment{
		{"scanline", us.Scanline, &t.SamplesPerScanline},
		{"sync tip", us.SyncTip, &t.SamplesSyncTip},
		{"back porch", us.BackPorch, &t.SamplesBackPorch},
		{"active video", us.ActiveVideo, &t.SamplesActiveVideo},
		{"front porch", us.FrontPorch, &t.SamplesFrontPorch},
	}

	for _, s := range segments {
		if math.IsNaN(s.us) || math.IsInf(s.us, 0) || s.us <= 0 {
			return ScanlineTiming{}, fmt.Errorf("%w: %s duration %v us", ErrConfig, s.name, s.us)
		}
		n := math.Round(s.us * microsecond * float64(sampleRateHz))
		if n < 1 {
			return ScanlineTiming{}, fmt.Errorf("%w: %s of %v us is 0 samples at %d Hz", ErrConfig, s.name, s.us, sampleRateHz)
		}
		if n > math.MaxInt32 {
			return ScanlineTiming{}, fmt.Errorf("%w: %s of %v us overflows at %d Hz", ErrConfig, s.name, s.us, sampleRateHz)
		}
		*s.dst = int(n)
	}

	if d := t.SegmentSum() - t.SamplesPerScanline; d < -1 || d > 1 {
		return ScanlineTiming{}, fmt.Errorf("%w: segments sum to %d samples, scanline is %d", ErrConfig, t.SegmentSum(), t.SamplesPerScanline)
	}
	return t, nil
}
