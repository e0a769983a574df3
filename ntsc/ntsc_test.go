package ntsc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"audiotv/pump"
	"audiotv/video"
)

// testConfig runs the reference microsecond timings at 2 MHz, which keeps a
// scanline at 127 samples.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleRateHz = 2_000_000
	return cfg
}

type memorySink struct {
	mutex   sync.Mutex
	samples []int16
	writes  int
	closed  int
	err     error
}

func (m *memorySink) Write(samples []int16) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.err != nil {
		return m.err
	}
	m.samples = append(m.samples, samples...)
	m.writes++
	return nil
}

func (m *memorySink) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed++
	return nil
}

func opener(s pump.Sink) DeviceOpener {
	return func(int) (pump.Sink, error) { return s, nil }
}

func TestInitTiming(t *testing.T) {
	h, err := Init(testConfig(), opener(&memorySink{}))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer h.Close()

	want := video.ScanlineTiming{
		SamplesPerScanline: 127,
		SamplesSyncTip:     9,
		SamplesBackPorch:   12,
		SamplesActiveVideo: 103,
		SamplesFrontPorch:  3,
	}
	if h.Timing() != want {
		t.Errorf("timing %+v, want %+v", h.Timing(), want)
	}
	if h.Rows() != video.FrameRows || h.Cols() != 103 {
		t.Errorf("framebuffer %dx%d", h.Rows(), h.Cols())
	}
	if h.State() != video.InitialState() {
		t.Errorf("initial state %v", h.State())
	}
}

func TestInitDefaultRateDegenerate(t *testing.T) {
	// At 192 kHz the 1.4 us front porch is a quarter of a sample.
	h, err := Init(DefaultConfig(), opener(&memorySink{}))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("got %v, want ErrConfig", err)
	}
	if h != nil {
		t.Fatal("handle returned with error")
	}
}

func TestInitMinSampleRate(t *testing.T) {
	for _, rate := range []int{MinSampleRate, 384000} {
		cfg := DefaultConfig()
		cfg.SampleRateHz = rate
		h, err := Init(cfg, opener(&memorySink{}))
		if err != nil {
			t.Fatalf("%d Hz: %v", rate, err)
		}
		if h.Timing().SamplesFrontPorch != 1 {
			t.Errorf("%d Hz: front porch %d samples", rate, h.Timing().SamplesFrontPorch)
		}
		if err := h.PumpOnce(); err != nil {
			t.Errorf("%d Hz: %v", rate, err)
		}
		h.Close()
	}

	cfg := DefaultConfig()
	cfg.SampleRateHz = MinSampleRate - 1
	if _, err := Init(cfg, opener(&memorySink{})); !errors.Is(err, ErrConfig) {
		t.Fatalf("%d Hz: got %v, want ErrConfig", cfg.SampleRateHz, err)
	}
}

func TestInitDeviceOpenError(t *testing.T) {
	var allocated *video.FrameBuffer
	allocateFrameBuffer = func(rows, cols int) (*video.FrameBuffer, error) {
		fb, err := video.AllocateFrameBuffer(rows, cols)
		allocated = fb
		return fb, err
	}
	defer func() { allocateFrameBuffer = video.AllocateFrameBuffer }()

	unreachable := errors.New("no such device")
	h, err := Init(testConfig(), func(int) (pump.Sink, error) { return nil, unreachable })
	if !errors.Is(err, ErrDeviceOpen) || !errors.Is(err, unreachable) {
		t.Fatalf("got %v, want ErrDeviceOpen wrapping %v", err, unreachable)
	}
	if h != nil {
		t.Fatal("handle returned with error")
	}
	if allocated == nil {
		t.Fatal("framebuffer never allocated")
	}
	if allocated.Rows() != 0 {
		t.Errorf("framebuffer still holds %d rows", allocated.Rows())
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close on failed init: %v", err)
	}
}

func TestInitDeviceConfigErrorUnchanged(t *testing.T) {
	cfgErr := errors.New("period size rejected")
	_, err := Init(testConfig(), func(int) (pump.Sink, error) {
		return nil, errors.Join(ErrDeviceConfig, cfgErr)
	})
	if !errors.Is(err, ErrDeviceConfig) || !errors.Is(err, cfgErr) {
		t.Fatalf("got %v", err)
	}
	if errors.Is(err, ErrDeviceOpen) {
		t.Errorf("config error reported as open error: %v", err)
	}
}

func TestInitNoOpener(t *testing.T) {
	if _, err := Init(testConfig(), nil); !errors.Is(err, ErrDeviceOpen) {
		t.Fatalf("got %v, want ErrDeviceOpen", err)
	}
}

func TestInitLineCountErrors(t *testing.T) {
	cfg := testConfig()
	cfg.VSyncLines = 0
	if _, err := Init(cfg, opener(&memorySink{})); !errors.Is(err, ErrConfig) {
		t.Fatalf("got %v, want ErrConfig", err)
	}
}

func TestSetPixelAndPump(t *testing.T) {
	sink := &memorySink{}
	cfg := testConfig()
	h, err := Init(cfg, opener(sink))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	if err := h.SetPixel(0, 10, 255); err != nil {
		t.Fatalf("SetPixel: %v", err)
	}
	if err := h.SetPixel(video.FrameRows, 0, 1); !errors.Is(err, ErrIndex) {
		t.Errorf("row %d: got %v", video.FrameRows, err)
	}
	if err := h.SetPixel(0, h.Cols(), 1); !errors.Is(err, ErrIndex) {
		t.Errorf("col %d: got %v", h.Cols(), err)
	}

	// blanking lines precede the first picture line
	blanking := cfg.VSyncLines + cfg.HSyncLines
	for i := 0; i <= blanking; i++ {
		if err := h.PumpOnce(); err != nil {
			t.Fatalf("PumpOnce %d: %v", i, err)
		}
	}
	timing := h.Timing()
	if got := len(sink.samples); got != 2*(blanking+1)*timing.SamplesPerScanline {
		t.Fatalf("%d samples after %d lines", got, blanking+1)
	}

	first := sink.samples[2*blanking*timing.SamplesPerScanline:]
	i := timing.SamplesSyncTip + timing.SamplesBackPorch + 10
	if first[2*i+1] != video.WhiteLevel {
		t.Errorf("pixel (0,10) emitted as %d, want %d", first[2*i+1], video.WhiteLevel)
	}
	if first[2*(i+1)+1] != video.BlackLevel {
		t.Errorf("pixel (0,11) emitted as %d, want %d", first[2*(i+1)+1], video.BlackLevel)
	}
	if m := h.Metrics(); m.Scanlines != uint64(blanking+1) {
		t.Errorf("metrics %+v", m)
	}
}

func TestRunStopClose(t *testing.T) {
	sink := &memorySink{}
	h, err := Init(testConfig(), opener(sink))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for h.Metrics().Scanlines < 600 {
		if time.Now().After(deadline) {
			t.Fatal("pump made no progress")
		}
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	per := 2 * h.Timing().SamplesPerScanline
	sink.mutex.Lock()
	n := len(sink.samples)
	sink.mutex.Unlock()
	if n%per != 0 {
		t.Errorf("%d samples is not a whole number of scanlines", n)
	}
	if uint64(n/per) != h.Metrics().Scanlines {
		t.Errorf("%d scanlines in sink, metrics say %d", n/per, h.Metrics().Scanlines)
	}

	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if sink.closed != 1 {
		t.Errorf("sink closed %d times", sink.closed)
	}
	if err := h.PumpOnce(); err == nil {
		t.Error("PumpOnce succeeded on a closed handle")
	}
}

func TestRunSinkError(t *testing.T) {
	broken := errors.New("underrun")
	h, err := Init(testConfig(), opener(&memorySink{err: broken}))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if err := h.Run(context.Background()); !errors.Is(err, ErrSink) || !errors.Is(err, broken) {
		t.Fatalf("got %v", err)
	}
}
