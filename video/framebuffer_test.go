package video

import (
	"errors"
	"sync"
	"testing"
)

func TestAllocateFrameBufferDefaults(t *testing.T) {
	fb, err := AllocateFrameBuffer(FrameRows, 64)
	if err != nil {
		t.Fatalf("AllocateFrameBuffer: %v", err)
	}
	if fb.Rows() != FrameRows || fb.Cols() != 64 {
		t.Fatalf("got %dx%d, want %dx64", fb.Rows(), fb.Cols(), FrameRows)
	}
	for r := 0; r < fb.Rows(); r++ {
		row, err := fb.Row(r)
		if err != nil {
			t.Fatalf("Row(%d): %v", r, err)
		}
		for c, v := range row {
			if v != 0 {
				t.Fatalf("row %d col %d = %d, want 0", r, c, v)
			}
		}
	}
}

func TestAllocateFrameBufferErrors(t *testing.T) {
	for _, dims := range [][2]int{{0, 10}, {10, 0}, {-1, 5}, {1 << 20, 1 << 20}} {
		if _, err := AllocateFrameBuffer(dims[0], dims[1]); !errors.Is(err, ErrAllocation) {
			t.Errorf("%v: got %v, want ErrAllocation", dims, err)
		}
	}
}

func TestSetPixelRow(t *testing.T) {
	fb, err := AllocateFrameBuffer(FrameRows, 32)
	if err != nil {
		t.Fatal(err)
	}
	if err := fb.SetPixel(482, 31, 200); err != nil {
		t.Fatalf("SetPixel: %v", err)
	}
	row, _ := fb.Row(482)
	if row[31] != 200 {
		t.Errorf("row[31] = %d, want 200", row[31])
	}

	// Row returns a copy
	row[31] = 1
	again, _ := fb.Row(482)
	if again[31] != 200 {
		t.Errorf("Row leaked storage, got %d", again[31])
	}

	src := make([]byte, 32)
	for i := range src {
		src[i] = byte(i * 8)
	}
	if err := fb.SetRow(7, src); err != nil {
		t.Fatalf("SetRow: %v", err)
	}
	row, _ = fb.Row(7)
	if string(row) != string(src) {
		t.Errorf("SetRow not reflected: %v", row)
	}
}

func TestFrameBufferIndexErrors(t *testing.T) {
	fb, err := AllocateFrameBuffer(FrameRows, 32)
	if err != nil {
		t.Fatal(err)
	}
	checks := map[string]error{
		"row 483":    fb.SetPixel(483, 0, 1),
		"row -1":     fb.SetPixel(-1, 0, 1),
		"col 32":     fb.SetPixel(0, 32, 1),
		"col -1":     fb.SetPixel(0, -1, 1),
		"short row":  fb.SetRow(0, make([]byte, 31)),
		"setrow 483": fb.SetRow(483, make([]byte, 32)),
		"readrow -1": fb.ReadRow(-1, func([]byte) {}),
	}
	if _, err := fb.Row(483); !errors.Is(err, ErrIndex) {
		t.Errorf("Row(483): got %v, want ErrIndex", err)
	}
	for name, err := range checks {
		if !errors.Is(err, ErrIndex) {
			t.Errorf("%s: got %v, want ErrIndex", name, err)
		}
	}
}

func TestFrameBufferRelease(t *testing.T) {
	fb, err := AllocateFrameBuffer(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	fb.Release()
	fb.Release()
	if fb.Rows() != 0 {
		t.Errorf("Rows after release = %d", fb.Rows())
	}
	if _, err := fb.Row(0); !errors.Is(err, ErrIndex) {
		t.Errorf("Row after release: %v", err)
	}

	var nilFB *FrameBuffer
	nilFB.Release()
	nilFB.Fill(1)
}

// Writers still running when the frame is released must fail cleanly.
func TestFrameBufferReleaseWhileWriting(t *testing.T) {
	const cols = 64
	fb, err := AllocateFrameBuffer(FrameRows, cols)
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		src := make([]byte, cols)
		for y := 0; ; y++ {
			err := fb.SetRow(y%FrameRows, src)
			if y == 0 {
				close(started)
			}
			if err == nil {
				err = fb.SetPixel(y%FrameRows, y%cols, byte(y))
			}
			if err != nil {
				result <- err
				return
			}
			fb.Fill(byte(y))
		}
	}()

	<-started
	fb.Release()
	if err := <-result; !errors.Is(err, ErrIndex) {
		t.Fatalf("write after release: %v, want ErrIndex", err)
	}
}

// Rows written whole by one goroutine must never be seen half written by a
// reader scanning the same rows.
func TestFrameBufferConcurrentRows(t *testing.T) {
	const cols = 256
	fb, err := AllocateFrameBuffer(16, cols)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		src := make([]byte, cols)
		for v := 0; ; v++ {
			select {
			case <-done:
				return
			default:
			}
			for i := range src {
				src[i] = byte(v)
			}
			_ = fb.SetRow(v%fb.Rows(), src)
		}
	}()

	for i := 0; i < 2000; i++ {
		_ = fb.ReadRow(i%fb.Rows(), func(row []byte) {
			for _, b := range row {
				if b != row[0] {
					t.Errorf("torn row: %d and %d", row[0], b)
					return
				}
			}
		})
	}
	close(done)
	wg.Wait()
}

func TestFillGreyBars(t *testing.T) {
	fb, err := AllocateFrameBuffer(FrameRows, 70)
	if err != nil {
		t.Fatal(err)
	}
	if err := FillGreyBars(fb); err != nil {
		t.Fatalf("FillGreyBars: %v", err)
	}
	row, _ := fb.Row(241)
	for bar, want := range barLuma {
		if got := row[bar*10]; got != want {
			t.Errorf("bar %d: got %d, want %d", bar, got, want)
		}
	}
}
