package video

import (
	"fmt"
	"sync"
)

// FrameRows is the number of picture lines in an NTSC frame.
const FrameRows = 483

// MaxFrameBytes bounds the storage a single framebuffer may reserve.
const MaxFrameBytes = 256 << 20

// FrameBuffer holds the luma of one interlaced frame, row by row. Each row
// has its own lock so picture authoring can run alongside the encoder without
// tearing the row being scanned. The frame lock guards the storage itself
// against Release.
type FrameBuffer struct {
	cols  int
	mutex sync.RWMutex
	rows  [][]byte
	locks []sync.RWMutex
}

// AllocateFrameBuffer reserves rows x cols luma bytes, all zero.
func AllocateFrameBuffer(rows, cols int) (*FrameBuffer, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrAllocation, rows, cols)
	}
	if rows > MaxFrameBytes/cols {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d bytes", ErrAllocation, rows, cols, MaxFrameBytes)
	}
	fb := &FrameBuffer{
		cols:  cols,
		rows:  make([][]byte, 0, rows),
		locks: make([]sync.RWMutex, rows),
	}
	for i := 0; i < rows; i++ {
		fb.rows = append(fb.rows, make([]byte, cols))
	}
	return fb, nil
}

// Rows returns the number of rows, 0 once released.
func (fb *FrameBuffer) Rows() int {
	if fb == nil {
		return 0
	}
	fb.mutex.RLock()
	defer fb.mutex.RUnlock()
	return len(fb.rows)
}

// Cols returns the number of luma samples per row.
func (fb *FrameBuffer) Cols() int {
	if fb == nil {
		return 0
	}
	return fb.cols
}

// lockRow read-locks the frame and checks row. On success the caller must
// call fb.mutex.RUnlock.
func (fb *FrameBuffer) lockRow(row int) error {
	if fb == nil {
		return fmt.Errorf("%w: row %d of 0", ErrIndex, row)
	}
	fb.mutex.RLock()
	if row < 0 || row >= len(fb.rows) {
		n := len(fb.rows)
		fb.mutex.RUnlock()
		return fmt.Errorf("%w: row %d of %d", ErrIndex, row, n)
	}
	return nil
}

// Row returns a copy of a row.
func (fb *FrameBuffer) Row(row int) ([]byte, error) {
	if err := fb.lockRow(row); err != nil {
		return nil, err
	}
	defer fb.mutex.RUnlock()
	fb.locks[row].RLock()
	defer fb.locks[row].RUnlock()
	out := make([]byte, fb.cols)
	copy(out, fb.rows[row])
	return out, nil
}

// ReadRow calls fn with the row's storage while holding its read lock. fn
// must not retain the slice.
func (fb *FrameBuffer) ReadRow(row int, fn func([]byte)) error {
	if err := fb.lockRow(row); err != nil {
		return err
	}
	defer fb.mutex.RUnlock()
	fb.locks[row].RLock()
	defer fb.locks[row].RUnlock()
	fn(fb.rows[row])
	return nil
}

// SetPixel overwrites one luma sample.
func (fb *FrameBuffer) SetPixel(row, col int, value byte) error {
	if err := fb.lockRow(row); err != nil {
		return err
	}
	defer fb.mutex.RUnlock()
	if col < 0 || col >= fb.cols {
		return fmt.Errorf("%w: col %d of %d", ErrIndex, col, fb.cols)
	}
	fb.locks[row].Lock()
	fb.rows[row][col] = value
	fb.locks[row].Unlock()
	return nil
}

// SetRow replaces a whole row. src must be exactly Cols() long.
func (fb *FrameBuffer) SetRow(row int, src []byte) error {
	if err := fb.lockRow(row); err != nil {
		return err
	}
	defer fb.mutex.RUnlock()
	if len(src) != fb.cols {
		return fmt.Errorf("%w: row of %d samples, want %d", ErrIndex, len(src), fb.cols)
	}
	fb.locks[row].Lock()
	copy(fb.rows[row], src)
	fb.locks[row].Unlock()
	return nil
}

// Fill sets every sample of the frame to value.
func (fb *FrameBuffer) Fill(value byte) {
	if fb == nil {
		return
	}
	fb.mutex.RLock()
	defer fb.mutex.RUnlock()
	for i := range fb.rows {
		fb.locks[i].Lock()
		r := fb.rows[i]
		for j := range r {
			r[j] = value
		}
		fb.locks[i].Unlock()
	}
}

// Release drops the storage. It waits for row accesses in progress; later
// ones fail with ErrIndex. It may be called any number of times.
func (fb *FrameBuffer) Release() {
	if fb == nil {
		return
	}
	fb.mutex.Lock()
	defer fb.mutex.Unlock()
	fb.rows = nil
	fb.locks = nil
}
