package video

import (
	"fmt"
	"slices"
)

// Default blanking line counts per field. With 483 picture rows this gives
// 263 + 262 = 525 lines per frame.
const (
	DefaultVSyncLines = 9
	DefaultHSyncLines = 12
)

// Mode is the kind of scanline being emitted.
type Mode int

const (
	ModeVSync Mode = iota
	ModeHSync
	ModeVideo
)

func (m Mode) String() string {
	switch m {
	case ModeVSync:
		return "vsync"
	case ModeHSync:
		return "hsync"
	case ModeVideo:
		return "video"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Field selects which half of the interlaced frame is scanned. The odd field
// carries lines 1, 3, 5... counted from one, which are the even row indices
// of the framebuffer.
type Field int

const (
	FieldOdd Field = iota
	FieldEven
)

func (f Field) String() string {
	if f == FieldEven {
		return "even"
	}
	return "odd"
}

// Toggle returns the other field.
func (f Field) Toggle() Field {
	if f == FieldOdd {
		return FieldEven
	}
	return FieldOdd
}

// parity is the offset of the field's first framebuffer row.
func (f Field) parity() int {
	if f == FieldEven {
		return 1
	}
	return 0
}

// ScanState is the position of the encoder within the interlaced cycle.
// LineInField counts every line of the current field pass, blanking included.
type ScanState struct {
	Mode        Mode
	LineInField int
	Field       Field
}

// InitialState is the state of a freshly initialised encoder.
func InitialState() ScanState {
	return ScanState{Mode: ModeVSync, LineInField: 0, Field: FieldOdd}
}

func (s ScanState) String() string {
	return fmt.Sprintf("%s field, line %d (%s)", s.Field, s.LineInField, s.Mode)
}

// LineCounts sets the number of lines in each part of a field pass.
type LineCounts struct {
	VSync int // vertical sync lines at the start of every field
	HSync int // blanking-only lines after vertical sync
	Rows  int // framebuffer rows shared between the two fields
}

// DefaultLineCounts returns the NTSC line counts for a full-height framebuffer.
func DefaultLineCounts() LineCounts {
	return LineCounts{VSync: DefaultVSyncLines, HSync: DefaultHSyncLines, Rows: FrameRows}
}

// Validate reports whether the counts describe a usable cycle.
func (c LineCounts) Validate() error {
	if c.VSync < 1 {
		return fmt.Errorf("%w: %d vsync lines, need at least 1", ErrConfig, c.VSync)
	}
	if c.HSync < 0 {
		return fmt.Errorf("%w: %d hsync lines", ErrConfig, c.HSync)
	}
	if c.Rows < 2 {
		return fmt.Errorf("%w: %d picture rows, need at least 2", ErrConfig, c.Rows)
	}
	return nil
}

// PictureLines is the number of video lines in a pass of field f. The odd
// field takes the extra row when Rows is odd.
func (c LineCounts) PictureLines(f Field) int {
	if f == FieldOdd {
		return (c.Rows + 1) / 2
	}
	return c.Rows / 2
}

// FieldLines is the total number of lines in a pass of field f.
func (c LineCounts) FieldLines(f Field) int {
	return c.VSync + c.HSync + c.PictureLines(f)
}

func (c LineCounts) modeAt(line int) Mode {
	switch {
	case line < c.VSync:
		return ModeVSync
	case line < c.VSync+c.HSync:
		return ModeHSync
	}
	return ModeVideo
}

// RowIndex returns the framebuffer row scanned by a video line.
func RowIndex(st ScanState, c LineCounts) int {
	return 2*(st.LineInField-c.VSync-c.HSync) + st.Field.parity()
}

// Advance returns the state following st. After the last video line of a
// field the other field starts again from vertical sync.
func Advance(st ScanState, c LineCounts) ScanState {
	next, field := st.LineInField+1, st.Field
	if next >= c.FieldLines(field) {
		next, field = 0, field.Toggle()
	}
	return ScanState{Mode: c.modeAt(next), LineInField: next, Field: field}
}

func appendLevel(dst []int16, n int, level int16) []int16 {
	for i := 0; i < n; i++ {
		dst = append(dst, 0, level)
	}
	return dst
}

// EncodeScanline appends one scanline of interleaved (audio, video) pairs to
// dst: sync tip, back porch, active video and front porch in that order. The
// front porch is stretched or shortened by the rounding slack so exactly
// SamplesPerScanline pairs are appended.
func EncodeScanline(dst []int16, st ScanState, t ScanlineTiming, fb *FrameBuffer, c LineCounts) ([]int16, error) {
	front := t.SamplesPerScanline - t.SamplesSyncTip - t.SamplesBackPorch - t.SamplesActiveVideo
	if front < 0 || t.SamplesSyncTip < 0 || t.SamplesBackPorch < 0 || t.SamplesActiveVideo < 0 {
		return dst, fmt.Errorf("%w: segments overrun scanline: %v", ErrConfig, t)
	}

	var row int
	if st.Mode == ModeVideo {
		row = RowIndex(st, c)
		if row < 0 || row >= fb.Rows() {
			return dst, fmt.Errorf("%w: %v scans row %d of %d", ErrConsistency, st, row, fb.Rows())
		}
		if fb.Cols() != t.SamplesActiveVideo {
			return dst, fmt.Errorf("%w: framebuffer has %d columns, active video is %d samples",
				ErrConsistency, fb.Cols(), t.SamplesActiveVideo)
		}
	}

	dst = slices.Grow(dst, 2*t.SamplesPerScanline)
	dst = appendLevel(dst, t.SamplesSyncTip, BlackLevel)
	dst = appendLevel(dst, t.SamplesBackPorch, BlankLevel)
	if st.Mode == ModeVideo {
		err := fb.ReadRow(row, func(luma []byte) {
			for _, p := range luma {
				dst = append(dst, 0, LumaToLevel(p))
			}
		})
		if err != nil {
			return dst, fmt.Errorf("%w: %v", ErrConsistency, err)
		}
	} else {
		dst = appendLevel(dst, t.SamplesActiveVideo, BlankLevel)
	}
	dst = appendLevel(dst, front, BlankLevel)
	return dst, nil
}

// Encoder owns the scan state and produces the scanline sequence for one
// framebuffer.
type Encoder struct {
	timing ScanlineTiming
	fb     *FrameBuffer
	lines  LineCounts
	state  ScanState
}

// NewEncoder creates an encoder positioned at the start of the odd field.
// The picture line counts are taken from the framebuffer.
func NewEncoder(t ScanlineTiming, fb *FrameBuffer, vsync, hsync int) (*Encoder, error) {
	if fb == nil {
		return nil, fmt.Errorf("%w: no framebuffer", ErrConfig)
	}
	if fb.Cols() != t.SamplesActiveVideo {
		return nil, fmt.Errorf("%w: framebuffer has %d columns, active video is %d samples",
			ErrConfig, fb.Cols(), t.SamplesActiveVideo)
	}
	lines := LineCounts{VSync: vsync, HSync: hsync, Rows: fb.Rows()}
	if err := lines.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{
		timing: t,
		fb:     fb,
		lines:  lines,
		state:  InitialState(),
	}, nil
}

func (e *Encoder) Timing() ScanlineTiming { return e.timing }
func (e *Encoder) Lines() LineCounts      { return e.lines }
func (e *Encoder) State() ScanState       { return e.state }

// ProduceScanline appends the scanline for the current state to dst.
func (e *Encoder) ProduceScanline(dst []int16) ([]int16, error) {
	return EncodeScanline(dst, e.state, e.timing, e.fb, e.lines)
}

// Advance moves to the next scanline.
func (e *Encoder) Advance() {
	e.state = Advance(e.state, e.lines)
}

// Next produces the current scanline and advances. The state is left
// untouched when production fails.
func (e *Encoder) Next(dst []int16) ([]int16, error) {
	out, err := e.ProduceScanline(dst)
	if err != nil {
		return out, err
	}
	e.Advance()
	return out, nil
}
