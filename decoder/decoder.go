// Package decoder turns the generated stream back into pictures, for
// monitoring the output and for checking it in tests.
package decoder

import (
	"image"
	"image/png"
	"io"
	"sync"
	"sync/atomic"

	"audiotv/video"
)

// Decoder follows a stream that starts at the top of the odd field and was
// generated with the same timing and line counts. It implements pump.Sink.
type Decoder struct {
	timing video.ScanlineTiming
	lines  video.LineCounts
	cols   int

	state video.ScanState
	line  []int16 // video channel of the scanline being received

	frameBuffer   []byte
	displayBuffer []byte
	frameMutex    sync.Mutex

	scanlines  atomic.Uint64
	fields     atomic.Uint64
	syncErrors atomic.Uint64
}

// New creates a decoder expecting lines.Rows picture rows.
func New(t video.ScanlineTiming, lines video.LineCounts) *Decoder {
	cols := t.SamplesActiveVideo
	return &Decoder{
		timing:        t,
		lines:         lines,
		cols:          cols,
		state:         video.InitialState(),
		line:          make([]int16, 0, t.SamplesPerScanline),
		frameBuffer:   make([]byte, lines.Rows*cols),
		displayBuffer: make([]byte, lines.Rows*cols),
	}
}

// Write consumes interleaved stereo samples.
func (d *Decoder) Write(samples []int16) error {
	for i := 1; i < len(samples); i += 2 {
		d.line = append(d.line, samples[i])
		if len(d.line) == d.timing.SamplesPerScanline {
			d.endOfLine()
			d.line = d.line[:0]
		}
	}
	return nil
}

func (d *Decoder) endOfLine() {
	tip := d.timing.SamplesSyncTip
	for _, s := range d.line[:tip] {
		if s != video.BlackLevel {
			d.syncErrors.Add(1)
			break
		}
	}

	if d.state.Mode == video.ModeVideo {
		row := video.RowIndex(d.state, d.lines)
		start := tip + d.timing.SamplesBackPorch
		if row >= 0 && row < d.lines.Rows && start+d.cols <= len(d.line) {
			dst := d.frameBuffer[row*d.cols : (row+1)*d.cols]
			for x, s := range d.line[start : start+d.cols] {
				dst[x] = video.LevelToLuma(s)
			}
		}
	} else {
		start := tip + d.timing.SamplesBackPorch
		for _, s := range d.line[start : start+d.timing.SamplesActiveVideo] {
			if s != video.BlankLevel {
				d.syncErrors.Add(1)
				break
			}
		}
	}

	d.scanlines.Add(1)
	next := video.Advance(d.state, d.lines)
	if next.Field != d.state.Field {
		d.fields.Add(1)
		d.frameMutex.Lock()
		copy(d.displayBuffer, d.frameBuffer)
		d.frameMutex.Unlock()
	}
	d.state = next
}

// Frame returns a copy of the last frame completed, row-major.
func (d *Decoder) Frame() []byte {
	d.frameMutex.Lock()
	defer d.frameMutex.Unlock()
	frameCopy := make([]byte, len(d.displayBuffer))
	copy(frameCopy, d.displayBuffer)
	return frameCopy
}

// Image returns the last completed frame as a grey image.
func (d *Decoder) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, d.cols, d.lines.Rows))
	copy(img.Pix, d.Frame())
	return img
}

// WritePNG encodes the last completed frame.
func (d *Decoder) WritePNG(w io.Writer) error {
	return png.Encode(w, d.Image())
}

// Scanlines is the number of complete scanlines received.
func (d *Decoder) Scanlines() uint64 { return d.scanlines.Load() }

// Fields is the number of complete fields received.
func (d *Decoder) Fields() uint64 { return d.fields.Load() }

// SyncErrors counts scanlines whose sync tip or blanking was off level.
func (d *Decoder) SyncErrors() uint64 { return d.syncErrors.Load() }
