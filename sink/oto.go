//go:build !headless

package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"audiotv/pump"
)

// OtoBufferSize is the device buffer requested from oto. Zero lets the
// driver pick.
var OtoBufferSize = 20 * time.Millisecond

// Oto plays the stream on the default audio device as stereo S16LE. Writes
// block until the device has taken the samples, which paces the pump at the
// sample rate.
type Oto struct {
	ctx    *oto.Context
	player *oto.Player
	pr     *io.PipeReader
	pw     *io.PipeWriter
	buf    []byte
	mutex  sync.Mutex
	closed bool
}

// OpenOto opens the audio device at sampleRate.
func OpenOto(sampleRate int) (pump.Sink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   OtoBufferSize,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pump.ErrDeviceOpen, err)
	}
	<-ready

	pr, pw := io.Pipe()
	o := &Oto{
		ctx: ctx,
		pr:  pr,
		pw:  pw,
	}
	o.player = ctx.NewPlayer(pr)
	o.player.Play()
	if err := o.player.Err(); err != nil {
		_ = o.Close()
		return nil, fmt.Errorf("%w: %w", pump.ErrDeviceConfig, err)
	}
	return o, nil
}

// Write implements pump.Sink.
func (o *Oto) Write(samples []int16) error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.closed {
		return io.ErrClosedPipe
	}

	n := len(samples) * 2
	if cap(o.buf) < n {
		o.buf = make([]byte, n)
	}
	o.buf = o.buf[:n]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(o.buf[i*2:], uint16(s))
	}
	if _, err := o.pw.Write(o.buf); err != nil {
		return err
	}
	return o.player.Err()
}

// Close stops playback and releases the player. A Write blocked on the
// device returns io.ErrClosedPipe.
func (o *Oto) Close() error {
	_ = o.pw.Close()
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	var err error
	if o.player != nil {
		err = o.player.Close()
		o.player = nil
	}
	return err
}
