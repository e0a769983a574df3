package sink

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"audiotv/pump"
)

// WAV records the stream to a 16-bit stereo PCM WAV file. Unlike a playback
// device it never blocks, so a pump driving it runs as fast as it can.
type WAV struct {
	filename string
	f        *os.File
	enc      *wav.Encoder
	buf      *audio.IntBuffer
	mutex    sync.Mutex
}

// CreateWAV creates filename and writes the WAV header for sampleRate.
func CreateWAV(filename string, sampleRate int) (*WAV, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pump.ErrDeviceOpen, err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	if enc == nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: bad parameters for wav encoding", pump.ErrDeviceConfig)
	}
	return &WAV{
		filename: filename,
		f:        f,
		enc:      enc,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

// WAVOpener returns an opener recording to filename.
func WAVOpener(filename string) func(int) (pump.Sink, error) {
	return func(sampleRate int) (pump.Sink, error) {
		return CreateWAV(filename, sampleRate)
	}
}

// Write implements pump.Sink.
func (w *WAV) Write(samples []int16) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.enc == nil {
		return os.ErrClosed
	}

	data := w.buf.Data[:0]
	for _, s := range samples {
		data = append(data, int(s))
	}
	w.buf.Data = data
	return w.enc.Write(w.buf)
}

// Close finalises the header and closes the file.
func (w *WAV) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.enc == nil {
		return nil
	}
	err := w.enc.Close()
	w.enc = nil
	if cerr := w.f.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// Filename is the path being recorded to.
func (w *WAV) Filename() string {
	return w.filename
}
