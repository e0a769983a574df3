package source

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"runtime"

	"audiotv/config"
)

// Painter is a luma framebuffer that can be written a row at a time.
type Painter interface {
	Rows() int
	Cols() int
	SetRow(row int, luma []byte) error
}

// Capture is a running capture process feeding a painter.
type Capture struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// StartFFmpegCapture starts an FFmpeg process capturing the camera as 8-bit
// grey frames at the painter's size, and copies every frame into it.
func StartFFmpegCapture(cfg *config.Config, p Painter) (*Capture, error) {
	var ffmpegArgs []string

	switch runtime.GOOS {
	case "linux":
		dev := cfg.Device
		if dev == "" {
			dev = "/dev/video0"
		}
		ffmpegArgs = []string{"-f", "v4l2", "-i", dev}
	case "darwin":
		dev := cfg.Device
		if dev == "" {
			dev = "0"
		}
		ffmpegArgs = []string{"-f", "avfoundation", "-i", dev}
	case "windows":
		dev := cfg.Device
		if dev == "" {
			dev = "Integrated Webcam"
		}
		ffmpegArgs = []string{"-f", "dshow", "-i", "video=" + dev}
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}

	ffmpegArgs = append(ffmpegArgs, captureArgs(cfg, p.Cols(), p.Rows())...)
	c, err := startCapture(exec.Command("ffmpeg", ffmpegArgs...), p)
	if err != nil {
		return nil, err
	}
	log.Println("FFmpeg process started to capture webcam...")
	return c, nil
}

func startCapture(cmd *exec.Cmd, p Painter) (*Capture, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get FFmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}

	c := &Capture{cmd: cmd, done: make(chan struct{})}
	go func() {
		defer close(c.done)
		if err := Feed(stdout, p); err != nil {
			log.Printf("Error reading from FFmpeg: %v", err)
		}
	}()
	return c, nil
}

// Stop kills the process and returns once it has exited and the painter is
// no longer being written.
func (c *Capture) Stop() error {
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	<-c.done
	err := c.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func captureArgs(cfg *config.Config, width, height int) []string {
	// 30000/1001 frames a second is one per pair of fields
	vfArg := fmt.Sprintf("scale=%d:%d,fps=30000/1001", width, height)
	if cfg.Callsign != "" {
		vfArg += fmt.Sprintf(",drawbox=x=0:y=ih-40:w=iw:h=40:color=black@0.6:t=fill,drawtext=fontfile=/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf:text='%s':x=10:y=h-35:fontcolor=white:fontsize=32:borderw=2:bordercolor=black", cfg.Callsign)
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-fflags", "nobuffer", "-flags", "low_delay",
		"-probesize", "32", "-analyzeduration", "0",
		"-threads", "1", "-f", "rawvideo",
		"-pix_fmt", "gray", "-vf", vfArg, "-",
	}
}

// Feed copies raw grey frames of the painter's size from r into it until r
// is exhausted. A clean end of stream between frames is not an error.
func Feed(r io.Reader, p Painter) error {
	rows, cols := p.Rows(), p.Cols()
	frame := make([]byte, rows*cols)
	for {
		if _, err := io.ReadFull(r, frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		for y := 0; y < rows; y++ {
			if err := p.SetRow(y, frame[y*cols:(y+1)*cols]); err != nil {
				return err
			}
		}
	}
}
