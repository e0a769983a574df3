package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/samuel/go-hackrf/hackrf"
	"golang.org/x/term"

	"audiotv/config"
	"audiotv/decoder"
	"audiotv/ntsc"
	"audiotv/pump"
	"audiotv/sdr"
	"audiotv/sink"
	"audiotv/source"
	"audiotv/tui"
	"audiotv/video"
)

func main() {
	cfg := config.New()
	lib := cfg.Library()

	if cfg.StatsView {
		go func() {
			viewer.SetConfiguration(viewer.WithAddr(config.StatsViewAddress))
			statsview.New().Start()
		}()
		log.Printf("Stats server available at http://%s/debug/statsview", config.StatsViewAddress)
	}

	// 1. Pick the output device
	var open ntsc.DeviceOpener
	var tx *sdr.Transmitter
	switch cfg.Output {
	case config.OutputOto:
		open = sink.OpenOto
	case config.OutputWAV:
		open = sink.WAVOpener(cfg.WAVFile)
	case config.OutputNull:
		open = sink.OpenNull
	case config.OutputHackRF:
		if err := hackrf.Init(); err != nil {
			log.Fatalf("hackrf.Init() failed: %v", err)
		}
		defer hackrf.Exit()

		dev, err := hackrf.Open()
		if err != nil {
			log.Fatalf("hackrf.Open() failed: %v", err)
		}
		defer dev.Close()

		if err := sdr.Configure(dev, cfg); err != nil {
			log.Fatalf("Configuring HackRF failed: %v", err)
		}
		tx = sdr.NewTransmitter(cfg.SampleRate / 10)
		if err := dev.StartTX(tx.Fill); err != nil {
			log.Fatalf("Starting transmission failed: %v", err)
		}
		defer dev.StopTX()
		open = func(int) (pump.Sink, error) { return tx, nil }
	}

	// 2. Optionally monitor the output through the decoder
	var monitor *decoder.Decoder
	if cfg.Snapshot != "" {
		base := open
		open = func(rate int) (pump.Sink, error) {
			timing, err := video.ComputeTiming(rate, lib.Durations())
			if err != nil {
				return nil, err
			}
			out, err := base(rate)
			if err != nil {
				return nil, err
			}
			lines := video.LineCounts{VSync: lib.VSyncLines, HSync: lib.HSyncLines, Rows: video.FrameRows}
			monitor = decoder.New(timing, lines)
			return sink.Tee{out, monitor}, nil
		}
	}

	h, err := ntsc.Init(lib, open)
	if err != nil {
		log.Fatalf("Failed to initialise signal generator: %v", err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			log.Printf("Closing output: %v", err)
		}
	}()

	// 3. Set up the picture source (grey bars, still image or FFmpeg)
	switch {
	case cfg.Test:
		log.Println("Test mode: grey bars will be shown.")
		if err := video.FillGreyBars(h.FrameBuffer()); err != nil {
			log.Fatalf("Drawing test pattern failed: %v", err)
		}
	case cfg.Image != "":
		if err := source.LoadImage(cfg.Image, h); err != nil {
			log.Fatalf("Failed to load image: %v", err)
		}
	default:
		capture, err := source.StartFFmpegCapture(cfg, h)
		if err != nil {
			log.Fatalf("Failed to start video source: %v", err)
		}
		// must run before h.Close
		defer func() {
			if err := capture.Stop(); err != nil {
				log.Printf("Stopping FFmpeg: %v", err)
			}
		}()
	}

	// 4. Stream until Ctrl+C, the line limit or an error
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.TUI && term.IsTerminal(int(os.Stdout.Fd())) {
		err = runWithStatus(ctx, cancel, cfg, h, tx, monitor)
	} else {
		log.Println("Signal is live. Press Ctrl+C to stop.")
		err = generate(ctx, h, cfg.Lines)
	}
	if tx != nil {
		tx.Close()
	}
	if err != nil {
		log.Printf("Generation stopped: %v", err)
	}

	if monitor != nil {
		if err := writeSnapshot(cfg.Snapshot, monitor); err != nil {
			log.Printf("Saving snapshot failed: %v", err)
		}
	}
	log.Println("Shutting down...")
}

// generate runs the pump until ctx is done, or for limit scanlines when
// limit is non-zero.
func generate(ctx context.Context, h *ntsc.Handle, limit uint64) error {
	if limit == 0 {
		return h.Run(ctx)
	}
	for i := uint64(0); i < limit; i++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := h.PumpOnce(); err != nil {
			return err
		}
	}
	return nil
}

func runWithStatus(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, h *ntsc.Handle, tx *sdr.Transmitter, monitor *decoder.Decoder) error {
	logFile, err := tea.LogToFile("audiotv.log", "audiotv")
	if err == nil {
		defer logFile.Close()
	}

	stats := func() tui.Stats {
		s := tui.Stats{Pump: h.Metrics()}
		if tx != nil {
			s.Underruns = tx.Underruns()
		}
		if monitor != nil {
			s.SyncErrors = monitor.SyncErrors()
		}
		return s
	}
	linesPerSecond := float64(cfg.SampleRate) / float64(h.Timing().SamplesPerScanline)
	prog := tui.NewProgram(tui.New("audiotv: "+cfg.Output, linesPerSecond, stats, cancel))

	go func() {
		prog.Send(tui.Done{Err: generate(ctx, h, cfg.Lines)})
	}()
	final, err := prog.Run()
	if err != nil {
		cancel()
		return err
	}
	return final.(tui.Model).Err()
}

func writeSnapshot(path string, d *decoder.Decoder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.WritePNG(f); err != nil {
		f.Close()
		return err
	}
	log.Printf("Saved last decoded frame to %s (%d fields, %d sync errors)", path, d.Fields(), d.SyncErrors())
	return f.Close()
}
