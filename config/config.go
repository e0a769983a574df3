package config

import (
	"flag"
	"fmt"
	"os"

	"audiotv/ntsc"
	"audiotv/pump"
	"audiotv/video"
)

// Output device names accepted by -out.
const (
	OutputOto    = "oto"
	OutputWAV    = "wav"
	OutputHackRF = "hackrf"
	OutputNull   = "null"
)

// Config holds all application configuration values.
type Config struct {
	SampleRate int
	VSyncLines int
	HSyncLines int
	Chunks     int
	Lines      uint64

	Output    string
	WAVFile   string
	Frequency float64
	Gain      int

	Test     bool
	Image    string
	Device   string
	Callsign string
	Snapshot string

	TUI       bool
	StatsView bool
}

// Parse reads the configuration from command-line arguments.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("audiotv", flag.ContinueOnError)
	fs.IntVar(&cfg.SampleRate, "rate", ntsc.DefaultSampleRate,
		fmt.Sprintf("Output sample rate in Hz (NTSC timing needs at least %d)", ntsc.MinSampleRate))
	fs.IntVar(&cfg.VSyncLines, "vsync", video.DefaultVSyncLines, "Vertical sync lines per field")
	fs.IntVar(&cfg.HSyncLines, "hsync", video.DefaultHSyncLines, "Blanking lines per field after vertical sync")
	fs.IntVar(&cfg.Chunks, "chunks", pump.DefaultChunkDivisor, "Device writes per scanline")
	fs.Uint64Var(&cfg.Lines, "lines", 0, "Stop after this many scanlines (0 runs until interrupted)")
	fs.StringVar(&cfg.Output, "out", OutputOto, "Output: oto (sound card), wav, hackrf or null")
	fs.StringVar(&cfg.WAVFile, "wav", "audiotv.wav", "File written by -out wav")
	fs.Float64Var(&cfg.Frequency, "freq", 1280, "HackRF transmit frequency in MHz")
	fs.IntVar(&cfg.Gain, "gain", 30, "HackRF TX VGA gain (0-47)")
	fs.BoolVar(&cfg.Test, "test", false, "Show grey bars instead of a picture")
	fs.StringVar(&cfg.Image, "image", "", "Still image to display")
	fs.StringVar(&cfg.Device, "device", "", "Capture device for FFmpeg (OS-dependent)")
	fs.StringVar(&cfg.Callsign, "callsign", "", "Text overlaid on captured video")
	fs.StringVar(&cfg.Snapshot, "snapshot", "", "Decode the output and save the last frame as PNG")
	fs.BoolVar(&cfg.TUI, "tui", true, "Show a status view when attached to a terminal")
	fs.BoolVar(&cfg.StatsView, "statsview", false, "Serve runtime statistics on "+StatsViewAddress)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New creates and returns a new Config populated from the process arguments,
// exiting on invalid flags.
func New() *Config {
	cfg, err := Parse(os.Args[1:])
	if err == flag.ErrHelp {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return cfg
}

// StatsViewAddress is where -statsview serves.
const StatsViewAddress = "localhost:12600"

func (c *Config) validate() error {
	switch c.Output {
	case OutputOto, OutputWAV, OutputHackRF, OutputNull:
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	if c.Output == OutputWAV && c.WAVFile == "" {
		return fmt.Errorf("-out wav needs -wav")
	}
	if c.Chunks <= 0 {
		return fmt.Errorf("-chunks must be positive")
	}
	sources := 0
	for _, on := range []bool{c.Test, c.Image != "", c.Device != ""} {
		if on {
			sources++
		}
	}
	if sources > 1 {
		return fmt.Errorf("-test, -image and -device are mutually exclusive")
	}
	return nil
}

// Library returns the signal generator configuration.
func (c *Config) Library() ntsc.Config {
	lc := ntsc.DefaultConfig()
	lc.SampleRateHz = c.SampleRate
	lc.VSyncLines = c.VSyncLines
	lc.HSyncLines = c.HSyncLines
	lc.ChunkDivisor = c.Chunks
	return lc
}
