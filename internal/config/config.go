package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the file is parsed.
const (
	EnvDatabaseURL = "CLEO_DATABASE_URL"
	EnvAddr        = "CLEO_ADDR"
)

// Config is the complete cleo configuration shared by the server and tools.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Waitlist  WaitlistConfig  `yaml:"waitlist"`
	Animation AnimationConfig `yaml:"animation"`
	Loading   LoadingConfig   `yaml:"loading"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Export    ExportConfig    `yaml:"export"`
}

type ServerConfig struct {
	Addr             string `yaml:"addr"`
	FramesDir        string `yaml:"frames_dir"`
	PublicURL        string `yaml:"public_url"` // encoded into /qr.png
	ShutdownTimeoutS int    `yaml:"shutdown_timeout_s"`
}

type WaitlistConfig struct {
	DatabaseURL string `yaml:"database_url"` // empty disables the endpoint (503)
	Table       string `yaml:"table"`
}

// AnimationConfig names the frame sequence. A manifest next to the frames
// overrides Frames/Start/Ext when present.
type AnimationConfig struct {
	Name   string `yaml:"name"`
	Frames int    `yaml:"frames"`
	Start  int    `yaml:"start"`
	Ext    string `yaml:"ext"`
}

type LoadingConfig struct {
	CriticalConcurrency int `yaml:"critical_concurrency"`
	Concurrency         int `yaml:"concurrency"`
	BatchSize           int `yaml:"batch_size"`
	BatchPauseMS        int `yaml:"batch_pause_ms"`
	CompletionDelayMS   int `yaml:"completion_delay_ms"`
	TimeoutS            int `yaml:"timeout_s"`
	MaxRetries          int `yaml:"max_retries"`
}

type RendererConfig struct {
	PinMultiplier float64 `yaml:"pin_multiplier"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
	Scaler        string  `yaml:"scaler"` // nearest, bilinear, catmullrom, approx
}

// ExportConfig drives framegen.
type ExportConfig struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	DPI     int    `yaml:"dpi"`
	Workers int    `yaml:"workers"`
	Quality int    `yaml:"quality"` // JPEG quality 1-100
	Ext     string `yaml:"ext"`
}

// Default returns the values the landing page ships with.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8080",
			FramesDir:        "public",
			ShutdownTimeoutS: 5,
		},
		Waitlist: WaitlistConfig{
			Table: "Waitlist",
		},
		Animation: AnimationConfig{
			Name:   "frame-anim-1",
			Frames: 192,
			Ext:    "jpg",
		},
		Loading: LoadingConfig{
			CriticalConcurrency: 2,
			Concurrency:         5,
			BatchSize:           32,
			BatchPauseMS:        50,
			CompletionDelayMS:   300,
			TimeoutS:            60,
			MaxRetries:          1,
		},
		Renderer: RendererConfig{
			PinMultiplier: 5,
			Width:         1280,
			Height:        720,
			Scaler:        "approx",
		},
		Export: ExportConfig{
			Width:   1920,
			Height:  1080,
			DPI:     150,
			Workers: runtime.NumCPU(),
			Quality: 85,
			Ext:     "jpg",
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and the listen address from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Waitlist.DatabaseURL = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Animation.Name == "" {
		errs = append(errs, errors.New("animation.name is required"))
	}
	if c.Animation.Frames < 0 {
		errs = append(errs, fmt.Errorf("animation.frames must be >= 0, got %d", c.Animation.Frames))
	}
	if c.Loading.CriticalConcurrency < 1 || c.Loading.Concurrency < 1 {
		errs = append(errs, errors.New("loading concurrency must be >= 1"))
	}
	if c.Loading.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("loading.batch_size must be >= 1, got %d", c.Loading.BatchSize))
	}
	if c.Loading.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("loading.max_retries must be >= 0, got %d", c.Loading.MaxRetries))
	}
	if c.Renderer.Width < 0 || c.Renderer.Height < 0 {
		errs = append(errs, errors.New("renderer size must not be negative"))
	}
	if q := c.Export.Quality; q < 1 || q > 100 {
		errs = append(errs, fmt.Errorf("export.quality must be in 1..100, got %d", q))
	}
	return errors.Join(errs...)
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutS) * time.Second
}

func (l LoadingConfig) BatchPause() time.Duration {
	return time.Duration(l.BatchPauseMS) * time.Millisecond
}

func (l LoadingConfig) CompletionDelay() time.Duration {
	return time.Duration(l.CompletionDelayMS) * time.Millisecond
}

func (l LoadingConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutS) * time.Second
}
