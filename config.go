package vpdiff

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/vpcompare/vpdiff/utils"
	"gopkg.in/yaml.v3"
)

// Supported frame mergers.
const (
	MergerGifsicle = "gifsicle"
	MergerNative   = "native"
)

// Supported strategies for fitting both images on the common canvas.
const (
	FitPad     = "pad"
	FitStretch = "stretch"
)

// Config holds the comparison options.
type Config struct {
	// ScratchDir is where the per comparison temporary directories are created.
	ScratchDir string `yaml:"scratch_dir"`
	// Delay is the per frame display delay in hundredths of a second.
	Delay int `yaml:"delay"`
	// Colors caps the palette of the generated GIF.
	Colors int `yaml:"colors"`
	// Merger selects the tool combining the frames: gifsicle or native.
	Merger       string `yaml:"merger"`
	GifsiclePath string `yaml:"gifsicle_path"`
	// Fit is either pad (images are placed on a canvas) or stretch (images are resized).
	Fit          string `yaml:"fit"`
	OutlineWidth int    `yaml:"outline_width"`
	OutlineColor string `yaml:"outline_color"`
	Background   string `yaml:"background"`
	// Tolerance is the maximum per channel difference ignored by the pixel diff.
	Tolerance int `yaml:"tolerance"`
	// KeepFiles retains the scratch directory after the comparison is closed.
	KeepFiles bool `yaml:"keep_files"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the default comparison options.
func DefaultConfig() *Config {
	return &Config{
		ScratchDir:   os.TempDir(),
		Delay:        200,
		Colors:       256,
		Merger:       MergerGifsicle,
		GifsiclePath: "gifsicle",
		Fit:          FitPad,
		OutlineWidth: 2,
		OutlineColor: "#ff0000b4",
		Background:   "#ffffff",
	}
}

// LoadConfig reads and parses a YAML config file, merged over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the values are sane.
func (c *Config) Validate() error {
	if c.Delay <= 0 {
		return errors.New("delay must be > 0")
	}
	if c.Colors < 2 || c.Colors > 256 {
		return errors.Errorf("colors must be between 2 and 256, got %d", c.Colors)
	}
	switch c.Merger {
	case MergerGifsicle:
		if c.GifsiclePath == "" {
			return errors.New("gifsicle_path is required")
		}
	case MergerNative:
	default:
		return errors.Errorf("unsupported merger %q (use gifsicle or native)", c.Merger)
	}
	switch c.Fit {
	case FitPad, FitStretch:
	default:
		return errors.Errorf("unsupported fit %q (use pad or stretch)", c.Fit)
	}
	if c.OutlineWidth < 1 {
		return errors.New("outline_width must be > 0")
	}
	if _, err := utils.HexToRGBA(c.OutlineColor); err != nil {
		return errors.Wrap(err, "outline_color")
	}
	if _, err := utils.HexToRGBA(c.Background); err != nil {
		return errors.Wrap(err, "background")
	}
	if c.Tolerance < 0 || c.Tolerance > 255 {
		return errors.Errorf("tolerance must be between 0 and 255, got %d", c.Tolerance)
	}
	return nil
}

func (c *Config) defaults() {
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
