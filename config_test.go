package vpdiff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	assert.NoError(cfg.Validate())
	assert.Equal(MergerGifsicle, cfg.Merger)
	assert.Equal(FitPad, cfg.Fit)

	c := NewComparator(nil)
	assert.NotNil(c.Config().Logger)
	assert.NotEmpty(c.Config().ScratchDir)
}

func TestConfig_Load(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "vpdiff.yaml")
	require.NoError(os.WriteFile(path, []byte(`
delay: 50
merger: native
fit: stretch
outline_color: "#00ff00"
tolerance: 3
keep_files: true
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(err)
	assert.Equal(50, cfg.Delay)
	assert.Equal(MergerNative, cfg.Merger)
	assert.Equal(FitStretch, cfg.Fit)
	assert.Equal("#00ff00", cfg.OutlineColor)
	assert.Equal(3, cfg.Tolerance)
	assert.True(cfg.KeepFiles)
	// Unset keys keep their default value.
	assert.Equal(256, cfg.Colors)
	assert.Equal("#ffffff", cfg.Background)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(err)

	require.NoError(os.WriteFile(path, []byte("delay: [1"), 0644))
	_, err = LoadConfig(path)
	assert.Error(err)

	require.NoError(os.WriteFile(path, []byte("merger: imagemagick"), 0644))
	_, err = LoadConfig(path)
	assert.ErrorContains(err, "unsupported merger")
}

func TestConfig_Validate(t *testing.T) {
	assert := assert.New(t)

	for name, mutate := range map[string]func(*Config){
		"delay":         func(c *Config) { c.Delay = 0 },
		"colors":        func(c *Config) { c.Colors = 300 },
		"gifsicle path": func(c *Config) { c.GifsiclePath = "" },
		"fit":           func(c *Config) { c.Fit = "crop" },
		"outline width": func(c *Config) { c.OutlineWidth = 0 },
		"outline color": func(c *Config) { c.OutlineColor = "red" },
		"background":    func(c *Config) { c.Background = "#12" },
		"tolerance":     func(c *Config) { c.Tolerance = -1 },
	} {
		cfg := DefaultConfig()
		mutate(cfg)
		assert.Error(cfg.Validate(), name)
	}
}
