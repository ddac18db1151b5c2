// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the YAML configuration of the epdtext command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/GermanBionicSystems/epaper/textscreen"
	"github.com/GermanBionicSystems/epaper/videosink"
	"github.com/GermanBionicSystems/epaper/waveshare2in13v2"
	"gopkg.in/yaml.v3"
)

// Panel revisions.
const (
	RevisionV2      = "v2"
	RevisionGate296 = "gate296"
)

// PanelConfig describes the wiring and revision of the panel.
type PanelConfig struct {
	// SPI is the periph SPI port name. Empty selects the first port.
	SPI string `yaml:"spi"`
	// Pins are periph GPIO names, e.g. "GPIO25". CS and PWR may be empty.
	DC   string `yaml:"dc"`
	CS   string `yaml:"cs"`
	RST  string `yaml:"rst"`
	Busy string `yaml:"busy"`
	PWR  string `yaml:"pwr"`

	// Revision is "v2" or "gate296".
	Revision string `yaml:"revision"`
	// BusyTimeout bounds every busy wait. "0s" waits forever.
	BusyTimeout string `yaml:"busy_timeout"`
	// ReverseBits and Invert transform every frame byte. Invert defaults to
	// true, which prints black text on white. false sends the frame as is
	// and prints white on black.
	ReverseBits bool `yaml:"reverse_bits"`
	Invert      bool `yaml:"invert"`
}

// TextConfig describes the text layout.
type TextConfig struct {
	// Orientation is "portrait" or "landscape".
	Orientation string `yaml:"orientation"`
	// Refresh is "full" or "partial".
	Refresh string `yaml:"refresh"`
	// MaxLength is the longest accepted text in bytes.
	MaxLength int `yaml:"max_length"`
}

// MirrorConfig describes the HTTP frame mirror.
type MirrorConfig struct {
	Scale  int    `yaml:"scale"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration.
type Config struct {
	Panel PanelConfig `yaml:"panel"`
	Text  TextConfig  `yaml:"text"`

	// Listen is the HTTP listen address of the serve command.
	Listen string `yaml:"listen"`

	// FullRefreshCron is a cron schedule re-running a full refresh of the
	// current text, clearing partial refresh ghosting. Empty disables it.
	FullRefreshCron string `yaml:"full_refresh_cron"`

	Mirror MirrorConfig `yaml:"mirror"`
}

// DefaultConfig returns the configuration of a Waveshare HAT on a
// Raspberry Pi.
func DefaultConfig() *Config {
	return &Config{
		Panel: PanelConfig{
			DC:          "GPIO25",
			CS:          "GPIO8",
			RST:         "GPIO17",
			Busy:        "GPIO24",
			PWR:         "GPIO18",
			Revision:    RevisionV2,
			BusyTimeout: "5s",
			Invert:      true,
		},
		Text: TextConfig{
			Orientation: "landscape",
			Refresh:     "full",
			MaxLength:   textscreen.DefaultMaxLength,
		},
		Listen:          "127.0.0.1:8080",
		FullRefreshCron: "0 */6 * * *",
		Mirror: MirrorConfig{
			Scale:  2,
			Format: "png",
		},
	}
}

// Normalize fills in missing values with their defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Panel.DC == "" {
		c.Panel.DC = def.Panel.DC
	}
	if c.Panel.RST == "" {
		c.Panel.RST = def.Panel.RST
	}
	if c.Panel.Busy == "" {
		c.Panel.Busy = def.Panel.Busy
	}
	if c.Panel.Revision == "" {
		c.Panel.Revision = def.Panel.Revision
	}
	if c.Panel.BusyTimeout == "" {
		c.Panel.BusyTimeout = def.Panel.BusyTimeout
	}
	if c.Text.Orientation == "" {
		c.Text.Orientation = def.Text.Orientation
	}
	if c.Text.Refresh == "" {
		c.Text.Refresh = def.Text.Refresh
	}
	if c.Text.MaxLength <= 0 {
		c.Text.MaxLength = def.Text.MaxLength
	}
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Mirror.Scale <= 0 {
		c.Mirror.Scale = def.Mirror.Scale
	}
	if c.Mirror.Format == "" {
		c.Mirror.Format = def.Mirror.Format
	}
}

// PanelOpts returns the driver options of the configured revision.
func (c *Config) PanelOpts() (*waveshare2in13v2.Opts, error) {
	var opts waveshare2in13v2.Opts
	switch c.Panel.Revision {
	case RevisionV2:
		opts = waveshare2in13v2.EPD2in13v2
	case RevisionGate296:
		opts = waveshare2in13v2.EPD2in13v2Gate296
	default:
		return nil, fmt.Errorf("config: unknown panel revision %q", c.Panel.Revision)
	}
	timeout, err := time.ParseDuration(c.Panel.BusyTimeout)
	if err != nil {
		return nil, fmt.Errorf("config: busy_timeout: %w", err)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("config: negative busy_timeout %s", timeout)
	}
	opts.BusyTimeout = timeout
	opts.ReverseBits = c.Panel.ReverseBits
	opts.Invert = c.Panel.Invert
	return &opts, nil
}

// TextOpts returns the text screen options. The logger is left unset.
func (c *Config) TextOpts() (*textscreen.Opts, error) {
	o, err := framebuffer.ParseOrientation(c.Text.Orientation)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	opts := &textscreen.Opts{Orientation: o, MaxLength: c.Text.MaxLength}
	switch c.Text.Refresh {
	case "full":
		opts.Mode = waveshare2in13v2.Full
	case "partial":
		opts.Mode = waveshare2in13v2.Partial
	default:
		return nil, fmt.Errorf("config: unknown refresh mode %q", c.Text.Refresh)
	}
	return opts, nil
}

// MirrorOptions returns the frame mirror options for a panel of the given
// size.
func (c *Config) MirrorOptions(width, height int) (*videosink.Options, error) {
	format, err := videosink.ImageFormatFromString(c.Mirror.Format)
	if err != nil {
		return nil, fmt.Errorf("config: mirror format: %w", err)
	}
	o, err := framebuffer.ParseOrientation(c.Text.Orientation)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &videosink.Options{
		Width:       width,
		Height:      height,
		Orientation: o,
		Scale:       c.Mirror.Scale,
		Format:      format,
	}, nil
}

// Load loads configuration from the given YAML path. A missing file is
// created with the default configuration. Keys left out of the file take
// their value from DefaultConfig.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg to path through a temporary file and a rename. The file
// is only readable by its owner.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil configuration")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".epdtext-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
