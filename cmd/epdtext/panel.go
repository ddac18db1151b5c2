// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/GermanBionicSystems/epaper/internal/config"
	"github.com/GermanBionicSystems/epaper/screen2d"
	"github.com/GermanBionicSystems/epaper/waveshare2in13v2"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/conn/v3/spi/spitest"
	"periph.io/x/host/v3"
)

// panel is an opened panel session, real or simulated.
type panel struct {
	dev         *waveshare2in13v2.Dev
	orientation framebuffer.Orientation
	preview     *screen2d.Dev
	closer      func() error
}

// openPanel wires the configured panel. In simulation mode the SPI port
// records the transfers and every GPIO line is a test pin, so the protocol
// runs without hardware.
func openPanel(cfg *config.Config, simulate bool, log *logrus.Logger) (*panel, error) {
	opts, err := cfg.PanelOpts()
	if err != nil {
		return nil, err
	}
	o, err := framebuffer.ParseOrientation(cfg.Text.Orientation)
	if err != nil {
		return nil, err
	}
	p := &panel{orientation: o, closer: func() error { return nil }}
	step := 1

	if simulate {
		port := &spitest.Record{}
		busy := &gpiotest.Pin{N: "BUSY"}
		p.dev, err = waveshare2in13v2.NewWithPower(port,
			&gpiotest.Pin{N: "DC"}, &gpiotest.Pin{N: "CS"}, &gpiotest.Pin{N: "RST"}, &gpiotest.Pin{N: "PWR"},
			busy, opts)
		if err != nil {
			return nil, err
		}
		log.WithField("revision", cfg.Panel.Revision).Info("simulated panel")
	} else {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("periph host init failed: %w", err)
		}
		port, err := spireg.Open(cfg.Panel.SPI)
		if err != nil {
			return nil, fmt.Errorf("failed to open SPI port %q: %w", cfg.Panel.SPI, err)
		}
		if p.dev, err = openHardware(port, &cfg.Panel, opts); err != nil {
			port.Close()
			return nil, err
		}
		p.closer = port.Close
		step = 2
		log.WithFields(logrus.Fields{"spi": port.String(), "revision": cfg.Panel.Revision}).Info("panel opened")
	}
	p.dev.SetLogger(log.WithField("dev", "waveshare2in13v2"))

	if fd := os.Stdout.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		b := p.dev.Bounds()
		p.preview = screen2d.New(&screen2d.Opts{
			Width:       b.Dx(),
			Height:      b.Dy(),
			Orientation: o,
			Step:        step,
		})
	}
	return p, nil
}

// openHardware resolves the configured GPIO lines and opens the panel on
// port.
func openHardware(port spi.Port, c *config.PanelConfig, opts *waveshare2in13v2.Opts) (*waveshare2in13v2.Dev, error) {
	dc, err := outPin("dc", c.DC, true)
	if err != nil {
		return nil, err
	}
	cs, err := outPin("cs", c.CS, false)
	if err != nil {
		return nil, err
	}
	rst, err := outPin("rst", c.RST, true)
	if err != nil {
		return nil, err
	}
	pwr, err := outPin("pwr", c.PWR, false)
	if err != nil {
		return nil, err
	}
	busy := gpioreg.ByName(c.Busy)
	if busy == nil {
		return nil, fmt.Errorf("busy gpio %q not found", c.Busy)
	}
	return waveshare2in13v2.NewWithPower(port, dc, cs, rst, pwr, busy, opts)
}

// outPin resolves a GPIO output by name. Optional lines may be left empty.
func outPin(role, name string, required bool) (gpio.PinOut, error) {
	if name == "" {
		if required {
			return nil, fmt.Errorf("%s gpio is not configured", role)
		}
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%s gpio %q not found", role, name)
	}
	return p, nil
}

// show prints f on the terminal preview, if any.
func (p *panel) show(f *framebuffer.Frame) {
	if p.preview == nil {
		return
	}
	_ = p.preview.Show(f)
	_ = p.preview.Halt()
}

// Close powers the panel down and releases the SPI port.
func (p *panel) Close() error {
	err := p.dev.Close()
	if err2 := p.closer(); err == nil {
		err = err2
	}
	return err
}
