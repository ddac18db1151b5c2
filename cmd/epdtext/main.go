// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// epdtext prints text on a Waveshare 2.13" V2 e-paper panel.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/GermanBionicSystems/epaper/internal/config"
	"github.com/GermanBionicSystems/epaper/internal/server"
	"github.com/GermanBionicSystems/epaper/internal/version"
	"github.com/GermanBionicSystems/epaper/textscreen"
	"github.com/GermanBionicSystems/epaper/videosink"
	"github.com/GermanBionicSystems/epaper/waveshare2in13v2"
	"github.com/sirupsen/logrus"
)

const configSuffix = "epdtext"

// app carries the global flags and the loaded configuration.
type app struct {
	simulate bool
	cfg      *config.Config
	log      *logrus.Logger
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	mainCommand := filepath.Base(os.Args[0])

	debugMode := flag.Bool("d", false, "Enable debug mode")
	simulationMode := flag.Bool("s", false, "Enable simulation mode, no hardware is touched")

	defaultConfig := filepath.Join(".", "."+configSuffix, "config.yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		defaultConfig = filepath.Join(dir, configSuffix, "config.yaml")
	}
	configPath := flag.String("c", defaultConfig, "Location of the epdtext config file")

	flag.Usage = func() {
		fmt.Printf("\nUsage: %s [OPTIONS] COMMAND\n", mainCommand)
		fmt.Printf("\nPrint text on a 2.13\" e-paper panel\n")
		fmt.Printf("\nOptions:\n")
		flag.PrintDefaults()
		fmt.Printf("\nCommands:\n")
		fmt.Printf("  init      Initialize and clear the panel\n")
		fmt.Printf("  clear     Clear the panel and put it to sleep\n")
		fmt.Printf("  print     Print text or a test pattern\n")
		fmt.Printf("  sleep     Put the panel to deep sleep\n")
		fmt.Printf("  serve     Serve the HTTP API\n")
		fmt.Printf("  dump      Render text to a PNG file without a panel\n")
		fmt.Printf("  version   Show the version number\n")
		fmt.Printf("\nRun '%s COMMAND --help' for more information on a command.\n", mainCommand)
	}

	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *debugMode {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339Nano})
		logrus.Debug("Debug mode activated")
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "version" {
		fmt.Printf("Version %s\n", version.App.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Unable to load %s: %v", *configPath, err)
	}
	a := &app{simulate: *simulationMode, cfg: cfg, log: logrus.StandardLogger()}

	switch cmd {
	case "init":
		err = a.runInit(mainCommand, args)
	case "clear":
		err = a.runClear(mainCommand, args)
	case "print":
		err = a.runPrint(mainCommand, args)
	case "sleep":
		err = a.runSleep(mainCommand, args)
	case "serve":
		err = a.runServe(mainCommand, args)
	case "dump":
		err = a.runDump(mainCommand, args)
	default:
		fmt.Printf("\n%s is not an epdtext command\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		logrus.Fatal(err)
	}
}

// noArgs parses a command without arguments.
func noArgs(mainCommand, name, help string, args []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Printf("\nUsage: %s %s\n", mainCommand, name)
		fmt.Printf("\n%s\n", help)
	}
	fs.Parse(args)
	if fs.NArg() > 0 {
		fmt.Printf("\n\"%s %s\" accepts no arguments\n", mainCommand, name)
		fs.Usage()
		os.Exit(1)
	}
}

// open opens the panel and brings it to Ready with a blank screen. In
// partial mode the blank frame also becomes the partial base image.
func (a *app) open(mode waveshare2in13v2.PartialUpdate) (*panel, error) {
	p, err := openPanel(a.cfg, a.simulate, a.log)
	if err != nil {
		return nil, err
	}
	if err := a.prepare(p, mode); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (a *app) prepare(p *panel, mode waveshare2in13v2.PartialUpdate) error {
	r, err := p.dev.InitFull()
	if err != nil {
		return err
	}
	a.logBusy("init", r)
	if r, err = p.dev.Clear(); err != nil {
		return err
	}
	a.logBusy("clear", r)
	if mode != waveshare2in13v2.Partial {
		return nil
	}
	b := p.dev.Bounds()
	if r, err = p.dev.DisplayPartialBase(framebuffer.New(b.Dx(), b.Dy()).Bytes()); err != nil {
		return err
	}
	a.logBusy("base", r)
	if r, err = p.dev.InitPartial(); err != nil {
		return err
	}
	a.logBusy("init partial", r)
	return nil
}

func (a *app) logBusy(op string, r waveshare2in13v2.BusyResult) {
	e := a.log.WithFields(logrus.Fields{"op": op, "polls": r.Polls, "waited": r.Waited})
	if r.Forced {
		e.Warn("busy line released by timeout")
		return
	}
	e.Debug("done")
}

func (a *app) runInit(mainCommand string, args []string) error {
	noArgs(mainCommand, "init", "Initialize and clear the panel", args)
	p, err := a.open(waveshare2in13v2.Full)
	if err != nil {
		return err
	}
	a.log.WithField("state", p.dev.State()).Info("panel initialized")
	return p.Close()
}

func (a *app) runClear(mainCommand string, args []string) error {
	noArgs(mainCommand, "clear", "Clear the panel and put it to deep sleep", args)
	p, err := a.open(waveshare2in13v2.Full)
	if err != nil {
		return err
	}
	p.show(framebuffer.New(p.dev.Bounds().Dx(), p.dev.Bounds().Dy()))
	if err := p.dev.Sleep(); err != nil {
		p.Close()
		return err
	}
	return p.Close()
}

func (a *app) runSleep(mainCommand string, args []string) error {
	noArgs(mainCommand, "sleep", "Put the panel to deep sleep", args)
	p, err := openPanel(a.cfg, a.simulate, a.log)
	if err != nil {
		return err
	}
	defer p.Close()
	// Deep sleep is only accepted from Ready.
	if _, err := p.dev.InitFull(); err != nil {
		return err
	}
	if err := p.dev.Sleep(); err != nil {
		return err
	}
	a.log.Info("panel asleep")
	return nil
}

func (a *app) runPrint(mainCommand string, args []string) error {
	fs := flag.NewFlagSet("print", flag.ExitOnError)
	patternName := fs.String("pattern", "", "Print a test pattern instead of text: checkerboard, black or white")
	sleep := fs.Bool("sleep", true, "Put the panel to deep sleep afterwards")
	fs.Usage = func() {
		fmt.Printf("\nUsage: %s print [OPTIONS] [TEXT...]\n", mainCommand)
		fmt.Printf("\nPrint TEXT, or the standard input when no TEXT is given\n")
		fmt.Printf("\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	textOpts, err := a.cfg.TextOpts()
	if err != nil {
		return err
	}
	textOpts.Logger = a.log

	var text string
	if *patternName == "" {
		if text, err = readText(fs.Args(), os.Stdin); err != nil {
			return err
		}
	}

	p, err := a.open(textOpts.Mode)
	if err != nil {
		return err
	}
	defer p.Close()

	var f *framebuffer.Frame
	if *patternName != "" {
		b := p.dev.Bounds()
		if f, err = pattern(*patternName, b.Dx(), b.Dy()); err != nil {
			return err
		}
		var r waveshare2in13v2.BusyResult
		if textOpts.Mode == waveshare2in13v2.Partial {
			r, err = p.dev.DisplayPartial(f.Bytes())
		} else {
			r, err = p.dev.DisplayFull(f.Bytes())
		}
		if err != nil {
			return err
		}
		a.logBusy("pattern", r)
	} else {
		s, err := textscreen.New(p.dev, textOpts)
		if err != nil {
			return err
		}
		pl, err := s.Render(text)
		if err != nil {
			return err
		}
		a.logBusy("render", s.LastBusy())
		a.log.WithFields(logrus.Fields{"glyphs": pl.Glyphs, "lines": pl.Lines, "truncated": pl.Truncated}).Info("text printed")
		f = s.Frame()
	}
	p.show(f)

	if *sleep {
		return p.dev.Sleep()
	}
	return nil
}

// readText joins args with spaces, or reads r when args is empty.
func readText(args []string, r io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(b), "\n"), nil
}

func (a *app) runServe(mainCommand string, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listen := fs.String("listen", "", "HTTP listen address, overrides the config file")
	fs.Usage = func() {
		fmt.Printf("\nUsage: %s serve [OPTIONS]\n", mainCommand)
		fmt.Printf("\nServe the HTTP API until interrupted\n")
		fmt.Printf("\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if *listen != "" {
		a.cfg.Listen = *listen
	}

	textOpts, err := a.cfg.TextOpts()
	if err != nil {
		return err
	}
	textOpts.Logger = a.log

	p, err := a.open(textOpts.Mode)
	if err != nil {
		return err
	}
	defer p.Close()

	s, err := textscreen.New(p.dev, textOpts)
	if err != nil {
		return err
	}
	b := p.dev.Bounds()
	mirrorOpts, err := a.cfg.MirrorOptions(b.Dx(), b.Dy())
	if err != nil {
		return err
	}
	mirrorOpts.Keepalive = time.Minute
	mirrorOpts.Logger = a.log
	mirror := videosink.New(mirrorOpts)

	srv, err := server.New(s, p.dev, &server.Options{
		Addr:            a.cfg.Listen,
		FullRefreshCron: a.cfg.FullRefreshCron,
		Mirror:          mirror,
		Logger:          a.log,
	})
	if err != nil {
		return err
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		a.log.WithField("signal", sig.String()).Info("signal received, shutting down")
		cancel()
	}()

	if err := srv.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("http shutdown")
	}

	// Leave a blank panel behind.
	if p.dev.State() == waveshare2in13v2.Ready {
		if err := s.Clear(); err != nil {
			return err
		}
		if err := p.dev.Sleep(); err != nil {
			return err
		}
	}
	a.log.Info("epdtext exiting")
	return nil
}

func (a *app) runDump(mainCommand string, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	out := fs.String("o", "epdtext.png", "Output PNG file, - for the standard output")
	scale := fs.Int("scale", 2, "Size of one panel pixel in the image")
	patternName := fs.String("pattern", "", "Dump a test pattern instead of text: checkerboard, black or white")
	fs.Usage = func() {
		fmt.Printf("\nUsage: %s dump [OPTIONS] [TEXT...]\n", mainCommand)
		fmt.Printf("\nRender TEXT, or the standard input, as the panel would show it\n")
		fmt.Printf("\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	opts, err := a.cfg.PanelOpts()
	if err != nil {
		return err
	}
	o, err := framebuffer.ParseOrientation(a.cfg.Text.Orientation)
	if err != nil {
		return err
	}

	var f *framebuffer.Frame
	if *patternName != "" {
		if f, err = pattern(*patternName, opts.Width, opts.Height); err != nil {
			return err
		}
	} else {
		text, err := readText(fs.Args(), os.Stdin)
		if err != nil {
			return err
		}
		if len(text) > a.cfg.Text.MaxLength {
			return fmt.Errorf("%w: %d bytes, limit %d", textscreen.ErrTooLong, len(text), a.cfg.Text.MaxLength)
		}
		var pl textscreen.Placement
		f, pl = textFrame(text, opts.Width, opts.Height, o)
		a.log.WithFields(logrus.Fields{"glyphs": pl.Glyphs, "lines": pl.Lines, "truncated": pl.Truncated}).Debug("text laid out")
	}

	dc := snapshot(f, o, *scale)
	if *out == "-" {
		return dc.EncodePNG(os.Stdout)
	}
	if err := dc.SavePNG(*out); err != nil {
		return err
	}
	a.log.WithField("file", *out).Info("snapshot written")
	return nil
}
