// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package server exposes a text screen over HTTP and runs the scheduled full
// refresh.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GermanBionicSystems/epaper/textscreen"
	"github.com/GermanBionicSystems/epaper/videosink"
	"github.com/GermanBionicSystems/epaper/waveshare2in13v2"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Device is the panel session behind the screen.
//
// *waveshare2in13v2.Dev implements it.
type Device interface {
	State() waveshare2in13v2.State
	InitFull() (waveshare2in13v2.BusyResult, error)
	Sleep() error
}

// Options configures a Server.
type Options struct {
	// Addr is the TCP listen address used by Start.
	Addr string
	// FullRefreshCron is a standard five field cron schedule. Empty disables
	// the scheduled full refresh.
	FullRefreshCron string
	// Mirror, when set, is served at /mirror and updated after every change
	// of the screen.
	Mirror *videosink.Display
	// Logger defaults to the logrus standard logger.
	Logger *logrus.Logger
}

// Server is the HTTP front of a text screen.
type Server struct {
	screen *textscreen.Screen
	dev    Device
	mirror *videosink.Display
	log    logrus.FieldLogger

	router  *mux.Router
	handler http.Handler
	access  *io.PipeWriter
	server  *http.Server
	cron    *cron.Cron

	mu       sync.Mutex
	listener net.Listener
}

// New returns a Server driving screen and dev.
func New(screen *textscreen.Screen, dev Device, opts *Options) (*Server, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		screen: screen,
		dev:    dev,
		mirror: opts.Mirror,
		log:    logger.WithField("component", "server"),
	}

	s.cron = cron.New(cron.WithLogger(cronLogger{s.log}))
	if opts.FullRefreshCron != "" {
		if _, err := s.cron.AddFunc(opts.FullRefreshCron, s.fullRefresh); err != nil {
			return nil, fmt.Errorf("server: full refresh schedule %q: %w", opts.FullRefreshCron, err)
		}
	}

	s.router = s.routes()
	s.access = logger.WriterLevel(logrus.DebugLevel)
	s.handler = handlers.LoggingHandler(s.access,
		handlers.RecoveryHandler(handlers.RecoveryLogger(s.log), handlers.PrintRecoveryStack(true))(s.router))

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the complete HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background. The
// scheduled full refresh starts with it.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	s.log.WithField("addr", l.Addr().String()).Info("listening")
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
		}
	}()
	s.cron.Start()
	return nil
}

// Addr returns the listen address once started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the schedule, disconnects mirror clients and waits for the
// running requests.
func (s *Server) Shutdown(ctx context.Context) error {
	<-s.cron.Stop().Done()
	if s.mirror != nil {
		_ = s.mirror.Halt()
	}
	err := s.server.Shutdown(ctx)
	s.access.Close()
	return err
}

// fullRefresh redraws the current frame with the full waveform. It is skipped
// while the panel is not ready.
func (s *Server) fullRefresh() {
	if st := s.dev.State(); st != waveshare2in13v2.Ready {
		s.log.WithField("state", st).Debug("full refresh skipped")
		return
	}
	if err := s.screen.Redraw(waveshare2in13v2.Full); err != nil {
		s.log.WithError(err).Error("scheduled full refresh failed")
		return
	}
	if r := s.screen.LastBusy(); r.Forced {
		s.log.WithField("waited", r.Waited).Warn("scheduled full refresh released busy line")
	}
	s.log.Debug("scheduled full refresh done")
}

// updateMirror publishes the screen frame to the mirror clients.
func (s *Server) updateMirror() {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Update(s.screen.Frame()); err != nil {
		s.log.WithError(err).Warn("mirror update failed")
	}
}

// cronLogger routes the scheduler messages to logrus.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error("cron: " + msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
