// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package textscreen

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/GermanBionicSystems/epaper/glyph"
	"github.com/GermanBionicSystems/epaper/waveshare2in13v2"
	"github.com/sirupsen/logrus"
)

// DefaultMaxLength is the text length limit used when Opts.MaxLength is 0.
const DefaultMaxLength = 256

var (
	// ErrTooLong is returned for text above the maximum length. Neither the
	// frame nor the panel is touched.
	ErrTooLong = errors.New("textscreen: text too long")

	// ErrBusy is returned by TryRender while another operation runs.
	ErrBusy = errors.New("textscreen: render in progress")
)

// Panel is the panel session a Screen draws on.
//
// *waveshare2in13v2.Dev implements it.
type Panel interface {
	DisplayFull(buf []byte) (waveshare2in13v2.BusyResult, error)
	DisplayPartial(buf []byte) (waveshare2in13v2.BusyResult, error)
	Clear() (waveshare2in13v2.BusyResult, error)
	Bounds() image.Rectangle
}

// Opts configures a Screen.
type Opts struct {
	Orientation framebuffer.Orientation
	// Font defaults to glyph.Basic().
	Font *glyph.Table
	// MaxLength is the longest accepted text in bytes. 0 means
	// DefaultMaxLength.
	MaxLength int
	// Mode selects the refresh run after each render.
	Mode waveshare2in13v2.PartialUpdate
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Screen renders text on a panel and remembers the last text shown.
type Screen struct {
	mu sync.Mutex

	panel       Panel
	frame       *framebuffer.Frame
	font        *glyph.Table
	orientation framebuffer.Orientation
	maxLength   int
	mode        waveshare2in13v2.PartialUpdate
	log         logrus.FieldLogger

	text string
	last waveshare2in13v2.BusyResult
}

// New returns a Screen drawing on p.
func New(p Panel, opts *Opts) (*Screen, error) {
	if opts == nil {
		opts = &Opts{}
	}
	b := p.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("textscreen: empty panel bounds %v", b)
	}
	s := &Screen{
		panel:       p,
		frame:       framebuffer.New(b.Dx(), b.Dy()),
		font:        opts.Font,
		orientation: opts.Orientation,
		maxLength:   opts.MaxLength,
		mode:        opts.Mode,
		log:         opts.Logger,
	}
	if s.font == nil {
		s.font = glyph.Basic()
	}
	if s.maxLength == 0 {
		s.maxLength = DefaultMaxLength
	}
	if s.maxLength < 0 {
		return nil, fmt.Errorf("textscreen: invalid max length %d", s.maxLength)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	s.log = s.log.WithField("screen", s.orientation.String())
	return s, nil
}

// MaxLength returns the longest accepted text.
func (s *Screen) MaxLength() int {
	return s.maxLength
}

// Capacity returns the number of glyph columns and rows of the canvas.
func (s *Screen) Capacity() (cols, rows int) {
	size := s.orientation.Logical(s.frame.Width(), s.frame.Height())
	return size.X / s.font.Width, size.Y / s.font.Height
}

// Render clears the frame, lays out text and refreshes the panel. It waits
// for any running operation.
func (s *Screen) Render(text string) (Placement, error) {
	if err := s.check(text); err != nil {
		return Placement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render(text)
}

// TryRender is like Render but returns ErrBusy instead of waiting.
func (s *Screen) TryRender(text string) (Placement, error) {
	if err := s.check(text); err != nil {
		return Placement{}, err
	}
	if !s.mu.TryLock() {
		return Placement{}, ErrBusy
	}
	defer s.mu.Unlock()
	return s.render(text)
}

// Write renders p as one text. It implements io.Writer.
func (s *Screen) Write(p []byte) (int, error) {
	if _, err := s.Render(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Redraw sends the current frame again with the given refresh mode. A full
// redraw removes the ghosting left by partial refreshes.
func (s *Screen) Redraw(mode waveshare2in13v2.PartialUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if mode == waveshare2in13v2.Partial {
		s.last, err = s.panel.DisplayPartial(s.frame.Copy())
	} else {
		s.last, err = s.panel.DisplayFull(s.frame.Copy())
	}
	return err
}

// Text returns the last successfully rendered text.
func (s *Screen) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// LastBusy returns the busy summary of the last refresh.
func (s *Screen) LastBusy() waveshare2in13v2.BusyResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Frame returns a copy of the frame last sent to the panel.
func (s *Screen) Frame() *framebuffer.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := framebuffer.New(s.frame.Width(), s.frame.Height())
	_ = f.Load(s.frame.Bytes())
	return f
}

// Clear blanks the panel and forgets the text.
func (s *Screen) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.panel.Clear()
	s.last = r
	if err != nil {
		return err
	}
	s.frame.Clear()
	s.text = ""
	return nil
}

func (s *Screen) check(text string) error {
	if len(text) > s.maxLength {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLong, len(text), s.maxLength)
	}
	return nil
}

// render lays text out on a fresh frame. The frame replaces the current one
// only once the panel accepted it.
func (s *Screen) render(text string) (Placement, error) {
	next := framebuffer.New(s.frame.Width(), s.frame.Height())
	p := Layout(next, s.font, s.orientation, text)
	if p.Truncated > 0 {
		s.log.WithFields(logrus.Fields{
			"glyphs":  p.Glyphs,
			"dropped": p.Truncated,
		}).Debug("text truncated at the bottom edge")
	}

	var (
		r   waveshare2in13v2.BusyResult
		err error
	)
	if s.mode == waveshare2in13v2.Partial {
		r, err = s.panel.DisplayPartial(next.Bytes())
	} else {
		r, err = s.panel.DisplayFull(next.Bytes())
	}
	s.last = r
	if err != nil {
		return p, err
	}
	s.frame = next
	s.text = text
	return p, nil
}
