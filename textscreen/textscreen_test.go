// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package textscreen

import (
	"errors"
	"image"
	"strings"
	"sync"
	"testing"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/GermanBionicSystems/epaper/waveshare2in13v2"
	"github.com/google/go-cmp/cmp"
)

type call struct {
	op    string
	frame []byte
}

// fakePanel records frames. When block is set every display waits for a
// value on it after signalling entered.
type fakePanel struct {
	mu      sync.Mutex
	calls   []call
	err     error
	result  waveshare2in13v2.BusyResult
	entered chan struct{}
	block   chan struct{}
}

func (p *fakePanel) record(op string, buf []byte) (waveshare2in13v2.BusyResult, error) {
	if p.block != nil {
		p.entered <- struct{}{}
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{op: op, frame: append([]byte(nil), buf...)})
	return p.result, p.err
}

func (p *fakePanel) DisplayFull(buf []byte) (waveshare2in13v2.BusyResult, error) {
	return p.record("full", buf)
}

func (p *fakePanel) DisplayPartial(buf []byte) (waveshare2in13v2.BusyResult, error) {
	return p.record("partial", buf)
}

func (p *fakePanel) Clear() (waveshare2in13v2.BusyResult, error) {
	return p.record("clear", nil)
}

func (p *fakePanel) Bounds() image.Rectangle {
	return image.Rect(0, 0, 122, 250)
}

func (p *fakePanel) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ops []string
	for _, c := range p.calls {
		ops = append(ops, c.op)
	}
	return ops
}

func newScreen(t *testing.T, p Panel, opts Opts) *Screen {
	t.Helper()
	s, err := New(p, &opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return s
}

func TestRender(t *testing.T) {
	for _, tc := range []struct {
		name   string
		opts   Opts
		wantOp string
	}{
		{"full landscape", Opts{Orientation: framebuffer.Landscape}, "full"},
		{"partial portrait", Opts{Mode: waveshare2in13v2.Partial}, "partial"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePanel{}
			s := newScreen(t, p, tc.opts)

			pl, err := s.Render("Hi")
			if err != nil {
				t.Fatalf("Render() failed: %v", err)
			}
			if diff := cmp.Diff(pl, Placement{Glyphs: 2, Lines: 1}); diff != "" {
				t.Errorf("Render() difference (-got +want):\n%s", diff)
			}
			if diff := cmp.Diff(p.ops(), []string{tc.wantOp}); diff != "" {
				t.Errorf("panel calls difference (-got +want):\n%s", diff)
			}

			want := framebuffer.New(122, 250)
			Layout(want, s.font, tc.opts.Orientation, "Hi")
			if diff := cmp.Diff(p.calls[0].frame, want.Bytes()); diff != "" {
				t.Errorf("frame difference (-got +want):\n%s", diff)
			}
			if got := s.Text(); got != "Hi" {
				t.Errorf("Text() = %q, want %q", got, "Hi")
			}
		})
	}
}

func TestRenderTwiceIsIdentical(t *testing.T) {
	p := &fakePanel{}
	s := newScreen(t, p, Opts{Orientation: framebuffer.Landscape})

	for i := 0; i < 2; i++ {
		if _, err := s.Render("same text\nagain"); err != nil {
			t.Fatalf("Render() failed: %v", err)
		}
	}
	if diff := cmp.Diff(p.calls[0].frame, p.calls[1].frame); diff != "" {
		t.Errorf("second render difference (-got +want):\n%s", diff)
	}
}

func TestRenderReplacesPreviousText(t *testing.T) {
	p := &fakePanel{}
	s := newScreen(t, p, Opts{})

	if _, err := s.Render(strings.Repeat("W", 40)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Render("i"); err != nil {
		t.Fatal(err)
	}
	want := framebuffer.New(122, 250)
	Layout(want, s.font, framebuffer.Portrait, "i")
	if diff := cmp.Diff(p.calls[1].frame, want.Bytes()); diff != "" {
		t.Errorf("frame difference (-got +want):\n%s", diff)
	}
}

func TestRenderTooLong(t *testing.T) {
	for _, tc := range []struct {
		name      string
		maxLength int
		text      string
	}{
		{"default limit", 0, strings.Repeat("a", 257)},
		{"custom limit", 4, "hello"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePanel{}
			s := newScreen(t, p, Opts{MaxLength: tc.maxLength})
			if _, err := s.Render("keep"); err != nil {
				t.Fatal(err)
			}
			before := s.Frame()

			if _, err := s.Render(tc.text); !errors.Is(err, ErrTooLong) {
				t.Errorf("Render() error = %v, want %v", err, ErrTooLong)
			}
			if _, err := s.TryRender(tc.text); !errors.Is(err, ErrTooLong) {
				t.Errorf("TryRender() error = %v, want %v", err, ErrTooLong)
			}
			if n, err := s.Write([]byte(tc.text)); n != 0 || !errors.Is(err, ErrTooLong) {
				t.Errorf("Write() = %d, %v, want 0, %v", n, err, ErrTooLong)
			}
			if got := len(p.ops()); got != 1 {
				t.Errorf("panel called %d times, want 1", got)
			}
			if !s.Frame().Equal(before) {
				t.Error("rejected text modified the frame")
			}
			if got := s.Text(); got != "keep" {
				t.Errorf("Text() = %q, want %q", got, "keep")
			}
		})
	}
}

func TestRenderAtLimit(t *testing.T) {
	p := &fakePanel{}
	s := newScreen(t, p, Opts{Orientation: framebuffer.Landscape})
	text := strings.Repeat("a", DefaultMaxLength)

	pl, err := s.Render(text)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if diff := cmp.Diff(pl, Placement{Glyphs: 256, Lines: 8}); diff != "" {
		t.Errorf("Render() difference (-got +want):\n%s", diff)
	}
}

func TestRenderPanelError(t *testing.T) {
	p := &fakePanel{err: waveshare2in13v2.ErrNotReady}
	s := newScreen(t, p, Opts{})

	if _, err := s.Render("x"); !errors.Is(err, waveshare2in13v2.ErrNotReady) {
		t.Errorf("Render() error = %v, want %v", err, waveshare2in13v2.ErrNotReady)
	}
	if got := s.Text(); got != "" {
		t.Errorf("Text() after failure = %q, want empty", got)
	}
}

func TestRenderPanelErrorKeepsFrame(t *testing.T) {
	p := &fakePanel{}
	s := newScreen(t, p, Opts{})

	if _, err := s.Render("kept"); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	shown := s.Frame()

	p.err = &waveshare2in13v2.TransportError{Op: "display", Err: errors.New("spi gone")}
	if _, err := s.Render("lost"); err == nil {
		t.Fatal("Render() succeeded on a failing panel")
	}
	if !s.Frame().Equal(shown) {
		t.Error("Frame() holds text that never reached the panel")
	}
	if got := s.Text(); got != "kept" {
		t.Errorf("Text() = %q, want %q", got, "kept")
	}

	p.err = nil
	if err := s.Redraw(waveshare2in13v2.Full); err != nil {
		t.Fatalf("Redraw() failed: %v", err)
	}
	last := p.calls[len(p.calls)-1]
	if diff := cmp.Diff(last.frame, shown.Bytes()); diff != "" {
		t.Errorf("Redraw() frame difference (-got +want):\n%s", diff)
	}
}

func TestLastBusy(t *testing.T) {
	forced := waveshare2in13v2.BusyResult{Polls: 50, Forced: true}
	p := &fakePanel{result: forced}
	s := newScreen(t, p, Opts{})

	if _, err := s.Render("x"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s.LastBusy(), forced); diff != "" {
		t.Errorf("LastBusy() difference (-got +want):\n%s", diff)
	}
}

func TestTryRenderBusy(t *testing.T) {
	p := &fakePanel{
		entered: make(chan struct{}),
		block:   make(chan struct{}),
	}
	s := newScreen(t, p, Opts{})

	done := make(chan error)
	go func() {
		_, err := s.Render("first")
		done <- err
	}()
	<-p.entered

	if _, err := s.TryRender("second"); !errors.Is(err, ErrBusy) {
		t.Errorf("TryRender() error = %v, want %v", err, ErrBusy)
	}

	close(p.block)
	if err := <-done; err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if got := s.Text(); got != "first" {
		t.Errorf("Text() = %q, want %q", got, "first")
	}
}

func TestClear(t *testing.T) {
	p := &fakePanel{}
	s := newScreen(t, p, Opts{})

	if _, err := s.Render("gone"); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if diff := cmp.Diff(p.ops(), []string{"full", "clear"}); diff != "" {
		t.Errorf("panel calls difference (-got +want):\n%s", diff)
	}
	if got := s.Text(); got != "" {
		t.Errorf("Text() = %q, want empty", got)
	}
	if n := countMarked(s.Frame()); n != 0 {
		t.Errorf("%d pixels marked after Clear()", n)
	}
}

func TestCapacity(t *testing.T) {
	for _, tc := range []struct {
		o          framebuffer.Orientation
		cols, rows int
	}{
		{framebuffer.Portrait, 17, 19},
		{framebuffer.Landscape, 35, 9},
	} {
		s := newScreen(t, &fakePanel{}, Opts{Orientation: tc.o})
		cols, rows := s.Capacity()
		if cols != tc.cols || rows != tc.rows {
			t.Errorf("%s: Capacity() = %d, %d, want %d, %d", tc.o, cols, rows, tc.cols, tc.rows)
		}
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(&fakePanel{}, &Opts{MaxLength: -1}); err == nil {
		t.Error("New() with a negative max length succeeded")
	}
}

func TestRedraw(t *testing.T) {
	p := &fakePanel{}
	s := newScreen(t, p, Opts{Mode: waveshare2in13v2.Partial})

	if _, err := s.Render("ghost"); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if err := s.Redraw(waveshare2in13v2.Full); err != nil {
		t.Fatalf("Redraw() failed: %v", err)
	}
	if diff := cmp.Diff(p.ops(), []string{"partial", "full"}); diff != "" {
		t.Errorf("panel calls difference (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(p.calls[1].frame, p.calls[0].frame); diff != "" {
		t.Errorf("redrawn frame difference (-got +want):\n%s", diff)
	}
	if got := s.Text(); got != "ghost" {
		t.Errorf("Text() = %q, want %q", got, "ghost")
	}

	p.err = errors.New("spi gone")
	if err := s.Redraw(waveshare2in13v2.Full); !errors.Is(err, p.err) {
		t.Errorf("Redraw() = %v, want %v", err, p.err)
	}
}
