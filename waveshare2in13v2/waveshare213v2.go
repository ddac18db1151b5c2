// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package waveshare2in13v2

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GermanBionicSystems/epaper/framebuffer"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3/rpi"
)

// Commands
const (
	driverOutputControl            byte = 0x01
	gateDrivingVoltageControl      byte = 0x03
	sourceDrivingVoltageControl    byte = 0x04
	deepSleepMode                  byte = 0x10
	dataEntryModeSetting           byte = 0x11
	swReset                        byte = 0x12
	masterActivation               byte = 0x20
	displayUpdateControl2          byte = 0x22
	writeRAMBW                     byte = 0x24
	writeRAMRed                    byte = 0x26
	writeVcomRegister              byte = 0x2C
	writeLutRegister               byte = 0x32
	writeOTPSelection              byte = 0x37
	setDummyLinePeriod             byte = 0x3A
	setGateTime                    byte = 0x3B
	borderWaveformControl          byte = 0x3C
	setRAMXAddressStartEndPosition byte = 0x44
	setRAMYAddressStartEndPosition byte = 0x45
	setRAMXAddressCounter          byte = 0x4E
	setRAMYAddressCounter          byte = 0x4F
	setAnalogBlockControl          byte = 0x74
	setDigitalBlockControl         byte = 0x7E
)

const (
	// resetHold is the time the reset line is held high around the pulse.
	resetHold = 200 * time.Millisecond
	// sleepSettle is the time given to the controller after deep sleep.
	sleepSettle = 100 * time.Millisecond
	// minResetLow is the shortest reset pulse the controller accepts.
	minResetLow = 2 * time.Millisecond
	// lutSize is the length of a waveform table including the voltage
	// trailer.
	lutSize = 76
)

// LUT contains the waveform that is used to program the display.
//
// The first 70 bytes are the waveform proper. They are followed by the gate
// voltage, three source voltages, the dummy line period and the gate time.
type LUT []byte

// Opts definies the structure of the display configuration.
type Opts struct {
	Width         int
	Height        int
	FullUpdate    LUT
	PartialUpdate LUT

	// DriverOutput is the payload of the driver output control command.
	DriverOutput [3]byte
	// RAMYWindow is the payload of the RAM Y start/end command.
	RAMYWindow [4]byte
	// RAMYCounter is the payload of the RAM Y address counter command.
	RAMYCounter [2]byte

	// ResetLow is the length of the reset pulse. It must be at least 2ms.
	ResetLow time.Duration
	// BusyPoll is the busy line polling interval.
	BusyPoll time.Duration
	// BusyTimeout bounds each busy wait. Zero waits forever.
	BusyTimeout time.Duration

	// ReverseBits mirrors the bit order of every frame byte.
	ReverseBits bool
	// Invert flips every frame bit before it is written to RAM.
	Invert bool
}

// PartialUpdate defines if the display should do a full update or just a partial update.
type PartialUpdate bool

const (
	// Full should update the complete display.
	Full PartialUpdate = false
	// Partial should update only partial parts of the display.
	Partial PartialUpdate = true
)

func (p PartialUpdate) String() string {
	if p {
		return "partial"
	}
	return "full"
}

var fullUpdate = LUT{
	0x80, 0x60, 0x40, 0x00, 0x00, 0x00, 0x00,
	0x10, 0x60, 0x20, 0x00, 0x00, 0x00, 0x00,
	0x80, 0x60, 0x40, 0x00, 0x00, 0x00, 0x00,
	0x10, 0x60, 0x20, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,

	0x03, 0x03, 0x00, 0x00, 0x02,
	0x09, 0x09, 0x00, 0x00, 0x02,
	0x03, 0x03, 0x00, 0x00, 0x02,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,

	0x15, 0x41, 0xA8, 0x32, 0x30, 0x0A,
}

var partialUpdate = LUT{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,

	0x0A, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,

	0x15, 0x41, 0xA8, 0x32, 0x30, 0x0A,
}

// EPD2in13v2 cointains display configuration for the Waveshare 2in13v2.
var EPD2in13v2 = Opts{
	Width:         122,
	Height:        250,
	FullUpdate:    fullUpdate,
	PartialUpdate: partialUpdate,
	DriverOutput:  [3]byte{0xF9, 0x00, 0x00},
	RAMYWindow:    [4]byte{0xF9, 0x00, 0x00, 0x00}, // 0xF9 --> (249+1) = 250
	RAMYCounter:   [2]byte{0xF9, 0x00},
	ResetLow:      2 * time.Millisecond,
	BusyPoll:      100 * time.Millisecond,
	BusyTimeout:   5 * time.Second,
}

// EPD2in13v2Gate296 is the same panel driven with the 296 gate line
// geometry some controller revisions ship with.
var EPD2in13v2Gate296 = Opts{
	Width:         122,
	Height:        250,
	FullUpdate:    fullUpdate,
	PartialUpdate: partialUpdate,
	DriverOutput:  [3]byte{0x27, 0x01, 0x01},
	RAMYWindow:    [4]byte{0x27, 0x01, 0x2E, 0x00},
	RAMYCounter:   [2]byte{0x27, 0x01},
	ResetLow:      200 * time.Millisecond,
	BusyPoll:      100 * time.Millisecond,
	BusyTimeout:   5 * time.Second,
}

func (o *Opts) validate() error {
	switch {
	case o.Width <= 0 || o.Height <= 0:
		return fmt.Errorf("%w: geometry %dx%d", ErrInvalidOpts, o.Width, o.Height)
	case len(o.FullUpdate) != lutSize:
		return fmt.Errorf("%w: full update LUT has %d bytes, want %d", ErrInvalidOpts, len(o.FullUpdate), lutSize)
	case len(o.PartialUpdate) != lutSize:
		return fmt.Errorf("%w: partial update LUT has %d bytes, want %d", ErrInvalidOpts, len(o.PartialUpdate), lutSize)
	case o.ResetLow < minResetLow:
		return fmt.Errorf("%w: reset pulse %s shorter than %s", ErrInvalidOpts, o.ResetLow, minResetLow)
	case o.BusyPoll <= 0:
		return fmt.Errorf("%w: busy poll interval %s", ErrInvalidOpts, o.BusyPoll)
	case o.BusyTimeout < 0:
		return fmt.Errorf("%w: busy timeout %s", ErrInvalidOpts, o.BusyTimeout)
	}
	return nil
}

// dataDimensions returns the size in terms of bytes needed to fill the
// display.
func dataDimensions(opts *Opts) (int, int) {
	return opts.Height, (opts.Width + 7) / 8
}

// FrameSize returns the number of bytes of a full frame for opts.
func FrameSize(opts *Opts) int {
	rows, cols := dataDimensions(opts)
	return rows * cols
}

// encode applies the bit order and polarity settings to a frame. buf is
// returned as is when no transform is configured.
func (o *Opts) encode(buf []byte) []byte {
	if !o.ReverseBits && !o.Invert {
		return buf
	}
	out := make([]byte, len(buf))
	for i, b := range buf {
		if o.ReverseBits {
			b = bits.Reverse8(b)
		}
		if o.Invert {
			b = ^b
		}
		out[i] = b
	}
	return out
}

// Dev defines the handler which is used to access the display.
type Dev struct {
	mu sync.Mutex

	c         conn.Conn
	maxTxSize int

	dc   gpio.PinOut
	cs   gpio.PinOut
	rst  gpio.PinOut
	pwr  gpio.PinOut
	busy gpio.PinIn

	opts  *Opts
	log   logrus.FieldLogger
	sleep func(time.Duration)

	frame *framebuffer.Frame
	state atomic.Uint32
	// mode is the waveform table loaded in the controller.
	mode PartialUpdate
	// shown is the RAM content of the last refresh, nil when unknown.
	shown []byte
	last  BusyResult
}

// New creates new handler which is used to access the display.
//
// cs may be nil when the SPI driver owns chip select.
func New(p spi.Port, dc, cs, rst gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	return NewWithPower(p, dc, cs, rst, nil, busy, opts)
}

// NewWithPower is like New but also drives the panel power line. pwr is
// raised here and lowered by Close.
func NewWithPower(p spi.Port, dc, cs, rst, pwr gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	c, err := p.Connect(5*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, err
	}
	return newDev(c, dc, cs, rst, pwr, busy, opts)
}

// NewHat creates new handler which is used to access the display. Default Waveshare Hat configuration is used.
func NewHat(p spi.Port, opts *Opts) (*Dev, error) {
	dc := rpi.P1_22
	cs := rpi.P1_24
	rst := rpi.P1_11
	pwr := rpi.P1_12
	busy := rpi.P1_18
	return NewWithPower(p, dc, cs, rst, pwr, busy, opts)
}

func newDev(c conn.Conn, dc, cs, rst, pwr gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	maxTxSize := 0
	if l, ok := c.(conn.Limits); ok {
		maxTxSize = l.MaxTxSize()
	}
	if maxTxSize <= 0 {
		maxTxSize = 4096
	}

	d := &Dev{
		c:         c,
		maxTxSize: maxTxSize,
		dc:        dc,
		cs:        cs,
		rst:       rst,
		pwr:       pwr,
		busy:      busy,
		opts:      opts,
		log:       logrus.StandardLogger().WithField("dev", "waveshare2in13v2"),
		sleep:     time.Sleep,
		frame:     framebuffer.New(opts.Width, opts.Height),
	}

	if err := busy.In(gpio.Float, gpio.NoEdge); err != nil {
		return nil, err
	}
	eh := d.handler("open")
	eh.dcOut(gpio.Low)
	eh.rstOut(gpio.High)
	eh.csOut(gpio.High)
	eh.pwrOut(gpio.High)
	if eh.err != nil {
		return nil, eh.err
	}
	return d, nil
}

// SetLogger replaces the logger used for busy line warnings and state
// changes.
func (d *Dev) SetLogger(l logrus.FieldLogger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = l
}

// State returns the current session state. It does not wait for a running
// operation.
func (d *Dev) State() State {
	return State(d.state.Load())
}

func (d *Dev) setState(s State) {
	if old := State(d.state.Swap(uint32(s))); old != s {
		d.log.WithFields(logrus.Fields{"from": old, "to": s}).Debug("state change")
	}
}

// LastBusy returns the busy wait summary of the last completed operation.
func (d *Dev) LastBusy() BusyResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Reset pulses the reset line. The panel then needs InitFull.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reset()
}

// InitFull resets the panel and loads the full refresh register program.
// It is valid in every state and is the only way out of Asleep.
func (d *Dev) InitFull() (BusyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.reset(); err != nil {
		return BusyResult{}, err
	}
	eh := d.handler("init")
	initDisplayFull(eh, d.opts)
	r, err := d.finish(eh, Ready)
	if err == nil {
		d.mode = Full
		d.shown = nil
	}
	return r, err
}

// InitPartial loads the partial refresh waveform on a ready panel.
func (d *Dev) InitPartial() (BusyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return BusyResult{}, err
	}
	eh := d.handler("init partial")
	d.setState(Busy)
	initDisplayPartial(eh, d.opts)
	r, err := d.finish(eh, Ready)
	if err == nil {
		d.mode = Partial
	}
	return r, err
}

// Clear writes an all white frame and runs a full refresh.
func (d *Dev) Clear() (BusyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clear()
}

// DisplayFull writes buf to RAM and runs a full refresh. The full waveform is
// loaded again first when the partial one is active.
func (d *Dev) DisplayFull(buf []byte) (BusyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.display("display", buf, Full, writeRAMBW)
}

// DisplayPartial writes buf to RAM and runs a partial refresh. When the full
// waveform is active the partial one is loaded first and the frame of the
// last refresh becomes the base image.
func (d *Dev) DisplayPartial(buf []byte) (BusyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.display("display partial", buf, Partial, writeRAMBW)
}

// DisplayPartialBase writes buf to both RAM banks and runs a full refresh.
// Subsequent partial refreshes diff against it.
func (d *Dev) DisplayPartialBase(buf []byte) (BusyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.display("display base", buf, Full, writeRAMBW, writeRAMRed)
}

// RefreshFull runs a full refresh of the current RAM content.
func (d *Dev) RefreshFull() (BusyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refresh("refresh", Full)
}

// RefreshPartial runs a partial refresh of the current RAM content.
func (d *Dev) RefreshPartial() (BusyResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refresh("refresh partial", Partial)
}

// Sleep puts the panel in deep sleep. Only InitFull wakes it up.
func (d *Dev) Sleep() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	eh := d.handler("sleep")
	enterDeepSleep(eh)
	d.sleep(sleepSettle)
	_, err := d.finish(eh, Asleep)
	return err
}

// Close drives every control line low, the power line included. The SPI
// port stays open; it belongs to the caller.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	eh := d.handler("close")
	eh.csOut(gpio.Low)
	eh.pwrOut(gpio.Low)
	eh.dcOut(gpio.Low)
	eh.rstOut(gpio.Low)
	d.setState(Uninitialized)
	return eh.err
}

// Halt clears the display.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.State() != Ready {
		return nil
	}
	_, err := d.clear()
	return err
}

// ColorModel returns a 1Bit color model.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds returns the bounds for the configurated display.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.opts.Width, d.opts.Height)
}

// Draw draws the given image to the display with a full refresh.
//
// image1bit.On pixels set RAM bits. Pixels outside dstRect keep what the
// previous Draw left.
func (d *Dev) Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	draw.Src.Draw(d.frame, dstRect.Intersect(d.frame.Bounds()), src, sp)
	_, err := d.display("draw", d.frame.Copy(), Full, writeRAMBW)
	return err
}

// String returns a string containing configuration information.
func (d *Dev) String() string {
	return fmt.Sprintf("epd.Dev{%s, %s, Width: %d, Height: %d}", d.c, d.dc, d.opts.Width, d.opts.Height)
}

func (d *Dev) handler(op string) *errorHandler {
	return &errorHandler{d: d, op: op}
}

// ready checks the session accepts frame and refresh operations.
func (d *Dev) ready() error {
	if s := d.State(); s != Ready {
		return fmt.Errorf("%w: %s", ErrNotReady, s)
	}
	return nil
}

// finish records the outcome of an operation and moves the session to next,
// or back to Uninitialized on a transport failure.
func (d *Dev) finish(eh *errorHandler, next State) (BusyResult, error) {
	d.last = eh.busy
	if eh.busy.Forced {
		d.log.WithFields(logrus.Fields{
			"op":     eh.op,
			"polls":  eh.busy.Polls,
			"waited": eh.busy.Waited,
		}).Warn("busy line forced released, refresh may be incomplete")
	}
	if eh.err != nil {
		d.setState(Uninitialized)
		d.log.WithError(eh.err).WithField("op", eh.op).Error("transport failure")
		return eh.busy, eh.err
	}
	d.setState(next)
	return eh.busy, nil
}

func (d *Dev) reset() error {
	d.setState(Resetting)
	eh := d.handler("reset")
	eh.rstOut(gpio.High)
	d.sleep(resetHold)
	eh.rstOut(gpio.Low)
	d.sleep(d.opts.ResetLow)
	eh.rstOut(gpio.High)
	d.sleep(resetHold)
	_, err := d.finish(eh, Initializing)
	return err
}

func (d *Dev) clear() (BusyResult, error) {
	if err := d.ready(); err != nil {
		return BusyResult{}, err
	}
	eh := d.handler("clear")
	d.setState(Busy)
	d.useWaveform(eh, Full)
	blank := bytes.Repeat([]byte{0xFF}, FrameSize(d.opts))
	writeRAM(eh, writeRAMBW, blank)
	turnOnDisplay(eh, Full)
	r, err := d.finish(eh, Ready)
	if err == nil {
		d.shown = blank
		// Keep the Draw buffer in step with the glass.
		fill := byte(0xFF)
		if d.opts.Invert {
			fill = 0x00
		}
		_ = d.frame.Load(bytes.Repeat([]byte{fill}, d.frame.Len()))
	}
	return r, err
}

func (d *Dev) display(op string, buf []byte, mode PartialUpdate, banks ...byte) (BusyResult, error) {
	if want := FrameSize(d.opts); len(buf) != want {
		return BusyResult{}, fmt.Errorf("%w: got %d bytes, want %d", ErrBufferSize, len(buf), want)
	}
	if err := d.ready(); err != nil {
		return BusyResult{}, err
	}
	eh := d.handler(op)
	data := d.opts.encode(buf)
	d.setState(Busy)
	d.useWaveform(eh, mode)
	for _, bank := range banks {
		writeRAM(eh, bank, data)
	}
	turnOnDisplay(eh, mode)
	r, err := d.finish(eh, Ready)
	if err == nil {
		d.shown = data
	}
	return r, err
}

func (d *Dev) refresh(op string, mode PartialUpdate) (BusyResult, error) {
	if err := d.ready(); err != nil {
		return BusyResult{}, err
	}
	eh := d.handler(op)
	d.setState(Busy)
	d.useWaveform(eh, mode)
	turnOnDisplay(eh, mode)
	return d.finish(eh, Ready)
}

// useWaveform loads the waveform table of mode unless it is already active.
// Switching to partial also writes the base image the partial refresh diffs
// against. A panel never refreshed since InitFull is assumed blank.
func (d *Dev) useWaveform(eh *errorHandler, mode PartialUpdate) {
	if d.mode == mode {
		return
	}
	if mode == Full {
		initDisplayFull(eh, d.opts)
	} else {
		initDisplayPartial(eh, d.opts)
		base := d.shown
		if base == nil {
			base = bytes.Repeat([]byte{0xFF}, FrameSize(d.opts))
		}
		writeRAM(eh, writeRAMRed, base)
	}
	if eh.err == nil {
		d.mode = mode
	}
}

// waitBusy polls the busy line until it is low or the configured timeout
// elapses.
func (d *Dev) waitBusy() BusyResult {
	var r BusyResult
	for d.busy.Read() == gpio.High {
		if d.opts.BusyTimeout > 0 && r.Waited >= d.opts.BusyTimeout {
			r.Forced = true
			break
		}
		d.sleep(d.opts.BusyPoll)
		r.Polls++
		r.Waited += d.opts.BusyPoll
	}
	return r
}

var _ display.Drawer = &Dev{}
