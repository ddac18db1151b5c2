// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package waveshare2in13v2

type controller interface {
	sendCommand(byte)
	sendData([]byte)
	waitUntilIdle()
}

// step is one command of a register program, with its optional payload.
// When wait is set the busy line is awaited after the step.
type step struct {
	cmd  byte
	data []byte
	wait bool
}

// run replays a register program in order.
func run(ctrl controller, prog []step) {
	for _, s := range prog {
		ctrl.sendCommand(s.cmd)
		if len(s.data) > 0 {
			ctrl.sendData(s.data)
		}
		if s.wait {
			ctrl.waitUntilIdle()
		}
	}
}

// fullInitProgram returns the register program loaded after a reset.
func fullInitProgram(opts *Opts) []step {
	lut := opts.FullUpdate
	_, cols := dataDimensions(opts)

	return []step{
		{cmd: swReset, wait: true},
		{cmd: setAnalogBlockControl, data: []byte{0x54}},
		{cmd: setDigitalBlockControl, data: []byte{0x3B}},
		{cmd: driverOutputControl, data: opts.DriverOutput[:]},
		// X increment, Y decrement.
		{cmd: dataEntryModeSetting, data: []byte{0x01}},
		{cmd: setRAMXAddressStartEndPosition, data: []byte{0x00, byte(cols - 1)}},
		{cmd: setRAMYAddressStartEndPosition, data: opts.RAMYWindow[:]},
		{cmd: borderWaveformControl, data: []byte{0x03}},
		{cmd: writeVcomRegister, data: []byte{0x55}},
		{cmd: gateDrivingVoltageControl, data: lut[70:71]},
		{cmd: sourceDrivingVoltageControl, data: lut[71:74]},
		{cmd: setDummyLinePeriod, data: lut[74:75]},
		{cmd: setGateTime, data: lut[75:76]},
		{cmd: writeLutRegister, data: lut[:70]},
		{cmd: setRAMXAddressCounter, data: []byte{0x00}},
		{cmd: setRAMYAddressCounter, data: opts.RAMYCounter[:], wait: true},
	}
}

// partialInitProgram returns the program switching a ready panel to the
// partial refresh waveform.
func partialInitProgram(opts *Opts) []step {
	return []step{
		{cmd: writeVcomRegister, data: []byte{0x26}, wait: true},
		{cmd: writeLutRegister, data: opts.PartialUpdate[:70]},
		// Undocumented, used in vendor example code.
		{cmd: writeOTPSelection, data: []byte{0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00}},
		{cmd: displayUpdateControl2, data: []byte{0xC0}},
		{cmd: masterActivation, wait: true},
		{cmd: borderWaveformControl, data: []byte{0x01}},
	}
}

func initDisplayFull(ctrl controller, opts *Opts) {
	ctrl.waitUntilIdle()
	run(ctrl, fullInitProgram(opts))
}

func initDisplayPartial(ctrl controller, opts *Opts) {
	run(ctrl, partialInitProgram(opts))
}

func turnOnDisplay(ctrl controller, mode PartialUpdate) {
	sequence := byte(0xC7)
	if mode == Partial {
		sequence = 0x0C
	}
	run(ctrl, []step{
		{cmd: displayUpdateControl2, data: []byte{sequence}},
		{cmd: masterActivation, wait: true},
	})
}

func writeRAM(ctrl controller, bank byte, data []byte) {
	ctrl.sendCommand(bank)
	ctrl.sendData(data)
}

func enterDeepSleep(ctrl controller) {
	run(ctrl, []step{
		{cmd: displayUpdateControl2, data: []byte{0xC3}},
		{cmd: masterActivation},
		{cmd: deepSleepMode, data: []byte{0x01}},
	})
}
