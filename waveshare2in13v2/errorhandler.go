// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package waveshare2in13v2

import (
	"periph.io/x/conn/v3/gpio"
)

// errorHandler is a wrapper for error management.
//
// The first failure is kept as a *TransportError and turns every later call
// into a no-op.
type errorHandler struct {
	d    *Dev
	op   string
	err  error
	busy BusyResult
}

func (eh *errorHandler) fail(err error) {
	if err != nil && eh.err == nil {
		eh.err = &TransportError{Op: eh.op, Err: err}
	}
}

func (eh *errorHandler) pinOut(p gpio.PinOut, l gpio.Level) {
	if eh.err != nil || p == nil {
		return
	}
	eh.fail(p.Out(l))
}

func (eh *errorHandler) rstOut(l gpio.Level) {
	eh.pinOut(eh.d.rst, l)
}

func (eh *errorHandler) dcOut(l gpio.Level) {
	eh.pinOut(eh.d.dc, l)
}

func (eh *errorHandler) csOut(l gpio.Level) {
	eh.pinOut(eh.d.cs, l)
}

func (eh *errorHandler) pwrOut(l gpio.Level) {
	eh.pinOut(eh.d.pwr, l)
}

func (eh *errorHandler) cTx(w []byte, r []byte) {
	if eh.err != nil {
		return
	}
	eh.fail(eh.d.c.Tx(w, r))
}

func (eh *errorHandler) waitUntilIdle() {
	if eh.err != nil {
		return
	}
	eh.busy = eh.busy.merge(eh.d.waitBusy())
}

func (eh *errorHandler) sendCommand(cmd byte) {
	if eh.err != nil {
		return
	}

	eh.dcOut(gpio.Low)
	eh.csOut(gpio.Low)
	eh.cTx([]byte{cmd}, nil)
	eh.csOut(gpio.High)
}

// sendData streams data in transfers no larger than the connection allows.
func (eh *errorHandler) sendData(data []byte) {
	if eh.err != nil {
		return
	}

	eh.dcOut(gpio.High)
	eh.csOut(gpio.Low)
	for len(data) > 0 {
		n := min(len(data), eh.d.maxTxSize)
		eh.cTx(data[:n], nil)
		data = data[n:]
	}
	eh.csOut(gpio.High)
}
