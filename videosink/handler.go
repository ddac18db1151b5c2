// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package videosink

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// maxScale bounds the "scale" URL parameter.
const maxScale = 8

// bufferPool stores reusable []byte instances.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return []byte(nil)
	},
}

type imageConfig struct {
	format ImageFormat
	scale  int
}

func (d *Display) configFromQuery(values url.Values) (imageConfig, error) {
	cfg := imageConfig{
		format: d.defaultFormat,
		scale:  d.scale,
	}

	if value := values.Get("format"); value != "" {
		format, err := ImageFormatFromString(value)
		if err != nil {
			return imageConfig{}, err
		}
		cfg.format = format
	}

	if value := values.Get("scale"); value != "" {
		scale, err := strconv.Atoi(value)
		if err != nil || scale < 1 || scale > maxScale {
			return imageConfig{}, fmt.Errorf("scale must be between 1 and %d, got %q", maxScale, value)
		}
		cfg.scale = scale
	}

	return cfg, nil
}

type client struct {
	refresh   chan struct{}
	terminate chan struct{}
}

func (d *Display) bufferChangedLocked() {
	d.version++

	for cfg, buffer := range d.snapshot {
		if buffer != nil {
			//lint:ignore SA6002 buffer is []byte and thus pointer-like
			bufferPool.Put(buffer)
		}

		delete(d.snapshot, cfg)
	}

	for c := range d.clients {
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	}
}

func (d *Display) terminateClientsLocked() {
	for c := range d.clients {
		select {
		case c.terminate <- struct{}{}:
		default:
		}
	}
}

func (d *Display) encodeBufferLocked(cfg imageConfig) ([]byte, error) {
	buf := bytes.NewBuffer(bufferPool.Get().([]byte)[:0])

	if err := d.encode(buf, d.imageLocked(cfg.scale), cfg.format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Display) grabSnapshot(cfg imageConfig) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoded, ok := d.snapshot[cfg]
	if !ok {
		var err error

		encoded, err = d.encodeBufferLocked(cfg)
		if err != nil {
			return nil, err
		}
		d.snapshot[cfg] = encoded
	}

	return append(bufferPool.Get().([]byte)[:0], encoded...), nil
}

// ServeHTTP handles HTTP GET requests and sends a stream of images
// representing the frame in response. The display options control the
// default format and scale; clients can override them with the "format"
// ("?format=png", "?format=jpeg") and "scale" ("?scale=2") parameters.
func (d *Display) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.Body.Close(); err != nil {
		d.log.WithError(err).Debug("closing request body failed")
	}

	if r.Method != http.MethodGet {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	cfg, err := d.configFromQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pw := makePartWriter(w)

	w.Header().Set("Content-Type",
		mime.FormatMediaType("multipart/x-mixed-replace", map[string]string{
			"boundary": pw.boundary,
		}))

	c := &client{
		refresh:   make(chan struct{}, 1),
		terminate: make(chan struct{}, 1),
	}

	d.mu.Lock()
	d.clients[c] = struct{}{}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.clients, c)
		d.mu.Unlock()

		d.log.WithFields(logrus.Fields{
			"remote": r.RemoteAddr,
			"frames": pw.frames,
			"bytes":  pw.written,
		}).Debug("mirror client gone")
	}()

	partHeaders := make(textproto.MIMEHeader)
	partHeaders.Set("Content-Type", mime.FormatMediaType(cfg.format.mimeType(), nil))
	partHeaders.Set("Content-Transfer-Encoding", "binary")

	var keepalive <-chan time.Time
	if d.keepalive > 0 {
		ticker := time.NewTicker(d.keepalive)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	for {
		payload, err := d.grabSnapshot(cfg)
		if err != nil {
			d.log.WithError(err).WithField("format", cfg.format).Error("encoding frame failed")
			return
		}

		err = pw.writeFrame(partHeaders, payload)

		//lint:ignore SA6002 buffer is []byte and thus pointer-like
		bufferPool.Put(payload)

		if err != nil {
			// Errors cause the request to be silently terminated. There's no
			// good way to deliver an error message to the client within an
			// image stream.
			return
		}

		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		select {
		case <-c.refresh:
		case <-keepalive:
		case <-c.terminate:
			return
		case <-r.Context().Done():
			return
		}
	}
}
