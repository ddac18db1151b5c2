// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/GermanBionicSystems/epaper/textscreen"
	"github.com/GermanBionicSystems/epaper/waveshare2in13v2"
	"github.com/gorilla/mux"
)

// ErrorMessage is the JSON body of every non 2xx API response.
type ErrorMessage struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// StateResponse is returned by GET /api/state.
type StateResponse struct {
	State             string `json:"state"`
	TextLength        int    `json:"text_length"`
	MaxLength         int    `json:"max_length"`
	LastRefreshForced bool   `json:"last_refresh_forced"`
}

// RenderResponse is returned after a text was rendered.
type RenderResponse struct {
	Glyphs    int   `json:"glyphs"`
	Lines     int   `json:"lines"`
	Truncated int   `json:"truncated"`
	Polls     int   `json:"busy_polls"`
	WaitedMS  int64 `json:"busy_waited_ms"`
	Forced    bool  `json:"busy_forced"`
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)

	api := router.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = http.HandlerFunc(errorNotFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(errorMethodNotAllowed)

	api.HandleFunc("/state", s.getState).Methods("GET")
	api.HandleFunc("/text", s.getText).Methods("GET")
	api.HandleFunc("/text", s.putText).Methods("PUT", "POST")
	api.HandleFunc("/clear", s.postClear).Methods("POST")
	api.HandleFunc("/sleep", s.postSleep).Methods("POST")
	api.HandleFunc("/init", s.postInit).Methods("POST")

	if s.mirror != nil {
		router.Handle("/mirror", s.mirror).Methods("GET")
	}
	return router
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &StateResponse{
		State:             s.dev.State().String(),
		TextLength:        len(s.screen.Text()),
		MaxLength:         s.screen.MaxLength(),
		LastRefreshForced: s.screen.LastBusy().Forced,
	})
}

func (s *Server) getText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.screen.Text())
}

func (s *Server) putText(w http.ResponseWriter, r *http.Request) {
	// One byte over the limit is enough to get ErrTooLong.
	body, err := io.ReadAll(io.LimitReader(r.Body, int64(s.screen.MaxLength())+1))
	if err != nil {
		errorMessage(w, err.Error(), http.StatusBadRequest)
		return
	}
	p, err := s.screen.TryRender(string(body))
	if err != nil {
		s.fail(w, "render", err)
		return
	}
	s.updateMirror()

	b := s.screen.LastBusy()
	if b.Forced {
		s.log.WithField("waited", b.Waited).Warn("render released busy line")
	}
	writeJSON(w, http.StatusOK, &RenderResponse{
		Glyphs:    p.Glyphs,
		Lines:     p.Lines,
		Truncated: p.Truncated,
		Polls:     b.Polls,
		WaitedMS:  b.Waited.Milliseconds(),
		Forced:    b.Forced,
	})
}

func (s *Server) postClear(w http.ResponseWriter, r *http.Request) {
	if err := s.screen.Clear(); err != nil {
		s.fail(w, "clear", err)
		return
	}
	s.updateMirror()
	errorStatus(w, http.StatusOK)
}

func (s *Server) postSleep(w http.ResponseWriter, r *http.Request) {
	if err := s.dev.Sleep(); err != nil {
		s.fail(w, "sleep", err)
		return
	}
	errorStatus(w, http.StatusOK)
}

// postInit runs the full initialization, which also wakes the panel, and
// blanks the screen.
func (s *Server) postInit(w http.ResponseWriter, r *http.Request) {
	if _, err := s.dev.InitFull(); err != nil {
		s.fail(w, "init", err)
		return
	}
	if err := s.screen.Clear(); err != nil {
		s.fail(w, "clear", err)
		return
	}
	s.updateMirror()
	errorStatus(w, http.StatusOK)
}

// fail maps err to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, textscreen.ErrTooLong):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, textscreen.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, waveshare2in13v2.ErrNotReady):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("op", op).Error("panel operation failed")
	} else {
		s.log.WithError(err).WithField("op", op).Debug("request rejected")
	}
	errorMessage(w, err.Error(), status)
}

func errorNotFound(w http.ResponseWriter, r *http.Request) {
	errorStatus(w, http.StatusNotFound)
}

func errorMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	errorStatus(w, http.StatusMethodNotAllowed)
}

func errorStatus(w http.ResponseWriter, status int) {
	errorMessage(w, "", status)
}

func errorMessage(w http.ResponseWriter, message string, status int) {
	if message == "" {
		switch status {
		case http.StatusOK:
			message = "Ok"
		case http.StatusNotFound:
			message = "Page not found"
		case http.StatusMethodNotAllowed:
			message = "Method not allowed"
		default:
			message = http.StatusText(status)
		}
	}
	writeJSON(w, status, &ErrorMessage{StatusCode: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
