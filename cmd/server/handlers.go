package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/momentics/valonsynth/internal/util"
	"github.com/momentics/valonsynth/pkg/valon"
)

type api struct {
	pool           *valon.SynthPool
	defaultTarget  string
	channelSpacing float64
	logger         *zap.Logger
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/status", a.status)
	mux.HandleFunc("POST /api/v1/frequency", a.setFrequency)
	mux.HandleFunc("GET /api/v1/ports", a.ports)
}

type frequencyRequest struct {
	Port         string   `json:"port"`
	Channel      string   `json:"channel"`
	FrequencyMHz float64  `json:"frequency_mhz"`
	SpacingMHz   *float64 `json:"channel_spacing_mhz,omitempty"`
}

type writeResponse struct {
	Acked        bool    `json:"acked"`
	FrequencyMHz float64 `json:"frequency_mhz,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) synth(port string) (*valon.Synth, error) {
	if port == "" {
		port = a.defaultTarget
	}
	return a.pool.Get(port)
}

// GET /api/v1/status?port=/dev/ttyUSB0&channel=A
func (a *api) status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ch, err := valon.ParseChannel(valueOr(q.Get("channel"), "A"))
	if err != nil {
		a.fail(w, err)
		return
	}
	s, err := a.synth(q.Get("port"))
	if err != nil {
		a.fail(w, err)
		return
	}
	st, err := s.Status(ch)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /api/v1/frequency {"port": "...", "channel": "A", "frequency_mhz": 2400}
func (a *api) setFrequency(w http.ResponseWriter, r *http.Request) {
	var req frequencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("некорректный запрос: %v", err)})
		return
	}
	ch, err := valon.ParseChannel(valueOr(req.Channel, "A"))
	if err != nil {
		a.fail(w, err)
		return
	}
	spacing := a.channelSpacing
	if req.SpacingMHz != nil {
		spacing = *req.SpacingMHz
	}

	s, err := a.synth(req.Port)
	if err != nil {
		a.fail(w, err)
		return
	}
	acked, err := s.SetFrequency(ch, req.FrequencyMHz, spacing)
	if err != nil {
		a.fail(w, err)
		return
	}
	if !acked {
		writeJSON(w, http.StatusConflict, writeResponse{Acked: false})
		return
	}
	freq, err := s.GetFrequency(ch)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, writeResponse{Acked: true, FrequencyMHz: freq})
}

func (a *api) ports(w http.ResponseWriter, r *http.Request) {
	ports, err := util.ListPorts()
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ports": ports, "open": a.pool.Ports()})
}

func (a *api) fail(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		a.logger.Warn("ошибка обращения к синтезатору", zap.Error(err))
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// statusCode сопоставляет ошибку драйвера HTTP-статусу.
func statusCode(err error) int {
	switch {
	case errors.Is(err, valon.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, valon.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, valon.ErrClosed):
		return http.StatusServiceUnavailable
	case valon.IsProtocolError(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
