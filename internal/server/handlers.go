package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vmihailenco/msgpack/v5"

	"qtermsim/internal/circuit"
	"qtermsim/internal/config"
	"qtermsim/internal/gate"
	"qtermsim/internal/measure"
	"qtermsim/internal/quantum"
	"qtermsim/internal/session"
)

const (
	maxBodyBytes   = 1 << 20
	msgpackContent = "application/msgpack"
)

var errBadRequest = errors.New("bad request")

type simulateRequest struct {
	circuit.Wire
	Shots int `json:"shots" validate:"min=0"`
}

type simulateResponse struct {
	Snapshot  *session.Snapshot  `json:"snapshot" msgpack:"snapshot"`
	Histogram *histogramResponse `json:"histogram,omitempty" msgpack:"histogram,omitempty"`
}

type histogramResponse struct {
	*measure.Histogram `msgpack:",inline"`
	Stats              measure.Stats `json:"stats" msgpack:"stats"`
}

type unitaryResponse struct {
	Dim    int            `json:"dim" msgpack:"dim"`
	Matrix [][][2]float64 `json:"matrix" msgpack:"matrix"`
}

type qasmResponse struct {
	circuit.Wire `msgpack:",inline"`
	Steps        []int `json:"steps" msgpack:"steps"`
	Depth        int   `json:"depth" msgpack:"depth"`
}

type createSessionRequest struct {
	NumQubits int `json:"num_qubits" validate:"min=0"`
}

type sessionResponse struct {
	ID        string             `json:"id" msgpack:"id"`
	Circuit   circuit.Wire       `json:"circuit" msgpack:"circuit"`
	Snapshot  *session.Snapshot  `json:"snapshot" msgpack:"snapshot"`
	Histogram *histogramResponse `json:"histogram" msgpack:"histogram"`
}

type sampleRequest struct {
	Shots      *int `json:"shots" validate:"omitempty,min=0"`
	Accumulate bool `json:"accumulate"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, r, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "qtermsim",
		"sessions": s.store.Len(),
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.buildCircuit(req.Wire)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	state, err := c.Simulate()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := session.Describe(state, len(c.Gates))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := simulateResponse{Snapshot: snap}
	if req.Shots > 0 {
		if req.Shots > s.cfg.Sampler.MaxShots {
			s.writeError(w, r, fmt.Errorf("%w: %d > %d", session.ErrShotsLimit, req.Shots, s.cfg.Sampler.MaxShots))
			return
		}
		h, err := measure.NewSampler(s.cfg.Sampler.Seed).Sample(state, req.Shots)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Histogram = newHistogramResponse(h)
	}
	s.writeResponse(w, r, http.StatusOK, resp)
}

func (s *Server) handleUnitary(w http.ResponseWriter, r *http.Request) {
	var req circuit.Wire
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.buildCircuit(req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := quantum.Unitary(c.NumQubits, c.Gates, s.cfg.Simulator.UnitaryMaxQubits)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	dim, _ := u.Dims()
	resp := unitaryResponse{Dim: dim, Matrix: make([][][2]float64, dim)}
	for i := range resp.Matrix {
		resp.Matrix[i] = make([][2]float64, dim)
		for j := range resp.Matrix[i] {
			v := u.At(i, j)
			resp.Matrix[i][j] = [2]float64{real(v), imag(v)}
		}
	}
	s.writeResponse(w, r, http.StatusOK, resp)
}

func (s *Server) handleQASM(w http.ResponseWriter, r *http.Request) {
	c, err := s.readQASM(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, qasmResponse{
		Wire:  c.Wire(),
		Steps: circuit.Layout(c),
		Depth: circuit.Depth(c),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.NumQubits == 0 {
		req.NumQubits = s.cfg.Simulator.DefaultQubits
	}
	sess, err := s.store.Create(req.NumQubits)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info().Str("session_id", sess.ID).Int("qubits", req.NumQubits).Msg("Session created")
	s.writeSession(w, r, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetCircuit accepts either a JSON circuit or QASM text (Content-Type text/*).
func (s *Server) handleSetCircuit(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var c *circuit.Circuit
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/") {
		c, err = s.readQASM(r)
	} else {
		var req circuit.Wire
		if err = s.decode(r, &req); err == nil {
			c, err = req.Circuit()
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.SetCircuit(c); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req sampleRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	shots := s.cfg.Sampler.DefaultShots
	if req.Shots != nil {
		shots = *req.Shots
	}
	h, err := sess.Sample(shots, req.Accumulate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, http.StatusOK, newHistogramResponse(h))
}

func (s *Server) buildCircuit(wire circuit.Wire) (*circuit.Circuit, error) {
	c, err := wire.Circuit()
	if err != nil {
		return nil, err
	}
	if err := c.Validate(s.cfg.Simulator.MaxQubits); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Server) readQASM(r *http.Request) (*circuit.Circuit, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	c, err := circuit.ParseQASM(string(body))
	if err != nil {
		return nil, err
	}
	if err := c.Validate(s.cfg.Simulator.MaxQubits); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Server) decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, sess *session.Session) {
	snap, err := sess.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, r, status, sessionResponse{
		ID:        sess.ID,
		Circuit:   sess.Circuit().Wire(),
		Snapshot:  snap,
		Histogram: newHistogramResponse(sess.Histogram()),
	})
}

func newHistogramResponse(h *measure.Histogram) *histogramResponse {
	return &histogramResponse{Histogram: h, Stats: h.Stats()}
}

// writeResponse encodes data as msgpack when the client asks for it and as JSON
// otherwise.
func (s *Server) writeResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if strings.Contains(r.Header.Get("Accept"), msgpackContent) {
		body, err := msgpack.Marshal(data)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to encode msgpack response")
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encoding failed"})
			return
		}
		w.Header().Set("Content-Type", msgpackContent)
		w.WriteHeader(status)
		if _, err := w.Write(body); err != nil {
			s.log.Error().Err(err).Msg("Failed to write msgpack response")
		}
		return
	}
	s.writeJSON(w, status, data)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps err to a status code and writes it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := s.log.Warn()
	if status >= http.StatusInternalServerError {
		event = s.log.Error()
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request failed")

	s.writeResponse(w, r, status, map[string]string{
		"error": err.Error(),
	})
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.As(err, &verrs):
		return http.StatusBadRequest
	case isDomainError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

var domainErrors = []error{
	gate.ErrUnsupportedKind,
	gate.ErrNegativeQubit,
	gate.ErrQubitOutOfRange,
	gate.ErrSameQubit,
	gate.ErrMissingControl,
	gate.ErrUnexpectedControl,
	quantum.ErrNoQubits,
	quantum.ErrTooManyQubits,
	quantum.ErrUnitaryTooLarge,
	circuit.ErrParse,
	measure.ErrNegativeShots,
	session.ErrShotsLimit,
	config.ErrInvalid,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
