package server

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"qtermsim/internal/config"
)

const bellBody = `{"num_qubits":2,"gates":[{"kind":"H","target":0},{"kind":"CX","control":0,"target":1}]}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.DevMode = true
	cfg.Sampler.Seed = 5
	cfg.Simulator.UnitaryMaxQubits = 3
	return New(Config{Log: zerolog.Nop(), Config: cfg})
}

func do(t *testing.T, s *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestConnTimeoutsCoverRequestTimeout(t *testing.T) {
	for _, request := range []time.Duration{0, 5 * time.Second, 30 * time.Second, 2 * time.Minute} {
		cfg := config.Default()
		cfg.Server.RequestTimeout = request
		s := New(Config{Log: zerolog.Nop(), Config: cfg})
		assert.Greater(t, s.server.WriteTimeout, request, "request timeout %s", request)
		assert.Greater(t, s.server.ReadTimeout, request, "request timeout %s", request)
		assert.GreaterOrEqual(t, s.server.WriteTimeout, 15*time.Second)
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestSimulateBell(t *testing.T) {
	body := strings.TrimSuffix(bellBody, "}") + `,"shots":1000}`
	rec := do(t, newTestServer(t), http.MethodPost, "/api/simulate", "application/json", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Snapshot struct {
			NumQubits  int `json:"num_qubits"`
			Amplitudes []struct {
				Index int     `json:"index"`
				Prob  float64 `json:"prob"`
			} `json:"amplitudes"`
			Metrics struct {
				Qubits []struct {
					Entropy float64 `json:"entropy"`
				} `json:"qubits"`
				Bell struct {
					CHSH  float64 `json:"chsh"`
					State string  `json:"state"`
				} `json:"bell"`
			} `json:"metrics"`
		} `json:"snapshot"`
		Histogram struct {
			Counts []int `json:"counts"`
			Shots  int   `json:"shots"`
		} `json:"histogram"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 2, resp.Snapshot.NumQubits)
	require.Len(t, resp.Snapshot.Amplitudes, 2)
	assert.InDelta(t, 0.5, resp.Snapshot.Amplitudes[0].Prob, 1e-12)
	assert.InDelta(t, 1, resp.Snapshot.Metrics.Qubits[0].Entropy, 1e-6)
	assert.InDelta(t, 2*math.Sqrt2, resp.Snapshot.Metrics.Bell.CHSH, 1e-6)
	assert.Equal(t, "phi+", resp.Snapshot.Metrics.Bell.State)
	assert.Equal(t, 1000, resp.Histogram.Shots)
	assert.Equal(t, 1000, resp.Histogram.Counts[0]+resp.Histogram.Counts[3])
}

func TestSimulateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"num_qubits":`, http.StatusBadRequest},
		{"unknown field", `{"num_qubits":1,"gates":[],"noise":true}`, http.StatusBadRequest},
		{"unknown kind", `{"num_qubits":1,"gates":[{"kind":"rx","target":0}]}`, http.StatusBadRequest},
		{"no qubits", `{"num_qubits":0,"gates":[]}`, http.StatusBadRequest},
		{"out of range", `{"num_qubits":2,"gates":[{"kind":"X","target":2}]}`, http.StatusUnprocessableEntity},
		{"same qubit", `{"num_qubits":2,"gates":[{"kind":"CZ","control":1,"target":1}]}`, http.StatusUnprocessableEntity},
		{"missing control", `{"num_qubits":2,"gates":[{"kind":"CY","target":1}]}`, http.StatusUnprocessableEntity},
		{"too many qubits", `{"num_qubits":7,"gates":[]}`, http.StatusUnprocessableEntity},
		{"too many shots", `{"num_qubits":1,"gates":[],"shots":2000000}`, http.StatusUnprocessableEntity},
	}
	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/simulate", "application/json", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestUnitary(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/unitary", "application/json", `{"num_qubits":1,"gates":[{"kind":"H","target":0}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp unitaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Dim)
	assert.InDelta(t, 1/math.Sqrt2, resp.Matrix[0][0][0], 1e-12)
	assert.InDelta(t, -1/math.Sqrt2, resp.Matrix[1][1][0], 1e-12)

	rec = do(t, s, http.MethodPost, "/api/unitary", "application/json", `{"num_qubits":4,"gates":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQASMEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/qasm", "text/plain", "qreg q[2];\nh q[0];\nx q[1];\ncx q[0], q[1];\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		NumQubits int   `json:"num_qubits"`
		Steps     []int `json:"steps"`
		Depth     int   `json:"depth"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.NumQubits)
	assert.Equal(t, []int{0, 0, 1}, resp.Steps)
	assert.Equal(t, 2, resp.Depth)

	rec = do(t, s, http.MethodPost, "/api/qasm", "text/plain", "qreg q[1];\nu3(0,0,0) q[0];")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "line 2")
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/sessions", "application/json", `{"num_qubits":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := decodeBody(t, rec)["id"].(string)
	require.NotEmpty(t, id)
	base := "/api/sessions/" + id

	rec = do(t, s, http.MethodPut, base+"/circuit", "application/json", bellBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, base+"/sample", "application/json", `{"shots":200}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 200, decodeBody(t, rec)["shots"])

	rec = do(t, s, http.MethodPost, base+"/sample", "application/json", `{"shots":300,"accumulate":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 500, decodeBody(t, rec)["shots"])

	// Replacing the circuit resets the histogram.
	rec = do(t, s, http.MethodPut, base+"/circuit", "text/plain", "qreg q[2];\nx q[0];")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	hist := decodeBody(t, rec)["histogram"].(map[string]any)
	assert.EqualValues(t, 0, hist["shots"])

	rec = do(t, s, http.MethodGet, base, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	circ := decodeBody(t, rec)["circuit"].(map[string]any)
	assert.Len(t, circ["gates"], 1)

	rec = do(t, s, http.MethodPost, base+"/sample", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1024, decodeBody(t, rec)["shots"])

	rec = do(t, s, http.MethodDelete, base, "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, base, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionDefaultsAndErrors(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/sessions", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	snap := decodeBody(t, rec)["snapshot"].(map[string]any)
	assert.EqualValues(t, 2, snap["num_qubits"])
	id := decodeBody(t, rec)["id"].(string)

	rec = do(t, s, http.MethodPut, "/api/sessions/"+id+"/circuit", "application/json", `{"num_qubits":2,"gates":[{"kind":"X","target":3}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/sessions/"+id+"/sample", "application/json", `{"shots":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/sessions/missing/sample", "application/json", `{"shots":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/sessions", "application/json", `{"num_qubits":9}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMsgpackNegotiation(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/simulate", bytes.NewBufferString(bellBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/msgpack")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var resp struct {
		Snapshot struct {
			NumQubits int     `msgpack:"num_qubits"`
			Norm      float64 `msgpack:"norm"`
		} `msgpack:"snapshot"`
	}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Snapshot.NumQubits)
	assert.InDelta(t, 1, resp.Snapshot.Norm, 1e-12)

	// Enum fields must arrive as msgpack str, the same text JSON carries.
	var raw map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &raw))
	bell := raw["snapshot"].(map[string]any)["metrics"].(map[string]any)["bell"].(map[string]any)
	assert.Equal(t, "phi+", bell["state"])

	req = httptest.NewRequest(http.MethodPost, "/api/qasm", strings.NewReader("qreg q[2];\nh q[0];\ncx q[0], q[1];"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/msgpack")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	raw = nil
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &raw))
	gates := raw["gates"].([]any)
	require.Len(t, gates, 2)
	assert.Equal(t, "H", gates[0].(map[string]any)["kind"])
	assert.Equal(t, "CX", gates[1].(map[string]any)["kind"])
}
