// Package session owns one circuit, the state simulated from it, and the
// measurement histogram sampled from that state.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"qtermsim/internal/circuit"
	"qtermsim/internal/entangle"
	"qtermsim/internal/measure"
	"qtermsim/internal/quantum"
)

var ErrShotsLimit = errors.New("shot count above limit")

// Limits bound what a session accepts.
type Limits struct {
	MaxQubits        int
	UnitaryMaxQubits int
	MaxShots         int
}

// Amplitude is one basis state of the snapshot.
type Amplitude struct {
	Index int     `json:"index" yaml:"index" msgpack:"index"`
	Label string  `json:"label" yaml:"label" msgpack:"label"`
	Re    float64 `json:"re" yaml:"re" msgpack:"re"`
	Im    float64 `json:"im" yaml:"im" msgpack:"im"`
	Prob  float64 `json:"prob" yaml:"prob" msgpack:"prob"`
	Phase float64 `json:"phase" yaml:"phase" msgpack:"phase"`
}

// Snapshot is everything derived from the current state.
type Snapshot struct {
	NumQubits  int               `json:"num_qubits" yaml:"num_qubits" msgpack:"num_qubits"`
	Gates      int               `json:"gates" yaml:"gates" msgpack:"gates"`
	Norm       float64           `json:"norm" yaml:"norm" msgpack:"norm"`
	Amplitudes []Amplitude       `json:"amplitudes" yaml:"amplitudes" msgpack:"amplitudes"`
	Metrics    *entangle.Metrics `json:"metrics" yaml:"metrics" msgpack:"metrics"`
}

// supportEps hides basis states whose weight is rounding noise.
const supportEps = 1e-12

// Describe derives a Snapshot from s.
func Describe(s *quantum.State, gates int) (*Snapshot, error) {
	metrics, err := entangle.Analyze(s)
	if err != nil {
		return nil, err
	}
	terms := s.Support(supportEps)
	amps := make([]Amplitude, len(terms))
	for i, t := range terms {
		amps[i] = Amplitude{
			Index: t.Index,
			Label: quantum.BasisLabel(t.Index, s.NumQubits()),
			Re:    real(t.Amplitude),
			Im:    imag(t.Amplitude),
			Prob:  t.Prob,
			Phase: t.Phase,
		}
	}
	return &Snapshot{
		NumQubits:  s.NumQubits(),
		Gates:      gates,
		Norm:       s.Norm(),
		Amplitudes: amps,
		Metrics:    metrics,
	}, nil
}

// Session is safe for concurrent use.
type Session struct {
	ID string

	mu        sync.Mutex
	limits    Limits
	circuit   *circuit.Circuit
	state     *quantum.State
	sampler   *measure.Sampler
	histogram *measure.Histogram
	log       zerolog.Logger
}

// New starts an empty circuit of numQubits in |0…0⟩.
func New(numQubits int, limits Limits, seed uint64, log zerolog.Logger) (*Session, error) {
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		limits:    limits,
		sampler:   measure.NewSampler(seed),
		histogram: &measure.Histogram{},
		log:       log.With().Str("component", "session").Str("session_id", id).Logger(),
	}
	if err := s.SetCircuit(circuit.New(numQubits)); err != nil {
		return nil, err
	}
	return s, nil
}

// SetCircuit validates c, recomputes the state from |0…0⟩, and clears the
// histogram. On error the session keeps its previous circuit.
func (s *Session) SetCircuit(c *circuit.Circuit) error {
	if err := c.Validate(s.limits.MaxQubits); err != nil {
		return err
	}
	state, err := c.Simulate()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.circuit = c.Clone()
	s.state = state
	s.histogram.Reset(state.Len())
	s.log.Debug().
		Int("qubits", c.NumQubits).
		Int("gates", len(c.Gates)).
		Msg("circuit updated")
	return nil
}

func (s *Session) Circuit() *circuit.Circuit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.circuit.Clone()
}

// State returns a copy of the current state.
func (s *Session) State() *quantum.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Snapshot derives amplitudes and metrics from the current state.
func (s *Session) Snapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Describe(s.state, len(s.circuit.Gates))
}

// Sample draws shots outcomes. Without accumulate the histogram starts over.
func (s *Session) Sample(shots int, accumulate bool) (*measure.Histogram, error) {
	if shots > s.limits.MaxShots {
		return nil, fmt.Errorf("%w: %d > %d", ErrShotsLimit, shots, s.limits.MaxShots)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sampler.SampleInto(s.histogram, s.state, shots, accumulate); err != nil {
		return nil, err
	}
	s.log.Debug().
		Int("shots", shots).
		Bool("accumulate", accumulate).
		Int("total", s.histogram.Shots).
		Msg("sampled")
	return s.histogram.Clone(), nil
}

// Histogram returns a copy of the accumulated counts.
func (s *Session) Histogram() *measure.Histogram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.histogram.Clone()
}

// Unitary builds the circuit matrix, capped at UnitaryMaxQubits.
func (s *Session) Unitary() (*mat.CDense, error) {
	c := s.Circuit()
	return quantum.Unitary(c.NumQubits, c.Gates, s.limits.UnitaryMaxQubits)
}
