// Package iat implements the three inter-arrival-time distributions the
// worker loop samples from: Poisson, Uniform and Equidistant. Each is a
// pure function from (rpm, rng) to a finite, forward-iterable sequence of
// microsecond IATs targeting a 60s minute.
package iat

import (
	"fmt"
	"math/rand"
)

// MinuteMicros is the number of microseconds an IAT sequence targets.
const MinuteMicros = 60_000_000

// Kind selects which distribution Generate samples from.
type Kind int

const (
	Poisson Kind = iota
	Uniform
	Equidistant
)

func (k Kind) String() string {
	switch k {
	case Poisson:
		return "poisson"
	case Uniform:
		return "uniform"
	case Equidistant:
		return "equidistant"
	default:
		return "unknown"
	}
}

// ParseKind maps a config/CLI string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "poisson", "":
		return Poisson, nil
	case "uniform":
		return Uniform, nil
	case "equidistant":
		return Equidistant, nil
	default:
		return 0, fmt.Errorf("unknown iat distribution %q", s)
	}
}

// Sequence is a finite, exhausted-stable lazy iterator over IATs in
// microseconds: Next returns false once the sequence is spent, and every
// subsequent call also returns false.
type Sequence interface {
	// Next returns the next IAT in microseconds, or ok=false if the
	// sequence is exhausted.
	Next() (us uint64, ok bool)
}

// Generator produces a finite IAT sequence for one minute's rpm target.
type Generator interface {
	Gen(rpm uint32, rng *rand.Rand) (Sequence, error)
}

// New returns the Generator for the requested distribution.
func New(k Kind) Generator {
	switch k {
	case Uniform:
		return uniformGen{}
	case Equidistant:
		return equidistantGen{}
	default:
		return poissonGen{}
	}
}

// --- Poisson ---

type poissonGen struct{}

// Gen samples successive Exp(lambda) draws, lambda = rpm/MinuteMicros,
// accumulating the *sampled* sum and stopping as soon as the next sample
// would push it to or past one minute. The count is random; rpm is only
// its expectation.
func (poissonGen) Gen(rpm uint32, rng *rand.Rand) (Sequence, error) {
	if rpm == 0 {
		return nil, fmt.Errorf("iat: poisson requires rpm > 0, got 0")
	}
	lambda := float64(rpm) / float64(MinuteMicros)

	var out []uint64
	var sum float64
	for {
		// rng.ExpFloat64() draws from Exp(1); scale by 1/lambda for Exp(lambda).
		sample := rng.ExpFloat64() / lambda
		if sum+sample >= float64(MinuteMicros) {
			break
		}
		sum += sample
		out = append(out, uint64(sample))
	}
	return &sliceSeq{vals: out}, nil
}

// --- Uniform ---

type uniformGen struct{}

// Gen draws rpm uniforms in (0,1), scales each by MinuteMicros/sum(draws)
// so the emitted IATs sum to exactly MinuteMicros modulo truncation.
func (uniformGen) Gen(rpm uint32, rng *rand.Rand) (Sequence, error) {
	if rpm == 0 {
		return nil, fmt.Errorf("iat: uniform requires rpm > 0, got 0")
	}
	draws := make([]float64, rpm)
	var total float64
	for i := range draws {
		u := rng.Float64()
		draws[i] = u
		total += u
	}
	out := make([]uint64, rpm)
	for i, u := range draws {
		out[i] = uint64(u * float64(MinuteMicros) / total)
	}
	return &sliceSeq{vals: out}, nil
}

// --- Equidistant ---

type equidistantGen struct{}

// Gen ignores rng and emits rpm copies of floor(MinuteMicros/rpm).
func (equidistantGen) Gen(rpm uint32, _ *rand.Rand) (Sequence, error) {
	if rpm == 0 {
		return nil, fmt.Errorf("iat: equidistant requires rpm > 0, got 0")
	}
	step := uint64(MinuteMicros) / uint64(rpm)
	out := make([]uint64, rpm)
	for i := range out {
		out[i] = step
	}
	return &sliceSeq{vals: out}, nil
}

// sliceSeq is the shared exhausted-stable Sequence backing all three
// generators: they differ only in how the slice is produced, not in how
// it's walked.
type sliceSeq struct {
	vals []uint64
	pos  int
}

func (s *sliceSeq) Next() (uint64, bool) {
	if s.pos >= len(s.vals) {
		return 0, false
	}
	v := s.vals[s.pos]
	s.pos++
	return v, true
}
