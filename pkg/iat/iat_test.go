package iat

import (
	"math/rand"
	"testing"
)

func drain(s Sequence) []uint64 {
	var out []uint64
	for {
		v, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func TestPoissonBound(t *testing.T) {
	g := New(Poisson)
	rng := rand.New(rand.NewSource(1))
	for _, rpm := range []uint32{1, 10, 100, 1000} {
		seq, err := g.Gen(rpm, rng)
		if err != nil {
			t.Fatalf("rpm=%d: %v", rpm, err)
		}
		vals := drain(seq)
		var sum uint64
		for _, v := range vals {
			sum += v
		}
		if sum >= MinuteMicros {
			t.Errorf("rpm=%d: sum %d >= minute %d", rpm, sum, uint64(MinuteMicros))
		}
		// Sequence is exhausted-stable.
		if v, ok := seq.Next(); ok {
			t.Errorf("rpm=%d: expected exhaustion, got %d", rpm, v)
		}
	}
}

func TestPoissonRejectsZeroRPM(t *testing.T) {
	g := New(Poisson)
	if _, err := g.Gen(0, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error for rpm=0")
	}
}

func TestUniformCountAndSum(t *testing.T) {
	g := New(Uniform)
	rng := rand.New(rand.NewSource(2))
	for _, rpm := range []uint32{1, 5, 100} {
		seq, err := g.Gen(rpm, rng)
		if err != nil {
			t.Fatalf("rpm=%d: %v", rpm, err)
		}
		vals := drain(seq)
		if len(vals) != int(rpm) {
			t.Errorf("rpm=%d: got %d IATs, want %d", rpm, len(vals), rpm)
		}
		var sum uint64
		for _, v := range vals {
			sum += v
		}
		if sum > MinuteMicros {
			t.Errorf("rpm=%d: sum %d exceeds minute", rpm, sum)
		}
		// Truncation can only lose, never gain, so the sum should land
		// close under the target (within rpm microseconds of slack).
		if float64(MinuteMicros)-float64(sum) > float64(rpm) {
			t.Errorf("rpm=%d: sum %d too far under minute %d", rpm, sum, uint64(MinuteMicros))
		}
	}
}

func TestEquidistant(t *testing.T) {
	g := New(Equidistant)
	for _, rpm := range []uint32{1, 6, 7, 1000} {
		seq, err := g.Gen(rpm, nil)
		if err != nil {
			t.Fatalf("rpm=%d: %v", rpm, err)
		}
		vals := drain(seq)
		if len(vals) != int(rpm) {
			t.Errorf("rpm=%d: got %d IATs, want %d", rpm, len(vals), rpm)
		}
		want := uint64(MinuteMicros) / uint64(rpm)
		for i, v := range vals {
			if v != want {
				t.Errorf("rpm=%d: vals[%d]=%d, want %d", rpm, i, v, want)
			}
		}
	}
}

func TestEquidistantRejectsZeroRPM(t *testing.T) {
	g := New(Equidistant)
	if _, err := g.Gen(0, nil); err == nil {
		t.Fatal("expected error for rpm=0")
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"":            Poisson,
		"poisson":     Poisson,
		"uniform":     Uniform,
		"equidistant": Equidistant,
	}
	for s, want := range cases {
		got, err := ParseKind(s)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", s, err)
		}
		if got != want {
			t.Errorf("ParseKind(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := ParseKind("bogus"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
