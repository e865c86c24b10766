package tbls

import (
	"bytes"
	"errors"
	"testing"
)

// countingScheme accepts signatures prefixed "valid" and counts operations.
type countingScheme struct {
	deriveCalls  int
	combineCalls int
	combineErr   error
	combinePanic bool
	verifyAgg    bool
}

func (s *countingScheme) VerifyShare(pubShare, sig, msg []byte) bool {
	return bytes.HasPrefix(sig, []byte("valid"))
}

func (s *countingScheme) SharePublicKey(commitments [][]byte, index int) ([]byte, error) {
	s.deriveCalls++
	return []byte{byte(index)}, nil
}

func (s *countingScheme) Combine(shares []Share, threshold int, msg []byte) ([]byte, error) {
	s.combineCalls++
	if s.combinePanic {
		panic("scheme exploded")
	}
	if s.combineErr != nil {
		return nil, s.combineErr
	}
	return []byte("combined"), nil
}

func (s *countingScheme) VerifyCombined(pub, sig, msg []byte) bool { return s.verifyAgg }

func newTestAcc(t *testing.T, scheme Scheme, threshold int) *Accumulator {
	t.Helper()
	e, err := NewEpoch([]byte{1}, "v1", nil, threshold)
	if err != nil {
		t.Fatalf("epoch: %v", err)
	}
	return NewAccumulator(scheme, e, []byte("msg"))
}

func TestAccumulator_AddAndQuorum(t *testing.T) {
	a := newTestAcc(t, &countingScheme{verifyAgg: true}, 2)
	if a.HasQuorum() {
		t.Fatalf("quorum before any share")
	}
	if !a.Add(1, []byte("valid-1")) {
		t.Fatalf("valid share rejected")
	}
	if a.Add(1, []byte("valid-1-again")) {
		t.Fatalf("duplicate index accepted")
	}
	if a.Add(2, []byte("garbage")) {
		t.Fatalf("invalid signature accepted")
	}
	if a.HasQuorum() {
		t.Fatalf("quorum with one share and t=2")
	}
	if !a.Add(2, []byte("valid-2")) {
		t.Fatalf("second valid share rejected")
	}
	if !a.HasQuorum() || a.Count() != 2 {
		t.Fatalf("quorum=%v count=%d", a.HasQuorum(), a.Count())
	}
}

func TestAccumulator_CombineCachesResult(t *testing.T) {
	scheme := &countingScheme{verifyAgg: true}
	a := newTestAcc(t, scheme, 2)
	a.Add(1, []byte("valid-1"))
	a.Add(2, []byte("valid-2"))

	sig, err := a.Combine()
	if err != nil || string(sig) != "combined" {
		t.Fatalf("combine: %q %v", sig, err)
	}
	sig2, err := a.Combine()
	if err != nil || string(sig2) != "combined" {
		t.Fatalf("repeat combine: %q %v", sig2, err)
	}
	if scheme.combineCalls != 1 {
		t.Fatalf("combine calls = %d, want 1 (cached)", scheme.combineCalls)
	}
}

func TestAccumulator_CombineBelowThreshold(t *testing.T) {
	scheme := &countingScheme{verifyAgg: true}
	a := newTestAcc(t, scheme, 3)
	a.Add(1, []byte("valid-1"))
	if _, err := a.Combine(); !errors.Is(err, ErrCombineUnavailable) {
		t.Fatalf("got %v, want ErrCombineUnavailable", err)
	}
	if scheme.combineCalls != 0 {
		t.Fatalf("scheme combine ran below threshold")
	}
}

func TestAccumulator_CombineFailureIsSticky(t *testing.T) {
	scheme := &countingScheme{combineErr: errors.New("bad shares"), verifyAgg: true}
	a := newTestAcc(t, scheme, 1)
	a.Add(1, []byte("valid-1"))

	if _, err := a.Combine(); !errors.Is(err, ErrCombineUnavailable) {
		t.Fatalf("first combine: %v", err)
	}
	if _, err := a.Combine(); !errors.Is(err, ErrCombineUnavailable) {
		t.Fatalf("second combine: %v", err)
	}
	if scheme.combineCalls != 1 {
		t.Fatalf("combine calls = %d, want 1 (no retry)", scheme.combineCalls)
	}
	// Past the decision point: further shares are ignored.
	if a.Add(2, []byte("valid-2")) {
		t.Fatalf("share accepted after combination attempt")
	}
}

func TestAccumulator_CombinePanicRecovered(t *testing.T) {
	scheme := &countingScheme{combinePanic: true}
	a := newTestAcc(t, scheme, 1)
	a.Add(1, []byte("valid-1"))
	if _, err := a.Combine(); !errors.Is(err, ErrCombineUnavailable) {
		t.Fatalf("got %v, want ErrCombineUnavailable", err)
	}
}

func TestAccumulator_CombinedVerificationFailure(t *testing.T) {
	scheme := &countingScheme{verifyAgg: false}
	a := newTestAcc(t, scheme, 1)
	a.Add(1, []byte("valid-1"))
	if _, err := a.Combine(); !errors.Is(err, ErrCombineUnavailable) {
		t.Fatalf("got %v, want ErrCombineUnavailable", err)
	}
}
