package tbls

import (
	"fmt"
	"sync"
)

// Accumulator holds the per-request threshold state: verified shares, the
// quorum predicate and the single combination attempt. All methods are safe
// for concurrent use; the combiner additionally serializes response handling
// so only one delivery can cross the threshold.
type Accumulator struct {
	mu     sync.Mutex
	scheme Scheme
	epoch  *Epoch
	msg    []byte

	shares    []Share
	have      map[int]struct{}
	attempted bool
	combined  []byte
}

func NewAccumulator(scheme Scheme, epoch *Epoch, msg []byte) *Accumulator {
	return &Accumulator{scheme: scheme, epoch: epoch, msg: msg, have: map[int]struct{}{}}
}

// Add verifies the partial signature for the given signer index and, if
// valid, adds it to the accepted set. Invalid or duplicate shares are
// silently dropped; the caller keeps its own response log for discrepancy
// accounting.
func (a *Accumulator) Add(index int, sig []byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attempted {
		// Past the decision point; late shares cannot change the outcome.
		return false
	}
	if _, dup := a.have[index]; dup {
		return false
	}
	pubShare, err := a.epoch.SharePublicKey(a.scheme, index)
	if err != nil {
		return false
	}
	if !a.scheme.VerifyShare(pubShare, sig, a.msg) {
		return false
	}
	a.have[index] = struct{}{}
	a.shares = append(a.shares, Share{Index: index, Signature: sig})
	return true
}

func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.shares)
}

// HasQuorum reports whether the accepted-share count has reached the epoch
// threshold.
func (a *Accumulator) HasQuorum() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.shares) >= a.epoch.Threshold
}

// Combine reconstructs the group signature from the accepted shares. At most
// one combination is attempted; a successful result is cached and returned on
// repeated calls, a failure is sticky as ErrCombineUnavailable. Panics from
// the underlying scheme are recovered and mapped to the same failure.
func (a *Accumulator) Combine() (sig []byte, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.combined != nil {
		return a.combined, nil
	}
	if a.attempted {
		return nil, ErrCombineUnavailable
	}
	a.attempted = true

	defer func() {
		if r := recover(); r != nil {
			sig, err = nil, fmt.Errorf("%w: panic: %v", ErrCombineUnavailable, r)
		}
	}()

	if len(a.shares) < a.epoch.Threshold {
		return nil, fmt.Errorf("%w: %d of %d shares", ErrCombineUnavailable, len(a.shares), a.epoch.Threshold)
	}
	out, cerr := a.scheme.Combine(a.shares, a.epoch.Threshold, a.msg)
	if cerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrCombineUnavailable, cerr)
	}
	if !a.scheme.VerifyCombined(a.epoch.PublicKey, out, a.msg) {
		return nil, fmt.Errorf("%w: combined signature failed verification", ErrCombineUnavailable)
	}
	a.combined = out
	return out, nil
}
