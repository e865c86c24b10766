package tbls

import "errors"

// Domain separation for combiner partial and combined signatures.
const DST = "EQC/TBLS/v1/SIG"

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrInvalidInput   = errors.New("invalid input")
	// ErrCombineUnavailable is the typed combination failure: quorum was
	// reached but no combined signature could be produced. Callers fall back
	// to error aggregation and never retry combination.
	ErrCombineUnavailable = errors.New("combination unavailable")
)

// Share is one signer's partial signature, keyed by the signer's index in the
// distributed key's share set (1-based).
type Share struct {
	Index     int
	Signature []byte
}

// Scheme is the threshold-signature primitive surface the combiner depends
// on. The default build ships a stub; the real pairing implementation lives
// behind the "blst" build tag.
type Scheme interface {
	// VerifyShare checks a partial signature against the signer's public-key
	// share and the blinded message.
	VerifyShare(pubShare, sig, msg []byte) bool
	// SharePublicKey derives signer index's public-key share from the
	// verification polynomial commitments.
	SharePublicKey(commitments [][]byte, index int) ([]byte, error)
	// Combine reconstructs the group signature from at least threshold
	// shares. Deterministic for a fixed share set.
	Combine(shares []Share, threshold int, msg []byte) ([]byte, error)
	// VerifyCombined checks the reconstructed signature under the group
	// public key.
	VerifyCombined(pub, sig, msg []byte) bool
}
