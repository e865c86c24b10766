//go:build !blst

package tbls

// NewScheme returns the stub scheme. It keeps the default build free of cgo;
// every operation reports not implemented. Build with -tags blst for the real
// BLS12-381 implementation.
func NewScheme() Scheme { return stubScheme{} }

type stubScheme struct{}

func (stubScheme) VerifyShare(pubShare, sig, msg []byte) bool { return false }

func (stubScheme) SharePublicKey(commitments [][]byte, index int) ([]byte, error) {
	return nil, ErrNotImplemented
}

func (stubScheme) Combine(shares []Share, threshold int, msg []byte) ([]byte, error) {
	return nil, ErrNotImplemented
}

func (stubScheme) VerifyCombined(pub, sig, msg []byte) bool { return false }
