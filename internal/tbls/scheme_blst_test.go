//go:build blst

package tbls

import (
	"bytes"
	"crypto/rand"
	"testing"

	blst "github.com/supranational/blst/bindings/go"
)

// Builds a t-of-n share set directly from a random polynomial so the scheme
// round-trips without a DKG: shares are f(i), commitments are g1^{a_j}, the
// group key is g1^{a_0}.
func makeShareSet(t *testing.T, n, threshold int) (commitments [][]byte, shares map[int]*blst.Scalar) {
	t.Helper()
	coeffs := make([]*blst.Scalar, threshold)
	for j := range coeffs {
		var ikm [32]byte
		if _, err := rand.Read(ikm[:]); err != nil {
			t.Fatalf("rand: %v", err)
		}
		coeffs[j] = blst.KeyGen(ikm[:], nil)
		if coeffs[j] == nil {
			t.Fatalf("keygen failed")
		}
	}
	commitments = make([][]byte, threshold)
	for j, c := range coeffs {
		commitments[j] = blst.P1Generator().Mult(c).ToAffine().Compress()
	}
	shares = make(map[int]*blst.Scalar, n)
	for i := 1; i <= n; i++ {
		xs := scalarFromInt(i)
		acc := scalarFromInt(0)
		pow := scalarFromInt(1)
		for _, c := range coeffs {
			term, ok := c.Mul(pow)
			if !ok {
				t.Fatalf("scalar mul failed")
			}
			if _, ok := acc.AddAssign(term); !ok {
				t.Fatalf("scalar add failed")
			}
			nxt, ok := pow.Mul(xs)
			if !ok {
				t.Fatalf("scalar mul failed")
			}
			pow = nxt
		}
		shares[i] = acc
	}
	return commitments, shares
}

func partialSign(share *blst.Scalar, msg []byte) []byte {
	var sig blst.P2Affine
	return sig.Sign(share, msg, []byte(DST)).Compress()
}

func TestBlstScheme_ShareRoundTrip(t *testing.T) {
	scheme := NewScheme()
	commitments, shares := makeShareSet(t, 4, 3)
	msg := []byte("blinded message bytes")

	for i := 1; i <= 4; i++ {
		pk, err := scheme.SharePublicKey(commitments, i)
		if err != nil {
			t.Fatalf("share pubkey %d: %v", i, err)
		}
		want := blst.P1Generator().Mult(shares[i]).ToAffine().Compress()
		if !bytes.Equal(pk, want) {
			t.Fatalf("share pubkey %d mismatches polynomial evaluation", i)
		}
		sig := partialSign(shares[i], msg)
		if !scheme.VerifyShare(pk, sig, msg) {
			t.Fatalf("valid partial signature %d rejected", i)
		}
		if scheme.VerifyShare(pk, sig, []byte("other message")) {
			t.Fatalf("partial signature %d accepted for wrong message", i)
		}
	}
}

func TestBlstScheme_CombineRecoverGroupSignature(t *testing.T) {
	scheme := NewScheme()
	commitments, secret := makeShareSet(t, 5, 3)
	msg := []byte("blinded message bytes")
	groupPub := commitments[0]

	shares := []Share{
		{Index: 2, Signature: partialSign(secret[2], msg)},
		{Index: 5, Signature: partialSign(secret[5], msg)},
		{Index: 1, Signature: partialSign(secret[1], msg)},
	}
	sig, err := scheme.Combine(shares, 3, msg)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	if !scheme.VerifyCombined(groupPub, sig, msg) {
		t.Fatalf("combined signature rejected under group key")
	}
	// Deterministic for a fixed share set.
	sig2, err := scheme.Combine(shares, 3, msg)
	if err != nil || !bytes.Equal(sig, sig2) {
		t.Fatalf("combine not deterministic: %v", err)
	}
}

func TestBlstScheme_CombineRejectsBadInput(t *testing.T) {
	scheme := NewScheme()
	if _, err := scheme.Combine([]Share{{Index: 1, Signature: []byte("x")}}, 2, nil); err == nil {
		t.Fatalf("combine with too few shares succeeded")
	}
	dup := []Share{
		{Index: 1, Signature: []byte("x")},
		{Index: 1, Signature: []byte("y")},
	}
	if _, err := scheme.Combine(dup, 2, nil); err == nil {
		t.Fatalf("combine with duplicate indices succeeded")
	}
}
