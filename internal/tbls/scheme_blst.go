//go:build blst

package tbls

import (
	"encoding/binary"
	"sort"

	blst "github.com/supranational/blst/bindings/go"
)

// NewScheme returns the BLS12-381 scheme (min-pubkey-size: public keys in G1,
// signatures in G2, both compressed).
func NewScheme() Scheme { return blstScheme{} }

type blstScheme struct{}

func scalarFromInt(v int) *blst.Scalar {
	var buf [blst.BLST_SCALAR_BYTES]byte
	binary.BigEndian.PutUint64(buf[len(buf)-8:], uint64(v))
	var s blst.Scalar
	_ = s.FromBEndian(buf[:])
	return &s
}

func (blstScheme) VerifyShare(pubShare, sig, msg []byte) bool {
	return verify(pubShare, sig, msg)
}

func (blstScheme) VerifyCombined(pub, sig, msg []byte) bool {
	return verify(pub, sig, msg)
}

func verify(pub, sig, msg []byte) bool {
	if len(pub) == 0 || len(sig) == 0 {
		return false
	}
	pkAff := new(blst.P1Affine).Uncompress(pub)
	sigAff := new(blst.P2Affine).Uncompress(sig)
	if pkAff == nil || sigAff == nil {
		return false
	}
	return sigAff.Verify(true, pkAff, true, msg, []byte(DST))
}

// SharePublicKey evaluates the verification polynomial at the signer index:
// pk_i = Σ C_j * i^j over the Feldman commitments.
func (blstScheme) SharePublicKey(commitments [][]byte, index int) ([]byte, error) {
	if len(commitments) == 0 || index <= 0 {
		return nil, ErrInvalidInput
	}
	xs := scalarFromInt(index)
	pow := scalarFromInt(1)
	acc := new(blst.P1)
	for _, cBytes := range commitments {
		aff := new(blst.P1Affine).Uncompress(cBytes)
		if aff == nil {
			return nil, ErrInvalidInput
		}
		var p blst.P1
		p.FromAffine(aff)
		p.MultAssign(pow)
		acc.AddAssign(&p)
		nxt, ok := pow.Mul(xs)
		if !ok {
			return nil, ErrInvalidInput
		}
		pow = nxt
	}
	return acc.ToAffine().Compress(), nil
}

// Combine reconstructs the group signature by Lagrange-weighted aggregation
// at zero over the first threshold shares sorted by signer index.
func (blstScheme) Combine(shares []Share, threshold int, msg []byte) ([]byte, error) {
	if threshold <= 0 || len(shares) < threshold {
		return nil, ErrInvalidInput
	}
	sorted := make([]Share, len(shares))
	copy(sorted, shares)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	sorted = sorted[:threshold]

	indices := make([]int, 0, len(sorted))
	seen := map[int]struct{}{}
	for _, s := range sorted {
		if s.Index <= 0 {
			return nil, ErrInvalidInput
		}
		if _, ok := seen[s.Index]; ok {
			return nil, ErrInvalidInput
		}
		seen[s.Index] = struct{}{}
		indices = append(indices, s.Index)
	}

	acc := new(blst.P2)
	for _, s := range sorted {
		coeff, err := lagrangeAtZero(s.Index, indices)
		if err != nil {
			return nil, err
		}
		aff := new(blst.P2Affine).Uncompress(s.Signature)
		if aff == nil {
			return nil, ErrInvalidInput
		}
		var p blst.P2
		p.FromAffine(aff)
		p.MultAssign(coeff)
		acc.AddAssign(&p)
	}
	return acc.ToAffine().Compress(), nil
}

// lagrangeAtZero computes λ_i(0) for Shamir share indices in indices.
func lagrangeAtZero(i int, indices []int) (*blst.Scalar, error) {
	if i <= 0 || len(indices) == 0 {
		return nil, ErrInvalidInput
	}
	xi := scalarFromInt(i)
	num := scalarFromInt(1)
	den := scalarFromInt(1)
	zero := scalarFromInt(0)
	for _, j := range indices {
		if j == i {
			continue
		}
		if j <= 0 {
			return nil, ErrInvalidInput
		}
		xj := scalarFromInt(j)
		neg, ok := zero.Sub(xj)
		if !ok {
			return nil, ErrInvalidInput
		}
		num, ok = num.Mul(neg)
		if !ok {
			return nil, ErrInvalidInput
		}
		diff, ok := xi.Sub(xj)
		if !ok {
			return nil, ErrInvalidInput
		}
		den, ok = den.Mul(diff)
		if !ok {
			return nil, ErrInvalidInput
		}
	}
	out, ok := num.Mul(den.Inverse())
	if !ok {
		return nil, ErrInvalidInput
	}
	return out, nil
}
