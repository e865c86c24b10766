package tbls

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Epoch is the active distributed-key configuration: group public key, key
// version string, verification polynomial commitments and quorum threshold.
// Immutable for the process lifetime; safe for concurrent use.
type Epoch struct {
	PublicKey   []byte
	KeyVersion  string
	Commitments [][]byte
	Threshold   int

	shareCache *lru.Cache[int, []byte]
}

func NewEpoch(publicKey []byte, keyVersion string, commitments [][]byte, threshold int) (*Epoch, error) {
	if len(publicKey) == 0 {
		return nil, fmt.Errorf("epoch: %w: empty public key", ErrInvalidInput)
	}
	if keyVersion == "" {
		return nil, fmt.Errorf("epoch: %w: empty key version", ErrInvalidInput)
	}
	if threshold < 1 {
		return nil, fmt.Errorf("epoch: %w: threshold %d", ErrInvalidInput, threshold)
	}
	cache, err := lru.New[int, []byte](256)
	if err != nil {
		return nil, err
	}
	return &Epoch{
		PublicKey:   publicKey,
		KeyVersion:  keyVersion,
		Commitments: commitments,
		Threshold:   threshold,
		shareCache:  cache,
	}, nil
}

// SharePublicKey returns signer index's public-key share, deriving it from
// the verification polynomial on first use and caching the result.
func (e *Epoch) SharePublicKey(s Scheme, index int) ([]byte, error) {
	if pk, ok := e.shareCache.Get(index); ok {
		return pk, nil
	}
	pk, err := s.SharePublicKey(e.Commitments, index)
	if err != nil {
		return nil, err
	}
	e.shareCache.Add(index, pk)
	return pk, nil
}
