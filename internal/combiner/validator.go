package combiner

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/zmlAEQ/threshold-combiner/internal/tbls"
)

var (
	// ErrKeyVersionMismatch marks a signer response whose declared key
	// version disagrees with the configured epoch. Hard reject for that
	// response; the signer still counts toward the error tally.
	ErrKeyVersionMismatch = errors.New("incorrect key version")
	// ErrSignatureMissing marks a response whose body carries no usable
	// signature field.
	ErrSignatureMissing = errors.New("signature missing")
	// ErrDomainDisabled marks a domain-restricted signer response reporting
	// the requested domain as disabled.
	ErrDomainDisabled = errors.New("domain disabled")
)

// Validator is the per-response acceptance gate. Implementations differ only
// in how the signer's response body is parsed; the orchestrator is shared.
type Validator interface {
	Accept(resp Response, keyVersion string) (tbls.Share, error)
}

// BlindSigValidator accepts plain blind-signature responses:
// {"success":true,"signature":"<base64>","version":"..."}.
type BlindSigValidator struct{}

type blindSigBody struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature"`
	Version   string `json:"version,omitempty"`
}

func (BlindSigValidator) Accept(resp Response, keyVersion string) (tbls.Share, error) {
	if err := checkKeyVersion(resp, keyVersion); err != nil {
		return tbls.Share{}, err
	}
	var body blindSigBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return tbls.Share{}, ErrSignatureMissing
	}
	return shareFromField(resp.Endpoint.Index, body.Signature)
}

// DomainSigValidator accepts domain-restricted signature responses:
// {"signature":"<base64>","status":{"disabled":bool}}. A disabled domain is a
// rejection even when a signature is present.
type DomainSigValidator struct{}

type domainSigBody struct {
	Signature string `json:"signature"`
	Status    struct {
		Disabled bool `json:"disabled"`
	} `json:"status"`
}

func (DomainSigValidator) Accept(resp Response, keyVersion string) (tbls.Share, error) {
	if err := checkKeyVersion(resp, keyVersion); err != nil {
		return tbls.Share{}, err
	}
	var body domainSigBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return tbls.Share{}, ErrSignatureMissing
	}
	if body.Status.Disabled {
		return tbls.Share{}, ErrDomainDisabled
	}
	return shareFromField(resp.Endpoint.Index, body.Signature)
}

func checkKeyVersion(resp Response, keyVersion string) error {
	if resp.KeyVersion == "" || resp.KeyVersion != keyVersion {
		return ErrKeyVersionMismatch
	}
	return nil
}

func shareFromField(index int, field string) (tbls.Share, error) {
	if field == "" {
		return tbls.Share{}, ErrSignatureMissing
	}
	sig, err := base64.StdEncoding.DecodeString(field)
	if err != nil || len(sig) == 0 {
		return tbls.Share{}, ErrSignatureMissing
	}
	return tbls.Share{Index: index, Signature: sig}, nil
}
