package combiner

import (
	"errors"
	"net/http"
)

// ErrQuotaExceeded is returned when the majority signer verdict is 403; the
// client sees a quota error rather than a generic signing failure.
var ErrQuotaExceeded = errors.New("quota exceeded")

// NotEnoughSharesError is the terminal fallback failure: quorum was never
// reached or combination failed after it. Status carries the majority signer
// error code when one exists, else 500.
type NotEnoughSharesError struct {
	Status int
}

func (e *NotEnoughSharesError) Error() string { return "not enough partial signatures" }

// errorFromRecords derives the client-visible fallback error from the signer
// response log.
func errorFromRecords(records []Record) error {
	code, ok := MajorityCode(records)
	if !ok {
		return &NotEnoughSharesError{Status: http.StatusInternalServerError}
	}
	if code == http.StatusForbidden {
		return ErrQuotaExceeded
	}
	return &NotEnoughSharesError{Status: code}
}
