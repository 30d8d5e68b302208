package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField indicates a required enrollment field was empty.
	ErrMissingField = errors.New("missing required field")

	// ErrDuplicateContact indicates the contact handle is already enrolled.
	ErrDuplicateContact = errors.New("contact already registered")

	// ErrNotFound indicates no identity exists with the given id.
	ErrNotFound = errors.New("identity not found")
)

// DuplicateBiometricError rejects an enrollment whose probe lies within the
// enrollment threshold of an existing template.
type DuplicateBiometricError struct {
	MatchedID int64
	Distance  float64
}

func (e *DuplicateBiometricError) Error() string {
	return fmt.Sprintf("biometric already enrolled as identity %d (distance=%.3f)", e.MatchedID, e.Distance)
}

// NoMatchError reports a failed identification together with the closest
// distance seen, so callers can give actionable feedback. Found is false when
// the store held no usable template at all, in which case BestDistance is
// meaningless.
type NoMatchError struct {
	BestDistance float64
	Found        bool
}

func (e *NoMatchError) Error() string {
	if !e.Found {
		return "no match: no identities enrolled"
	}
	return fmt.Sprintf("no match (best distance=%.3f)", e.BestDistance)
}
