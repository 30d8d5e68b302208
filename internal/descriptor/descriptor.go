package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoBiometric indicates the upstream capture produced no usable
	// descriptor (no face found, or the field is absent from the request).
	ErrNoBiometric = errors.New("no biometric detected")

	// ErrMalformed indicates a probe descriptor that cannot be used for
	// matching: wrong length, non-finite values, or undecodable payload.
	ErrMalformed = errors.New("malformed descriptor")
)

// Descriptor is a fixed-length biometric template vector. Distances between
// descriptors are Euclidean.
type Descriptor []float64

// Distance returns the Euclidean distance between d and other. Both vectors
// must have the same length.
func (d Descriptor) Distance(other Descriptor) (float64, error) {
	if len(d) != len(other) {
		return 0, fmt.Errorf("%w: length %d vs %d", ErrMalformed, len(d), len(other))
	}
	var sum float64
	for i := range d {
		diff := d[i] - other[i]
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}

// Validate checks that the descriptor has the expected length and contains
// only finite values. Intended for the probe path; stored templates are
// handled leniently by the matcher instead.
func (d Descriptor) Validate(wantLen int) error {
	if len(d) == 0 {
		return ErrNoBiometric
	}
	if len(d) != wantLen {
		return fmt.Errorf("%w: expected length %d, got %d", ErrMalformed, wantLen, len(d))
	}
	for _, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite component", ErrMalformed)
		}
	}
	return nil
}

// Encode serializes the descriptor to its JSON-array storage form.
func (d Descriptor) Encode() ([]byte, error) {
	return json.Marshal([]float64(d))
}

// Decode parses a stored JSON-array template. A nil Descriptor and nil error
// means the stored value was empty (never enrolled). Decode errors are
// returned so callers can decide to skip the record rather than abort.
func Decode(raw []byte) (Descriptor, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var vals []float64
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Descriptor(vals), nil
}
