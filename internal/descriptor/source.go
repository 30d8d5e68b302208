package descriptor

// Probe converts the raw vector carried in an API request into a validated
// Descriptor. The image-to-vector extraction is an external capability;
// clients submit the pre-extracted vector and this is the boundary where a
// missing or unusable one becomes ErrNoBiometric / ErrMalformed.
func Probe(raw []float64, wantLen int) (Descriptor, error) {
	if len(raw) == 0 {
		return nil, ErrNoBiometric
	}
	d := Descriptor(raw)
	if err := d.Validate(wantLen); err != nil {
		return nil, err
	}
	return d, nil
}
