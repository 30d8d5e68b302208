package matcher

import (
	"context"
	"fmt"

	"github.com/Sweyy-goat/QuickId/internal/descriptor"
)

// Candidate is one enrolled template presented to the matcher. Candidates with
// a nil or wrong-length descriptor are skipped during the scan; a corrupt
// stored row must not block identification for everyone else.
type Candidate struct {
	ID         int64
	Descriptor descriptor.Descriptor
}

// Source supplies the current snapshot of enrolled candidates. The snapshot
// must be consistent (no partially written rows) and ordered by ascending ID.
type Source interface {
	Candidates(ctx context.Context) ([]Candidate, error)
}

// Resolution is the outcome of a nearest-candidate scan. When Found is false
// the store held no usable candidate and BestDistance is meaningless.
type Resolution struct {
	// ID of the nearest candidate; only meaningful when Found.
	ID int64
	// BestDistance is the smallest distance seen, reported even on rejection
	// so callers can surface how close the probe came.
	BestDistance float64
	// Matched reports whether BestDistance passed the threshold.
	Matched bool
	// Found reports whether at least one usable candidate was scanned.
	Found bool
	// Scanned counts the candidates actually compared.
	Scanned int
}

// Matcher resolves probe descriptors against a candidate source. It holds no
// state of its own; resolution is a pure function of the probe, the threshold,
// and the source snapshot.
type Matcher struct {
	source Source
}

// New builds a matcher over the given candidate source.
func New(source Source) *Matcher {
	return &Matcher{source: source}
}

// Resolve scans every candidate, keeping the one at minimum Euclidean distance
// from the probe. Ties are broken in favor of the lowest ID, which the
// ascending snapshot order makes automatic: a later candidate only wins with a
// strictly smaller distance. The match is accepted only when the best distance
// is within threshold.
func (m *Matcher) Resolve(ctx context.Context, probe descriptor.Descriptor, threshold float64) (Resolution, error) {
	candidates, err := m.source.Candidates(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("load candidates: %w", err)
	}

	res := Resolution{}
	for _, c := range candidates {
		if len(c.Descriptor) != len(probe) {
			continue
		}
		dist, err := probe.Distance(c.Descriptor)
		if err != nil {
			continue
		}
		res.Scanned++
		if !res.Found || dist < res.BestDistance {
			res.Found = true
			res.BestDistance = dist
			res.ID = c.ID
		}
	}

	res.Matched = res.Found && res.BestDistance <= threshold
	return res, nil
}
