package matcher

import (
	"context"
	"testing"

	"github.com/Sweyy-goat/QuickId/internal/descriptor"
)

type staticSource struct {
	candidates []Candidate
}

func (s staticSource) Candidates(_ context.Context) ([]Candidate, error) {
	return s.candidates, nil
}

func TestResolveNearestWins(t *testing.T) {
	m := New(staticSource{candidates: []Candidate{
		{ID: 1, Descriptor: descriptor.Descriptor{0, 0}},
		{ID: 2, Descriptor: descriptor.Descriptor{1, 0}},
		{ID: 3, Descriptor: descriptor.Descriptor{5, 5}},
	}})

	res, err := m.Resolve(context.Background(), descriptor.Descriptor{0.9, 0}, 2.0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Matched || res.ID != 2 {
		t.Fatalf("expected match on id 2, got %+v", res)
	}
}

func TestResolveTieBreaksOnLowestID(t *testing.T) {
	// Candidates 1 and 2 are equidistant from the probe.
	m := New(staticSource{candidates: []Candidate{
		{ID: 1, Descriptor: descriptor.Descriptor{-1, 0}},
		{ID: 2, Descriptor: descriptor.Descriptor{1, 0}},
	}})

	res, err := m.Resolve(context.Background(), descriptor.Descriptor{0, 0}, 2.0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Matched || res.ID != 1 {
		t.Fatalf("expected tie-break on id 1, got %+v", res)
	}
}

func TestResolveRejectsBeyondThresholdButReportsDistance(t *testing.T) {
	m := New(staticSource{candidates: []Candidate{
		{ID: 1, Descriptor: descriptor.Descriptor{10, 0}},
	}})

	res, err := m.Resolve(context.Background(), descriptor.Descriptor{0, 0}, 0.5)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Matched {
		t.Fatalf("expected rejection, got %+v", res)
	}
	if !res.Found || res.BestDistance != 10 {
		t.Fatalf("expected best distance 10 reported, got %+v", res)
	}
}

func TestResolveEmptyStore(t *testing.T) {
	m := New(staticSource{})

	res, err := m.Resolve(context.Background(), descriptor.Descriptor{0, 0}, 0.5)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Matched || res.Found || res.Scanned != 0 {
		t.Fatalf("expected empty resolution, got %+v", res)
	}
}

func TestResolveSkipsCorruptCandidates(t *testing.T) {
	m := New(staticSource{candidates: []Candidate{
		{ID: 1, Descriptor: nil},                              // undecodable row
		{ID: 2, Descriptor: descriptor.Descriptor{1, 2, 3}},   // wrong length
		{ID: 3, Descriptor: descriptor.Descriptor{0.1, 0.1}},  // usable
	}})

	res, err := m.Resolve(context.Background(), descriptor.Descriptor{0.1, 0.1}, 0.5)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Matched || res.ID != 3 {
		t.Fatalf("expected match on the only usable candidate, got %+v", res)
	}
	if res.Scanned != 1 {
		t.Fatalf("expected 1 scanned candidate, got %d", res.Scanned)
	}
}

func TestResolveMonotoneInThreshold(t *testing.T) {
	src := staticSource{candidates: []Candidate{
		{ID: 1, Descriptor: descriptor.Descriptor{0.3, 0.4}}, // distance 0.5 from origin
	}}
	m := New(src)
	probe := descriptor.Descriptor{0, 0}

	tight, err := m.Resolve(context.Background(), probe, 0.5)
	if err != nil {
		t.Fatalf("resolve tight: %v", err)
	}
	loose, err := m.Resolve(context.Background(), probe, 0.9)
	if err != nil {
		t.Fatalf("resolve loose: %v", err)
	}

	if !tight.Matched {
		t.Fatalf("distance equal to threshold must match, got %+v", tight)
	}
	if !loose.Matched {
		t.Fatalf("wider threshold must also match, got %+v", loose)
	}
	if tight.BestDistance != loose.BestDistance || tight.ID != loose.ID {
		t.Fatalf("resolution must be threshold-independent apart from acceptance: %+v vs %+v", tight, loose)
	}
}
