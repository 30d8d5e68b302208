package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Sweyy-goat/QuickId/internal/descriptor"
	"github.com/Sweyy-goat/QuickId/internal/matcher"
)

// Thresholds carries the two descriptor distance limits. Enroll must stay
// strictly below Identify: duplicate registration is rejected more eagerly
// than a login is accepted.
type Thresholds struct {
	Enroll   float64
	Identify float64
}

// Service manages enrollment and biometric identification.
type Service struct {
	repo       Repository
	match      *matcher.Matcher
	thresholds Thresholds
	bonus      float64

	// enrollMu serializes the dedup check against the insert so two
	// concurrent enrollments with near-identical probes cannot both pass.
	enrollMu sync.Mutex
}

// NewService creates an identity service. The matcher scans the same
// repository the service writes to.
func NewService(repo Repository, thresholds Thresholds, signupBonus float64) *Service {
	return &Service{
		repo:       repo,
		match:      matcher.New(repo),
		thresholds: thresholds,
		bonus:      signupBonus,
	}
}

// Enroll registers a new identity with its template and the starting bonus
// balance. The probe is checked against existing templates at the tighter
// enrollment threshold first.
func (s *Service) Enroll(ctx context.Context, input EnrollInput) (Identity, error) {
	name := strings.TrimSpace(input.Name)
	contact := strings.TrimSpace(input.Contact)
	if name == "" || contact == "" {
		return Identity{}, ErrMissingField
	}
	if len(input.Probe) == 0 {
		return Identity{}, descriptor.ErrNoBiometric
	}

	s.enrollMu.Lock()
	defer s.enrollMu.Unlock()

	res, err := s.match.Resolve(ctx, input.Probe, s.thresholds.Enroll)
	if err != nil {
		return Identity{}, fmt.Errorf("duplicate check: %w", err)
	}
	if res.Matched {
		return Identity{}, &DuplicateBiometricError{MatchedID: res.ID, Distance: res.BestDistance}
	}

	ident := Identity{
		Name:       name,
		Contact:    contact,
		Descriptor: input.Probe,
		Balance:    s.bonus,
	}
	if err := s.repo.Insert(ctx, &ident); err != nil {
		return Identity{}, err
	}
	return ident, nil
}

// Identify resolves the probe at the identification threshold and returns the
// matched identity together with its distance. A rejection comes back as
// *NoMatchError carrying the best distance seen.
func (s *Service) Identify(ctx context.Context, probe descriptor.Descriptor) (Identity, float64, error) {
	res, err := s.match.Resolve(ctx, probe, s.thresholds.Identify)
	if err != nil {
		return Identity{}, 0, err
	}
	if !res.Matched {
		return Identity{}, 0, &NoMatchError{BestDistance: res.BestDistance, Found: res.Found}
	}

	ident, err := s.repo.Get(ctx, res.ID)
	if err != nil {
		return Identity{}, 0, err
	}
	return ident, res.BestDistance, nil
}

// CheckEnrolled reports whether the probe matches any enrolled identity,
// returning the matched id when it does.
func (s *Service) CheckEnrolled(ctx context.Context, probe descriptor.Descriptor) (bool, int64, error) {
	res, err := s.match.Resolve(ctx, probe, s.thresholds.Identify)
	if err != nil {
		return false, 0, err
	}
	if !res.Matched {
		return false, 0, nil
	}
	return true, res.ID, nil
}

// Get exposes identity lookup for authenticated profile reads.
func (s *Service) Get(ctx context.Context, id int64) (Identity, error) {
	return s.repo.Get(ctx, id)
}
