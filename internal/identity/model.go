package identity

import (
	"time"

	"github.com/Sweyy-goat/QuickId/internal/descriptor"
)

// Identity is one enrolled person. IDs are assigned by the store in
// enrollment order; the matcher's lowest-id tie-break depends on that.
// Balance is mutated only through the ledger.
type Identity struct {
	ID             int64
	Name           string
	Contact        string
	Descriptor     descriptor.Descriptor
	Balance        float64
	LastTransferAt *time.Time
	CreatedAt      time.Time
}

// EnrollInput carries the fields required to register a new identity.
type EnrollInput struct {
	Name    string
	Contact string
	Probe   descriptor.Descriptor
}
