package transfers

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Sweyy-goat/QuickId/internal/descriptor"
	"github.com/Sweyy-goat/QuickId/internal/identity"
	"github.com/Sweyy-goat/QuickId/internal/ledger"
	"github.com/Sweyy-goat/QuickId/internal/notification"
)

// Service orchestrates a value transfer: resolve the recipient from a probe,
// then post the atomic debit/credit through the ledger.
type Service struct {
	ids      *identity.Service
	ledger   ledger.Ledger
	notifier notification.Notifier
}

// NewService constructs a transfer orchestrator.
func NewService(ids *identity.Service, ledgerBackend ledger.Ledger, notifier notification.Notifier) *Service {
	return &Service{ids: ids, ledger: ledgerBackend, notifier: notifier}
}

// PayInput captures one transfer attempt from an authenticated sender.
type PayInput struct {
	SenderID int64
	Probe    descriptor.Descriptor
	Amount   float64
	// ClientTxID optionally de-duplicates retries; empty means none.
	ClientTxID string
}

// PayResult describes a committed transfer.
type PayResult struct {
	TransferID    string
	RecipientID   int64
	RecipientName string
	Amount        float64
	SenderBalance float64
	CompletedAt   time.Time
}

// PayTo resolves the probe to a recipient at the identification threshold and
// moves the amount. Nothing is mutated unless the ledger commit succeeds; a
// recipient resolution failure surfaces as *identity.NoMatchError with the
// best distance.
func (s *Service) PayTo(ctx context.Context, input PayInput) (PayResult, error) {
	if input.Amount <= 0 || math.IsNaN(input.Amount) || math.IsInf(input.Amount, 0) {
		return PayResult{}, ledger.ErrInvalidAmount
	}

	recipient, _, err := s.ids.Identify(ctx, input.Probe)
	if err != nil {
		return PayResult{}, err
	}
	// Reject before touching the ledger so the attempt never locks anything.
	if recipient.ID == input.SenderID {
		return PayResult{}, ledger.ErrSelfTransfer
	}

	res, err := s.ledger.Transfer(ctx, input.SenderID, recipient.ID, input.Amount, input.ClientTxID)
	if err != nil {
		return PayResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: recipient.Contact,
			Body:        fmt.Sprintf("You received %.4f coins", input.Amount),
		})
	}

	return PayResult{
		TransferID:    res.Record.ID,
		RecipientID:   recipient.ID,
		RecipientName: recipient.Name,
		Amount:        input.Amount,
		SenderBalance: res.SenderBalance,
		CompletedAt:   res.Record.CreatedAt,
	}, nil
}

// History lists recent transfers touching the identity, newest first.
func (s *Service) History(ctx context.Context, identityID int64, limit int) ([]ledger.TransferRecord, error) {
	return s.ledger.History(ctx, identityID, limit)
}
