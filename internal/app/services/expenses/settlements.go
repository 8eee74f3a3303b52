package expenses

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/travelties/service_layer/internal/app/domain/expense"
	"github.com/travelties/service_layer/internal/app/realtime"
	"github.com/travelties/service_layer/internal/app/services/access"
	svcerrors "github.com/travelties/service_layer/internal/errors"
)

// SettlementInput is the body of POST /trips/{id}/settlements.
type SettlementInput struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// CreateSettlement records a pending repayment from the caller to in.To.
func (s *Service) CreateSettlement(ctx context.Context, userID, tripID string, in SettlementInput) (expense.Settlement, error) {
	grant, err := s.access.Require(ctx, tripID, userID)
	if err != nil {
		return expense.Settlement{}, err
	}
	if in.To == userID {
		return expense.Settlement{}, svcerrors.Validation("cannot settle with yourself")
	}
	if !grant.IsMember(in.To) {
		return expense.Settlement{}, svcerrors.Validation("recipient must be a trip member")
	}
	if !in.Amount.IsPositive() || !IsCents(in.Amount) {
		return expense.Settlement{}, svcerrors.Validation("amount must be positive with at most 2 decimal places")
	}
	st, err := s.store.CreateSettlement(ctx, expense.Settlement{
		TripID:   tripID,
		From:     userID,
		To:       in.To,
		Amount:   in.Amount,
		Currency: grant.Currency,
		Status:   expense.SettlementPending,
	})
	if err != nil {
		return expense.Settlement{}, access.StoreError(err, "settlement", "")
	}
	s.log.WithField("trip_id", tripID).WithField("settlement_id", st.ID).Info("settlement recorded")
	return st, nil
}

// ListSettlements returns the trip's settlements.
func (s *Service) ListSettlements(ctx context.Context, userID, tripID string) ([]expense.Settlement, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return nil, err
	}
	out, err := s.store.ListSettlements(ctx, tripID)
	if err != nil {
		return nil, access.StoreError(err, "settlement", "")
	}
	if out == nil {
		out = []expense.Settlement{}
	}
	return out, nil
}

// Settlement returns one settlement the caller is a party to or can see as a
// member.
func (s *Service) Settlement(ctx context.Context, userID, tripID, id string) (expense.Settlement, error) {
	if _, err := s.access.Require(ctx, tripID, userID); err != nil {
		return expense.Settlement{}, err
	}
	st, err := s.store.GetSettlement(ctx, id)
	if err != nil {
		return expense.Settlement{}, access.StoreError(err, "settlement", id)
	}
	if st.TripID != tripID {
		return expense.Settlement{}, svcerrors.NotFound("settlement", id)
	}
	return st, nil
}

// CompleteSettlement marks a settlement paid. Either party may confirm.
func (s *Service) CompleteSettlement(ctx context.Context, userID, tripID, id string) (expense.Settlement, error) {
	st, err := s.Settlement(ctx, userID, tripID, id)
	if err != nil {
		return expense.Settlement{}, err
	}
	if st.From != userID && st.To != userID {
		return expense.Settlement{}, svcerrors.Forbidden("only the payer or recipient can complete a settlement")
	}
	return s.complete(ctx, st, userID)
}

func (s *Service) complete(ctx context.Context, st expense.Settlement, actorID string) (expense.Settlement, error) {
	if st.Status == expense.SettlementCompleted {
		return expense.Settlement{}, svcerrors.Conflict("settlement is already completed")
	}
	now := s.now()
	st.Status = expense.SettlementCompleted
	st.CompletedAt = &now
	updated, err := s.store.UpdateSettlement(ctx, st)
	if err != nil {
		return expense.Settlement{}, access.StoreError(err, "settlement", st.ID)
	}
	s.log.WithField("trip_id", st.TripID).WithField("settlement_id", st.ID).Info("settlement completed")
	s.events.Publish(realtime.Event{
		Type: realtime.EventExpenseChanged, TripID: st.TripID, ActorID: actorID,
		Data: map[string]interface{}{"action": "settled", "settlement": updated},
	})
	return updated, nil
}

// AttachPaymentIntent links a payment intent to a pending settlement.
func (s *Service) AttachPaymentIntent(ctx context.Context, st expense.Settlement, intentID string) (expense.Settlement, error) {
	st.PaymentIntentID = intentID
	updated, err := s.store.UpdateSettlement(ctx, st)
	if err != nil {
		return expense.Settlement{}, access.StoreError(err, "settlement", st.ID)
	}
	return updated, nil
}

// CompleteByPaymentIntent completes the settlement paid by intentID. An
// already completed settlement is returned unchanged.
func (s *Service) CompleteByPaymentIntent(ctx context.Context, intentID string) (expense.Settlement, error) {
	st, err := s.store.GetSettlementByPaymentIntent(ctx, intentID)
	if err != nil {
		return expense.Settlement{}, access.StoreError(err, "settlement", intentID)
	}
	if st.Status == expense.SettlementCompleted {
		return st, nil
	}
	return s.complete(ctx, st, st.From)
}
