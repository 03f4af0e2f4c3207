package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/models"
	"github.com/punchamoorthee/dealledger/internal/store"
)

type payoutPayload struct {
	DealID      int64 `json:"dealId"`
	GrossAmount int64 `json:"grossAmount"`
}

func payoutScope(dealID int64) string { return fmt.Sprintf("release_payout:%d", dealID) }

// ReleasePayout distributes gross proceeds of a Released deal to its
// investors pro rata and settles the deal. Amounts at or above the policy
// threshold are held for a second admin and return *ApprovalRequiredError.
// The boolean reports a replay of an earlier completed call.
func (s *Service) ReleasePayout(ctx context.Context, actor domain.Actor, req models.ReleasePayoutRequest) (models.PayoutResponse, bool, error) {
	return s.releasePayout(ctx, actor, req, nil)
}

func (s *Service) releasePayout(ctx context.Context, actor domain.Actor, req models.ReleasePayoutRequest, approved *approval) (models.PayoutResponse, bool, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return models.PayoutResponse{}, false, err
	}
	if req.DealID <= 0 {
		return models.PayoutResponse{}, false, domain.Validation("dealId", "must be positive")
	}
	if req.GrossAmount <= 0 {
		return models.PayoutResponse{}, false, domain.Validation("grossAmount", "must be positive")
	}
	if err := requireKey(req.IdempotencyKey); err != nil {
		return models.PayoutResponse{}, false, err
	}

	if approved == nil {
		d, err := s.gate.Guard(ctx, GuardRequest{
			ActorID:        actor.ID,
			Action:         domain.ActionReleasePayout,
			Scope:          payoutScope(req.DealID),
			Magnitude:      req.GrossAmount,
			IdempotencyKey: req.IdempotencyKey,
			Payload:        req,
		})
		if err != nil {
			return models.PayoutResponse{}, false, err
		}
		if !d.Direct {
			return models.PayoutResponse{}, false, &domain.ApprovalRequiredError{RequestID: d.RequestID}
		}
	}

	payload := payoutPayload{DealID: req.DealID, GrossAmount: req.GrossAmount}
	res, err := s.idem.Execute(ctx, Request{
		ActorID: actor.ID,
		Scope:   payoutScope(req.DealID),
		Key:     req.IdempotencyKey,
		Payload: payload,
		Before:  approved.before(),
	}, func(ctx context.Context, q *store.Queries) (any, error) {
		return s.distribute(ctx, q, actor.ID, payload)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			s.logger.Warn("payout release failed",
				slog.Int64("deal_id", req.DealID),
				slog.String("actor", actor.ID),
				slog.Any("error", err))
		}
		return models.PayoutResponse{}, false, err
	}

	out, err := Decode[models.PayoutResponse](res)
	if err != nil {
		return models.PayoutResponse{}, false, err
	}
	if !res.Replayed {
		payoutsReleased.Inc()
		payoutMinorUnits.Add(float64(out.TotalDistributed))
		s.logger.Info("payout released",
			slog.Int64("deal_id", out.DealID),
			slog.String("reference", out.Reference),
			slog.Int64("total", out.TotalDistributed),
			slog.Int("investors", len(out.PerInvestorAmounts)))
	}
	return out, res.Replayed, nil
}

// distribute performs the settlement writes under the deal row lock:
// one payout entry per investor with a non-zero share, every investment
// marked settled, Released → Settled, and one audit entry.
func (s *Service) distribute(ctx context.Context, q *store.Queries, actorID string, p payoutPayload) (models.PayoutResponse, error) {
	deal, err := q.LockDeal(ctx, p.DealID)
	if err != nil {
		return models.PayoutResponse{}, err
	}
	switch deal.Status {
	case domain.StatusSettled:
		return models.PayoutResponse{}, domain.ErrAlreadySettled
	case domain.StatusReleased:
	default:
		return models.PayoutResponse{}, fmt.Errorf("%w: deal %d is %s", domain.ErrDealNotReleased, deal.ID, deal.Status)
	}

	invs, err := q.ListInvestments(ctx, deal.ID)
	if err != nil {
		return models.PayoutResponse{}, fmt.Errorf("list investments: %w", err)
	}
	shares, err := domain.SplitPayout(p.GrossAmount, invs)
	if err != nil {
		return models.PayoutResponse{}, err
	}

	ref := newReference("payout")
	entries := make([]store.NewEntry, 0, len(shares))
	for _, sh := range shares {
		if sh.Amount == 0 {
			continue
		}
		entries = append(entries, store.NewEntry{
			UserID:    sh.InvestorID,
			DealID:    &deal.ID,
			Kind:      domain.KindPayout,
			Amount:    sh.Amount,
			Reference: ref,
		})
	}
	if _, err := q.AppendEntries(ctx, entries); err != nil {
		return models.PayoutResponse{}, fmt.Errorf("append payout entries: %w", err)
	}
	if _, err := q.MarkInvestmentsSettled(ctx, deal.ID); err != nil {
		return models.PayoutResponse{}, fmt.Errorf("settle investments: %w", err)
	}
	settled, err := q.SetDealStatus(ctx, deal.ID, domain.StatusReleased, domain.StatusSettled)
	if err != nil {
		return models.PayoutResponse{}, err
	}

	total := domain.SumShares(shares)
	_, err = q.AppendAudit(ctx, actorID, "deal.payout_released", "deal", dealEntityID(deal.ID), map[string]any{
		"from":        deal.Status,
		"to":          settled.Status,
		"grossAmount": p.GrossAmount,
		"reference":   ref,
		"shares":      shares,
	})
	if err != nil {
		return models.PayoutResponse{}, err
	}

	return models.PayoutResponse{
		DealID:             deal.ID,
		Reference:          ref,
		PerInvestorAmounts: shares,
		TotalDistributed:   total,
	}, nil
}
