package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/models"
	"github.com/punchamoorthee/dealledger/internal/store"
)

type investPayload struct {
	DealID     int64  `json:"dealId"`
	InvestorID string `json:"investorId"`
	Amount     int64  `json:"amount"`
}

func investScope(dealID int64) string { return fmt.Sprintf("invest:%d", dealID) }

// Invest moves principal from the investor's wallet into a Funding deal.
// Investors may only invest for themselves. The boolean reports a replay.
func (s *Service) Invest(ctx context.Context, actor domain.Actor, req models.InvestRequest) (models.InvestResponse, bool, error) {
	if err := requireRole(actor, domain.RoleAdmin, domain.RoleInvestor); err != nil {
		return models.InvestResponse{}, false, err
	}
	if actor.Role == domain.RoleInvestor && req.InvestorID != actor.ID {
		return models.InvestResponse{}, false, domain.ErrForbidden
	}
	if req.InvestorID == "" {
		return models.InvestResponse{}, false, domain.Validation("investorId", "is required")
	}
	if req.Amount <= 0 {
		return models.InvestResponse{}, false, domain.Validation("amount", "must be positive")
	}

	payload := investPayload{DealID: req.DealID, InvestorID: req.InvestorID, Amount: req.Amount}
	res, err := s.idem.Execute(ctx, Request{
		ActorID: actor.ID,
		Scope:   investScope(req.DealID),
		Key:     req.IdempotencyKey,
		Payload: payload,
	}, func(ctx context.Context, q *store.Queries) (any, error) {
		return s.invest(ctx, q, actor.ID, payload)
	})
	if err != nil {
		return models.InvestResponse{}, false, err
	}

	out, err := Decode[models.InvestResponse](res)
	if err != nil {
		return models.InvestResponse{}, false, err
	}
	if !res.Replayed {
		s.logger.Info("investment committed",
			slog.Int64("deal_id", req.DealID),
			slog.String("investor", req.InvestorID),
			slog.Int64("amount", req.Amount))
	}
	return out, res.Replayed, nil
}

func (s *Service) invest(ctx context.Context, q *store.Queries, actorID string, p investPayload) (models.InvestResponse, error) {
	deal, err := q.LockDeal(ctx, p.DealID)
	if err != nil {
		return models.InvestResponse{}, err
	}
	if deal.Status != domain.StatusFunding {
		return models.InvestResponse{}, domain.Validation("dealId", "deal is %s, not accepting investments", deal.Status)
	}
	if p.Amount > deal.FundingTarget-deal.RaisedAmount {
		return models.InvestResponse{}, domain.ErrFundingExceeded
	}

	if err := q.LockWallet(ctx, p.InvestorID); err != nil {
		return models.InvestResponse{}, fmt.Errorf("lock wallet: %w", err)
	}
	balance, err := q.Balance(ctx, p.InvestorID)
	if err != nil {
		return models.InvestResponse{}, fmt.Errorf("read balance: %w", err)
	}
	if balance < p.Amount {
		return models.InvestResponse{}, domain.ErrInsufficientFunds
	}

	raised, err := q.AddRaised(ctx, deal.ID, p.Amount)
	if err != nil {
		return models.InvestResponse{}, err
	}
	inv, err := q.InsertInvestment(ctx, deal.ID, p.InvestorID, p.Amount)
	if err != nil {
		return models.InvestResponse{}, fmt.Errorf("insert investment: %w", err)
	}
	entries, err := q.AppendEntries(ctx, []store.NewEntry{{
		UserID:    p.InvestorID,
		DealID:    &deal.ID,
		Kind:      domain.KindInvestment,
		Amount:    -p.Amount,
		Reference: fmt.Sprintf("investment:%d", inv.ID),
	}})
	if err != nil {
		return models.InvestResponse{}, fmt.Errorf("append investment entry: %w", err)
	}
	_, err = q.AppendAudit(ctx, actorID, "investment.created", "deal", dealEntityID(deal.ID), map[string]any{
		"investmentId": inv.ID,
		"investorId":   p.InvestorID,
		"amount":       p.Amount,
		"raisedAmount": raised,
	})
	if err != nil {
		return models.InvestResponse{}, err
	}

	return models.InvestResponse{
		Investment: inv,
		Entry:      entries[0],
		Deal:       models.StageResponse{ID: deal.ID, Status: deal.Status},
		Raised:     raised,
	}, nil
}
