package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/models"
	"github.com/punchamoorthee/dealledger/internal/store"
)

// CreateDeal opens a deal in Funding.
func (s *Service) CreateDeal(ctx context.Context, actor domain.Actor, req models.CreateDealRequest) (domain.Deal, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return domain.Deal{}, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return domain.Deal{}, domain.Validation("title", "is required")
	}
	if req.FundingTarget <= 0 {
		return domain.Deal{}, domain.Validation("fundingTarget", "must be positive")
	}
	if req.ExpectedArrivalAt != nil && req.MaturityAt != nil && req.MaturityAt.Before(*req.ExpectedArrivalAt) {
		return domain.Deal{}, domain.Validation("maturity_at", "must not precede expected_arrival_at")
	}

	var deal domain.Deal
	err := s.inTx(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		deal, err = q.CreateDeal(ctx, req.Title, req.FundingTarget, req.ExpectedArrivalAt, req.MaturityAt)
		if err != nil {
			return fmt.Errorf("insert deal: %w", err)
		}
		_, err = q.AppendAudit(ctx, actor.ID, "deal.created", "deal", dealEntityID(deal.ID), map[string]any{
			"title":         deal.Title,
			"fundingTarget": deal.FundingTarget,
			"status":        deal.Status,
		})
		return err
	})
	if err != nil {
		return domain.Deal{}, err
	}

	s.logger.Info("deal created", slog.Int64("deal_id", deal.ID), slog.String("actor", actor.ID))
	return deal, nil
}

// AdvanceStage moves a deal one step forward. Settled is reachable only via
// the payout engine and Cancelled only via CancelDeal; a rejected move
// leaves the deal untouched.
func (s *Service) AdvanceStage(ctx context.Context, actor domain.Actor, req models.StageRequest) (models.StageResponse, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return models.StageResponse{}, err
	}
	if !req.TargetStage.Valid() {
		return models.StageResponse{}, domain.Validation("targetStage", "unknown stage")
	}

	var from domain.Status
	var deal domain.Deal
	err := s.inTx(ctx, func(ctx context.Context, q *store.Queries) error {
		cur, err := q.LockDeal(ctx, req.DealID)
		if err != nil {
			return err
		}
		if err := domain.CheckManualAdvance(cur.Status, req.TargetStage); err != nil {
			return err
		}
		from = cur.Status
		deal, err = q.SetDealStatus(ctx, cur.ID, cur.Status, req.TargetStage)
		if err != nil {
			return err
		}
		_, err = q.AppendAudit(ctx, actor.ID, "deal.stage_advanced", "deal", dealEntityID(deal.ID), map[string]any{
			"from": from,
			"to":   deal.Status,
		})
		return err
	})
	if err != nil {
		return models.StageResponse{}, err
	}

	s.logger.Info("deal stage advanced",
		slog.Int64("deal_id", deal.ID),
		slog.String("from", from.String()),
		slog.String("to", deal.Status.String()),
		slog.String("actor", actor.ID))
	return models.StageResponse{ID: deal.ID, Status: deal.Status}, nil
}

// CancelDeal cancels a deal still in Funding and refunds every investor's
// principal to their wallet.
func (s *Service) CancelDeal(ctx context.Context, actor domain.Actor, dealID int64) (models.StageResponse, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return models.StageResponse{}, err
	}

	var deal domain.Deal
	var refunded int64
	err := s.inTx(ctx, func(ctx context.Context, q *store.Queries) error {
		cur, err := q.LockDeal(ctx, dealID)
		if err != nil {
			return err
		}
		if !domain.CanCancel(cur.Status) {
			return &domain.TransitionError{From: cur.Status, To: domain.StatusCancelled}
		}

		invs, err := q.ListInvestments(ctx, cur.ID)
		if err != nil {
			return fmt.Errorf("list investments: %w", err)
		}
		if len(invs) > 0 {
			ref := newReference("refund")
			refunds := make([]store.NewEntry, 0, len(invs))
			for _, share := range domain.AggregatePrincipal(invs) {
				refunds = append(refunds, store.NewEntry{
					UserID:    share.InvestorID,
					DealID:    &cur.ID,
					Kind:      domain.KindDeposit,
					Amount:    share.Principal,
					Reference: ref,
				})
				refunded += share.Principal
			}
			if _, err := q.AppendEntries(ctx, refunds); err != nil {
				return fmt.Errorf("append refunds: %w", err)
			}
			if _, err := q.MarkInvestmentsSettled(ctx, cur.ID); err != nil {
				return fmt.Errorf("settle investments: %w", err)
			}
		}

		deal, err = q.SetDealStatus(ctx, cur.ID, cur.Status, domain.StatusCancelled)
		if err != nil {
			return err
		}
		_, err = q.AppendAudit(ctx, actor.ID, "deal.cancelled", "deal", dealEntityID(deal.ID), map[string]any{
			"from":     cur.Status,
			"to":       deal.Status,
			"refunded": refunded,
		})
		return err
	})
	if err != nil {
		return models.StageResponse{}, err
	}

	s.logger.Info("deal cancelled",
		slog.Int64("deal_id", deal.ID),
		slog.Int64("refunded", refunded),
		slog.String("actor", actor.ID))
	return models.StageResponse{ID: deal.ID, Status: deal.Status}, nil
}
