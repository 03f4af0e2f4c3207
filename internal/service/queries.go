package service

import (
	"context"

	"github.com/punchamoorthee/dealledger/internal/domain"
)

func (s *Service) GetDeal(ctx context.Context, actor domain.Actor, id int64) (domain.Deal, error) {
	if err := requireRole(actor, domain.RoleAdmin, domain.RoleAuditor); err != nil {
		return domain.Deal{}, err
	}
	return s.store.GetDeal(ctx, id)
}

func (s *Service) ListInvestments(ctx context.Context, actor domain.Actor, dealID int64) ([]domain.Investment, error) {
	if err := requireRole(actor, domain.RoleAdmin, domain.RoleAuditor); err != nil {
		return nil, err
	}
	if _, err := s.store.GetDeal(ctx, dealID); err != nil {
		return nil, err
	}
	invs, err := s.store.ListInvestments(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if invs == nil {
		invs = []domain.Investment{}
	}
	return invs, nil
}

// AuditTrail returns an entity's audit entries in write order.
func (s *Service) AuditTrail(ctx context.Context, actor domain.Actor, entityType, entityID string) ([]domain.AuditLogEntry, error) {
	if err := requireRole(actor, domain.RoleAdmin, domain.RoleAuditor); err != nil {
		return nil, err
	}
	entries, err := s.store.ListAudit(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.AuditLogEntry{}
	}
	return entries, nil
}
