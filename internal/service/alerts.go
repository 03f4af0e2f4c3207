package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/punchamoorthee/dealledger/internal/config"
	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/models"
	"github.com/punchamoorthee/dealledger/internal/store"
)

const (
	AlertShipmentDelay = "shipment_delay"
	AlertKYCStale      = "kyc_stale"
)

func shipmentDelayKey(dealID int64) string { return fmt.Sprintf("%s:%d", AlertShipmentDelay, dealID) }
func kycStaleKey(userID string) string     { return AlertKYCStale + ":" + userID }

// AlertScanner derives operational alerts from current state. Alerts are
// keyed by business key, so re-running a scan refreshes rather than
// duplicates, and an alert whose condition cleared is resolved.
type AlertScanner struct {
	store  *store.Store
	policy config.AlertPolicy
	logger *slog.Logger
	now    func() time.Time
}

func NewAlertScanner(st *store.Store, policy config.AlertPolicy, logger *slog.Logger, now func() time.Time) *AlertScanner {
	return &AlertScanner{store: st, policy: policy, logger: logger, now: now}
}

// detect runs the detection reads and returns the alerts that should be
// open, by type.
func (a *AlertScanner) detect(ctx context.Context) (map[string][]domain.SystemAlert, error) {
	now := a.now()

	delayed, err := a.store.DelayedShipments(ctx, now.Add(-a.policy.ShipmentGrace))
	if err != nil {
		return nil, fmt.Errorf("scan delayed shipments: %w", err)
	}
	stale, err := a.store.StaleKYC(ctx, now.Add(-a.policy.KYCStaleAfter))
	if err != nil {
		return nil, fmt.Errorf("scan stale kyc: %w", err)
	}

	return map[string][]domain.SystemAlert{
		AlertShipmentDelay: shipmentAlerts(delayed, now),
		AlertKYCStale:      kycAlerts(stale, now),
	}, nil
}

// apply upserts the detected alerts and resolves every open alert of the
// same type whose condition cleared.
func (a *AlertScanner) apply(ctx context.Context, q *store.Queries, found map[string][]domain.SystemAlert) (models.ScanResult, error) {
	var res models.ScanResult
	for _, typ := range []string{AlertShipmentDelay, AlertKYCStale} {
		keys := make([]string, 0, len(found[typ]))
		for _, alert := range found[typ] {
			outcome, err := q.UpsertAlert(ctx, alert)
			if err != nil {
				return res, fmt.Errorf("upsert alert %s: %w", alert.Key, err)
			}
			switch outcome {
			case store.AlertInserted, store.AlertReopened:
				res.Raised++
				alertEvents.WithLabelValues(typ, "raised").Inc()
			case store.AlertRefreshed:
				res.Refreshed++
			}
			keys = append(keys, alert.Key)
		}

		n, err := q.ResolveAlertsExcept(ctx, typ, keys)
		if err != nil {
			return res, fmt.Errorf("resolve %s alerts: %w", typ, err)
		}
		res.Resolved += int(n)
		alertEvents.WithLabelValues(typ, "resolved").Add(float64(n))
	}
	return res, nil
}

// Run scans every interval until ctx is cancelled. A failed sweep is logged
// and retried on the next tick.
func (a *AlertScanner) Run(ctx context.Context, interval time.Duration, sweep func(context.Context) (models.ScanResult, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := sweep(ctx)
			if err != nil {
				a.logger.Error("alert scan failed", slog.Any("error", err))
				continue
			}
			a.logger.Debug("alert scan complete",
				slog.Int("raised", res.Raised),
				slog.Int("refreshed", res.Refreshed),
				slog.Int("resolved", res.Resolved))
		}
	}
}

func shipmentAlerts(deals []domain.Deal, now time.Time) []domain.SystemAlert {
	out := make([]domain.SystemAlert, 0, len(deals))
	for _, d := range deals {
		late := now.Sub(*d.ExpectedArrivalAt).Truncate(time.Hour)
		severity := domain.SeverityWarning
		if late >= 7*24*time.Hour {
			severity = domain.SeverityCritical
		}
		out = append(out, domain.SystemAlert{
			Key:      shipmentDelayKey(d.ID),
			Severity: severity,
			Type:     AlertShipmentDelay,
			Title:    fmt.Sprintf("Shipment delayed for deal %d", d.ID),
			Message:  fmt.Sprintf("%q expected %s, still in transit (%s late)", d.Title, d.ExpectedArrivalAt.UTC().Format(time.RFC3339), late),
		})
	}
	return out
}

func kycAlerts(users []domain.User, now time.Time) []domain.SystemAlert {
	out := make([]domain.SystemAlert, 0, len(users))
	for _, u := range users {
		out = append(out, domain.SystemAlert{
			Key:      kycStaleKey(u.ID),
			Severity: domain.SeverityInfo,
			Type:     AlertKYCStale,
			Title:    "KYC review overdue",
			Message:  fmt.Sprintf("user %s has been pending since %s", u.ID, u.KYCSubmittedAt.UTC().Format(time.RFC3339)),
		})
	}
	return out
}

// ScanAlerts runs a sweep. The alert writes and the audit entry, written
// when the sweep raised or resolved anything, commit together.
func (s *Service) ScanAlerts(ctx context.Context, actor domain.Actor) (models.ScanResult, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return models.ScanResult{}, err
	}
	found, err := s.scanner.detect(ctx)
	if err != nil {
		return models.ScanResult{}, err
	}

	var res models.ScanResult
	err = s.inTx(ctx, func(ctx context.Context, q *store.Queries) error {
		var err error
		if res, err = s.scanner.apply(ctx, q, found); err != nil {
			return err
		}
		if res.Raised+res.Resolved == 0 {
			return nil
		}
		if _, err := q.AppendAudit(ctx, actor.ID, "alerts.scanned", "system_alerts", "scan", res); err != nil {
			return fmt.Errorf("audit alert scan: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ScanResult{}, err
	}
	if res.Raised+res.Resolved > 0 {
		s.logger.Info("alert scan changed alerts",
			slog.Int("raised", res.Raised),
			slog.Int("resolved", res.Resolved),
			slog.String("actor", actor.ID))
	}
	return res, nil
}

// RunAlertScanner sweeps every interval as the system actor until ctx ends.
func (s *Service) RunAlertScanner(ctx context.Context, interval time.Duration) {
	s.scanner.Run(ctx, interval, func(ctx context.Context) (models.ScanResult, error) {
		return s.ScanAlerts(ctx, SystemActor)
	})
}

func (s *Service) OpenAlerts(ctx context.Context, actor domain.Actor) ([]domain.SystemAlert, error) {
	if err := requireRole(actor, domain.RoleAdmin, domain.RoleAuditor); err != nil {
		return nil, err
	}
	alerts, err := s.store.OpenAlerts(ctx)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []domain.SystemAlert{}
	}
	return alerts, nil
}
