package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/dealledger/internal/domain"
)

// UpsertOutcome says what an alert upsert did to the row.
type UpsertOutcome int

const (
	AlertInserted UpsertOutcome = iota
	AlertReopened
	AlertRefreshed
)

// UpsertAlert inserts the alert or updates the row with the same key,
// clearing resolved_at. The prior resolved_at is read in the same statement.
func (q *Queries) UpsertAlert(ctx context.Context, a domain.SystemAlert) (UpsertOutcome, error) {
	var inserted bool
	var wasResolved bool
	err := q.db.QueryRow(ctx, `
		WITH prev AS (
			SELECT resolved_at FROM system_alerts WHERE key = $1
		)
		INSERT INTO system_alerts (key, severity, type, title, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET severity = EXCLUDED.severity,
		    type = EXCLUDED.type,
		    title = EXCLUDED.title,
		    message = EXCLUDED.message,
		    updated_at = now(),
		    resolved_at = NULL
		RETURNING (xmax = 0), COALESCE((SELECT resolved_at IS NOT NULL FROM prev), false)`,
		a.Key, string(a.Severity), a.Type, a.Title, a.Message,
	).Scan(&inserted, &wasResolved)
	if err != nil {
		return 0, err
	}
	switch {
	case inserted:
		return AlertInserted, nil
	case wasResolved:
		return AlertReopened, nil
	default:
		return AlertRefreshed, nil
	}
}

// ResolveAlertsExcept resolves every open alert of the given type whose key
// is not in keep, returning how many were resolved.
func (q *Queries) ResolveAlertsExcept(ctx context.Context, alertType string, keep []string) (int64, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE system_alerts SET resolved_at = now(), updated_at = now()
		WHERE type = $1 AND resolved_at IS NULL AND NOT (key = ANY($2))`, alertType, keep)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResolveAlert marks one alert resolved. Resolving twice is a no-op.
func (q *Queries) ResolveAlert(ctx context.Context, key string) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE system_alerts SET resolved_at = COALESCE(resolved_at, now()), updated_at = now()
		WHERE key = $1`, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const alertColumns = `key, severity, type, title, message, created_at, updated_at, resolved_at`

func scanAlert(row pgx.Row) (domain.SystemAlert, error) {
	var a domain.SystemAlert
	var severity string
	err := row.Scan(&a.Key, &severity, &a.Type, &a.Title, &a.Message, &a.CreatedAt, &a.UpdatedAt, &a.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SystemAlert{}, domain.ErrNotFound
		}
		return domain.SystemAlert{}, err
	}
	a.Severity = domain.Severity(severity)
	return a, nil
}

func (q *Queries) GetAlert(ctx context.Context, key string) (domain.SystemAlert, error) {
	return scanAlert(q.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM system_alerts WHERE key = $1`, key))
}

// OpenAlerts lists unresolved alerts, most recently touched first.
func (q *Queries) OpenAlerts(ctx context.Context) ([]domain.SystemAlert, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+alertColumns+` FROM system_alerts
		WHERE resolved_at IS NULL ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SystemAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
