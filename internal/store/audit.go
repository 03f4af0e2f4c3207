package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/punchamoorthee/dealledger/internal/domain"
)

// AppendAudit writes one audit row. changes is marshalled to JSON.
func (q *Queries) AppendAudit(ctx context.Context, actorID, action, entityType, entityID string, changes any) (domain.AuditLogEntry, error) {
	body, err := json.Marshal(changes)
	if err != nil {
		return domain.AuditLogEntry{}, fmt.Errorf("marshal audit changes: %w", err)
	}

	var e domain.AuditLogEntry
	var stored []byte
	err = q.db.QueryRow(ctx, `
		INSERT INTO audit_log (actor_id, action, entity_type, entity_id, changes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, actor_id, action, entity_type, entity_id, changes, created_at`,
		actorID, action, entityType, entityID, body,
	).Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &stored, &e.CreatedAt)
	if err != nil {
		return domain.AuditLogEntry{}, err
	}
	e.Changes = stored
	return e, nil
}

// ListAudit returns an entity's audit trail, oldest first.
func (q *Queries) ListAudit(ctx context.Context, entityType, entityID string) ([]domain.AuditLogEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, actor_id, action, entity_type, entity_id, changes, created_at
		FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY id`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var changes []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &changes, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Changes = changes
		out = append(out, e)
	}
	return out, rows.Err()
}
