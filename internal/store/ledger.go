package store

import (
	"context"

	"github.com/punchamoorthee/dealledger/internal/domain"
)

const entryColumns = `id, user_id, deal_id, kind, amount, status, reference, created_at`

// NewEntry is an entry not yet written.
type NewEntry struct {
	UserID    string
	DealID    *int64
	Kind      domain.EntryKind
	Amount    int64
	Reference string
}

// AppendEntries writes completed entries and returns them in input order.
func (q *Queries) AppendEntries(ctx context.Context, entries []NewEntry) ([]domain.LedgerEntry, error) {
	out := make([]domain.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		var le domain.LedgerEntry
		var kind, status string
		err := q.db.QueryRow(ctx, `
			INSERT INTO ledger_entries (user_id, deal_id, kind, amount, status, reference)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+entryColumns,
			e.UserID, e.DealID, string(e.Kind), e.Amount, string(domain.EntryCompleted), e.Reference,
		).Scan(&le.ID, &le.UserID, &le.DealID, &kind, &le.Amount, &status, &le.Reference, &le.CreatedAt)
		if err != nil {
			return nil, err
		}
		le.Kind = domain.EntryKind(kind)
		le.Status = domain.EntryStatus(status)
		out = append(out, le)
	}
	return out, nil
}

// Balance is the sum of the user's completed entries.
func (q *Queries) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT FROM ledger_entries
		WHERE user_id = $1 AND status = $2`,
		userID, string(domain.EntryCompleted)).Scan(&balance)
	return balance, err
}

// LockWallet serializes balance-checked debits for one user for the rest of
// the transaction. There is no balance row to lock, so an advisory lock keyed
// on the user id stands in for it.
func (q *Queries) LockWallet(ctx context.Context, userID string) error {
	_, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('wallet:' || $1))`, userID)
	return err
}

// ListEntries returns a user's entries, newest first.
func (q *Queries) ListEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE user_id = $1 ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var le domain.LedgerEntry
		var kind, status string
		if err := rows.Scan(&le.ID, &le.UserID, &le.DealID, &kind, &le.Amount, &status, &le.Reference, &le.CreatedAt); err != nil {
			return nil, err
		}
		le.Kind = domain.EntryKind(kind)
		le.Status = domain.EntryStatus(status)
		entries = append(entries, le)
	}
	return entries, rows.Err()
}

// DealEntryTotal sums completed entries of one kind for a deal.
func (q *Queries) DealEntryTotal(ctx context.Context, dealID int64, kind domain.EntryKind) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT FROM ledger_entries
		WHERE deal_id = $1 AND kind = $2 AND status = $3`,
		dealID, string(kind), string(domain.EntryCompleted)).Scan(&total)
	return total, err
}
