package store

import (
	"context"
	"time"

	"github.com/punchamoorthee/dealledger/internal/domain"
)

// UpsertUser records the identity collaborator's KYC snapshot for a user.
func (q *Queries) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id, kyc_status, kyc_submitted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET kyc_status = EXCLUDED.kyc_status, kyc_submitted_at = EXCLUDED.kyc_submitted_at`,
		u.ID, string(u.KYCStatus), u.KYCSubmittedAt)
	return err
}

// StaleKYC lists users whose KYC has been pending since before cutoff.
func (q *Queries) StaleKYC(ctx context.Context, cutoff time.Time) ([]domain.User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, kyc_status, kyc_submitted_at FROM users
		WHERE kyc_status = $1 AND kyc_submitted_at < $2
		ORDER BY id`, string(domain.KYCPending), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		var status string
		if err := rows.Scan(&u.ID, &status, &u.KYCSubmittedAt); err != nil {
			return nil, err
		}
		u.KYCStatus = domain.KYCStatus(status)
		out = append(out, u)
	}
	return out, rows.Err()
}
