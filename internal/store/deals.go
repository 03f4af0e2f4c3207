package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/dealledger/internal/domain"
)

const dealColumns = `id, title, funding_target, raised_amount, status, expected_arrival_at, maturity_at, created_at, updated_at`

func scanDeal(row pgx.Row) (domain.Deal, error) {
	var d domain.Deal
	var status string
	err := row.Scan(&d.ID, &d.Title, &d.FundingTarget, &d.RaisedAmount, &status,
		&d.ExpectedArrivalAt, &d.MaturityAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deal{}, domain.ErrNotFound
		}
		return domain.Deal{}, err
	}
	d.Status, err = domain.ParseStatus(status)
	if err != nil {
		return domain.Deal{}, fmt.Errorf("deal %d: %w", d.ID, err)
	}
	return d, nil
}

// CreateDeal inserts a deal in Funding.
func (q *Queries) CreateDeal(ctx context.Context, title string, target int64, expectedArrival, maturity *time.Time) (domain.Deal, error) {
	return scanDeal(q.db.QueryRow(ctx, `
		INSERT INTO deals (title, funding_target, status, expected_arrival_at, maturity_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+dealColumns,
		title, target, domain.StatusFunding.String(), expectedArrival, maturity))
}

func (q *Queries) GetDeal(ctx context.Context, id int64) (domain.Deal, error) {
	return scanDeal(q.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
}

// LockDeal reads the deal row FOR UPDATE. Only valid inside a transaction.
func (q *Queries) LockDeal(ctx context.Context, id int64) (domain.Deal, error) {
	return scanDeal(q.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1 FOR UPDATE`, id))
}

// SetDealStatus moves the deal from `from` to `to`. The WHERE clause on the
// current status makes a stale caller affect zero rows rather than rewind.
func (q *Queries) SetDealStatus(ctx context.Context, id int64, from, to domain.Status) (domain.Deal, error) {
	d, err := scanDeal(q.db.QueryRow(ctx, `
		UPDATE deals SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+dealColumns,
		id, from.String(), to.String()))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Deal{}, &domain.TransitionError{From: from, To: to}
	}
	return d, err
}

// AddRaised increases raised_amount; the table CHECK keeps it within target.
func (q *Queries) AddRaised(ctx context.Context, id int64, amount int64) (int64, error) {
	var raised int64
	err := q.db.QueryRow(ctx, `
		UPDATE deals SET raised_amount = raised_amount + $2, updated_at = now()
		WHERE id = $1
		RETURNING raised_amount`, id, amount).Scan(&raised)
	if err != nil {
		if IsCheckViolation(err) {
			return 0, domain.ErrFundingExceeded
		}
		return 0, err
	}
	return raised, nil
}

// DelayedShipments lists InTransit deals whose expected arrival is before cutoff.
func (q *Queries) DelayedShipments(ctx context.Context, cutoff time.Time) ([]domain.Deal, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE status = $1 AND expected_arrival_at IS NOT NULL AND expected_arrival_at < $2
		ORDER BY id`, domain.StatusInTransit.String(), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

const investmentColumns = `id, deal_id, investor_id, principal, settled, created_at`

func (q *Queries) InsertInvestment(ctx context.Context, dealID int64, investorID string, principal int64) (domain.Investment, error) {
	var inv domain.Investment
	err := q.db.QueryRow(ctx, `
		INSERT INTO investments (deal_id, investor_id, principal)
		VALUES ($1, $2, $3)
		RETURNING `+investmentColumns,
		dealID, investorID, principal,
	).Scan(&inv.ID, &inv.DealID, &inv.InvestorID, &inv.Principal, &inv.Settled, &inv.CreatedAt)
	return inv, err
}

// ListInvestments returns every investment of a deal, oldest first.
func (q *Queries) ListInvestments(ctx context.Context, dealID int64) ([]domain.Investment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+investmentColumns+` FROM investments
		WHERE deal_id = $1 ORDER BY id`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Investment
	for rows.Next() {
		var inv domain.Investment
		if err := rows.Scan(&inv.ID, &inv.DealID, &inv.InvestorID, &inv.Principal, &inv.Settled, &inv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// MarkInvestmentsSettled flags every unsettled investment of the deal.
func (q *Queries) MarkInvestmentsSettled(ctx context.Context, dealID int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE investments SET settled = true WHERE deal_id = $1 AND NOT settled`, dealID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
