package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Share is one investor's slice of a payout, in minor units.
type Share struct {
	InvestorID string `json:"investorId"`
	Principal  int64  `json:"principal"`
	Amount     int64  `json:"amount"`
}

// AggregatePrincipal folds investments into one principal per investor,
// sorted by descending principal then ascending investor id.
func AggregatePrincipal(investments []Investment) []Share {
	byInvestor := make(map[string]int64, len(investments))
	for _, inv := range investments {
		byInvestor[inv.InvestorID] += inv.Principal
	}

	shares := make([]Share, 0, len(byInvestor))
	for id, principal := range byInvestor {
		shares = append(shares, Share{InvestorID: id, Principal: principal})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Principal != shares[j].Principal {
			return shares[i].Principal > shares[j].Principal
		}
		return shares[i].InvestorID < shares[j].InvestorID
	})
	return shares
}

// SplitPayout divides gross pro rata over the investors' principals.
//
// Each share is floor(gross * principal / total). The residual left by the
// floors is smaller than the investor count and is handed out one minor unit
// at a time in descending principal, ascending investor id order, so the
// amounts always sum to gross exactly.
func SplitPayout(gross int64, investments []Investment) ([]Share, error) {
	if gross <= 0 {
		return nil, Validation("gross_amount", "must be positive")
	}
	shares := AggregatePrincipal(investments)
	if len(shares) == 0 {
		return nil, ErrNoInvestments
	}

	var total int64
	for _, s := range shares {
		if s.Principal <= 0 {
			return nil, Validation("principal", "investor %s has non-positive principal", s.InvestorID)
		}
		total += s.Principal
	}

	// gross*principal overflows int64 for realistic deal sizes; do the
	// product and quotient in arbitrary precision.
	grossD := decimal.NewFromInt(gross)
	totalD := decimal.NewFromInt(total)

	var distributed int64
	for i := range shares {
		q, _ := grossD.Mul(decimal.NewFromInt(shares[i].Principal)).QuoRem(totalD, 0)
		shares[i].Amount = q.IntPart()
		distributed += shares[i].Amount
	}

	residual := gross - distributed
	for i := 0; residual > 0; i = (i + 1) % len(shares) {
		shares[i].Amount++
		residual--
	}
	return shares, nil
}

// SumShares totals the payout amounts.
func SumShares(shares []Share) int64 {
	var sum int64
	for _, s := range shares {
		sum += s.Amount
	}
	return sum
}
