package domain

import "github.com/shopspring/decimal"

// SplitCommission splits net into the platform commission and the seller payout.
// The commission is rounded down to cents and the payout takes the remainder,
// so commission + payout == net always holds.
func SplitCommission(net, rate decimal.Decimal) (commission, payout decimal.Decimal) {
	commission = net.Mul(rate).RoundFloor(2)
	payout = net.Sub(commission)
	return commission, payout
}

// ValidAmount reports whether d is a positive amount in whole cents.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.Equal(d.Truncate(2))
}
