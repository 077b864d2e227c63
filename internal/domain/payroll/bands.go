package payroll

import "github.com/shopspring/decimal"

type BandPortion struct {
	Band    Band
	Portion decimal.Decimal
	Owed    decimal.Decimal
}

type BandResult struct {
	Total    decimal.Decimal
	Portions []BandPortion
}

// ProgressiveAmount applies marginal rates over half-open bands
// [L[i], L[i+1]). Only bands with a nonzero portion appear in Portions.
func ProgressiveAmount(amount decimal.Decimal, bands []Band) BandResult {
	result := BandResult{Total: decimal.Zero}
	if !amount.IsPositive() {
		return result
	}
	for i, band := range bands {
		if amount.LessThanOrEqual(band.LowerBound) {
			break
		}
		upper := amount
		if i+1 < len(bands) {
			upper = decimal.Min(amount, bands[i+1].LowerBound)
		}
		portion := upper.Sub(band.LowerBound)
		if !portion.IsPositive() {
			continue
		}
		owed := portion.Mul(band.Rate)
		result.Total = result.Total.Add(owed)
		result.Portions = append(result.Portions, BandPortion{Band: band, Portion: portion, Owed: owed})
	}
	return result
}
