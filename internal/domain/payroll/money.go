package payroll

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RoundCurrency rounds half away from zero to whole pence. It is applied to
// final outputs only.
func RoundCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CurrencyPlaces)
}

// ParseAmount parses a decimal string, treating blank input as zero.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a decimal number", field, raw)
	}
	return value, nil
}

// namedAmount pairs a field name with its value so checks report fields in a
// fixed order.
type namedAmount struct {
	field string
	value decimal.Decimal
}

func requireNonNegative(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return fmt.Errorf("%w: %s is %s", ErrNegativeInput, field, value.String())
	}
	return nil
}
