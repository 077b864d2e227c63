package payroll

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Band is one marginal-rate bracket. Its upper bound is the next band's
// LowerBound, or unbounded for the last band.
type Band struct {
	Name       string          `json:"name"`
	LowerBound decimal.Decimal `json:"lowerBound"`
	Rate       decimal.Decimal `json:"rate"`
}

// TaxYearConfig holds the thresholds and rates of one tax year.
// Income-tax bands are measured from the top of the personal allowance;
// insurance bands are measured from zero annual earnings.
type TaxYearConfig struct {
	ID                    string          `json:"id"`
	PersonalAllowanceBase decimal.Decimal `json:"personalAllowance"`
	TaperThreshold        decimal.Decimal `json:"taperThreshold"`
	TaperRate             decimal.Decimal `json:"taperRate"`
	NoAllowanceOverride   decimal.Decimal `json:"noAllowanceOverride"`
	IncomeTaxBands        []Band          `json:"incomeTaxBands"`
	InsuranceBands        []Band          `json:"insuranceBands"`
}

func (c TaxYearConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTaxYear)
	}
	for _, setting := range []namedAmount{
		{"personal_allowance", c.PersonalAllowanceBase},
		{"taper_threshold", c.TaperThreshold},
		{"taper_rate", c.TaperRate},
		{"no_allowance_override", c.NoAllowanceOverride},
	} {
		if setting.value.IsNegative() {
			return fmt.Errorf("%w: %s %s must not be negative", ErrInvalidTaxYear, c.ID, setting.field)
		}
	}
	if err := validateBands(c.ID, "income_tax_bands", c.IncomeTaxBands); err != nil {
		return err
	}
	return validateBands(c.ID, "insurance_bands", c.InsuranceBands)
}

func validateBands(yearID, table string, bands []Band) error {
	if len(bands) == 0 {
		return fmt.Errorf("%w: %s %s needs at least one band", ErrInvalidTaxYear, yearID, table)
	}
	if !bands[0].LowerBound.IsZero() {
		return fmt.Errorf("%w: %s %s must start at 0", ErrInvalidTaxYear, yearID, table)
	}
	seen := make(map[string]struct{}, len(bands))
	for i, band := range bands {
		name := strings.TrimSpace(band.Name)
		if name == "" {
			return fmt.Errorf("%w: %s %s band %d has no name", ErrInvalidTaxYear, yearID, table, i+1)
		}
		if name == PersonalAllowanceBand && table == "income_tax_bands" {
			return fmt.Errorf("%w: %s band name %q is reserved", ErrInvalidTaxYear, yearID, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %s %s band %q is duplicated", ErrInvalidTaxYear, yearID, table, name)
		}
		seen[name] = struct{}{}
		if band.Rate.IsNegative() {
			return fmt.Errorf("%w: %s %s band %q has a negative rate", ErrInvalidTaxYear, yearID, table, name)
		}
		if i > 0 && !band.LowerBound.GreaterThan(bands[i-1].LowerBound) {
			return fmt.Errorf("%w: %s %s lower bounds must be strictly increasing", ErrInvalidTaxYear, yearID, table)
		}
	}
	return nil
}

func (c TaxYearConfig) clone() TaxYearConfig {
	out := c
	out.IncomeTaxBands = append([]Band(nil), c.IncomeTaxBands...)
	out.InsuranceBands = append([]Band(nil), c.InsuranceBands...)
	return out
}

type TaxYearProvider interface {
	TaxYear(id string) (TaxYearConfig, error)
}

// TaxYearRegistry is a read-only set of validated tax years. It is safe for
// concurrent use once constructed.
type TaxYearRegistry struct {
	years map[string]TaxYearConfig
	ids   []string
}

func NewTaxYearRegistry(configs ...TaxYearConfig) (*TaxYearRegistry, error) {
	registry := &TaxYearRegistry{years: make(map[string]TaxYearConfig, len(configs))}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := registry.years[cfg.ID]; dup {
			return nil, fmt.Errorf("%w: tax year %s registered twice", ErrInvalidTaxYear, cfg.ID)
		}
		registry.years[cfg.ID] = cfg.clone()
		registry.ids = append(registry.ids, cfg.ID)
	}
	sort.Strings(registry.ids)
	return registry, nil
}

func (r *TaxYearRegistry) TaxYear(id string) (TaxYearConfig, error) {
	cfg, ok := r.years[strings.TrimSpace(id)]
	if !ok {
		return TaxYearConfig{}, fmt.Errorf("%w: %q", ErrConfigNotFound, id)
	}
	return cfg.clone(), nil
}

func (r *TaxYearRegistry) IDs() []string {
	return append([]string(nil), r.ids...)
}
