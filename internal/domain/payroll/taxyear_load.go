package payroll

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed taxyears.yaml
var defaultTaxYearsYAML []byte

type taxYearsFile struct {
	TaxYears []taxYearEntry `yaml:"tax_years"`
}

type taxYearEntry struct {
	ID                  string      `yaml:"id"`
	PersonalAllowance   string      `yaml:"personal_allowance"`
	TaperThreshold      string      `yaml:"taper_threshold"`
	TaperRate           string      `yaml:"taper_rate"`
	NoAllowanceOverride string      `yaml:"no_allowance_override"`
	IncomeTaxBands      []bandEntry `yaml:"income_tax_bands"`
	InsuranceBands      []bandEntry `yaml:"insurance_bands"`
}

type bandEntry struct {
	Name  string `yaml:"name"`
	Lower string `yaml:"lower"`
	Rate  string `yaml:"rate"`
}

// DefaultTaxYears returns the tax years bundled with the binary.
func DefaultTaxYears() ([]TaxYearConfig, error) {
	return LoadTaxYears(bytes.NewReader(defaultTaxYearsYAML))
}

func LoadTaxYearsFile(path string) ([]TaxYearConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTaxYears(f)
}

// LoadTaxYears decodes and validates a tax_years YAML document.
func LoadTaxYears(r io.Reader) ([]TaxYearConfig, error) {
	var doc taxYearsFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTaxYear, err)
	}
	configs := make([]TaxYearConfig, 0, len(doc.TaxYears))
	for _, entry := range doc.TaxYears {
		cfg, err := entry.toConfig()
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (e taxYearEntry) toConfig() (TaxYearConfig, error) {
	cfg := TaxYearConfig{ID: e.ID}
	var err error
	if cfg.PersonalAllowanceBase, err = ParseAmount("personal_allowance", e.PersonalAllowance); err != nil {
		return TaxYearConfig{}, fmt.Errorf("%w: %s %v", ErrInvalidTaxYear, e.ID, err)
	}
	if cfg.TaperThreshold, err = ParseAmount("taper_threshold", e.TaperThreshold); err != nil {
		return TaxYearConfig{}, fmt.Errorf("%w: %s %v", ErrInvalidTaxYear, e.ID, err)
	}
	if cfg.TaperRate, err = ParseAmount("taper_rate", e.TaperRate); err != nil {
		return TaxYearConfig{}, fmt.Errorf("%w: %s %v", ErrInvalidTaxYear, e.ID, err)
	}
	if cfg.NoAllowanceOverride, err = ParseAmount("no_allowance_override", e.NoAllowanceOverride); err != nil {
		return TaxYearConfig{}, fmt.Errorf("%w: %s %v", ErrInvalidTaxYear, e.ID, err)
	}
	if cfg.IncomeTaxBands, err = toBands(e.IncomeTaxBands); err != nil {
		return TaxYearConfig{}, fmt.Errorf("%w: %s income_tax_bands %v", ErrInvalidTaxYear, e.ID, err)
	}
	if cfg.InsuranceBands, err = toBands(e.InsuranceBands); err != nil {
		return TaxYearConfig{}, fmt.Errorf("%w: %s insurance_bands %v", ErrInvalidTaxYear, e.ID, err)
	}
	return cfg, nil
}

func toBands(entries []bandEntry) ([]Band, error) {
	bands := make([]Band, 0, len(entries))
	for _, entry := range entries {
		lower, err := ParseAmount("lower", entry.Lower)
		if err != nil {
			return nil, err
		}
		rate, err := ParseAmount("rate", entry.Rate)
		if err != nil {
			return nil, err
		}
		bands = append(bands, Band{Name: entry.Name, LowerBound: lower, Rate: rate})
	}
	return bands, nil
}
