package payroll

const (
	AllowanceCodeStandard = "standard"
	AllowanceCodeNone     = "none"
	AllowanceCodeZeroT    = "0T"

	PersonalAllowanceBand = "personal_allowance"

	CategoryIncomeTax         = "income_tax"
	CategoryNationalInsurance = "national_insurance"

	// CurrencyPlaces is the precision of every figure leaving the engine.
	CurrencyPlaces = 2

	JobRenderPayslip = "payslip_render"
)
