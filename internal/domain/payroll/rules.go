package payroll

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AllowanceKind string

const (
	AllowanceFixed      AllowanceKind = "fixed"
	AllowancePercentage AllowanceKind = "percentage"
	AllowanceFormula    AllowanceKind = "formula"
)

type DeductionKind string

const (
	DeductionFixed      DeductionKind = "fixed"
	DeductionPercentage DeductionKind = "percentage"
	DeductionTax        DeductionKind = "tax"
	DeductionInsurance  DeductionKind = "insurance"
)

// RuleBase selects which period amount a percentage rule applies to.
type RuleBase string

const (
	BaseGross RuleBase = "gross"
	BaseBasic RuleBase = "basic"
)

type AllowanceRule struct {
	Name    string          `json:"name"`
	Kind    AllowanceKind   `json:"kind"`
	Value   decimal.Decimal `json:"value"`
	Formula string          `json:"formula,omitempty"`
	Base    RuleBase        `json:"base,omitempty"`
	Taxable bool            `json:"taxable"`
}

type DeductionRule struct {
	Name   string          `json:"name"`
	Kind   DeductionKind   `json:"kind"`
	Value  decimal.Decimal `json:"value"`
	Base   RuleBase        `json:"base,omitempty"`
	PreTax bool            `json:"preTax"`
}

// Line is a resolved allowance or deduction. Statutory lines mirror the
// period's income tax or insurance and are not counted in TotalDeductions.
type Line struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Taxable   bool            `json:"taxable,omitempty"`
	PreTax    bool            `json:"preTax,omitempty"`
	Statutory bool            `json:"statutory,omitempty"`
}

type FormulaInput struct {
	EmployeeID     string
	BaseSalary     decimal.Decimal
	PeriodStart    time.Time
	PeriodEnd      time.Time
	PeriodsPerYear int64
}

// FormulaEvaluator computes named formula allowances. Implementations are
// supplied by the allowance configuration subsystem.
type FormulaEvaluator interface {
	EvaluateFormula(name string, input FormulaInput) (decimal.Decimal, error)
}

// FormulaCatalog is implemented by evaluators that know their formula names
// up front, letting a request be rejected before any amount is computed.
type FormulaCatalog interface {
	Has(name string) bool
}

type FormulaFunc func(name string, input FormulaInput) (decimal.Decimal, error)

func (f FormulaFunc) EvaluateFormula(name string, input FormulaInput) (decimal.Decimal, error) {
	return f(name, input)
}

// RuleContext carries the figures a rule may resolve against. Tax and
// insurance must already be computed for the same request.
type RuleContext struct {
	PeriodGross     decimal.Decimal
	PeriodBasic     decimal.Decimal
	PeriodIncomeTax decimal.Decimal
	PeriodInsurance decimal.Decimal
	Formula         FormulaInput
	Formulas        FormulaEvaluator
}

func (rc RuleContext) base(ruleName string, base RuleBase) (decimal.Decimal, error) {
	switch base {
	case "", BaseGross:
		return rc.PeriodGross, nil
	case BaseBasic:
		return rc.PeriodBasic, nil
	default:
		return decimal.Zero, invalidRule(ruleName, "unknown base %q", base)
	}
}

func ResolveAllowance(rule AllowanceRule, rc RuleContext) (Line, error) {
	line := Line{Name: rule.Name, Kind: string(rule.Kind), Taxable: rule.Taxable}
	switch rule.Kind {
	case AllowanceFixed:
		if rule.Value.IsNegative() {
			return Line{}, invalidRule(rule.Name, "fixed amount %s is negative", rule.Value)
		}
		line.Amount = rule.Value
	case AllowancePercentage:
		amount, err := percentageOf(rule.Name, rule.Base, rule.Value, rc)
		if err != nil {
			return Line{}, err
		}
		line.Amount = amount
	case AllowanceFormula:
		name := strings.TrimSpace(rule.Formula)
		if name == "" {
			return Line{}, invalidRule(rule.Name, "formula name is required")
		}
		if rc.Formulas == nil {
			return Line{}, invalidRule(rule.Name, "no formula evaluator configured")
		}
		amount, err := rc.Formulas.EvaluateFormula(name, rc.Formula)
		if err != nil {
			return Line{}, invalidRule(rule.Name, "formula %s: %v", name, err)
		}
		if amount.IsNegative() {
			return Line{}, invalidRule(rule.Name, "formula %s produced negative amount %s", name, amount)
		}
		line.Amount = amount
	default:
		return Line{}, invalidRule(rule.Name, "unknown allowance kind %q", rule.Kind)
	}
	return line, nil
}

func ResolveDeduction(rule DeductionRule, rc RuleContext) (Line, error) {
	line := Line{Name: rule.Name, Kind: string(rule.Kind), PreTax: rule.PreTax}
	switch rule.Kind {
	case DeductionFixed:
		if rule.Value.IsNegative() {
			return Line{}, invalidRule(rule.Name, "fixed amount %s is negative", rule.Value)
		}
		line.Amount = rule.Value
	case DeductionPercentage:
		amount, err := percentageOf(rule.Name, rule.Base, rule.Value, rc)
		if err != nil {
			return Line{}, err
		}
		line.Amount = amount
	case DeductionTax:
		line.Amount = rc.PeriodIncomeTax
		line.Statutory = true
	case DeductionInsurance:
		line.Amount = rc.PeriodInsurance
		line.Statutory = true
	default:
		return Line{}, invalidRule(rule.Name, "unknown deduction kind %q", rule.Kind)
	}
	return line, nil
}

func percentageOf(ruleName string, base RuleBase, ratio decimal.Decimal, rc RuleContext) (decimal.Decimal, error) {
	if ratio.IsNegative() {
		return decimal.Zero, invalidRule(ruleName, "percentage ratio %s is negative", ratio)
	}
	amount, err := rc.base(ruleName, base)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(ratio), nil
}

func invalidRule(name, format string, args ...any) error {
	if strings.TrimSpace(name) == "" {
		name = "unnamed"
	}
	return fmt.Errorf("%w: rule %s: %s", ErrInvalidRuleConfiguration, name, fmt.Sprintf(format, args...))
}
