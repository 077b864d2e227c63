package payroll

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var errUnknownFormula = errors.New("formula not registered")

// CELFormulas evaluates named formula allowances written as CEL expressions.
// Every expression is compiled once at construction and must return int or
// double. Variables: employeeId, baseSalary, periodStart, periodEnd,
// periodDays, periodsPerYear. baseSalary crosses into CEL as a double, so
// results are rounded to the penny on the way back out.
type CELFormulas struct {
	programs map[string]cel.Program
}

func newFormulaEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("employeeId", cel.StringType),
		cel.Variable("baseSalary", cel.DoubleType),
		cel.Variable("periodStart", cel.TimestampType),
		cel.Variable("periodEnd", cel.TimestampType),
		cel.Variable("periodDays", cel.IntType),
		cel.Variable("periodsPerYear", cel.IntType),
	)
}

func NewCELFormulas(definitions map[string]string) (*CELFormulas, error) {
	env, err := newFormulaEnv()
	if err != nil {
		return nil, err
	}
	formulas := &CELFormulas{programs: make(map[string]cel.Program, len(definitions))}
	for name, expr := range definitions {
		name = strings.TrimSpace(name)
		expr = strings.TrimSpace(expr)
		if name == "" || expr == "" {
			return nil, fmt.Errorf("%w: formula name and expression are required", ErrInvalidRuleConfiguration)
		}
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("%w: formula %s: %v", ErrInvalidRuleConfiguration, name, issues.Err())
		}
		if ast.OutputType() != cel.DoubleType && ast.OutputType() != cel.IntType {
			return nil, fmt.Errorf("%w: formula %s must return int or double", ErrInvalidRuleConfiguration, name)
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("%w: formula %s: %v", ErrInvalidRuleConfiguration, name, err)
		}
		formulas.programs[name] = program
	}
	return formulas, nil
}

func (f *CELFormulas) Has(name string) bool {
	if f == nil {
		return false
	}
	_, ok := f.programs[name]
	return ok
}

func (f *CELFormulas) EvaluateFormula(name string, input FormulaInput) (decimal.Decimal, error) {
	if f == nil {
		return decimal.Zero, errUnknownFormula
	}
	program, ok := f.programs[name]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", errUnknownFormula, name)
	}
	out, _, err := program.Eval(map[string]any{
		"employeeId":     input.EmployeeID,
		"baseSalary":     input.BaseSalary.InexactFloat64(),
		"periodStart":    input.PeriodStart,
		"periodEnd":      input.PeriodEnd,
		"periodDays":     periodDays(input),
		"periodsPerYear": input.PeriodsPerYear,
	})
	if err != nil {
		return decimal.Zero, err
	}
	switch v := out.Value().(type) {
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, fmt.Errorf("formula %s returned %v", name, v)
		}
		return RoundCurrency(decimal.NewFromFloat(v)), nil
	default:
		return decimal.Zero, fmt.Errorf("formula %s returned %T", name, v)
	}
}

// periodDays counts calendar days in the pay period, inclusive of both ends.
func periodDays(input FormulaInput) int64 {
	if input.PeriodStart.IsZero() || input.PeriodEnd.IsZero() || input.PeriodEnd.Before(input.PeriodStart) {
		return 0
	}
	start := input.PeriodStart.Truncate(24 * time.Hour)
	end := input.PeriodEnd.Truncate(24 * time.Hour)
	return int64(end.Sub(start).Hours()/24) + 1
}

type formulasFile struct {
	Formulas map[string]string `yaml:"formulas"`
}

// LoadFormulas reads a YAML document of the form `formulas: {name: expr}`.
func LoadFormulas(r io.Reader) (map[string]string, error) {
	var doc formulasFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	if doc.Formulas == nil {
		doc.Formulas = map[string]string{}
	}
	return doc.Formulas, nil
}

func LoadFormulasFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFormulas(f)
}
