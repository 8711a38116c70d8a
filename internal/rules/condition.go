package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/rebate/internal/domain"
)

// ConditionEngine evaluates the optional CEL conditions attached to rebates.
// Compiled programs are cached by expression text.
type ConditionEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
}

// ConditionInput is the data a condition expression can see.
type ConditionInput struct {
	Request domain.CalculateRebateRequest
	Rebate  domain.Rebate
	Product domain.Product
}

// NewConditionEngine creates an engine with the rebate variables declared.
func NewConditionEngine() (*ConditionEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("volume", cel.DoubleType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("percentage", cel.DoubleType),
		cel.Variable("rebate_id", cel.StringType),
		cel.Variable("product_id", cel.StringType),
		cel.Variable("incentive", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &ConditionEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Validate compiles expr without caching it. An empty expression is valid.
func (e *ConditionEngine) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := e.compile(expr)
	return err
}

// Evaluate reports whether the rebate's condition holds for in.
// A rebate without a condition always applies.
func (e *ConditionEngine) Evaluate(in ConditionInput) (bool, error) {
	expr := strings.TrimSpace(in.Rebate.Condition)
	if expr == "" {
		return true, nil
	}

	program, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := program.Eval(map[string]any{
		"volume":     in.Request.Volume.InexactFloat64(),
		"price":      in.Product.Price.InexactFloat64(),
		"amount":     in.Rebate.Amount.InexactFloat64(),
		"percentage": in.Rebate.Percentage.InexactFloat64(),
		"rebate_id":  in.Rebate.Identifier,
		"product_id": in.Product.Identifier,
		"incentive":  in.Rebate.Incentive.String(),
	})
	if err != nil {
		return false, fmt.Errorf("condition %q: evaluation error: %w", expr, err)
	}

	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("condition %q: expected bool result, got %s", expr, out.Type().TypeName())
	}
	return bool(b), nil
}

// CachedCount returns the number of compiled conditions held by the engine.
func (e *ConditionEngine) CachedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.programs)
}

func (e *ConditionEngine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	p, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := e.compile(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expr] = p
	e.mu.Unlock()
	return p, nil
}

func (e *ConditionEngine) compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile condition %q: %w", expr, issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition %q must return bool, got %s", expr, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for condition %q: %w", expr, err)
	}
	return program, nil
}
