package prediction

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/Knetic/govaluate"
	"gopkg.in/yaml.v3"
)

//go:embed model.yaml
var defaultDefinition []byte

// Definition describes a formula model and the metrics reported for it.
type Definition struct {
	Name       string  `yaml:"name"`
	Expression string  `yaml:"expression"`
	Threshold  float64 `yaml:"threshold"`
	Stats      Stats   `yaml:"stats"`
}

type Stats struct {
	Accuracy    float64 `yaml:"accuracy" json:"accuracy"`
	Precision   float64 `yaml:"precision" json:"precision"`
	Recall      float64 `yaml:"recall" json:"recall"`
	F1Score     float64 `yaml:"f1_score" json:"f1_score"`
	LastTrained string  `yaml:"last_trained" json:"last_trained"`
}

// LoadDefinition reads a YAML definition from path, or the built-in one when path is empty.
func LoadDefinition(path string) (Definition, error) {
	if path == "" {
		return ParseDefinition(defaultDefinition)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read model file: %w", err)
	}
	return ParseDefinition(b)
}

func ParseDefinition(b []byte) (Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(b, &d); err != nil {
		return Definition{}, fmt.Errorf("parse model definition: %w", err)
	}
	if d.Expression == "" {
		return Definition{}, errors.New("model definition has no expression")
	}
	if d.Name == "" {
		d.Name = "formula"
	}
	if d.Threshold == 0 {
		d.Threshold = 0.5
	}
	if d.Threshold <= 0 || d.Threshold >= 1 {
		return Definition{}, fmt.Errorf("threshold must be in (0, 1), got %v", d.Threshold)
	}
	return d, nil
}

var formulaFunctions = map[string]govaluate.ExpressionFunction{
	"sigmoid": unary(func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }),
	"exp":     unary(math.Exp),
	"log":     unary(math.Log),
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %T", args[0])
		}
		return fn(x), nil
	}
}

// FormulaModel scores the form with an arithmetic expression returning the
// probability of non-repayment.
type FormulaModel struct {
	def  Definition
	expr *govaluate.EvaluableExpression
}

func NewFormulaModel(def Definition) (*FormulaModel, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(def.Expression, formulaFunctions)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}

	known := make(map[string]bool, len(Columns))
	for _, col := range Columns {
		known[ParamName(col)] = true
	}
	for _, v := range expr.Vars() {
		if !known[v] {
			return nil, fmt.Errorf("expression references unknown field %q", v)
		}
	}
	return &FormulaModel{def: def, expr: expr}, nil
}

func (m *FormulaModel) Name() string { return m.def.Name }

func (m *FormulaModel) Stats() Stats { return m.def.Stats }

// Risk evaluates the expression, clamped to [0, 1].
func (m *FormulaModel) Risk(f Features) (float64, error) {
	out, err := m.expr.Evaluate(f.Params())
	if err != nil {
		return 0, fmt.Errorf("evaluate %s: %w", m.def.Name, err)
	}
	p, ok := out.(float64)
	if !ok || math.IsNaN(p) {
		return 0, fmt.Errorf("evaluate %s: expression produced %v", m.def.Name, out)
	}
	return math.Min(1, math.Max(0, p)), nil
}

func (m *FormulaModel) Predict(_ context.Context, f Features) (Outcome, error) {
	p, err := m.Risk(f)
	if err != nil {
		return Outcome{}, err
	}
	return outcomeFromRisk(p, m.def.Threshold), nil
}
