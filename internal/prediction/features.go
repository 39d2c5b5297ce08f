package prediction

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"loan-predictor/internal/models"
)

// Columns is the model's input layout, in the order validation walks it.
var Columns = []string{
	"credit.policy", "purpose", "int.rate", "installment", "log.annual.inc",
	"dti", "fico", "days.with.cr.line", "revol.bal", "revol.util",
	"inq.last.6mths", "delinq.2yrs", "pub.rec",
}

// Purposes is sorted, so a purpose's index matches its label-encoded value.
var Purposes = []string{
	"all_other",
	"credit_card",
	"debt_consolidation",
	"educational",
	"home_improvement",
	"major_purchase",
	"small_business",
}

const purposeColumn = "purpose"

// ValidationError describes a rejected form field.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Features is a validated loan form.
type Features struct {
	Purpose string
	values  map[string]float64
}

// Parse validates a decoded JSON form. Numbers may arrive as JSON numbers or numeric strings.
func Parse(raw map[string]any) (Features, error) {
	for _, col := range Columns {
		if _, ok := raw[col]; !ok {
			return Features{}, invalid("Missing data for required field: %s", col)
		}
	}

	f := Features{values: make(map[string]float64, len(Columns)-1)}
	for _, col := range Columns {
		if col == purposeColumn {
			p, _ := raw[col].(string)
			if !slices.Contains(Purposes, p) {
				return Features{}, invalid("Invalid purpose: %v. Must be one of [%s]", raw[col], strings.Join(Purposes, ", "))
			}
			f.Purpose = p
			continue
		}

		v, err := parseNumber(col, raw[col])
		if err != nil {
			return Features{}, err
		}
		f.values[col] = v
	}

	if cp := f.values["credit.policy"]; cp != 0 && cp != 1 {
		return Features{}, invalid("Field 'credit.policy' must be 0 or 1")
	}
	return f, nil
}

func parseNumber(col string, v any) (float64, error) {
	var (
		n   float64
		err error
	)
	switch t := v.(type) {
	case nil:
		return 0, invalid("Field '%s' cannot be empty.", col)
	case float64:
		n = t
	case json.Number:
		n, err = t.Float64()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, invalid("Field '%s' cannot be empty.", col)
		}
		n, err = strconv.ParseFloat(s, 64)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, invalid("Invalid number format for field: %s", col)
	}
	return n, nil
}

func (f Features) Value(col string) float64 {
	return f.values[col]
}

func (f Features) PurposeIndex() int {
	return slices.Index(Purposes, f.Purpose)
}

// Vector is the form in its wire layout, as sent to a remote model and stored with a prediction.
func (f Features) Vector() models.FeatureVector {
	v := make(models.FeatureVector, len(Columns))
	for col, n := range f.values {
		v[col] = n
	}
	v[purposeColumn] = f.Purpose
	return v
}

// ParamName maps a column to an identifier usable in formula expressions.
func ParamName(col string) string {
	return strings.ReplaceAll(col, ".", "_")
}

// Params exposes every column as a float64 formula parameter; purpose is its encoded index.
func (f Features) Params() map[string]interface{} {
	p := make(map[string]interface{}, len(Columns))
	for col, n := range f.values {
		p[ParamName(col)] = n
	}
	p[purposeColumn] = float64(f.PurposeIndex())
	return p
}
