// Package fields declares the matchable fields shared by payments and
// registrations: their weights, where their values live, and how two values
// are compared.
package fields

import (
	"encoding/json"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/expressions"
)

const (
	FieldPaymentID      = "paymentId"
	FieldRegistrationID = "registrationId"
	FieldTotalAmount    = "totalAmount"
	FieldProcessingFees = "processingFees"
	FieldEmail          = "email"
	FieldName           = "name"
	FieldTimestamp      = "timestamp"
)

// ValueAtPath is one extracted value and the path it was read from.
type ValueAtPath struct {
	Value any    `json:"value"`
	Path  string `json:"path"`
}

// Definition describes one matchable field. Paths are JMESPath expressions
// evaluated in order against a record's lookup document; order is the match
// priority.
type Definition struct {
	Name              string
	Weight            int
	PaymentPaths      []string
	RegistrationPaths []string
	// Compare defaults to Exact when nil.
	Compare Comparator
	// Recall marks fields precise enough to narrow the registration store.
	Recall bool
}

// ExtractPayment returns the payment's present values in path order.
func (d Definition) ExtractPayment(p *canonical.Payment) []ValueAtPath {
	return extract(d.PaymentPaths, p.Lookup())
}

// ExtractRegistration returns the registration's present values in path order.
func (d Definition) ExtractRegistration(r *canonical.Registration) []ValueAtPath {
	return extract(d.RegistrationPaths, r.Lookup())
}

// Matches compares two extracted values with the field's comparator.
func (d Definition) Matches(a, b any) (bool, error) {
	if d.Compare == nil {
		return Exact(a, b)
	}
	return d.Compare(a, b)
}

func extract(paths []string, doc map[string]any) []ValueAtPath {
	evaluator := canonical.Evaluator()
	var values []ValueAtPath
	for _, path := range paths {
		value, ok := evaluator.Lookup(path, doc)
		if !ok || !present(value) {
			continue
		}
		values = append(values, ValueAtPath{Value: value, Path: path})
	}
	return values
}

// present drops values that can never take part in a comparison: blanks,
// arrays and objects other than decimal, date and name objects.
func present(v any) bool {
	switch t := v.(type) {
	case string:
		return !expressions.IsEmpty(t)
	case float64, bool, int, int64, json.Number:
		return true
	case map[string]any:
		if _, ok := t["$numberDecimal"]; ok {
			return true
		}
		if _, ok := t["$date"]; ok {
			return true
		}
		return canonical.FullName(t) != ""
	default:
		return false
	}
}

// Registry is the immutable set of field definitions.
type Registry struct {
	definitions []Definition
	byName      map[string]int
	totalWeight int
}

// NewRegistry validates definitions and builds a registry.
func NewRegistry(definitions ...Definition) (*Registry, error) {
	r := &Registry{
		definitions: make([]Definition, 0, len(definitions)),
		byName:      make(map[string]int, len(definitions)),
	}
	evaluator := canonical.Evaluator()

	for _, d := range definitions {
		if d.Name == "" {
			return nil, fmt.Errorf("field definition without a name")
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("duplicate field definition %q", d.Name)
		}
		if d.Weight <= 0 {
			return nil, fmt.Errorf("field %q: weight must be positive, got %d", d.Name, d.Weight)
		}
		if len(d.PaymentPaths) == 0 || len(d.RegistrationPaths) == 0 {
			return nil, fmt.Errorf("field %q: payment and registration paths are required", d.Name)
		}
		for _, path := range append(append([]string{}, d.PaymentPaths...), d.RegistrationPaths...) {
			if err := evaluator.Validate(path); err != nil {
				return nil, fmt.Errorf("field %q: invalid path %q: %w", d.Name, path, err)
			}
		}

		r.byName[d.Name] = len(r.definitions)
		r.definitions = append(r.definitions, d)
		r.totalWeight += d.Weight
	}

	if len(r.definitions) == 0 {
		return nil, fmt.Errorf("registry needs at least one field definition")
	}
	return r, nil
}

// Definitions returns the definitions in evaluation order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

// Get returns the definition called name.
func (r *Registry) Get(name string) (Definition, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Definition{}, false
	}
	return r.definitions[i], true
}

// TotalWeight is the confidence denominator.
func (r *Registry) TotalWeight() int {
	return r.totalWeight
}

// RecallDefinitions returns the definitions usable for candidate recall.
func (r *Registry) RecallDefinitions() []Definition {
	var out []Definition
	for _, d := range r.definitions {
		if d.Recall {
			out = append(out, d)
		}
	}
	return out
}
