// Package expressions evaluates JMESPath lookups against raw record documents.
package expressions

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jmespath/go-jmespath"
)

// Evaluator compiles JMESPath expressions once and caches them.
// It is safe for concurrent use.
type Evaluator struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

// Evaluate runs expression against data.
func (e *Evaluator) Evaluate(expression string, data any) (any, error) {
	compiled, err := e.getOrCompile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	result, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	return result, nil
}

// Lookup evaluates expression and reports whether it produced a present value.
// nil, blank strings and empty collections count as absent.
func (e *Evaluator) Lookup(expression string, data any) (any, bool) {
	result, err := e.Evaluate(expression, data)
	if err != nil || IsEmpty(result) {
		return nil, false
	}
	return result, true
}

// FirstOf returns the first present value among expressions, in order, along
// with the expression that produced it.
func (e *Evaluator) FirstOf(expressions []string, data any) (any, string, bool) {
	for _, expression := range expressions {
		if value, ok := e.Lookup(expression, data); ok {
			return value, expression, true
		}
	}
	return nil, "", false
}

// Validate checks if an expression compiles.
func (e *Evaluator) Validate(expression string) error {
	_, err := e.getOrCompile(expression)
	return err
}

func (e *Evaluator) getOrCompile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	if compiled, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()

	return compiled, nil
}

// IsEmpty reports whether v carries no usable value.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
