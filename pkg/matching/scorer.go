// Package matching links payments to registrations: candidate recall,
// weighted scoring and batch-level best-match selection.
package matching

import (
	"errors"
	"math"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/fields"
)

// FieldMatch records the first agreeing value pair for one field.
type FieldMatch struct {
	FieldName         string `json:"fieldName"`
	PaymentValue      any    `json:"paymentValue"`
	PaymentPath       string `json:"paymentPath"`
	RegistrationValue any    `json:"registrationValue"`
	RegistrationPath  string `json:"registrationPath"`
	Points            int    `json:"points"`
}

// MatchResult is the score of one payment against one registration.
type MatchResult struct {
	Registration *canonical.Registration `json:"registration,omitempty"`
	Matches      []FieldMatch            `json:"matches"`
	TotalPoints  int                     `json:"totalPoints"`
	Confidence   int                     `json:"confidence"`
	MatchCount   int                     `json:"matchCount"`

	// Set by the selector when another candidate reached the same confidence.
	Ambiguous           bool     `json:"ambiguous,omitempty"`
	TiedRegistrationIDs []string `json:"tiedRegistrationIds,omitempty"`
}

// Unmatched is the result of a payment with no eligible candidate.
func Unmatched() MatchResult {
	return MatchResult{Matches: []FieldMatch{}}
}

// Scorer compares a payment and a registration field by field.
type Scorer struct {
	registry *fields.Registry
}

func NewScorer(registry *fields.Registry) *Scorer {
	return &Scorer{registry: registry}
}

// Registry returns the field registry the scorer reads.
func (s *Scorer) Registry() *fields.Registry {
	return s.registry
}

// Score returns the match result for the pair. It does not modify either record.
func (s *Scorer) Score(p *canonical.Payment, r *canonical.Registration) MatchResult {
	result, _ := s.Evaluate(p, r)
	return result
}

// Evaluate scores the pair and also returns the value pairs that could not be
// compared. Those pairs contribute nothing to the result.
func (s *Scorer) Evaluate(p *canonical.Payment, r *canonical.Registration) (MatchResult, []*fields.ScoringError) {
	result := MatchResult{
		Registration: r,
		Matches:      []FieldMatch{},
	}
	var scoringErrors []*fields.ScoringError

	for _, definition := range s.registry.Definitions() {
		match, errs := matchField(definition, p, r)
		scoringErrors = append(scoringErrors, errs...)
		if match == nil {
			continue
		}
		result.Matches = append(result.Matches, *match)
		result.TotalPoints += match.Points
	}

	result.MatchCount = len(result.Matches)
	result.Confidence = Confidence(result.TotalPoints, s.registry.TotalWeight())
	return result, scoringErrors
}

// matchField walks payment values in order, each against registration values
// in order; the first agreeing pair wins.
func matchField(definition fields.Definition, p *canonical.Payment, r *canonical.Registration) (*FieldMatch, []*fields.ScoringError) {
	paymentValues := definition.ExtractPayment(p)
	if len(paymentValues) == 0 {
		return nil, nil
	}
	registrationValues := definition.ExtractRegistration(r)

	var scoringErrors []*fields.ScoringError
	for _, pv := range paymentValues {
		for _, rv := range registrationValues {
			matched, err := definition.Matches(pv.Value, rv.Value)
			if err != nil {
				scoringErrors = append(scoringErrors, newScoringError(definition.Name, pv, rv, err))
				continue
			}
			if !matched {
				continue
			}
			return &FieldMatch{
				FieldName:         definition.Name,
				PaymentValue:      pv.Value,
				PaymentPath:       pv.Path,
				RegistrationValue: rv.Value,
				RegistrationPath:  rv.Path,
				Points:            definition.Weight,
			}, scoringErrors
		}
	}
	return nil, scoringErrors
}

func newScoringError(field string, pv, rv fields.ValueAtPath, err error) *fields.ScoringError {
	var existing *fields.ScoringError
	if errors.As(err, &existing) {
		return existing
	}
	return &fields.ScoringError{Field: field, Value: []any{pv.Value, rv.Value}, Err: err}
}

// Confidence converts points into a 0-100 score.
func Confidence(points, totalWeight int) int {
	if totalWeight <= 0 || points <= 0 {
		return 0
	}
	confidence := int(math.Round(float64(points) / float64(totalWeight) * 100))
	return min(confidence, 100)
}
