package matching

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/fields"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// RecallQuery holds the high-precision values a candidate must share with the
// payment. Any one agreeing value is enough.
type RecallQuery struct {
	PaymentIDs      []string
	RegistrationIDs []string
	// Emails are normalized to lower case.
	Emails []string
}

// IsEmpty reports whether the query has nothing to search by.
func (q RecallQuery) IsEmpty() bool {
	return len(q.PaymentIDs) == 0 && len(q.RegistrationIDs) == 0 && len(q.Emails) == 0
}

// CandidateStore finds registrations sharing any value of a recall query.
// Results must come back in a stable order.
type CandidateStore interface {
	FindCandidates(ctx context.Context, query RecallQuery) ([]*canonical.Registration, error)
}

// RecallError reports a candidate lookup that failed for one payment.
type RecallError struct {
	PaymentID string
	Err       error
}

func (e *RecallError) Error() string {
	return fmt.Sprintf("candidate recall failed for payment %s: %v", e.PaymentID, e.Err)
}

func (e *RecallError) Unwrap() error {
	return e.Err
}

// Recall narrows the registration store to the candidates worth scoring.
type Recall struct {
	store    CandidateStore
	registry *fields.Registry
}

func NewRecall(store CandidateStore, registry *fields.Registry) *Recall {
	return &Recall{
		store:    store,
		registry: registry,
	}
}

// Query builds the recall query from the payment's recall fields only.
func (r *Recall) Query(p *canonical.Payment) RecallQuery {
	var query RecallQuery
	for _, definition := range r.registry.RecallDefinitions() {
		for _, value := range definition.ExtractPayment(p) {
			s := canonical.AsString(value.Value)
			switch definition.Name {
			case fields.FieldPaymentID:
				query.PaymentIDs = appendUnique(query.PaymentIDs, fields.Trim(s))
			case fields.FieldRegistrationID:
				query.RegistrationIDs = appendUnique(query.RegistrationIDs, fields.Trim(s))
			case fields.FieldEmail:
				query.Emails = appendUnique(query.Emails, fields.NormalizeEmail(s))
			}
		}
	}
	return query
}

// Candidates returns the registrations recalled for p, in store order with
// duplicates removed. A payment without recall values has no candidates.
func (r *Recall) Candidates(ctx context.Context, p *canonical.Payment) ([]*canonical.Registration, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Recall.Candidates")
	defer span.End()

	query := r.Query(p)
	if query.IsEmpty() {
		return nil, nil
	}

	found, err := r.store.FindCandidates(ctx, query)
	if err != nil {
		return nil, &RecallError{PaymentID: p.ID, Err: err}
	}

	seen := make(map[string]struct{}, len(found))
	candidates := make([]*canonical.Registration, 0, len(found))
	for _, registration := range found {
		if registration == nil {
			continue
		}
		if _, dup := seen[registration.ID]; dup {
			continue
		}
		seen[registration.ID] = struct{}{}
		candidates = append(candidates, registration)
	}
	return candidates, nil
}

func appendUnique(values []string, value string) []string {
	if value == "" {
		return values
	}
	for _, v := range values {
		if v == value {
			return values
		}
	}
	return append(values, value)
}
