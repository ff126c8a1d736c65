package registration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/expressions"
	"github.com/Ramsey-B/clover/pkg/fields"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{"r.id", "r.document", "r.payment_intent_id", "r.registration_id", "r.contact_email", "r.created_at", "r.imported_at"}

// Repository reads raw registration documents and serves candidate recall.
type Repository struct {
	db      database.DB
	adapter *canonical.Adapter
	recall  recallExpressions
	logger  ectologger.Logger
}

// recallExpressions holds one SQL text expression per registration path of
// each recall field.
type recallExpressions struct {
	paymentIDs      []string
	registrationIDs []string
	emails          []string
}

func NewRepository(db database.DB, adapter *canonical.Adapter, registry *fields.Registry, logger ectologger.Logger) *Repository {
	return &Repository{
		db:      db,
		adapter: adapter,
		recall:  newRecallExpressions(registry, logger),
		logger:  logger,
	}
}

func newRecallExpressions(registry *fields.Registry, logger ectologger.Logger) recallExpressions {
	var recall recallExpressions
	for _, definition := range registry.RecallDefinitions() {
		for _, path := range definition.RegistrationPaths {
			keys, ok := expressions.SplitPath(path)
			if !ok {
				logger.WithFields(map[string]any{"field": definition.Name, "path": path}).
					Warn("Recall path is not a plain key chain, skipping it")
				continue
			}
			expr := documentText(keys)
			switch definition.Name {
			case fields.FieldPaymentID:
				recall.paymentIDs = append(recall.paymentIDs, expr)
			case fields.FieldRegistrationID:
				recall.registrationIDs = append(recall.registrationIDs, expr)
			case fields.FieldEmail:
				recall.emails = append(recall.emails, "lower(btrim("+expr+"))")
			}
		}
	}
	return recall
}

// documentText renders `r.document #>> '{"k1","k2"}'`. Keys come from the
// field registry and are quoted as array elements inside a string literal.
func documentText(keys []string) string {
	quoted := make([]string, len(keys))
	for i, key := range keys {
		key = strings.ReplaceAll(key, `\`, `\\`)
		key = strings.ReplaceAll(key, `"`, `\"`)
		quoted[i] = `"` + key + `"`
	}
	literal := strings.ReplaceAll("{"+strings.Join(quoted, ",")+"}", "'", "''")
	return "r.document #>> '" + literal + "'"
}

// Get retrieves a registration by store id
func (r *Repository) Get(ctx context.Context, id string) (*models.RegistrationRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "registration.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("registrations r")
	sb.Where(sb.Equal("r.id", id))

	query, args := sb.Build()
	var record models.RegistrationRecord
	if err := database.Conn(ctx, r.db).GetContext(ctx, &record, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("registration %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"registration_id": id}).Error("Failed to get registration")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get registration")
	}

	return &record, nil
}

// GetMany retrieves registrations by store id. Missing ids are skipped.
func (r *Repository) GetMany(ctx context.Context, ids []string) ([]models.RegistrationRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "registration.Repository.GetMany")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("registrations r")
	sb.Where(sb.In("r.id", database.StringsToAny(ids)...))

	query, args := sb.Build()
	var records []models.RegistrationRecord
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(ids)}).Error("Failed to get registrations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get registrations")
	}

	return records, nil
}

// FindCandidates returns the registrations sharing a payment intent id,
// registration id or contact email with the query, oldest first. Values are
// looked up at every registration path of the matching recall field.
// Registrations already linked to an approved payment are left out.
func (r *Repository) FindCandidates(ctx context.Context, q matching.RecallQuery) ([]*canonical.Registration, error) {
	ctx, span := tracing.StartSpan(ctx, "registration.Repository.FindCandidates")
	defer span.End()

	if q.IsEmpty() {
		return nil, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("registrations r")

	var disjuncts []string
	in := func(exprs []string, values []string) {
		if len(values) == 0 {
			return
		}
		args := database.StringsToAny(values)
		for _, expr := range exprs {
			disjuncts = append(disjuncts, sb.In(expr, args...))
		}
	}
	in(r.recall.paymentIDs, q.PaymentIDs)
	in(append([]string{"r.id"}, r.recall.registrationIDs...), q.RegistrationIDs)
	in(r.recall.emails, q.Emails)
	if len(disjuncts) == 0 {
		return nil, nil
	}
	sb.Where(
		sb.Or(disjuncts...),
		"NOT EXISTS (SELECT 1 FROM match_results m WHERE m.registration_id = r.id AND m.status = 'approved')",
	)
	sb.OrderBy("r.created_at", "r.id")

	query, args := sb.Build()
	var records []models.RegistrationRecord
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find candidate registrations")
		return nil, fmt.Errorf("failed to find candidate registrations: %w", err)
	}

	return r.Adapt(ctx, records), nil
}

// Adapt converts records to canonical registrations, skipping the ones that
// fail adaptation.
func (r *Repository) Adapt(ctx context.Context, records []models.RegistrationRecord) []*canonical.Registration {
	registrations := make([]*canonical.Registration, 0, len(records))
	for _, record := range records {
		registration, err := r.adapter.AdaptRegistration(record.ID, record.Document.GetValue())
		if err != nil {
			var adapterErr *canonical.AdapterError
			if errors.As(err, &adapterErr) {
				r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"registration_id": record.ID,
					"field":           adapterErr.Field,
				}).Warn("Skipping registration that cannot be adapted")
			}
			continue
		}
		registrations = append(registrations, registration)
	}
	return registrations
}
