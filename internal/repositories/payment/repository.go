package payment

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{"id", "document", "payment_intent_id", "created_at", "imported_at"}

// Repository reads raw payment documents. Payments are written by the import
// pipeline; this service never modifies them.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a payment by store id
func (r *Repository) Get(ctx context.Context, id string) (*models.PaymentRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "payment.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("payments")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var record models.PaymentRecord
	if err := database.Conn(ctx, r.db).GetContext(ctx, &record, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("payment %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"payment_id": id}).Error("Failed to get payment")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get payment")
	}

	return &record, nil
}

// GetMany retrieves payments by store id. Missing ids are skipped.
func (r *Repository) GetMany(ctx context.Context, ids []string) ([]models.PaymentRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "payment.Repository.GetMany")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("payments")
	sb.Where(sb.In("id", database.StringsToAny(ids)...))

	query, args := sb.Build()
	var records []models.PaymentRecord
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(ids)}).Error("Failed to get payments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get payments")
	}

	return records, nil
}

// ListUnresolved returns up to limit payments without an approved or declined
// match, oldest payment first whether or not it was matched before.
func (r *Repository) ListUnresolved(ctx context.Context, limit int) ([]models.PaymentRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "payment.Repository.ListUnresolved")
	defer span.End()

	if limit < 1 {
		limit = 100
	}

	sb := database.NewSelectBuilder()
	sb.Select("p.id", "p.document", "p.payment_intent_id", "p.created_at", "p.imported_at")
	sb.From("payments p")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "match_results m", "m.payment_id = p.id")
	sb.Where(sb.Or(
		sb.IsNull("m.payment_id"),
		sb.Equal("m.status", models.ReviewStatusPending),
	))
	sb.OrderBy("p.created_at", "p.id")
	sb.Limit(limit)

	query, args := sb.Build()
	var records []models.PaymentRecord
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list unresolved payments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list unresolved payments")
	}

	return records, nil
}
