package matchresult

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{
	"payment_id", "registration_id", "confidence", "total_points", "match_count", "matches",
	"ambiguous", "tied_registration_ids", "status", "batch_id", "decline_reason", "decline_comments",
	"invoice_number", "payment_created_at", "resolved_at", "resolved_by", "created_at", "updated_at",
}

// matchColumns are refreshed every time a batch re-scores a pending payment.
var matchColumns = []string{
	"registration_id", "confidence", "total_points", "match_count", "matches",
	"ambiguous", "tied_registration_ids", "batch_id", "updated_at",
}

// resolutionColumns are written when a reviewer approves or declines.
var resolutionColumns = append(append([]string{}, matchColumns...),
	"status", "decline_reason", "decline_comments", "invoice_number", "resolved_at", "resolved_by",
)

// ListFilter selects a page of pending reviews.
type ListFilter struct {
	MinConfidence int
	Limit         int
	Offset        int
}

// Repository persists the current match of each payment.
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

func values(m *models.MatchReview) []any {
	return []any{
		m.PaymentID, m.RegistrationID, m.Confidence, m.TotalPoints, m.MatchCount, m.Matches,
		m.Ambiguous, m.TiedRegistrationIDs, m.Status, m.BatchID, m.DeclineReason, m.DeclineComments,
		m.InvoiceNumber, m.PaymentCreatedAt, m.ResolvedAt, m.ResolvedBy, m.CreatedAt, m.UpdatedAt,
	}
}

func assignments(cols []string) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = fmt.Sprintf("%s = %s", col, database.Excluded(col))
	}
	return out
}

// UpsertPending stores batch results. Rows already approved or declined are
// left untouched.
func (r *Repository) UpsertPending(ctx context.Context, reviews []*models.MatchReview) error {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.UpsertPending")
	defer span.End()

	if len(reviews) == 0 {
		return nil
	}

	now := time.Now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto("match_results")
	ib.Cols(columns...)
	for _, m := range reviews {
		m.Status = models.ReviewStatusPending
		m.CreatedAt = now
		m.UpdatedAt = now
		ib.Values(values(m)...)
	}
	ib.OnConflict([]string{"payment_id"}, assignments(matchColumns), "match_results.status = 'pending'")

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(reviews)}).Error("Failed to upsert match results")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save match results")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(reviews)}).Debug("Saved pending match results")
	return nil
}

// Get retrieves the match of a payment
func (r *Repository) Get(ctx context.Context, paymentID string) (*models.MatchReview, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.Get")
	defer span.End()

	review, err := r.get(ctx, paymentID, false)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match result for payment %s not found", paymentID))
	}
	return review, nil
}

// GetForUpdate locks and returns the match of a payment, or nil when the
// payment has never been matched. It must run inside a transaction.
func (r *Repository) GetForUpdate(ctx context.Context, paymentID string) (*models.MatchReview, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.GetForUpdate")
	defer span.End()

	return r.get(ctx, paymentID, true)
}

func (r *Repository) get(ctx context.Context, paymentID string, forUpdate bool) (*models.MatchReview, error) {
	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("match_results")
	sb.Where(sb.Equal("payment_id", paymentID))
	if forUpdate {
		sb.ForUpdate()
	}

	query, args := sb.Build()
	var review models.MatchReview
	if err := database.Conn(ctx, r.db).GetContext(ctx, &review, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"payment_id": paymentID}).Error("Failed to get match result")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match result")
	}
	return &review, nil
}

// FindApprovedByRegistration returns the approved match holding a
// registration, or nil when the registration is free.
func (r *Repository) FindApprovedByRegistration(ctx context.Context, registrationID string) (*models.MatchReview, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.FindApprovedByRegistration")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("match_results")
	sb.Where(
		sb.Equal("registration_id", registrationID),
		sb.Equal("status", models.ReviewStatusApproved),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var review models.MatchReview
	if err := database.Conn(ctx, r.db).GetContext(ctx, &review, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"registration_id": registrationID}).Error("Failed to find approved match")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find approved match")
	}
	return &review, nil
}

// ListPending returns a page of pending matches ordered by payment creation
// time, and the number of pending matches passing the filter.
func (r *Repository) ListPending(ctx context.Context, filter ListFilter) ([]models.MatchReview, int, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.ListPending")
	defer span.End()

	cb := database.NewSelectBuilder()
	cb.Select("COUNT(*)")
	cb.From("match_results")
	cb.Where(pendingWhere(cb, filter.MinConfidence)...)

	countQuery, countArgs := cb.Build()
	var total int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count pending match results")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending matches")
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("match_results")
	sb.Where(pendingWhere(sb, filter.MinConfidence)...)
	sb.OrderBy("payment_created_at", "payment_id")
	sb.Limit(filter.Limit)
	sb.Offset(filter.Offset)

	query, args := sb.Build()
	var reviews []models.MatchReview
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &reviews, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending match results")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending matches")
	}

	return reviews, total, nil
}

func pendingWhere(sb *sqlbuilder.SelectBuilder, minConfidence int) []string {
	return []string{
		sb.Equal("status", models.ReviewStatusPending),
		sb.GreaterEqualThan("confidence", minConfidence),
	}
}

// Resolve writes an approval or decline, inserting the row when the payment
// was never matched.
func (r *Repository) Resolve(ctx context.Context, review *models.MatchReview) error {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.Resolve")
	defer span.End()

	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	if review.ResolvedAt == nil {
		review.ResolvedAt = &now
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("match_results")
	ib.Cols(columns...)
	ib.Values(values(review)...)
	ib.OnConflict([]string{"payment_id"}, assignments(resolutionColumns), "")

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return httperror.NewHTTPError(http.StatusConflict, "registration is already linked to another approved payment")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"payment_id": review.PaymentID,
			"status":     review.Status,
		}).Error("Failed to resolve match result")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save review decision")
	}

	return nil
}

// Stats summarises the pending queue in confidence buckets.
func (r *Repository) Stats(ctx context.Context) (*models.MatchStatistics, error) {
	ctx, span := tracing.StartSpan(ctx, "matchresult.Repository.Stats")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(
		"COUNT(*) AS total",
		"COUNT(*) FILTER (WHERE registration_id IS NOT NULL) AS matched",
		"COUNT(*) FILTER (WHERE registration_id IS NULL) AS unmatched",
		"COUNT(*) FILTER (WHERE confidence >= 90) AS high",
		"COUNT(*) FILTER (WHERE confidence >= 70 AND confidence < 90) AS medium",
		"COUNT(*) FILTER (WHERE confidence >= 50 AND confidence < 70) AS low",
		"COUNT(*) FILTER (WHERE confidence < 50) AS very_low",
	)
	sb.From("match_results")
	sb.Where(sb.Equal("status", models.ReviewStatusPending))

	query, args := sb.Build()
	var stats models.MatchStatistics
	if err := database.Conn(ctx, r.db).GetContext(ctx, &stats, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to compute match statistics")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to compute match statistics")
	}
	return &stats, nil
}
