package auditlog

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{
	"id", "action", "payment_id", "registration_id", "invoice_number", "confidence",
	"match_method", "reason", "comments", "actor", "details", "created_at",
}

// Repository appends review decisions to invoice_audit_log. Entries are
// never updated or deleted.
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

// Create appends an audit entry
func (r *Repository) Create(ctx context.Context, entry *models.AuditEntry) error {
	ctx, span := tracing.StartSpan(ctx, "auditlog.Repository.Create")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()
	if entry.Details.Data == nil {
		entry.Details = database.NewJSONB(map[string]any{})
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("invoice_audit_log")
	ib.Cols(columns...)
	ib.Values(
		entry.ID, entry.Action, entry.PaymentID, entry.RegistrationID, entry.InvoiceNumber, entry.Confidence,
		entry.MatchMethod, entry.Reason, entry.Comments, entry.Actor, entry.Details, entry.CreatedAt,
	)

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"payment_id": entry.PaymentID,
			"action":     entry.Action,
		}).Error("Failed to write audit entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to write audit entry")
	}

	return nil
}

// ListByPayment returns the audit trail of a payment, oldest first
func (r *Repository) ListByPayment(ctx context.Context, paymentID string) ([]models.AuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "auditlog.Repository.ListByPayment")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("invoice_audit_log")
	sb.Where(sb.Equal("payment_id", paymentID))
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var entries []models.AuditEntry
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"payment_id": paymentID}).Error("Failed to list audit entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list audit entries")
	}

	return entries, nil
}
