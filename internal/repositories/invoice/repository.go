package invoice

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

var columns = []string{"id", "invoice_number", "invoice_type", "payment_id", "registration_id", "registration_type", "amount", "created_at"}

// Repository stores issued invoices and the per-day number sequences.
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

// NextSequence increments and returns the counter for prefix on day.
// Counters start at 1 each day.
func (r *Repository) NextSequence(ctx context.Context, prefix string, day time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "invoice.Repository.NextSequence")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto("invoice_counters")
	ib.Cols("prefix", "day", "last_value")
	ib.Values(prefix, day.UTC().Format(time.DateOnly), 1)
	ib.OnConflict([]string{"prefix", "day"}, []string{"last_value = invoice_counters.last_value + 1"}, "")
	ib.SQL("RETURNING last_value")

	query, args := ib.Build()
	var sequence int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &sequence, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"prefix": prefix}).Error("Failed to advance invoice counter")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to allocate invoice number")
	}

	return sequence, nil
}

// Create stores an issued invoice
func (r *Repository) Create(ctx context.Context, invoice *models.Invoice) error {
	ctx, span := tracing.StartSpan(ctx, "invoice.Repository.Create")
	defer span.End()

	if invoice.ID == "" {
		invoice.ID = uuid.New().String()
	}
	invoice.CreatedAt = time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto("invoices")
	ib.Cols(columns...)
	ib.Values(invoice.ID, invoice.InvoiceNumber, invoice.InvoiceType, invoice.PaymentID, invoice.RegistrationID, invoice.RegistrationType, invoice.Amount, invoice.CreatedAt)

	query, args := ib.Build()
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return httperror.NewHTTPError(http.StatusConflict, "an invoice of this type already exists for the payment")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"payment_id":     invoice.PaymentID,
			"invoice_number": invoice.InvoiceNumber,
		}).Error("Failed to create invoice")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create invoice")
	}

	return nil
}

// ListByPayment returns the invoices issued for a payment
func (r *Repository) ListByPayment(ctx context.Context, paymentID string) ([]models.Invoice, error) {
	ctx, span := tracing.StartSpan(ctx, "invoice.Repository.ListByPayment")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("invoices")
	sb.Where(sb.Equal("payment_id", paymentID))
	sb.OrderBy("created_at", "invoice_type")

	query, args := sb.Build()
	var invoices []models.Invoice
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &invoices, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"payment_id": paymentID}).Error("Failed to list invoices")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list invoices")
	}

	return invoices, nil
}
