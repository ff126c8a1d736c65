// Package invoicing issues invoice numbers for approved matches.
package invoicing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	CustomerPrefix = "LTIV"
	SupplierPrefix = "LTSP"
)

// Request describes the approved pair to invoice. Registration is nil for a
// manual approval without a registration.
type Request struct {
	Payment      *canonical.Payment
	Registration *canonical.Registration
}

// Issued is the outcome of one issuance. InvoiceNumber is the customer invoice.
type Issued struct {
	InvoiceNumber string
	Invoices      []models.Invoice
}

// Issuer issues and persists the invoices of an approved match.
type Issuer interface {
	Issue(ctx context.Context, req Request) (*Issued, error)
}

// Store is the persistence used by the default issuer.
type Store interface {
	NextSequence(ctx context.Context, prefix string, day time.Time) (int, error)
	Create(ctx context.Context, invoice *models.Invoice) error
}

// FormatNumber renders PREFIX-YYMMDDNNN.
func FormatNumber(prefix string, day time.Time, sequence int) string {
	return fmt.Sprintf("%s-%s%03d", prefix, day.UTC().Format("060102"), sequence)
}

// SupplierNumber derives the supplier invoice number from a customer number.
func SupplierNumber(customerNumber string) string {
	return strings.Replace(customerNumber, CustomerPrefix+"-", SupplierPrefix+"-", 1)
}

// strategy builds the invoices for one registration type from the allocated
// customer number.
type strategy func(req Request, customerNumber string) []models.Invoice

var strategies = map[canonical.RegistrationType]strategy{
	canonical.RegistrationIndividuals: customerAndSupplier,
	canonical.RegistrationLodge:       customerAndSupplier,
	canonical.RegistrationDelegation:  customerAndSupplier,
	canonical.RegistrationUnknown:     customerOnly,
}

// strategyFor resolves the strategy of a request. Unknown or absent
// registrations only get a customer invoice.
func strategyFor(req Request) (canonical.RegistrationType, strategy) {
	registrationType := canonical.RegistrationUnknown
	if req.Registration != nil && req.Registration.RegistrationType != "" {
		registrationType = req.Registration.RegistrationType
	}
	s, ok := strategies[registrationType]
	if !ok {
		return canonical.RegistrationUnknown, customerOnly
	}
	return registrationType, s
}

func customerOnly(req Request, customerNumber string) []models.Invoice {
	return []models.Invoice{newInvoice(req, models.InvoiceTypeCustomer, customerNumber, req.Payment.Amount)}
}

// customerAndSupplier adds the supplier invoice for the processing fee when
// the payment carries one.
func customerAndSupplier(req Request, customerNumber string) []models.Invoice {
	invoices := customerOnly(req, customerNumber)
	if req.Payment.FeeAmount != nil && *req.Payment.FeeAmount > 0 {
		invoices = append(invoices, newInvoice(req, models.InvoiceTypeSupplier, SupplierNumber(customerNumber), *req.Payment.FeeAmount))
	}
	return invoices
}

func newInvoice(req Request, invoiceType models.InvoiceType, number string, amount float64) models.Invoice {
	invoice := models.Invoice{
		InvoiceNumber:    number,
		InvoiceType:      invoiceType,
		PaymentID:        req.Payment.ID,
		RegistrationType: string(canonical.RegistrationUnknown),
		Amount:           amount,
	}
	if req.Registration != nil {
		id := req.Registration.ID
		invoice.RegistrationID = &id
		invoice.RegistrationType = string(req.Registration.RegistrationType)
	}
	return invoice
}

// DefaultIssuer numbers invoices from a per-day counter keyed on the payment
// date and stores them. Callers run it inside their transaction.
type DefaultIssuer struct {
	store  Store
	logger ectologger.Logger
}

func NewIssuer(store Store, logger ectologger.Logger) *DefaultIssuer {
	return &DefaultIssuer{
		store:  store,
		logger: logger,
	}
}

func (i *DefaultIssuer) Issue(ctx context.Context, req Request) (*Issued, error) {
	ctx, span := tracing.StartSpan(ctx, "invoicing.DefaultIssuer.Issue")
	defer span.End()

	if req.Payment == nil {
		return nil, fmt.Errorf("invoice request without payment")
	}

	day := req.Payment.CreatedAt
	if day.IsZero() {
		day = time.Now().UTC()
	}

	sequence, err := i.store.NextSequence(ctx, CustomerPrefix, day)
	if err != nil {
		return nil, err
	}
	number := FormatNumber(CustomerPrefix, day, sequence)

	registrationType, build := strategyFor(req)
	invoices := build(req, number)
	for idx := range invoices {
		if err := i.store.Create(ctx, &invoices[idx]); err != nil {
			return nil, err
		}
		metrics.RecordInvoice(string(invoices[idx].InvoiceType))
	}

	i.logger.WithContext(ctx).WithFields(map[string]any{
		"payment_id":        req.Payment.ID,
		"invoice_number":    number,
		"registration_type": registrationType,
		"invoices":          len(invoices),
	}).Info("Issued invoices")

	return &Issued{
		InvoiceNumber: number,
		Invoices:      invoices,
	}, nil
}
