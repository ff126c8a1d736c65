package canonical

import (
	"fmt"
	"strings"
	"time"
)

// AdapterError reports a raw record that lacks a required field. The record
// is skipped; the batch it belongs to continues.
type AdapterError struct {
	Kind     string
	RecordID string
	Field    string
	Reason   string
}

func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("%s %s: missing required field %s", e.Kind, e.RecordID, e.Field)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Source paths for each canonical field, newest schema first. The first
// present value wins.
var (
	PaymentIDPaths     = []string{"paymentId", "transactionId", `originalData."PaymentIntent ID"`, "originalData.metadata.paymentId", "squarePaymentId"}
	PaymentAmountPaths = []string{"amount", "grossAmount", "originalData.Amount"}
	PaymentFeePaths    = []string{"feeAmount", "fees", "originalData.Fee", "originalData.metadata.processing_fees"}
	PaymentCurrency    = []string{"currency", "originalData.Currency"}
	PaymentEmailPaths  = []string{"customerEmail", `originalData."Customer Email"`, "email"}
	PaymentNamePaths   = []string{"customerName", `originalData."Card Name"`, "cardHolderName"}
	PaymentCreatedAt   = []string{"createdAt", "timestamp", "created_at", `originalData."Created date (UTC)"`, "paymentDate"}
	PaymentSourcePaths = []string{"source", "paymentSource", "gateway"}

	RegistrationIDPaths           = []string{"registrationId", "registration_id", "registrationData.registrationId"}
	RegistrationConfirmationPaths = []string{"confirmationNumber", "confirmation_number", "registrationData.confirmationNumber"}
	RegistrationTypePaths         = []string{"registrationType", "registration_type", "registrationData.registrationType"}
	RegistrationAmountPaths       = []string{"totalAmountPaid", "totalAmount", "total_amount_paid", "registrationData.totalAmountPaid"}
	RegistrationFeePaths          = []string{"stripeFee", "squareFee", "fees"}
	RegistrationEmailPaths        = []string{"contactEmail", "customerEmail", "registrationData.bookingContact.email", "registrationData.bookingContact.emailAddress", "bookingContact.email"}
	RegistrationNamePaths         = []string{"contactName", "customerName", "primaryAttendee"}
	RegistrationCreatedAt         = []string{"createdAt", "created_at", "registrationData.metadata.created_at"}
)

// Adapter turns raw documents into canonical records.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

// AdaptPayment normalizes a raw payment document stored under id.
// amount and createdAt are required.
func (a *Adapter) AdaptPayment(id string, raw map[string]any) (*Payment, error) {
	p := &Payment{
		ID:        id,
		RawFields: raw,
	}

	p.PaymentID = firstString(PaymentIDPaths, raw)

	amountValue, _, ok := evaluator.FirstOf(PaymentAmountPaths, raw)
	if !ok {
		return nil, &AdapterError{Kind: "payment", RecordID: id, Field: "amount"}
	}
	amount, err := ParseAmount(amountValue)
	if err != nil {
		return nil, &AdapterError{Kind: "payment", RecordID: id, Field: "amount", Reason: err.Error()}
	}
	p.Amount = amount

	createdAt, err := firstTime(PaymentCreatedAt, raw)
	if err != nil {
		return nil, &AdapterError{Kind: "payment", RecordID: id, Field: "createdAt", Reason: err.Error()}
	}
	p.CreatedAt = createdAt

	p.FeeAmount = firstAmount(PaymentFeePaths, raw)
	p.Currency = strings.ToUpper(firstString(PaymentCurrency, raw))
	p.CustomerEmail = strings.TrimSpace(firstString(PaymentEmailPaths, raw))
	p.CustomerName = strings.TrimSpace(firstString(PaymentNamePaths, raw))
	p.GatewaySource = resolveGateway(firstString(PaymentSourcePaths, raw), p.PaymentID, raw)

	p.lookup = p.buildLookup()
	return p, nil
}

// AdaptRegistration normalizes a raw registration document stored under id.
// createdAt is required; a missing registrationId falls back to id.
func (a *Adapter) AdaptRegistration(id string, raw map[string]any) (*Registration, error) {
	r := &Registration{
		ID:        id,
		RawFields: raw,
	}

	createdAt, err := firstTime(RegistrationCreatedAt, raw)
	if err != nil {
		return nil, &AdapterError{Kind: "registration", RecordID: id, Field: "createdAt", Reason: err.Error()}
	}
	r.CreatedAt = createdAt

	r.RegistrationID = firstString(RegistrationIDPaths, raw)
	if r.RegistrationID == "" {
		r.RegistrationID = id
	}
	r.ConfirmationNumber = firstString(RegistrationConfirmationPaths, raw)
	r.RegistrationType = ParseRegistrationType(firstString(RegistrationTypePaths, raw))
	r.TotalAmountPaid = firstAmount(RegistrationAmountPaths, raw)
	r.Fees = firstAmount(RegistrationFeePaths, raw)
	r.ContactEmail = strings.TrimSpace(firstString(RegistrationEmailPaths, raw))

	if value, _, ok := evaluator.FirstOf(RegistrationNamePaths, raw); ok {
		r.ContactName = FullName(value)
	}
	if r.ContactName == "" {
		r.ContactName = bookingContactName(raw)
	}

	r.lookup = r.buildLookup()
	return r, nil
}

// ParseRegistrationType maps the spellings seen in registration documents
// onto a RegistrationType.
func ParseRegistrationType(s string) RegistrationType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "individual", "individuals":
		return RegistrationIndividuals
	case "lodge", "lodges":
		return RegistrationLodge
	case "delegation", "delegations":
		return RegistrationDelegation
	default:
		return RegistrationUnknown
	}
}

func resolveGateway(source, paymentID string, raw map[string]any) GatewaySource {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "stripe":
		return GatewayStripe
	case "square":
		return GatewaySquare
	}
	if strings.HasPrefix(paymentID, "pi_") || strings.HasPrefix(paymentID, "ch_") {
		return GatewayStripe
	}
	if _, ok := evaluator.Lookup("squarePaymentId", raw); ok {
		return GatewaySquare
	}
	return GatewayUnknown
}

// firstString returns the first path whose value renders as a non-blank string.
func firstString(paths []string, raw map[string]any) string {
	for _, path := range paths {
		value, ok := evaluator.Lookup(path, raw)
		if !ok {
			continue
		}
		if s := strings.TrimSpace(AsString(value)); s != "" {
			return s
		}
	}
	return ""
}

// firstAmount returns the first path that parses as an amount.
func firstAmount(paths []string, raw map[string]any) *float64 {
	for _, path := range paths {
		value, ok := evaluator.Lookup(path, raw)
		if !ok {
			continue
		}
		if amount, err := ParseAmount(value); err == nil {
			return &amount
		}
	}
	return nil
}

func firstTime(paths []string, raw map[string]any) (time.Time, error) {
	var lastErr error
	for _, path := range paths {
		value, ok := evaluator.Lookup(path, raw)
		if !ok {
			continue
		}
		t, err := ParseTime(value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return time.Time{}, lastErr
	}
	return time.Time{}, fmt.Errorf("no value at %s", strings.Join(paths, ", "))
}
