// Package canonical normalizes raw payment and registration documents into
// typed records with a documented, ordered source-path priority.
package canonical

import (
	"maps"
	"time"
)

// GatewaySource is the payment processor a payment came from.
type GatewaySource string

const (
	GatewayStripe  GatewaySource = "stripe"
	GatewaySquare  GatewaySource = "square"
	GatewayUnknown GatewaySource = "unknown"
)

// RegistrationType selects the invoice strategy for a registration.
type RegistrationType string

const (
	RegistrationIndividuals RegistrationType = "individuals"
	RegistrationLodge       RegistrationType = "lodge"
	RegistrationDelegation  RegistrationType = "delegation"
	RegistrationUnknown     RegistrationType = "unknown"
)

// Payment is a normalized payment. Immutable once adapted.
type Payment struct {
	ID            string         `json:"id"`
	PaymentID     string         `json:"paymentId"`
	Amount        float64        `json:"amount"`
	FeeAmount     *float64       `json:"feeAmount,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	CustomerEmail string         `json:"customerEmail,omitempty"`
	CustomerName  string         `json:"customerName,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	GatewaySource GatewaySource  `json:"gatewaySource"`
	RawFields     map[string]any `json:"rawFields,omitempty"`

	lookup map[string]any
}

// Registration is a normalized registration. Immutable once adapted.
type Registration struct {
	ID                 string           `json:"id"`
	RegistrationID     string           `json:"registrationId"`
	ConfirmationNumber string           `json:"confirmationNumber,omitempty"`
	RegistrationType   RegistrationType `json:"registrationType"`
	TotalAmountPaid    *float64         `json:"totalAmountPaid,omitempty"`
	Fees               *float64         `json:"fees,omitempty"`
	ContactEmail       string           `json:"contactEmail,omitempty"`
	ContactName        string           `json:"contactName,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	RawFields          map[string]any   `json:"rawFields,omitempty"`

	lookup map[string]any
}

// Lookup returns the document field paths are evaluated against: the raw
// fields overlaid with the canonical values under their canonical names.
// The returned map must not be modified.
func (p *Payment) Lookup() map[string]any {
	if p.lookup != nil {
		return p.lookup
	}
	return p.buildLookup()
}

func (p *Payment) buildLookup() map[string]any {
	doc := make(map[string]any, len(p.RawFields)+8)
	maps.Copy(doc, p.RawFields)

	setString(doc, "paymentId", p.PaymentID)
	doc["amount"] = p.Amount
	if p.FeeAmount != nil {
		doc["feeAmount"] = *p.FeeAmount
	}
	setString(doc, "currency", p.Currency)
	setString(doc, "customerEmail", p.CustomerEmail)
	setString(doc, "customerName", p.CustomerName)
	if !p.CreatedAt.IsZero() {
		doc["createdAt"] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

// Lookup returns the registration's path lookup document. See Payment.Lookup.
func (r *Registration) Lookup() map[string]any {
	if r.lookup != nil {
		return r.lookup
	}
	return r.buildLookup()
}

func (r *Registration) buildLookup() map[string]any {
	doc := make(map[string]any, len(r.RawFields)+8)
	maps.Copy(doc, r.RawFields)

	setString(doc, "registrationId", r.RegistrationID)
	setString(doc, "confirmationNumber", r.ConfirmationNumber)
	if r.TotalAmountPaid != nil {
		doc["totalAmountPaid"] = *r.TotalAmountPaid
	}
	setString(doc, "contactEmail", r.ContactEmail)
	setString(doc, "contactName", r.ContactName)
	if name := bookingContactName(r.RawFields); name != "" {
		doc[BookingContactNameKey] = name
	}
	if !r.CreatedAt.IsZero() {
		doc["createdAt"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

// BookingContactNameKey holds "firstName lastName" of the booking contact in
// a registration lookup document.
const BookingContactNameKey = "bookingContactFullName"

func setString(doc map[string]any, key, value string) {
	if value != "" {
		doc[key] = value
	}
}
