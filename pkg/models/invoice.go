package models

import "time"

type InvoiceType string

const (
	InvoiceTypeCustomer InvoiceType = "customer"
	InvoiceTypeSupplier InvoiceType = "supplier"
)

// Invoice links an issued invoice number to a payment and registration.
type Invoice struct {
	ID               string      `json:"id" db:"id"`
	InvoiceNumber    string      `json:"invoice_number" db:"invoice_number"`
	InvoiceType      InvoiceType `json:"invoice_type" db:"invoice_type"`
	PaymentID        string      `json:"payment_id" db:"payment_id"`
	RegistrationID   *string     `json:"registration_id,omitempty" db:"registration_id"`
	RegistrationType string      `json:"registration_type" db:"registration_type"`
	Amount           float64     `json:"amount" db:"amount"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
}
