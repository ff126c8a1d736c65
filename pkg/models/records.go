package models

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

// Document is a raw payment or registration as stored by the import pipeline.
type Document = database.JSONB[map[string]any]

// PaymentRecord is a row of the payments table.
type PaymentRecord struct {
	ID              string    `json:"id" db:"id"`
	Document        Document  `json:"document" db:"document"`
	PaymentIntentID *string   `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	ImportedAt      time.Time `json:"imported_at" db:"imported_at"`
}

// RegistrationRecord is a row of the registrations table. The recall columns
// are maintained by the import pipeline.
type RegistrationRecord struct {
	ID              string    `json:"id" db:"id"`
	Document        Document  `json:"document" db:"document"`
	PaymentIntentID *string   `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	RegistrationID  *string   `json:"registration_id,omitempty" db:"registration_id"`
	ContactEmail    *string   `json:"contact_email,omitempty" db:"contact_email"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	ImportedAt      time.Time `json:"imported_at" db:"imported_at"`
}
