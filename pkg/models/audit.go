package models

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

type AuditAction string

const (
	AuditActionApproved AuditAction = "approved"
	AuditActionDeclined AuditAction = "declined"
)

// DeclineReason is the coded reason a reviewer declines a match.
type DeclineReason string

const (
	DeclineReasonNoMatch        DeclineReason = "no_match"
	DeclineReasonAmountMismatch DeclineReason = "amount_mismatch"
	DeclineReasonDuplicate      DeclineReason = "duplicate"
	DeclineReasonDataQuality    DeclineReason = "data_quality"
	DeclineReasonOther          DeclineReason = "other"
)

// DeclineReasons lists the accepted decline reasons.
var DeclineReasons = []DeclineReason{
	DeclineReasonNoMatch,
	DeclineReasonAmountMismatch,
	DeclineReasonDuplicate,
	DeclineReasonDataQuality,
	DeclineReasonOther,
}

// AuditEntry is a row of invoice_audit_log.
type AuditEntry struct {
	ID             string                         `json:"id" db:"id"`
	Action         AuditAction                    `json:"action" db:"action"`
	PaymentID      string                         `json:"payment_id" db:"payment_id"`
	RegistrationID *string                        `json:"registration_id,omitempty" db:"registration_id"`
	InvoiceNumber  *string                        `json:"invoice_number,omitempty" db:"invoice_number"`
	Confidence     *int                           `json:"confidence,omitempty" db:"confidence"`
	MatchMethod    *string                        `json:"match_method,omitempty" db:"match_method"`
	Reason         *string                        `json:"reason,omitempty" db:"reason"`
	Comments       *string                        `json:"comments,omitempty" db:"comments"`
	Actor          *string                        `json:"actor,omitempty" db:"actor"`
	Details        database.JSONB[map[string]any] `json:"details" db:"details"`
	CreatedAt      time.Time                      `json:"created_at" db:"created_at"`
}
