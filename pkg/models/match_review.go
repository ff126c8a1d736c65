package models

import (
	"time"

	"github.com/Ramsey-B/clover/pkg/database"
)

// ReviewStatus is the review state of a payment's match.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusDeclined ReviewStatus = "declined"
)

// IsTerminal reports whether no transition leaves the status.
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewStatusApproved || s == ReviewStatusDeclined
}

// StoredFieldMatch is a field match as persisted in match_results.matches.
type StoredFieldMatch struct {
	FieldName         string `json:"fieldName"`
	PaymentValue      any    `json:"paymentValue"`
	PaymentPath       string `json:"paymentPath"`
	RegistrationValue any    `json:"registrationValue"`
	RegistrationPath  string `json:"registrationPath"`
	Points            int    `json:"points"`
}

// MatchReview is a row of match_results: the current match of one payment.
type MatchReview struct {
	PaymentID           string                             `json:"payment_id" db:"payment_id"`
	RegistrationID      *string                            `json:"registration_id,omitempty" db:"registration_id"`
	Confidence          int                                `json:"confidence" db:"confidence"`
	TotalPoints         int                                `json:"total_points" db:"total_points"`
	MatchCount          int                                `json:"match_count" db:"match_count"`
	Matches             database.JSONB[[]StoredFieldMatch] `json:"matches" db:"matches"`
	Ambiguous           bool                               `json:"ambiguous" db:"ambiguous"`
	TiedRegistrationIDs database.JSONB[[]string]           `json:"tied_registration_ids" db:"tied_registration_ids"`
	Status              ReviewStatus                       `json:"status" db:"status"`
	BatchID             *string                            `json:"batch_id,omitempty" db:"batch_id"`
	DeclineReason       *string                            `json:"decline_reason,omitempty" db:"decline_reason"`
	DeclineComments     *string                            `json:"decline_comments,omitempty" db:"decline_comments"`
	InvoiceNumber       *string                            `json:"invoice_number,omitempty" db:"invoice_number"`
	PaymentCreatedAt    time.Time                          `json:"payment_created_at" db:"payment_created_at"`
	ResolvedAt          *time.Time                         `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy          *string                            `json:"resolved_by,omitempty" db:"resolved_by"`
	CreatedAt           time.Time                          `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time                          `json:"updated_at" db:"updated_at"`
}

// MatchStatistics summarises the pending review queue.
type MatchStatistics struct {
	Total     int `json:"total" db:"total"`
	Matched   int `json:"matched" db:"matched"`
	Unmatched int `json:"unmatched" db:"unmatched"`
	High      int `json:"high" db:"high"`
	Medium    int `json:"medium" db:"medium"`
	Low       int `json:"low" db:"low"`
	VeryLow   int `json:"veryLow" db:"very_low"`
}
