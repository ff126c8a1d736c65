package models

// ApproveMatchRequest is the body of POST /matches/approve. MatchResult is the
// match the reviewer saw and is kept for audit only.
type ApproveMatchRequest struct {
	PaymentID      string         `json:"paymentId" validate:"required"`
	RegistrationID string         `json:"registrationId" validate:"required"`
	MatchResult    map[string]any `json:"matchResult"`
}

type ApproveMatchResponse struct {
	Success         bool   `json:"success"`
	InvoiceNumber   string `json:"invoiceNumber"`
	AlreadyApproved bool   `json:"alreadyApproved"`
}

// DeclineMatchRequest is the body of POST /matches/decline.
type DeclineMatchRequest struct {
	PaymentID      string `json:"paymentId" validate:"required"`
	RegistrationID string `json:"registrationId"`
	Reason         string `json:"reason" validate:"required,oneof=no_match amount_mismatch duplicate data_quality other"`
	Comments       string `json:"comments" validate:"max=2000"`
}

type DeclineMatchResponse struct {
	Success bool `json:"success"`
}

// ListMatchesQuery is the query of GET /matches.
type ListMatchesQuery struct {
	MinConfidence int `query:"minConfidence" validate:"min=0,max=100"`
	Limit         int `query:"limit" validate:"min=0"`
	Offset        int `query:"offset" validate:"min=0"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}
