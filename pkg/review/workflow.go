// Package review gates invoice issuance behind an approve/decline decision
// on each payment's match.
package review

import (
	"errors"

	"github.com/Ramsey-B/clover/pkg/models"
)

var (
	// ErrApprovalConflict means the registration is linked to another
	// approved payment, or the payment is approved with another registration.
	ErrApprovalConflict = errors.New("registration is already linked to another approved payment")
	// ErrInvalidTransition means the payment's review is in a terminal state.
	ErrInvalidTransition = errors.New("review decision already recorded")
	// ErrInvalidReason means the decline reason is not a known code.
	ErrInvalidReason = errors.New("invalid decline reason")
)

// CanTransition reports whether a review may move from one status to
// another. An empty from status is a payment that has never been matched.
func CanTransition(from, to models.ReviewStatus) bool {
	if to != models.ReviewStatusApproved && to != models.ReviewStatusDeclined {
		return false
	}
	switch from {
	case "", models.ReviewStatusPending:
		return true
	default:
		return false
	}
}

// ValidDeclineReason reports whether reason is a known decline code.
func ValidDeclineReason(reason models.DeclineReason) bool {
	for _, r := range models.DeclineReasons {
		if r == reason {
			return true
		}
	}
	return false
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListParams selects a page of the pending queue.
type ListParams struct {
	MinConfidence int
	Limit         int
	Offset        int
}

// Normalize applies the default and maximum page size.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	p.MinConfidence = max(0, min(p.MinConfidence, 100))
	return p
}
