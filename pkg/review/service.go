package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/matchresult"
	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/invoicing"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	MatchMethodAutomatic = "automatic"
	MatchMethodManual    = "manual"
)

type MatchStore interface {
	ListPending(ctx context.Context, filter matchresult.ListFilter) ([]models.MatchReview, int, error)
	GetForUpdate(ctx context.Context, paymentID string) (*models.MatchReview, error)
	FindApprovedByRegistration(ctx context.Context, registrationID string) (*models.MatchReview, error)
	Resolve(ctx context.Context, review *models.MatchReview) error
	Stats(ctx context.Context) (*models.MatchStatistics, error)
}

type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
}

type PaymentStore interface {
	Get(ctx context.Context, id string) (*models.PaymentRecord, error)
	GetMany(ctx context.Context, ids []string) ([]models.PaymentRecord, error)
}

type RegistrationStore interface {
	Get(ctx context.Context, id string) (*models.RegistrationRecord, error)
	GetMany(ctx context.Context, ids []string) ([]models.RegistrationRecord, error)
}

type EventEmitter interface {
	EmitMatchApproved(ctx context.Context, event events.MatchApproved) error
	EmitMatchDeclined(ctx context.Context, event events.MatchDeclined) error
}

// Transactor runs fn inside one database transaction.
type Transactor func(ctx context.Context, fn func(ctx context.Context) error) error

// TxFor returns a Transactor over db.
func TxFor(db database.DB) Transactor {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return database.WithTx(ctx, db, fn)
	}
}

type Dependencies struct {
	Matches       MatchStore
	Audit         AuditStore
	Payments      PaymentStore
	Registrations RegistrationStore
	Adapter       *canonical.Adapter
	Scorer        *matching.Scorer
	Issuer        invoicing.Issuer
	WithTx        Transactor
	Events        EventEmitter
	Logger        ectologger.Logger
}

// Service implements the review workflow.
type Service struct {
	Dependencies
}

func NewService(deps Dependencies) *Service {
	return &Service{Dependencies: deps}
}

// Item is one entry of the pending queue.
type Item struct {
	Payment      *canonical.Payment      `json:"payment"`
	Registration *canonical.Registration `json:"registration"`
	MatchResult  MatchResultView         `json:"matchResult"`
}

// MatchResultView is the stored match as returned to reviewers.
type MatchResultView struct {
	RegistrationID      *string                   `json:"registrationId"`
	Confidence          int                       `json:"confidence"`
	TotalPoints         int                       `json:"totalPoints"`
	MatchCount          int                       `json:"matchCount"`
	Matches             []models.StoredFieldMatch `json:"matches"`
	Ambiguous           bool                      `json:"ambiguous"`
	TiedRegistrationIDs []string                  `json:"tiedRegistrationIds"`
	BatchID             *string                   `json:"batchId,omitempty"`
	MatchedAt           time.Time                 `json:"matchedAt"`
}

// ListResult is a page of the pending queue.
type ListResult struct {
	Items   []Item
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// List returns pending reviews, oldest payment first.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.List")
	defer span.End()

	params = params.Normalize()
	reviews, total, err := s.Matches.ListPending(ctx, matchresult.ListFilter{
		MinConfidence: params.MinConfidence,
		Limit:         params.Limit,
		Offset:        params.Offset,
	})
	if err != nil {
		return nil, err
	}

	paymentIDs := make([]string, 0, len(reviews))
	var registrationIDs []string
	for _, r := range reviews {
		paymentIDs = append(paymentIDs, r.PaymentID)
		if r.RegistrationID != nil {
			registrationIDs = append(registrationIDs, *r.RegistrationID)
		}
	}

	paymentRecords, err := s.Payments.GetMany(ctx, paymentIDs)
	if err != nil {
		return nil, err
	}
	registrationRecords, err := s.Registrations.GetMany(ctx, registrationIDs)
	if err != nil {
		return nil, err
	}

	payments := make(map[string]*canonical.Payment, len(paymentRecords))
	for _, record := range paymentRecords {
		payments[record.ID] = s.adaptPayment(ctx, record)
	}
	registrations := make(map[string]*canonical.Registration, len(registrationRecords))
	for _, record := range registrationRecords {
		registrations[record.ID] = s.adaptRegistration(ctx, record)
	}

	items := make([]Item, 0, len(reviews))
	for _, r := range reviews {
		item := Item{
			Payment:     payments[r.PaymentID],
			MatchResult: view(r),
		}
		if item.Payment == nil {
			item.Payment = &canonical.Payment{ID: r.PaymentID, CreatedAt: r.PaymentCreatedAt}
		}
		if r.RegistrationID != nil {
			item.Registration = registrations[*r.RegistrationID]
		}
		items = append(items, item)
	}

	return &ListResult{
		Items:   items,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: params.Offset+len(items) < total,
	}, nil
}

func view(r models.MatchReview) MatchResultView {
	matches := r.Matches.GetValue()
	if matches == nil {
		matches = []models.StoredFieldMatch{}
	}
	tied := r.TiedRegistrationIDs.GetValue()
	if tied == nil {
		tied = []string{}
	}
	return MatchResultView{
		RegistrationID:      r.RegistrationID,
		Confidence:          r.Confidence,
		TotalPoints:         r.TotalPoints,
		MatchCount:          r.MatchCount,
		Matches:             matches,
		Ambiguous:           r.Ambiguous,
		TiedRegistrationIDs: tied,
		BatchID:             r.BatchID,
		MatchedAt:           r.UpdatedAt,
	}
}

// adaptPayment falls back to the raw document when the payment cannot be
// normalized, so the reviewer still sees it.
func (s *Service) adaptPayment(ctx context.Context, record models.PaymentRecord) *canonical.Payment {
	payment, err := s.Adapter.AdaptPayment(record.ID, record.Document.GetValue())
	if err != nil {
		s.Logger.WithContext(ctx).WithError(err).WithField("payment_id", record.ID).Warn("Payment cannot be normalized")
		return &canonical.Payment{ID: record.ID, CreatedAt: record.CreatedAt, RawFields: record.Document.GetValue()}
	}
	return payment
}

func (s *Service) adaptRegistration(ctx context.Context, record models.RegistrationRecord) *canonical.Registration {
	registration, err := s.Adapter.AdaptRegistration(record.ID, record.Document.GetValue())
	if err != nil {
		s.Logger.WithContext(ctx).WithError(err).WithField("registration_id", record.ID).Warn("Registration cannot be normalized")
		return &canonical.Registration{ID: record.ID, CreatedAt: record.CreatedAt, RawFields: record.Document.GetValue()}
	}
	return registration
}

// ApproveRequest approves a payment against a registration. Submitted is the
// match result the reviewer saw; it is kept in the audit entry only.
type ApproveRequest struct {
	PaymentID      string
	RegistrationID string
	Submitted      map[string]any
	Actor          string
}

type ApproveResult struct {
	InvoiceNumber   string
	AlreadyApproved bool
}

// Approve links the payment to the registration and issues its invoice. It
// is idempotent for the same pair. Everything happens in one transaction.
func (s *Service) Approve(ctx context.Context, req ApproveRequest) (*ApproveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Approve")
	defer span.End()

	var (
		result *ApproveResult
		event  events.MatchApproved
	)
	err := s.WithTx(ctx, func(ctx context.Context) error {
		stored, err := s.Matches.GetForUpdate(ctx, req.PaymentID)
		if err != nil {
			return err
		}

		if stored != nil && stored.Status == models.ReviewStatusApproved {
			if stored.RegistrationID != nil && *stored.RegistrationID == req.RegistrationID {
				result = &ApproveResult{InvoiceNumber: deref(stored.InvoiceNumber), AlreadyApproved: true}
				return nil
			}
			return fmt.Errorf("%w: payment %s is approved with another registration", ErrApprovalConflict, req.PaymentID)
		}
		if stored != nil && !CanTransition(stored.Status, models.ReviewStatusApproved) {
			return fmt.Errorf("%w: payment %s is %s", ErrInvalidTransition, req.PaymentID, stored.Status)
		}

		holder, err := s.Matches.FindApprovedByRegistration(ctx, req.RegistrationID)
		if err != nil {
			return err
		}
		if holder != nil && holder.PaymentID != req.PaymentID {
			return fmt.Errorf("%w: registration %s is linked to payment %s", ErrApprovalConflict, req.RegistrationID, holder.PaymentID)
		}

		payment, registration, err := s.loadPair(ctx, req.PaymentID, req.RegistrationID)
		if err != nil {
			return err
		}

		issued, err := s.Issuer.Issue(ctx, invoicing.Request{Payment: payment, Registration: registration})
		if err != nil {
			return err
		}

		review, method := s.approvedReview(stored, payment, registration)
		review.InvoiceNumber = &issued.InvoiceNumber
		review.ResolvedBy = optional(req.Actor)
		review.ResolvedAt = nil
		review.DeclineReason = nil
		review.DeclineComments = nil
		if err := s.Matches.Resolve(ctx, review); err != nil {
			return err
		}

		details := map[string]any{"registrationType": registration.RegistrationType}
		if req.Submitted != nil {
			details["submittedMatchResult"] = req.Submitted
		}
		if err := s.Audit.Create(ctx, &models.AuditEntry{
			Action:         models.AuditActionApproved,
			PaymentID:      req.PaymentID,
			RegistrationID: &registration.ID,
			InvoiceNumber:  &issued.InvoiceNumber,
			Confidence:     &review.Confidence,
			MatchMethod:    &method,
			Actor:          optional(req.Actor),
			Details:        database.NewJSONB(details),
		}); err != nil {
			return err
		}

		result = &ApproveResult{InvoiceNumber: issued.InvoiceNumber}
		event = events.MatchApproved{
			PaymentID:      req.PaymentID,
			RegistrationID: registration.ID,
			InvoiceNumber:  issued.InvoiceNumber,
			Confidence:     review.Confidence,
			MatchMethod:    method,
			ApprovedBy:     req.Actor,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyApproved {
		metrics.RecordReviewDecision(string(models.AuditActionApproved), event.MatchMethod)
		if err := s.Events.EmitMatchApproved(ctx, event); err != nil {
			s.Logger.WithContext(ctx).WithError(err).WithField("payment_id", req.PaymentID).Warn("Approval committed but event was not published")
		}
		s.Logger.WithContext(ctx).WithFields(map[string]any{
			"payment_id":      req.PaymentID,
			"registration_id": req.RegistrationID,
			"invoice_number":  result.InvoiceNumber,
		}).Info("Approved match")
	}
	return result, nil
}

// approvedReview keeps the stored scores when the reviewer approved the
// suggested registration, otherwise it scores the chosen pair.
func (s *Service) approvedReview(stored *models.MatchReview, payment *canonical.Payment, registration *canonical.Registration) (*models.MatchReview, string) {
	review := &models.MatchReview{
		PaymentID:        payment.ID,
		PaymentCreatedAt: payment.CreatedAt,
	}
	if stored != nil {
		copied := *stored
		review = &copied
	}
	review.Status = models.ReviewStatusApproved

	if stored != nil && stored.RegistrationID != nil && *stored.RegistrationID == registration.ID {
		return review, MatchMethodAutomatic
	}

	scored := s.Scorer.Score(payment, registration)
	review.RegistrationID = &registration.ID
	review.Confidence = scored.Confidence
	review.TotalPoints = scored.TotalPoints
	review.MatchCount = scored.MatchCount
	review.Matches = database.NewJSONB(StoredMatches(scored.Matches))
	review.Ambiguous = false
	review.TiedRegistrationIDs = database.NewJSONB([]string{})
	return review, MatchMethodManual
}

func (s *Service) loadPair(ctx context.Context, paymentID, registrationID string) (*canonical.Payment, *canonical.Registration, error) {
	paymentRecord, err := s.Payments.Get(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	payment, err := s.Adapter.AdaptPayment(paymentRecord.ID, paymentRecord.Document.GetValue())
	if err != nil {
		return nil, nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	registrationRecord, err := s.Registrations.Get(ctx, registrationID)
	if err != nil {
		return nil, nil, err
	}
	registration, err := s.Adapter.AdaptRegistration(registrationRecord.ID, registrationRecord.Document.GetValue())
	if err != nil {
		return nil, nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	return payment, registration, nil
}

// DeclineRequest declines the match of a payment.
type DeclineRequest struct {
	PaymentID      string
	RegistrationID string
	Reason         models.DeclineReason
	Comments       string
	Actor          string
}

type DeclineResult struct {
	AlreadyDeclined bool
}

// Decline records a decline and its audit entry. Declining twice is a no-op.
func (s *Service) Decline(ctx context.Context, req DeclineRequest) (*DeclineResult, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Decline")
	defer span.End()

	if !ValidDeclineReason(req.Reason) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, req.Reason)
	}

	result := &DeclineResult{}
	err := s.WithTx(ctx, func(ctx context.Context) error {
		stored, err := s.Matches.GetForUpdate(ctx, req.PaymentID)
		if err != nil {
			return err
		}

		if stored != nil && stored.Status == models.ReviewStatusDeclined {
			result.AlreadyDeclined = true
			return nil
		}
		if stored != nil && !CanTransition(stored.Status, models.ReviewStatusDeclined) {
			return fmt.Errorf("%w: payment %s is %s", ErrInvalidTransition, req.PaymentID, stored.Status)
		}

		review := stored
		if review == nil {
			paymentRecord, err := s.Payments.Get(ctx, req.PaymentID)
			if err != nil {
				return err
			}
			review = &models.MatchReview{
				PaymentID:           paymentRecord.ID,
				PaymentCreatedAt:    paymentRecord.CreatedAt,
				Matches:             database.NewJSONB([]models.StoredFieldMatch{}),
				TiedRegistrationIDs: database.NewJSONB([]string{}),
			}
		}
		if req.RegistrationID != "" {
			review.RegistrationID = &req.RegistrationID
		}
		review.Status = models.ReviewStatusDeclined
		reason := string(req.Reason)
		review.DeclineReason = &reason
		review.DeclineComments = optional(req.Comments)
		review.ResolvedBy = optional(req.Actor)
		review.ResolvedAt = nil

		if err := s.Matches.Resolve(ctx, review); err != nil {
			return err
		}

		return s.Audit.Create(ctx, &models.AuditEntry{
			Action:         models.AuditActionDeclined,
			PaymentID:      req.PaymentID,
			RegistrationID: review.RegistrationID,
			Confidence:     &review.Confidence,
			Reason:         &reason,
			Comments:       optional(req.Comments),
			Actor:          optional(req.Actor),
		})
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyDeclined {
		metrics.RecordReviewDecision(string(models.AuditActionDeclined), "")
		if err := s.Events.EmitMatchDeclined(ctx, events.MatchDeclined{
			PaymentID:      req.PaymentID,
			RegistrationID: req.RegistrationID,
			Reason:         string(req.Reason),
			Comments:       req.Comments,
			DeclinedBy:     req.Actor,
		}); err != nil {
			s.Logger.WithContext(ctx).WithError(err).WithField("payment_id", req.PaymentID).Warn("Decline committed but event was not published")
		}
		s.Logger.WithContext(ctx).WithFields(map[string]any{
			"payment_id": req.PaymentID,
			"reason":     req.Reason,
		}).Info("Declined match")
	}
	return result, nil
}

// Stats summarises the pending queue.
func (s *Service) Stats(ctx context.Context) (*models.MatchStatistics, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Stats")
	defer span.End()

	return s.Matches.Stats(ctx)
}

// StoredMatches converts scorer output to its persisted form.
func StoredMatches(matches []matching.FieldMatch) []models.StoredFieldMatch {
	stored := make([]models.StoredFieldMatch, 0, len(matches))
	for _, m := range matches {
		stored = append(stored, models.StoredFieldMatch{
			FieldName:         m.FieldName,
			PaymentValue:      m.PaymentValue,
			PaymentPath:       m.PaymentPath,
			RegistrationValue: m.RegistrationValue,
			RegistrationPath:  m.RegistrationPath,
			Points:            m.Points,
		})
	}
	return stored
}

// HTTPError maps workflow errors onto HTTP errors. Other errors pass through.
func HTTPError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrApprovalConflict), errors.Is(err, ErrInvalidTransition):
		return httperror.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidReason):
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
