// Package batch runs matching over the payments that still need a decision
// and stores the results for review.
package batch

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/review"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ErrBatchInProgress is returned when another instance holds the batch lock.
var ErrBatchInProgress = errors.New("a matching batch is already running")

const (
	LockKey = "batch:matching"

	DefaultBatchSize = 500
	DefaultTimeout   = 5 * time.Minute
	DefaultLockTTL   = time.Minute

	// rows per INSERT; match_results has 18 columns and Postgres caps binds at 65535
	upsertChunk = 500
)

type PaymentSource interface {
	ListUnresolved(ctx context.Context, limit int) ([]models.PaymentRecord, error)
}

type ResultStore interface {
	UpsertPending(ctx context.Context, reviews []*models.MatchReview) error
}

// Matcher is satisfied by *matching.Selector.
type Matcher interface {
	Run(ctx context.Context, payments []*canonical.Payment) (*matching.RunResult, error)
}

// Locker is satisfied by *redis.Locker.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

type EventEmitter interface {
	EmitBatchCompleted(ctx context.Context, event events.BatchCompleted) error
}

type Config struct {
	BatchSize int
	Timeout   time.Duration
	LockTTL   time.Duration
}

type Dependencies struct {
	Payments PaymentSource
	Results  ResultStore
	Adapter  *canonical.Adapter
	Matcher  Matcher
	// Locker is optional; without it concurrent runs are not excluded.
	Locker Locker
	Events EventEmitter
	Logger ectologger.Logger
}

// Failure is a payment whose candidates could not be recalled.
type Failure struct {
	PaymentID string `json:"paymentId"`
	Error     string `json:"error"`
}

// Skip is a payment the adapter rejected.
type Skip struct {
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason"`
}

// Summary reports one batch run.
type Summary struct {
	BatchID     string        `json:"batchId"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
	Duration    time.Duration `json:"-"`
	DurationMs  int64         `json:"durationMs"`
	Processed   int           `json:"processed"`
	Matched     int           `json:"matched"`
	Unmatched   int           `json:"unmatched"`
	Ambiguous   int           `json:"ambiguous"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Interrupted bool          `json:"interrupted"`
	Failures    []Failure     `json:"failures"`
	Skips       []Skip        `json:"skips"`
}

// Orchestrator runs batches. Safe for concurrent use; the lock, when
// configured, serialises runs across instances.
type Orchestrator struct {
	Dependencies
	config Config
}

func NewOrchestrator(deps Dependencies, config Config) *Orchestrator {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}
	return &Orchestrator{
		Dependencies: deps,
		config:       config,
	}
}

// Run matches one batch of unresolved payments. It returns ErrBatchInProgress
// when another run holds the lock.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "batch.Orchestrator.Run")
	defer span.End()

	if o.Locker == nil {
		return o.run(ctx)
	}

	var summary *Summary
	err := o.Locker.WithLock(ctx, LockKey, o.config.LockTTL, func(ctx context.Context) error {
		var err error
		summary, err = o.run(ctx)
		return err
	})
	if errors.Is(err, redis.ErrLockNotAcquired) {
		metrics.BatchRunsTotal.WithLabelValues("skipped").Inc()
		o.Logger.WithContext(ctx).Info("Skipping batch, another run holds the lock")
		return nil, ErrBatchInProgress
	}
	return summary, err
}

func (o *Orchestrator) run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		BatchID:   uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Failures:  []Failure{},
		Skips:     []Skip{},
	}
	logger := o.Logger.WithContext(ctx).WithField("batch_id", summary.BatchID)

	runCtx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	records, err := o.Payments.ListUnresolved(runCtx, o.config.BatchSize)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues("failed").Inc()
		logger.WithError(err).Error("Failed to load unresolved payments")
		return nil, err
	}

	payments := make([]*canonical.Payment, 0, len(records))
	for _, record := range records {
		payment, err := o.Adapter.AdaptPayment(record.ID, record.Document.GetValue())
		if err != nil {
			summary.Skipped++
			summary.Skips = append(summary.Skips, Skip{PaymentID: record.ID, Reason: err.Error()})
			logger.WithError(err).WithField("payment_id", record.ID).Warn("Skipping payment that cannot be normalized")
			continue
		}
		payments = append(payments, payment)
	}

	result, err := o.Matcher.Run(runCtx, payments)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues("failed").Inc()
		logger.WithError(err).Error("Matching failed")
		return nil, err
	}

	reviews := make([]*models.MatchReview, 0, len(result.Results))
	for _, r := range result.Results {
		summary.Processed++
		switch r.Outcome {
		case matching.OutcomeFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{PaymentID: r.Payment.ID, Error: errString(r.Err)})
			continue
		case matching.OutcomeMatched:
			summary.Matched++
			metrics.RecordMatchConfidence(r.Result.Confidence)
			if r.Result.Ambiguous {
				summary.Ambiguous++
			}
		default:
			summary.Unmatched++
		}
		reviews = append(reviews, ToReview(r, summary.BatchID))
	}
	summary.Interrupted = result.Interrupted

	// partial results of an interrupted run are still stored
	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancelPersist()
	if err := o.persist(persistCtx, reviews); err != nil {
		metrics.BatchRunsTotal.WithLabelValues("failed").Inc()
		logger.WithError(err).Error("Failed to store match results")
		return nil, err
	}

	summary.FinishedAt = time.Now().UTC()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
	summary.DurationMs = summary.Duration.Milliseconds()

	status := "completed"
	if summary.Interrupted {
		status = "interrupted"
	}
	metrics.RecordBatch(status, summary.Duration.Seconds(), summary.Matched, summary.Unmatched, summary.Skipped, summary.Failed, summary.Ambiguous)

	logger.WithFields(map[string]any{
		"processed":   summary.Processed,
		"matched":     summary.Matched,
		"unmatched":   summary.Unmatched,
		"ambiguous":   summary.Ambiguous,
		"skipped":     summary.Skipped,
		"failed":      summary.Failed,
		"interrupted": summary.Interrupted,
		"duration":    summary.Duration.String(),
	}).Info("Batch completed")

	if err := o.Events.EmitBatchCompleted(persistCtx, events.BatchCompleted{
		BatchID:     summary.BatchID,
		Processed:   summary.Processed,
		Matched:     summary.Matched,
		Unmatched:   summary.Unmatched,
		Ambiguous:   summary.Ambiguous,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		Interrupted: summary.Interrupted,
		DurationMs:  summary.DurationMs,
	}); err != nil {
		logger.WithError(err).Warn("Batch completed but event was not published")
	}

	return summary, nil
}

func (o *Orchestrator) persist(ctx context.Context, reviews []*models.MatchReview) error {
	for start := 0; start < len(reviews); start += upsertChunk {
		end := min(start+upsertChunk, len(reviews))
		if err := o.Results.UpsertPending(ctx, reviews[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// ToReview converts a selection into the pending row stored for review.
func ToReview(r matching.PaymentResult, batchID string) *models.MatchReview {
	tied := r.Result.TiedRegistrationIDs
	if tied == nil {
		tied = []string{}
	}
	m := &models.MatchReview{
		PaymentID:           r.Payment.ID,
		Confidence:          r.Result.Confidence,
		TotalPoints:         r.Result.TotalPoints,
		MatchCount:          r.Result.MatchCount,
		Matches:             database.NewJSONB(review.StoredMatches(r.Result.Matches)),
		Ambiguous:           r.Result.Ambiguous,
		TiedRegistrationIDs: database.NewJSONB(tied),
		Status:              models.ReviewStatusPending,
		BatchID:             &batchID,
		PaymentCreatedAt:    r.Payment.CreatedAt,
	}
	if r.Result.Registration != nil {
		id := r.Result.Registration.ID
		m.RegistrationID = &id
	}
	return m
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
