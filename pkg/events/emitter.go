// Package events emits review and batch lifecycle events
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

const (
	EventMatchApproved  = "match.approved"
	EventMatchDeclined  = "match.declined"
	EventBatchCompleted = "batch.completed"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event *kafka.Event) error
}

// MatchApproved is published after an approval commits.
type MatchApproved struct {
	PaymentID       string `json:"paymentId"`
	RegistrationID  string `json:"registrationId"`
	InvoiceNumber   string `json:"invoiceNumber"`
	Confidence      int    `json:"confidence"`
	MatchMethod     string `json:"matchMethod"`
	ApprovedBy      string `json:"approvedBy,omitempty"`
	AlreadyApproved bool   `json:"alreadyApproved,omitempty"`
}

// MatchDeclined is published after a decline commits.
type MatchDeclined struct {
	PaymentID      string `json:"paymentId"`
	RegistrationID string `json:"registrationId,omitempty"`
	Reason         string `json:"reason"`
	Comments       string `json:"comments,omitempty"`
	DeclinedBy     string `json:"declinedBy,omitempty"`
}

// BatchCompleted is published at the end of every batch run.
type BatchCompleted struct {
	BatchID     string `json:"batchId"`
	Processed   int    `json:"processed"`
	Matched     int    `json:"matched"`
	Unmatched   int    `json:"unmatched"`
	Ambiguous   int    `json:"ambiguous"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	Interrupted bool   `json:"interrupted"`
	DurationMs  int64  `json:"durationMs"`
}

// Emitter handles event emission for clover. A nil publisher turns every
// emit into a no-op.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitMatchApproved emits a match approved event
func (e *Emitter) EmitMatchApproved(ctx context.Context, event MatchApproved) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchApproved")
	defer span.End()

	return e.emit(ctx, EventMatchApproved, event.PaymentID, event)
}

// EmitMatchDeclined emits a match declined event
func (e *Emitter) EmitMatchDeclined(ctx context.Context, event MatchDeclined) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchDeclined")
	defer span.End()

	return e.emit(ctx, EventMatchDeclined, event.PaymentID, event)
}

// EmitBatchCompleted emits a batch completed event
func (e *Emitter) EmitBatchCompleted(ctx context.Context, event BatchCompleted) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatchCompleted")
	defer span.End()

	return e.emit(ctx, EventBatchCompleted, event.BatchID, event)
}

func (e *Emitter) emit(ctx context.Context, eventType, key string, payload any) error {
	if e == nil || e.publisher == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if err := e.publisher.Publish(ctx, &kafka.Event{
		EventType:     eventType,
		Key:           key,
		SchemaVersion: SchemaVersion,
		Data:          data,
	}); err != nil {
		metrics.RecordKafkaPublish(eventType, "error")
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}

	metrics.RecordKafkaPublish(eventType, "success")
	return nil
}
