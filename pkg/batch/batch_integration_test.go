//go:build integration

package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/auditlog"
	"github.com/Ramsey-B/clover/internal/repositories/invoice"
	"github.com/Ramsey-B/clover/internal/repositories/matchresult"
	"github.com/Ramsey-B/clover/internal/repositories/payment"
	"github.com/Ramsey-B/clover/internal/repositories/registration"
	"github.com/Ramsey-B/clover/internal/testutil/containers"
	"github.com/Ramsey-B/clover/pkg/batch"
	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/fields"
	"github.com/Ramsey-B/clover/pkg/invoicing"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/review"
)

func TestMatchingFlow(t *testing.T) {
	db := containers.NewPostgres(t)
	lockClient := containers.NewRedis(t)
	logger := logging.Discard()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	at := func(d time.Duration) (time.Time, string) {
		ts := base.Add(d)
		return ts, ts.Format(time.RFC3339)
	}

	regCreated, regStamp := at(-24 * time.Hour)
	containers.SeedRegistration(t, db, "reg_A", regCreated, map[string]any{
		"registrationId":        "R-1",
		"stripePaymentIntentId": "pi_1",
		"registrationType":      "individuals",
		"totalAmountPaid":       100.0,
		"contactEmail":          "ann@example.com",
		"createdAt":             regStamp,
	})
	containers.SeedRegistration(t, db, "reg_B", regCreated, map[string]any{
		"registrationId":   "R-2",
		"registrationType": "lodge",
		"contactEmail":     "bob@example.com",
		"createdAt":        regStamp,
	})

	for _, seed := range []struct {
		id     string
		offset time.Duration
		doc    map[string]any
	}{
		{"pay_1", 0, map[string]any{"paymentId": "pi_1", "amount": 100.0, "customerEmail": "ann@example.com"}},
		{"pay_2", time.Hour, map[string]any{"paymentId": "pi_2", "amount": 40.0, "customerEmail": "bob@example.com"}},
		{"pay_3", 2 * time.Hour, map[string]any{"paymentId": "pi_3", "amount": 10.0}},
		{"pay_bad", 3 * time.Hour, map[string]any{"paymentId": "pi_4"}},
	} {
		created, stamp := at(seed.offset)
		seed.doc["createdAt"] = stamp
		containers.SeedPayment(t, db, seed.id, created, seed.doc)
	}

	adapter := canonical.NewAdapter()
	registry := fields.DefaultRegistry()
	payments := payment.NewRepository(db, logger)
	registrations := registration.NewRepository(db, adapter, registry, logger)
	matches := matchresult.NewRepository(db, logger)
	audit := auditlog.NewRepository(db, logger)
	invoices := invoice.NewRepository(db, logger)
	scorer := matching.NewScorer(registry)
	emitter := events.NewEmitter(nil, logger)
	locker := redis.NewLocker(lockClient, "")

	orchestrator := batch.NewOrchestrator(batch.Dependencies{
		Payments: payments,
		Results:  matches,
		Adapter:  adapter,
		Matcher:  matching.NewSelector(matching.NewRecall(registrations, registry), scorer, logger),
		Locker:   locker,
		Events:   emitter,
		Logger:   logger,
	}, batch.Config{})

	reviews := review.NewService(review.Dependencies{
		Matches:       matches,
		Audit:         audit,
		Payments:      payments,
		Registrations: registrations,
		Adapter:       adapter,
		Scorer:        scorer,
		Issuer:        invoicing.NewIssuer(invoices, logger),
		WithTx:        review.TxFor(db),
		Events:        emitter,
		Logger:        logger,
	})

	t.Run("first batch matches, skips and persists", func(t *testing.T) {
		summary, err := orchestrator.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3, summary.Processed)
		assert.Equal(t, 2, summary.Matched)
		assert.Equal(t, 1, summary.Unmatched)
		assert.Equal(t, 1, summary.Skipped)
		require.Len(t, summary.Skips, 1)
		assert.Equal(t, "pay_bad", summary.Skips[0].PaymentID)

		stored, err := matches.Get(ctx, "pay_1")
		require.NoError(t, err)
		require.NotNil(t, stored.RegistrationID)
		assert.Equal(t, "reg_A", *stored.RegistrationID)
		assert.Equal(t, 62, stored.Confidence)
		assert.Equal(t, models.ReviewStatusPending, stored.Status)

		unmatched, err := matches.Get(ctx, "pay_3")
		require.NoError(t, err)
		assert.Nil(t, unmatched.RegistrationID)
		assert.Equal(t, 0, unmatched.Confidence)
	})

	t.Run("pending queue lists matches above the threshold", func(t *testing.T) {
		page, err := reviews.List(ctx, review.ListParams{MinConfidence: 50, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "pay_1", page.Items[0].Payment.ID)
		assert.Equal(t, "reg_A", page.Items[0].Registration.ID)

		stats, err := reviews.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.Matched)
		assert.Equal(t, 1, stats.Unmatched)
	})

	t.Run("approval issues an invoice and writes the audit log", func(t *testing.T) {
		result, err := reviews.Approve(ctx, review.ApproveRequest{
			PaymentID:      "pay_1",
			RegistrationID: "reg_A",
			Actor:          "reviewer@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "LTIV-250601001", result.InvoiceNumber)

		stored, err := matches.Get(ctx, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusApproved, stored.Status)
		require.NotNil(t, stored.InvoiceNumber)
		assert.Equal(t, "LTIV-250601001", *stored.InvoiceNumber)

		issued, err := invoices.ListByPayment(ctx, "pay_1")
		require.NoError(t, err)
		require.Len(t, issued, 1)
		assert.Equal(t, models.InvoiceTypeCustomer, issued[0].InvoiceType)

		entries, err := audit.ListByPayment(ctx, "pay_1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.AuditActionApproved, entries[0].Action)
	})

	t.Run("linking an approved registration again conflicts", func(t *testing.T) {
		_, err := reviews.Approve(ctx, review.ApproveRequest{
			PaymentID:      "pay_3",
			RegistrationID: "reg_A",
			Actor:          "reviewer@example.com",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, review.ErrApprovalConflict)

		issued, err := invoices.ListByPayment(ctx, "pay_3")
		require.NoError(t, err)
		assert.Empty(t, issued)
	})

	t.Run("decline records the reason", func(t *testing.T) {
		_, err := reviews.Decline(ctx, review.DeclineRequest{
			PaymentID: "pay_3",
			Reason:    models.DeclineReasonNoMatch,
			Comments:  "no registration found",
			Actor:     "reviewer@example.com",
		})
		require.NoError(t, err)

		stored, err := matches.Get(ctx, "pay_3")
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusDeclined, stored.Status)
	})

	t.Run("next batch leaves resolved payments alone", func(t *testing.T) {
		summary, err := orchestrator.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Processed)
		assert.Equal(t, 1, summary.Matched)

		approved, err := matches.Get(ctx, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusApproved, approved.Status)

		declined, err := matches.Get(ctx, "pay_3")
		require.NoError(t, err)
		assert.Equal(t, models.ReviewStatusDeclined, declined.Status)
	})

	t.Run("held lock reports a batch in progress", func(t *testing.T) {
		lock, err := locker.Acquire(ctx, batch.LockKey, time.Minute)
		require.NoError(t, err)
		defer func() { _ = lock.Release(ctx) }()

		_, err = orchestrator.Run(ctx)
		assert.ErrorIs(t, err, batch.ErrBatchInProgress)
	})
}

func TestRecallAtSecondaryPaths(t *testing.T) {
	db := containers.NewPostgres(t)
	lockClient := containers.NewRedis(t)
	logger := logging.Discard()
	ctx := context.Background()

	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	stamp := created.Format(time.RFC3339)

	// the payment intent column is filled from the primary path only
	containers.SeedRegistration(t, db, "reg_square", created, map[string]any{
		"registrationId":        "R-10",
		"registrationType":      "individuals",
		"stripePaymentIntentId": "pi_old",
		"squarePaymentId":       "sq_1",
		"createdAt":             stamp,
	})
	containers.SeedRegistration(t, db, "reg_nested", created.Add(time.Minute), map[string]any{
		"registrationType": "individuals",
		"createdAt":        stamp,
		"registrationData": map[string]any{
			"registrationId": "R-11",
			"bookingContact": map[string]any{"email": " Cleo@Example.com "},
		},
	})

	containers.SeedPayment(t, db, "pay_square", created.Add(time.Hour), map[string]any{
		"paymentId": "sq_1",
		"amount":    25.0,
		"createdAt": created.Add(time.Hour).Format(time.RFC3339),
	})
	containers.SeedPayment(t, db, "pay_email", created.Add(2*time.Hour), map[string]any{
		"paymentId":     "pi_unknown",
		"amount":        30.0,
		"customerEmail": "cleo@example.com",
		"createdAt":     created.Add(2 * time.Hour).Format(time.RFC3339),
	})

	adapter := canonical.NewAdapter()
	registry := fields.DefaultRegistry()
	matches := matchresult.NewRepository(db, logger)
	registrations := registration.NewRepository(db, adapter, registry, logger)
	orchestrator := batch.NewOrchestrator(batch.Dependencies{
		Payments: payment.NewRepository(db, logger),
		Results:  matches,
		Adapter:  adapter,
		Matcher:  matching.NewSelector(matching.NewRecall(registrations, registry), matching.NewScorer(registry), logger),
		Locker:   redis.NewLocker(lockClient, ""),
		Events:   events.NewEmitter(nil, logger),
		Logger:   logger,
	}, batch.Config{})

	summary, err := orchestrator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Matched)

	t.Run("payment id held only at a secondary registration path", func(t *testing.T) {
		stored, err := matches.Get(ctx, "pay_square")
		require.NoError(t, err)
		require.NotNil(t, stored.RegistrationID)
		assert.Equal(t, "reg_square", *stored.RegistrationID)
		assert.Positive(t, stored.Confidence)
	})

	t.Run("email held only in the nested booking contact", func(t *testing.T) {
		stored, err := matches.Get(ctx, "pay_email")
		require.NoError(t, err)
		require.NotNil(t, stored.RegistrationID)
		assert.Equal(t, "reg_nested", *stored.RegistrationID)
	})

	t.Run("registration id held only in registration data", func(t *testing.T) {
		found, err := registrations.FindCandidates(ctx, matching.RecallQuery{RegistrationIDs: []string{"R-11"}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "reg_nested", found[0].ID)
	})
}
