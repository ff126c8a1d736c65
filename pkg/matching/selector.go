package matching

import (
	"context"
	"errors"
	"sort"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/clover/pkg/canonical"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Outcome is what happened to one payment in a run.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeFailed    Outcome = "failed"
)

// PaymentResult is the selection made for one payment.
type PaymentResult struct {
	Payment        *canonical.Payment
	Result         MatchResult
	Outcome        Outcome
	CandidateCount int
	// Err is set when Outcome is OutcomeFailed.
	Err error
}

// RunResult lists payment results in processing order.
type RunResult struct {
	Results []PaymentResult
	// Interrupted is set when the context ended before every payment was
	// processed. Results already listed stay valid.
	Interrupted bool
}

// CandidateRecaller is satisfied by *Recall.
type CandidateRecaller interface {
	Candidates(ctx context.Context, p *canonical.Payment) ([]*canonical.Registration, error)
}

const DefaultWorkers = 8

// Selector picks the best unclaimed registration for each payment of a batch.
// Earlier payments claim first.
type Selector struct {
	recall  CandidateRecaller
	scorer  *Scorer
	workers int
	logger  ectologger.Logger
}

type SelectorOption func(*Selector)

// WithWorkers bounds how many payments are recalled and scored at once.
func WithWorkers(n int) SelectorOption {
	return func(s *Selector) {
		if n > 0 {
			s.workers = n
		}
	}
}

func NewSelector(recall CandidateRecaller, scorer *Scorer, logger ectologger.Logger, opts ...SelectorOption) *Selector {
	s := &Selector{
		recall:  recall,
		scorer:  scorer,
		workers: DefaultWorkers,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scoredPayment struct {
	payment    *canonical.Payment
	candidates []MatchResult
	err        error
	done       bool
}

// Run recalls and scores every payment in parallel, then assigns
// registrations sequentially in ascending createdAt order.
func (s *Selector) Run(ctx context.Context, payments []*canonical.Payment) (*RunResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Selector.Run")
	defer span.End()

	ordered := SortPayments(payments)
	scored := make([]scoredPayment, len(ordered))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, payment := range ordered {
		scored[i].payment = payment
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.scorePayment(ctx, &scored[i])
			return nil
		})
	}
	_ = g.Wait()

	return s.claim(ctx, scored), nil
}

func (s *Selector) scorePayment(ctx context.Context, sp *scoredPayment) {
	if ctx.Err() != nil {
		return
	}

	candidates, err := s.recall.Candidates(ctx, sp.payment)
	if err != nil {
		if ctx.Err() != nil && isContextError(err) {
			return
		}
		sp.err = err
		sp.done = true
		return
	}

	sp.candidates = make([]MatchResult, 0, len(candidates))
	for _, registration := range candidates {
		result, scoringErrors := s.scorer.Evaluate(sp.payment, registration)
		for _, scoringErr := range scoringErrors {
			s.logger.WithContext(ctx).WithError(scoringErr).WithFields(map[string]any{
				"payment_id":      sp.payment.ID,
				"registration_id": registration.ID,
				"field":           scoringErr.Field,
			}).Debug("Field value could not be compared")
		}
		sp.candidates = append(sp.candidates, result)
	}
	sp.done = true
}

// claim walks payments in order. It stops at the first payment the context
// prevented from being scored, since later claims depend on earlier ones.
func (s *Selector) claim(ctx context.Context, scored []scoredPayment) *RunResult {
	run := &RunResult{Results: make([]PaymentResult, 0, len(scored))}
	claimed := NewClaimedSet()

	for _, sp := range scored {
		if !sp.done {
			run.Interrupted = true
			s.logger.WithContext(ctx).WithFields(map[string]any{
				"processed": len(run.Results),
				"remaining": len(scored) - len(run.Results),
			}).Warn("Match run interrupted")
			break
		}

		if sp.err != nil {
			run.Results = append(run.Results, PaymentResult{
				Payment: sp.payment,
				Result:  Unmatched(),
				Outcome: OutcomeFailed,
				Err:     sp.err,
			})
			continue
		}

		best, ok := SelectBest(sp.candidates, claimed)
		pr := PaymentResult{
			Payment:        sp.payment,
			CandidateCount: len(sp.candidates),
		}
		if !ok {
			pr.Result = Unmatched()
			pr.Outcome = OutcomeUnmatched
		} else {
			claimed.Claim(best.Registration.ID)
			pr.Result = best
			pr.Outcome = OutcomeMatched
			if best.Ambiguous {
				s.logger.WithContext(ctx).WithFields(map[string]any{
					"payment_id":      sp.payment.ID,
					"registration_id": best.Registration.ID,
					"tied_with":       best.TiedRegistrationIDs,
					"confidence":      best.Confidence,
				}).Info("Ambiguous match, first candidate in recall order selected")
			}
		}
		run.Results = append(run.Results, pr)
	}

	return run
}

// SelectBest returns the unclaimed candidate with the highest confidence. The
// first maximum in candidate order wins; other unclaimed candidates with the
// same confidence are reported as ties. Zero-confidence candidates never win.
func SelectBest(candidates []MatchResult, claimed *ClaimedSet) (MatchResult, bool) {
	best := -1
	for i, candidate := range candidates {
		if candidate.Registration == nil || candidate.Confidence <= 0 || claimed.Contains(candidate.Registration.ID) {
			continue
		}
		if best < 0 || candidate.Confidence > candidates[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return MatchResult{}, false
	}

	winner := candidates[best]
	winner.TiedRegistrationIDs = nil
	for i, candidate := range candidates {
		if i == best || candidate.Registration == nil || claimed.Contains(candidate.Registration.ID) {
			continue
		}
		if candidate.Confidence == winner.Confidence {
			winner.TiedRegistrationIDs = append(winner.TiedRegistrationIDs, candidate.Registration.ID)
		}
	}
	winner.Ambiguous = len(winner.TiedRegistrationIDs) > 0
	return winner, true
}

// SortPayments returns payments ordered by createdAt ascending, ties broken
// by store id. The input slice is left untouched.
func SortPayments(payments []*canonical.Payment) []*canonical.Payment {
	ordered := make([]*canonical.Payment, 0, len(payments))
	for _, p := range payments {
		if p != nil {
			ordered = append(ordered, p)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
