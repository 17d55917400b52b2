package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bountyd/internal/domain"
)

// TaskApprover records a ledger-confirmed approval in the local task state.
// Lifecycle satisfies it.
type TaskApprover interface {
	Approve(ctx context.Context, taskID, reportCID string) (domain.Task, error)
}

// BridgeConfig bounds the ledger retry loop.
type BridgeConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// SettlementOutcome is what one bridge run produced. Approved false with a
// nil error is a verdict, not a failure: the report did not qualify and the
// ledger was never touched.
type SettlementOutcome struct {
	ReportCID string
	Approved  bool
	Receipt   domain.Receipt
	Denials   []domain.PolicyViolation
}

// Bridge publishes signed reports and drives the ledger to Approved with
// at-least-once delivery. It never calls payout; that stays with the claimer.
type Bridge struct {
	store    ContentStore
	ledger   Ledger
	signer   ReportSigner
	policy   SettlementPolicy
	approver TaskApprover
	cfg      BridgeConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewBridge(store ContentStore, ledger Ledger, signer ReportSigner, policy SettlementPolicy, approver TaskApprover, cfg BridgeConfig) *Bridge {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Bridge{
		store:    store,
		ledger:   ledger,
		signer:   signer,
		policy:   policy,
		approver: approver,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// WithSleep overrides the backoff wait; tests collapse it.
func (b *Bridge) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Bridge {
	b.sleep = sleep
	return b
}

// Settle publishes the signed report, applies the settlement policy, and
// submits the idempotent approve call. Storage failures abort immediately;
// only ledger unavailability is retried, and every attempt is preceded by
// a status re-check so a call that already landed is never resubmitted.
func (b *Bridge) Settle(ctx context.Context, task domain.Task, report domain.VerificationReport) (SettlementOutcome, error) {
	if !report.Signed() {
		return SettlementOutcome{}, domain.ErrUnsignedReport
	}

	raw, err := b.signer.MarshalReport(report)
	if err != nil {
		return SettlementOutcome{}, fmt.Errorf("marshal report: %w", err)
	}
	reportCID, err := b.store.Put(ctx, raw)
	if err != nil {
		return SettlementOutcome{}, fmt.Errorf("publish report: %w", err)
	}
	outcome := SettlementOutcome{ReportCID: reportCID}

	if !report.Passed {
		return outcome, nil
	}

	if b.policy != nil {
		verdict, err := b.policy.Evaluate(ctx, domain.SettlementInput{
			TaskID:          task.ID,
			Category:        task.Category,
			Passed:          report.Passed,
			Score:           report.Score,
			Checks:          report.Checks,
			MissingRequired: report.MissingRequired(requiredChecks(task)),
		})
		if err != nil {
			return outcome, fmt.Errorf("evaluate settlement policy: %w", err)
		}
		if !verdict.Allow {
			outcome.Denials = verdict.Deny
			return outcome, nil
		}
	}

	receipt, settledCID, err := b.approveWithRetry(ctx, task.ID, reportCID)
	if err != nil {
		return outcome, err
	}
	outcome.ReportCID = settledCID
	outcome.Receipt = receipt
	outcome.Approved = true

	if _, err := b.approver.Approve(ctx, task.ID, settledCID); err != nil {
		return outcome, fmt.Errorf("record approval: %w", err)
	}
	return outcome, nil
}

// approveWithRetry returns the receipt and the report CID the ledger holds
// for the approval; normally that is reportCID, but when an earlier run's
// approve already landed the ledger's recorded CID wins.
func (b *Bridge) approveWithRetry(ctx context.Context, taskID, reportCID string) (domain.Receipt, string, error) {
	var lastErr error
	for attempt := 0; attempt < b.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := b.sleep(ctx, b.backoff(attempt)); err != nil {
				return domain.Receipt{}, "", err
			}
		}
		// An approve from this run or an earlier one may already have
		// landed (unknown timeout outcome, daemon restart before the
		// local record); checking first keeps delivery idempotent.
		if receipt, settledCID, ok := b.alreadyApproved(ctx, taskID); ok {
			return receipt, settledCID, nil
		}

		receipt, err := b.ledger.ApproveTask(ctx, taskID, reportCID)
		if err == nil {
			if !receipt.Success {
				return domain.Receipt{}, "", fmt.Errorf("%w: ledger rejected approve for task %s", domain.ErrUpstreamUnavailable, taskID)
			}
			return receipt, reportCID, nil
		}
		if !retryableLedgerErr(err) {
			return domain.Receipt{}, "", err
		}
		lastErr = err
	}
	return domain.Receipt{}, "", fmt.Errorf("approve task %s: attempts exhausted: %w", taskID, lastErr)
}

// alreadyApproved asks the ledger for the task's current view. A task the
// ledger already shows as Approved or Paid needs no further submission;
// the original receipt is gone, so a synthetic success stands in for it.
func (b *Bridge) alreadyApproved(ctx context.Context, taskID string) (domain.Receipt, string, bool) {
	view, err := b.ledger.GetTask(ctx, taskID)
	if err != nil {
		return domain.Receipt{}, "", false
	}
	switch view.Status {
	case domain.StatusApproved, domain.StatusPaid:
		return domain.Receipt{Success: true}, view.VerifierReportCID, true
	default:
		return domain.Receipt{}, "", false
	}
}

func (b *Bridge) backoff(attempt int) time.Duration {
	d := b.cfg.BaseBackoff << (attempt - 1)
	if d > b.cfg.MaxBackoff || d <= 0 {
		d = b.cfg.MaxBackoff
	}
	return d
}

func retryableLedgerErr(err error) bool {
	return errors.Is(err, domain.ErrUpstreamUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

func requiredChecks(task domain.Task) []string {
	required := make([]string, 0, len(task.EvidenceRequirements))
	for name, req := range task.EvidenceRequirements {
		if req {
			required = append(required, name)
		}
	}
	return required
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
