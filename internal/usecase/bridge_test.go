package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bountyd/internal/domain"
	"bountyd/internal/infra/contentstore"
)

type stubSigner struct{}

func (stubSigner) SignReport(report *domain.VerificationReport) error {
	report.VerifierPubKey = "stub-pubkey"
	report.Signature = "stub-signature"
	return nil
}

func (stubSigner) MarshalReport(report domain.VerificationReport) ([]byte, error) {
	return []byte(fmt.Sprintf("report:%s:%s", report.TaskID, report.Signature)), nil
}

type stubLedger struct {
	approveCalls int
	approveFn    func(call int) (domain.Receipt, error)
	getCalls     int
	getFn        func(call int) (*domain.TaskView, error)
	payoutCalls  int
}

func (s *stubLedger) CreateTask(context.Context, string, string, domain.Bounty) (domain.Receipt, error) {
	return domain.Receipt{Success: true}, nil
}

func (s *stubLedger) ClaimTask(context.Context, string, string) (domain.Receipt, error) {
	return domain.Receipt{Success: true}, nil
}

func (s *stubLedger) SubmitEvidence(context.Context, string, string) (domain.Receipt, error) {
	return domain.Receipt{Success: true}, nil
}

func (s *stubLedger) ReopenTask(context.Context, string) (domain.Receipt, error) {
	return domain.Receipt{Success: true}, nil
}

func (s *stubLedger) ApproveTask(context.Context, string, string) (domain.Receipt, error) {
	s.approveCalls++
	return s.approveFn(s.approveCalls)
}

func (s *stubLedger) Payout(context.Context, string) (domain.Receipt, error) {
	s.payoutCalls++
	return domain.Receipt{Success: true}, nil
}

func (s *stubLedger) GetTask(context.Context, string) (*domain.TaskView, error) {
	s.getCalls++
	if s.getFn == nil {
		return nil, fmt.Errorf("%w: no view", domain.ErrNotFound)
	}
	return s.getFn(s.getCalls)
}

type stubApprover struct {
	calls     int
	reportCID string
}

func (s *stubApprover) Approve(_ context.Context, taskID, reportCID string) (domain.Task, error) {
	s.calls++
	s.reportCID = reportCID
	return domain.Task{ID: taskID, Status: domain.StatusApproved, VerifierReportCID: reportCID}, nil
}

type stubPolicy struct {
	result domain.PolicyResult
	err    error
	input  domain.SettlementInput
}

func (s *stubPolicy) Evaluate(_ context.Context, input domain.SettlementInput) (domain.PolicyResult, error) {
	s.input = input
	return s.result, s.err
}

func signedReport(taskID string, passed bool, score float64) domain.VerificationReport {
	return domain.VerificationReport{
		TaskID:          taskID,
		EvidenceCID:     "bafy-evidence",
		Passed:          passed,
		Score:           score,
		ChecksPerformed: []string{CheckCodeReview},
		Checks: map[string]domain.CheckResult{
			CheckCodeReview: {Name: CheckCodeReview, Passed: true, Score: 0.85},
		},
		VerifiedAt:      "2026-03-01T10:00:00Z",
		VerifierVersion: "test",
		VerifierPubKey:  "stub-pubkey",
		Signature:       "stub-signature",
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestBridge(ledger Ledger, policy SettlementPolicy, approver TaskApprover) (*Bridge, *contentstore.Memory) {
	store := contentstore.NewMemory()
	bridge := NewBridge(store, ledger, stubSigner{}, policy, approver, BridgeConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}).WithSleep(noSleep)
	return bridge, store
}

func TestBridgeRejectsUnsignedReport(t *testing.T) {
	ledger := &stubLedger{}
	bridge, _ := newTestBridge(ledger, nil, &stubApprover{})

	report := signedReport("task-1", true, 0.9)
	report.Signature = ""
	if _, err := bridge.Settle(context.Background(), domain.Task{ID: "task-1"}, report); !errors.Is(err, domain.ErrUnsignedReport) {
		t.Fatalf("expected ErrUnsignedReport, got %v", err)
	}
	if ledger.approveCalls != 0 {
		t.Fatalf("ledger must not see unsigned reports")
	}
}

func TestBridgeSettlesPassingReport(t *testing.T) {
	ledger := &stubLedger{approveFn: func(int) (domain.Receipt, error) {
		return domain.Receipt{TxID: "0xabc", Success: true}, nil
	}}
	approver := &stubApprover{}
	bridge, store := newTestBridge(ledger, nil, approver)

	outcome, err := bridge.Settle(context.Background(), domain.Task{ID: "task-1"}, signedReport("task-1", true, 0.9))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !outcome.Approved || outcome.Receipt.TxID != "0xabc" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.ReportCID == "" {
		t.Fatalf("expected a published report CID")
	}
	if _, err := store.Get(context.Background(), outcome.ReportCID); err != nil {
		t.Fatalf("report not published: %v", err)
	}
	if approver.calls != 1 || approver.reportCID != outcome.ReportCID {
		t.Fatalf("approval not recorded locally: %+v", approver)
	}
	if ledger.payoutCalls != 0 {
		t.Fatalf("bridge must never call payout")
	}
}

func TestBridgePublishesFailedReportWithoutLedgerCall(t *testing.T) {
	ledger := &stubLedger{}
	bridge, store := newTestBridge(ledger, nil, &stubApprover{})

	outcome, err := bridge.Settle(context.Background(), domain.Task{ID: "task-1"}, signedReport("task-1", false, 0.42))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Approved {
		t.Fatalf("failed report must not approve")
	}
	if outcome.ReportCID == "" {
		t.Fatalf("failed reports are still published")
	}
	if _, err := store.Get(context.Background(), outcome.ReportCID); err != nil {
		t.Fatalf("report not published: %v", err)
	}
	if ledger.approveCalls != 0 {
		t.Fatalf("ledger must not be called for failed reports")
	}
}

func TestBridgePolicyDenyBlocksApprove(t *testing.T) {
	ledger := &stubLedger{}
	policy := &stubPolicy{result: domain.PolicyResult{
		Allow: false,
		Deny:  []domain.PolicyViolation{{Code: "required_check_missing"}},
	}}
	bridge, _ := newTestBridge(ledger, policy, &stubApprover{})

	task := domain.Task{
		ID:                   "task-1",
		EvidenceRequirements: map[string]bool{CheckTestsPassing: true},
	}
	outcome, err := bridge.Settle(context.Background(), task, signedReport("task-1", true, 0.9))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Approved {
		t.Fatalf("denied report must not approve")
	}
	if len(outcome.Denials) != 1 || outcome.Denials[0].Code != "required_check_missing" {
		t.Fatalf("unexpected denials: %+v", outcome.Denials)
	}
	if ledger.approveCalls != 0 {
		t.Fatalf("ledger must not be called on policy deny")
	}
	if len(policy.input.MissingRequired) != 1 || policy.input.MissingRequired[0] != CheckTestsPassing {
		t.Fatalf("policy input missing_required not derived: %+v", policy.input)
	}
}

func TestBridgeRetriesOnUnavailability(t *testing.T) {
	ledger := &stubLedger{
		approveFn: func(call int) (domain.Receipt, error) {
			if call == 1 {
				return domain.Receipt{}, fmt.Errorf("%w: connection refused", domain.ErrUpstreamUnavailable)
			}
			return domain.Receipt{TxID: "0xretry", Success: true}, nil
		},
		getFn: func(int) (*domain.TaskView, error) {
			return &domain.TaskView{TaskID: "task-1", Status: domain.StatusSubmitted}, nil
		},
	}
	bridge, _ := newTestBridge(ledger, nil, &stubApprover{})

	outcome, err := bridge.Settle(context.Background(), domain.Task{ID: "task-1"}, signedReport("task-1", true, 0.9))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !outcome.Approved || outcome.Receipt.TxID != "0xretry" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if ledger.approveCalls != 2 {
		t.Fatalf("expected 2 approve attempts, got %d", ledger.approveCalls)
	}
	if ledger.getCalls != 2 {
		t.Fatalf("expected a status check before every attempt, got %d", ledger.getCalls)
	}
}

func TestBridgeTimeoutThenAlreadyApproved(t *testing.T) {
	// The first approve times out with the outcome unknown; the re-check
	// finds the call actually landed and no second approve is sent.
	ledger := &stubLedger{
		approveFn: func(call int) (domain.Receipt, error) {
			return domain.Receipt{}, fmt.Errorf("approve task: %w", context.DeadlineExceeded)
		},
		getFn: func(call int) (*domain.TaskView, error) {
			if call == 1 {
				return &domain.TaskView{TaskID: "task-1", Status: domain.StatusSubmitted}, nil
			}
			return &domain.TaskView{
				TaskID:            "task-1",
				Status:            domain.StatusApproved,
				VerifierReportCID: "bafy-report",
			}, nil
		},
	}
	approver := &stubApprover{}
	bridge, _ := newTestBridge(ledger, nil, approver)

	outcome, err := bridge.Settle(context.Background(), domain.Task{ID: "task-1"}, signedReport("task-1", true, 0.9))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !outcome.Approved || !outcome.Receipt.Success {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if ledger.approveCalls != 1 {
		t.Fatalf("approve must not be resubmitted after it landed, got %d calls", ledger.approveCalls)
	}
	if approver.calls != 1 || approver.reportCID != "bafy-report" {
		t.Fatalf("local approval must record the ledger's report CID: %+v", approver)
	}
}

func TestBridgeRecoversApproveFromEarlierRun(t *testing.T) {
	// A prior run's approve landed on the ledger but the local record was
	// lost. The next settlement holds a re-signed report with a different
	// CID; resubmitting it would be rejected as a conflicting approve, so
	// the bridge has to notice the landed one before the first attempt.
	ledger := &stubLedger{
		approveFn: func(int) (domain.Receipt, error) {
			return domain.Receipt{}, fmt.Errorf("%w: task already approved with another report", domain.ErrInvalidState)
		},
		getFn: func(int) (*domain.TaskView, error) {
			return &domain.TaskView{
				TaskID:            "task-1",
				Status:            domain.StatusApproved,
				VerifierReportCID: "bafy-prior",
			}, nil
		},
	}
	approver := &stubApprover{}
	bridge, _ := newTestBridge(ledger, nil, approver)

	outcome, err := bridge.Settle(context.Background(), domain.Task{ID: "task-1"}, signedReport("task-1", true, 0.9))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !outcome.Approved || outcome.ReportCID != "bafy-prior" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if ledger.approveCalls != 0 {
		t.Fatalf("landed approve must not be resubmitted, got %d calls", ledger.approveCalls)
	}
	if approver.calls != 1 || approver.reportCID != "bafy-prior" {
		t.Fatalf("local record must converge on the ledger's report: %+v", approver)
	}
}

func TestBridgeDoesNotRetryInvalidState(t *testing.T) {
	ledger := &stubLedger{approveFn: func(int) (domain.Receipt, error) {
		return domain.Receipt{}, fmt.Errorf("%w: task is open", domain.ErrInvalidState)
	}}
	bridge, _ := newTestBridge(ledger, nil, &stubApprover{})

	_, err := bridge.Settle(context.Background(), domain.Task{ID: "task-1"}, signedReport("task-1", true, 0.9))
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if ledger.approveCalls != 1 {
		t.Fatalf("state errors must not be retried, got %d calls", ledger.approveCalls)
	}
}

func TestBridgeExhaustsAttempts(t *testing.T) {
	ledger := &stubLedger{
		approveFn: func(int) (domain.Receipt, error) {
			return domain.Receipt{}, fmt.Errorf("%w: still down", domain.ErrUpstreamUnavailable)
		},
		getFn: func(int) (*domain.TaskView, error) {
			return &domain.TaskView{TaskID: "task-1", Status: domain.StatusSubmitted}, nil
		},
	}
	bridge, _ := newTestBridge(ledger, nil, &stubApprover{})

	_, err := bridge.Settle(context.Background(), domain.Task{ID: "task-1"}, signedReport("task-1", true, 0.9))
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable after exhaustion, got %v", err)
	}
	if ledger.approveCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", ledger.approveCalls)
	}
}

func TestBridgeUnsuccessfulReceiptIsTerminal(t *testing.T) {
	ledger := &stubLedger{approveFn: func(int) (domain.Receipt, error) {
		return domain.Receipt{TxID: "0xdead", Success: false}, nil
	}}
	bridge, _ := newTestBridge(ledger, nil, &stubApprover{})

	_, err := bridge.Settle(context.Background(), domain.Task{ID: "task-1"}, signedReport("task-1", true, 0.9))
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected wrapped ErrUpstreamUnavailable, got %v", err)
	}
	if ledger.approveCalls != 1 {
		t.Fatalf("rejected receipts must not be retried, got %d calls", ledger.approveCalls)
	}
}

func TestBridgeBackoffGrowth(t *testing.T) {
	bridge := NewBridge(contentstore.NewMemory(), &stubLedger{}, stubSigner{}, nil, &stubApprover{}, BridgeConfig{
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  5 * time.Second,
	})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, expected := range want {
		if got := bridge.backoff(i + 1); got != expected {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, expected)
		}
	}
}
