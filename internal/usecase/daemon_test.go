package usecase

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"bountyd/internal/domain"
	"bountyd/internal/infra/contentstore"
	"bountyd/internal/infra/crypto"
	"bountyd/internal/infra/ledger"
	"bountyd/internal/infra/processed"
	"bountyd/internal/infra/taskmem"
)

type daemonFixture struct {
	repo      *taskmem.Store
	store     *contentstore.Memory
	ledger    *ledger.Memory
	lifecycle *Lifecycle
	processed *processed.Memory
	daemon    *Daemon
}

// newDaemonFixture wires the full verification pipeline against in-memory
// adapters and a real ed25519 signer.
func newDaemonFixture(t *testing.T) *daemonFixture {
	t.Helper()

	key, err := crypto.GenerateSigningKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := crypto.NewService(key)
	if err != nil {
		t.Fatalf("init signer: %v", err)
	}

	repo := taskmem.NewStore()
	store := contentstore.NewMemory()
	chain := ledger.NewMemory()
	lifecycle := NewLifecycle(repo, LifecycleConfig{}).WithLedger(chain, store)
	engine := NewEngine(testEngineConfig(), BuiltinChecks())
	bridge := NewBridge(store, chain, signer, StaticPolicy{}, lifecycle, BridgeConfig{
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}).WithSleep(noSleep)
	seen := processed.NewMemory()
	daemon := NewDaemon(repo, store, engine, signer, bridge, seen, DaemonConfig{
		PollInterval: time.Second,
		Concurrency:  2,
	}, log.New(io.Discard, "", 0))

	return &daemonFixture{
		repo:      repo,
		store:     store,
		ledger:    chain,
		lifecycle: lifecycle,
		processed: seen,
		daemon:    daemon,
	}
}

// submitTask drives a task to Submitted with a stored evidence bundle.
// The lifecycle mirrors each transition onto the ledger itself; nothing
// here touches the ledger directly.
func (f *daemonFixture) submitTask(t *testing.T, taskID string, evidence map[string]any) {
	t.Helper()
	ctx := context.Background()

	if _, err := f.lifecycle.Create(ctx, testSpec(taskID)); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := f.lifecycle.Claim(ctx, taskID, "alice"); err != nil {
		t.Fatalf("claim task: %v", err)
	}

	raw, err := crypto.MarshalBundle(domain.EvidenceBundle{
		TaskID:      taskID,
		Contributor: "alice",
		SubmittedAt: "2026-03-01T09:30:00Z",
		Evidence:    evidence,
	})
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	cid, err := f.store.Put(ctx, raw)
	if err != nil {
		t.Fatalf("store bundle: %v", err)
	}
	if _, err := f.lifecycle.Submit(ctx, taskID, "alice", cid); err != nil {
		t.Fatalf("submit evidence: %v", err)
	}
}

func TestDaemonApprovesPassingSubmission(t *testing.T) {
	f := newDaemonFixture(t)
	f.submitTask(t, "task-1", map[string]any{
		domain.EvidencePullRequest: domain.PullRequestRef{URL: "https://github.com/acme/app/pull/42"},
		domain.EvidenceTestsPass:   true,
	})

	f.daemon.RunCycle(context.Background())

	task, err := f.lifecycle.Get(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", task.Status)
	}
	if task.VerifierReportCID == "" {
		t.Fatalf("approved task must record its report CID")
	}

	view, err := f.ledger.GetTask(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("ledger view: %v", err)
	}
	if view.Status != domain.StatusApproved || view.VerifierReportCID != task.VerifierReportCID {
		t.Fatalf("ledger out of sync: %+v", view)
	}

	raw, err := f.store.Get(context.Background(), task.VerifierReportCID)
	if err != nil {
		t.Fatalf("fetch published report: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("published report is empty")
	}

	seen, err := f.processed.Seen(context.Background(), "task-1")
	if err != nil || !seen {
		t.Fatalf("settled task should be marked processed, seen=%v err=%v", seen, err)
	}
}

func TestDaemonRejectsFailingSubmission(t *testing.T) {
	f := newDaemonFixture(t)
	f.submitTask(t, "task-1", map[string]any{
		domain.EvidenceTestsPass: false,
	})

	f.daemon.RunCycle(context.Background())

	task, err := f.lifecycle.Get(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != domain.StatusSubmitted {
		t.Fatalf("rejected task must stay submitted, got %s", task.Status)
	}

	// The verdict is final for this submission; the daemon does not grind
	// on it every cycle.
	seen, err := f.processed.Seen(context.Background(), "task-1")
	if err != nil || !seen {
		t.Fatalf("verdict should mark the task processed, seen=%v err=%v", seen, err)
	}
}

func TestDaemonSkipsProcessedTasks(t *testing.T) {
	f := newDaemonFixture(t)
	f.submitTask(t, "task-1", map[string]any{
		domain.EvidencePullRequest: domain.PullRequestRef{URL: "https://github.com/acme/app/pull/42"},
		domain.EvidenceTestsPass:   true,
	})

	f.daemon.RunCycle(context.Background())
	first, err := f.lifecycle.Get(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}

	f.daemon.RunCycle(context.Background())
	second, err := f.lifecycle.Get(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if second.VerifierReportCID != first.VerifierReportCID {
		t.Fatalf("second cycle must not reprocess, report changed %s -> %s", first.VerifierReportCID, second.VerifierReportCID)
	}
}

func TestDaemonLeavesErroredTaskForNextCycle(t *testing.T) {
	f := newDaemonFixture(t)
	f.submitTask(t, "task-1", map[string]any{
		domain.EvidencePullRequest: domain.PullRequestRef{URL: "https://github.com/acme/app/pull/42"},
		domain.EvidenceTestsPass:   true,
	})

	// Break the evidence fetch by pointing the task at a missing CID.
	task, err := f.repo.GetByID(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	good := task.EvidenceCID
	task.EvidenceCID = "bafy-missing"
	if err := f.repo.Update(context.Background(), *task); err != nil {
		t.Fatalf("update task: %v", err)
	}

	f.daemon.RunCycle(context.Background())
	seen, err := f.processed.Seen(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Fatalf("errored task must stay unprocessed for the next cycle")
	}

	// Restore the evidence; the next cycle picks the task up again.
	task.EvidenceCID = good
	if err := f.repo.Update(context.Background(), *task); err != nil {
		t.Fatalf("restore task: %v", err)
	}
	f.daemon.RunCycle(context.Background())

	final, err := f.lifecycle.Get(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if final.Status != domain.StatusApproved {
		t.Fatalf("expected approval after recovery, got %s", final.Status)
	}
}
