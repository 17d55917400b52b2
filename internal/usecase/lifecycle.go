package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bountyd/internal/domain"
)

// LifecycleConfig carries the task windows and the supported category set.
// Zero windows mean unbounded deadlines.
type LifecycleConfig struct {
	ClaimWindow         time.Duration
	SubmitWindow        time.Duration
	SupportedCategories []string
}

// Lifecycle owns the task state machine. Every transition for a given task
// ID runs under that task's lock, so concurrent callers observe one
// serialized ordering per task.
type Lifecycle struct {
	repo      TaskRepository
	cfg       LifecycleConfig
	supported map[domain.Category]struct{}
	chain     Ledger
	specs     ContentStore
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*taskLock
}

func NewLifecycle(repo TaskRepository, cfg LifecycleConfig) *Lifecycle {
	supported := make(map[domain.Category]struct{}, len(cfg.SupportedCategories))
	for _, c := range cfg.SupportedCategories {
		supported[domain.Category(c)] = struct{}{}
	}
	return &Lifecycle{
		repo:      repo,
		cfg:       cfg,
		supported: supported,
		now:       time.Now,
		locks:     make(map[string]*taskLock),
	}
}

// WithLedger mirrors task transitions onto the settlement ledger so the
// chain-side state machine marches in lockstep with the local record and
// the bridge's approve call finds the task Submitted. The spec document is
// published to specs and its CID registered with createTask.
func (l *Lifecycle) WithLedger(chain Ledger, specs ContentStore) *Lifecycle {
	l.chain = chain
	l.specs = specs
	return l
}

// WithClock overrides the time source; tests drive deadlines with it.
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}

type taskLock struct {
	mu   sync.Mutex
	refs int
}

// lockTask serializes transitions per task ID. Entries are refcounted and
// evicted once the last holder releases, so the map stays bounded by the
// number of in-flight transitions rather than every task ever touched.
func (l *Lifecycle) lockTask(taskID string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[taskID]
	if !ok {
		entry = &taskLock{}
		l.locks[taskID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, taskID)
		}
		l.mu.Unlock()
	}
}

// Create registers a task from its spec document and opens it.
func (l *Lifecycle) Create(ctx context.Context, spec domain.TaskSpec) (domain.Task, error) {
	if spec.TaskID == "" {
		return domain.Task{}, fmt.Errorf("%w: task_id is required", domain.ErrInvalidSpec)
	}
	if spec.Bounty.Token == "" || spec.Bounty.Amount <= 0 {
		return domain.Task{}, fmt.Errorf("%w: bounty must name a token and a positive amount", domain.ErrInvalidSpec)
	}
	if len(l.supported) > 0 {
		if _, ok := l.supported[spec.Category]; !ok {
			return domain.Task{}, fmt.Errorf("%w: unsupported category %q", domain.ErrInvalidSpec, spec.Category)
		}
	}

	unlock := l.lockTask(spec.TaskID)
	defer unlock()

	now := l.now()
	task := domain.Task{
		ID:                   spec.TaskID,
		Title:                spec.Title,
		Category:             spec.Category,
		Bounty:               spec.Bounty,
		Deliverables:         spec.Deliverables,
		DefinitionOfDone:     spec.DefinitionOfDone,
		EvidenceRequirements: spec.EvidenceRequirements,
		Status:               domain.StatusOpen,
		CreatedAt:            now,
	}
	if l.cfg.ClaimWindow > 0 {
		task.ClaimDeadline = now.Add(l.cfg.ClaimWindow)
	}
	if err := l.registerOnLedger(ctx, spec, task); err != nil {
		return domain.Task{}, err
	}
	if err := l.repo.Create(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// registerOnLedger publishes the spec document and registers the task with
// the settlement ledger. The ledger call comes before the local write, same
// order the bridge uses: the ledger is the authority, the local record
// follows it.
func (l *Lifecycle) registerOnLedger(ctx context.Context, spec domain.TaskSpec, task domain.Task) error {
	if l.chain == nil {
		return nil
	}
	specCID := ""
	if l.specs != nil {
		raw, err := json.Marshal(spec)
		if err != nil {
			return fmt.Errorf("marshal task spec: %w", err)
		}
		if specCID, err = l.specs.Put(ctx, raw); err != nil {
			return fmt.Errorf("publish task spec: %w", err)
		}
	}
	if _, err := l.chain.CreateTask(ctx, task.ID, specCID, task.Bounty); err != nil {
		return fmt.Errorf("register task on ledger: %w", err)
	}
	return nil
}

func (l *Lifecycle) Get(ctx context.Context, taskID string) (domain.Task, error) {
	task, err := l.repo.GetByID(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	return *task, nil
}

func (l *Lifecycle) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	return l.repo.ListByStatus(ctx, status)
}

// Claim moves an Open task to Claimed for claimer and computes the submit
// deadline from the configured window.
func (l *Lifecycle) Claim(ctx context.Context, taskID, claimer string) (domain.Task, error) {
	if claimer == "" {
		return domain.Task{}, fmt.Errorf("%w: claimer identity is required", domain.ErrUnauthorized)
	}
	unlock := l.lockTask(taskID)
	defer unlock()

	task, err := l.repo.GetByID(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.Status != domain.StatusOpen {
		return domain.Task{}, fmt.Errorf("%w: cannot claim task in state %s", domain.ErrInvalidState, task.Status)
	}
	now := l.now()
	if !task.ClaimDeadline.IsZero() && now.After(task.ClaimDeadline) {
		return domain.Task{}, fmt.Errorf("%w: claim window closed", domain.ErrDeadlineExceeded)
	}
	if l.chain != nil {
		if _, err := l.chain.ClaimTask(ctx, taskID, claimer); err != nil {
			return domain.Task{}, fmt.Errorf("claim on ledger: %w", err)
		}
	}

	task.Status = domain.StatusClaimed
	task.Claimer = claimer
	task.ClaimedAt = now
	if l.cfg.SubmitWindow > 0 {
		task.SubmitDeadline = now.Add(l.cfg.SubmitWindow)
	}
	if err := l.repo.Update(ctx, *task); err != nil {
		return domain.Task{}, err
	}
	return *task, nil
}

// Submit records the evidence CID for a Claimed task. Only the current
// claimer may submit; a missed submit deadline reopens the task as a side
// effect and the caller gets ErrDeadlineExceeded.
func (l *Lifecycle) Submit(ctx context.Context, taskID, claimer, evidenceCID string) (domain.Task, error) {
	if evidenceCID == "" {
		return domain.Task{}, fmt.Errorf("%w: evidence CID is required", domain.ErrInvalidState)
	}
	unlock := l.lockTask(taskID)
	defer unlock()

	task, err := l.repo.GetByID(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.Status != domain.StatusClaimed {
		return domain.Task{}, fmt.Errorf("%w: cannot submit task in state %s", domain.ErrInvalidState, task.Status)
	}
	if task.Claimer != claimer {
		return domain.Task{}, fmt.Errorf("%w: task is claimed by someone else", domain.ErrUnauthorized)
	}
	if !task.SubmitDeadline.IsZero() && l.now().After(task.SubmitDeadline) {
		if err := l.reopenLocked(ctx, task); err != nil {
			return domain.Task{}, err
		}
		return domain.Task{}, fmt.Errorf("%w: submit window closed, task reopened", domain.ErrDeadlineExceeded)
	}
	if l.chain != nil {
		if _, err := l.chain.SubmitEvidence(ctx, taskID, evidenceCID); err != nil {
			return domain.Task{}, fmt.Errorf("record evidence on ledger: %w", err)
		}
	}

	task.Status = domain.StatusSubmitted
	task.EvidenceCID = evidenceCID
	task.SubmittedAt = l.now()
	if err := l.repo.Update(ctx, *task); err != nil {
		return domain.Task{}, err
	}
	return *task, nil
}

// Approve moves a Submitted task to Approved. It is idempotent: approving
// an already-Approved task with the same report CID is a no-op success, so
// the settlement bridge may deliver at least once. The ledger-side approve
// is the bridge's; Approve only records the confirmed result locally.
func (l *Lifecycle) Approve(ctx context.Context, taskID, reportCID string) (domain.Task, error) {
	if reportCID == "" {
		return domain.Task{}, fmt.Errorf("%w: verifier report CID is required", domain.ErrInvalidState)
	}
	unlock := l.lockTask(taskID)
	defer unlock()

	task, err := l.repo.GetByID(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	switch task.Status {
	case domain.StatusApproved, domain.StatusPaid:
		if task.VerifierReportCID == reportCID {
			return *task, nil
		}
		return domain.Task{}, fmt.Errorf("%w: task already approved with a different report", domain.ErrInvalidState)
	case domain.StatusSubmitted:
	default:
		return domain.Task{}, fmt.Errorf("%w: cannot approve task in state %s", domain.ErrInvalidState, task.Status)
	}

	task.Status = domain.StatusApproved
	task.VerifierReportCID = reportCID
	task.ApprovedAt = l.now()
	if err := l.repo.Update(ctx, *task); err != nil {
		return domain.Task{}, err
	}
	return *task, nil
}

// Payout is claimer-initiated and moves an Approved task to its terminal
// Paid state. The settlement bridge never calls this.
func (l *Lifecycle) Payout(ctx context.Context, taskID, claimer string) (domain.Task, error) {
	unlock := l.lockTask(taskID)
	defer unlock()

	task, err := l.repo.GetByID(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.Status != domain.StatusApproved {
		return domain.Task{}, fmt.Errorf("%w: cannot pay out task in state %s", domain.ErrInvalidState, task.Status)
	}
	if task.Claimer != claimer {
		return domain.Task{}, fmt.Errorf("%w: payout is reserved for the claimer", domain.ErrUnauthorized)
	}
	if l.chain != nil {
		if _, err := l.chain.Payout(ctx, taskID); err != nil {
			return domain.Task{}, fmt.Errorf("payout on ledger: %w", err)
		}
	}

	task.Status = domain.StatusPaid
	if err := l.repo.Update(ctx, *task); err != nil {
		return domain.Task{}, err
	}
	return *task, nil
}

// Reopen abandons a Claimed task. The Reopened state is a pass-through:
// the transition validates Claimed→Reopened→Open and persists the final
// Open record with claimer, evidence and deadlines cleared.
func (l *Lifecycle) Reopen(ctx context.Context, taskID string) (domain.Task, error) {
	unlock := l.lockTask(taskID)
	defer unlock()

	task, err := l.repo.GetByID(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.Status != domain.StatusClaimed {
		return domain.Task{}, fmt.Errorf("%w: cannot reopen task in state %s", domain.ErrInvalidState, task.Status)
	}
	if err := l.reopenLocked(ctx, task); err != nil {
		return domain.Task{}, err
	}
	reopened, err := l.repo.GetByID(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	return *reopened, nil
}

// reopenLocked records the Reopened transition and immediately completes
// it back to Open; both writes happen under the task lock so no caller can
// observe a half-reopened task mid-flight.
func (l *Lifecycle) reopenLocked(ctx context.Context, task *domain.Task) error {
	if l.chain != nil {
		if _, err := l.chain.ReopenTask(ctx, task.ID); err != nil {
			return fmt.Errorf("reopen on ledger: %w", err)
		}
	}
	task.Status = domain.StatusReopened
	task.Claimer = ""
	task.EvidenceCID = ""
	task.ClaimedAt = time.Time{}
	task.SubmittedAt = time.Time{}
	task.SubmitDeadline = time.Time{}
	if err := l.repo.Update(ctx, *task); err != nil {
		return err
	}
	task.Status = domain.StatusOpen
	return l.repo.Update(ctx, *task)
}
