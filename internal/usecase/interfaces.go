package usecase

import (
	"context"

	"bountyd/internal/domain"
)

type TaskRepository interface {
	Create(ctx context.Context, task domain.Task) error
	GetByID(ctx context.Context, taskID string) (*domain.Task, error)
	Update(ctx context.Context, task domain.Task) error
	ListByStatus(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error)
}

// ContentStore is the content-addressed blob boundary. Put is idempotent:
// identical bytes always yield the identical CID.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, cid string) ([]byte, error)
}

// Ledger is the settlement authority. ApproveTask is idempotent per task;
// calls return a receipt the core records but never interprets.
type Ledger interface {
	CreateTask(ctx context.Context, taskID, specCID string, bounty domain.Bounty) (domain.Receipt, error)
	ClaimTask(ctx context.Context, taskID, claimer string) (domain.Receipt, error)
	SubmitEvidence(ctx context.Context, taskID, evidenceCID string) (domain.Receipt, error)
	ReopenTask(ctx context.Context, taskID string) (domain.Receipt, error)
	ApproveTask(ctx context.Context, taskID, reportCID string) (domain.Receipt, error)
	Payout(ctx context.Context, taskID string) (domain.Receipt, error)
	GetTask(ctx context.Context, taskID string) (*domain.TaskView, error)
}

type ReportSigner interface {
	SignReport(report *domain.VerificationReport) error
	MarshalReport(report domain.VerificationReport) ([]byte, error)
}

type SettlementPolicy interface {
	Evaluate(ctx context.Context, input domain.SettlementInput) (domain.PolicyResult, error)
}

// ProcessedStore tracks which submissions the daemon has already driven
// through the pipeline. It is an optimization, not the dedup authority;
// the ledger's idempotent approve is.
type ProcessedStore interface {
	Seen(ctx context.Context, taskID string) (bool, error)
	MarkProcessed(ctx context.Context, taskID string) error
}
