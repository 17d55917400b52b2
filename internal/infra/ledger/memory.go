package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"

	"bountyd/internal/domain"
)

// Memory is the in-process ledger fake selected when no ledger endpoint is
// configured. It mirrors the real settlement contract closely enough for
// tests: state guards, idempotent approve, deterministic receipts.
type Memory struct {
	mu    sync.Mutex
	tasks map[string]*domain.TaskView
	seq   int64
}

func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]*domain.TaskView)}
}

func (m *Memory) CreateTask(_ context.Context, taskID, specCID string, bounty domain.Bounty) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[taskID]; exists {
		return domain.Receipt{}, fmt.Errorf("%w: task %s already registered", domain.ErrInvalidState, taskID)
	}
	if bounty.Token == "" || bounty.Amount <= 0 {
		return domain.Receipt{}, fmt.Errorf("%w: invalid bounty", domain.ErrInvalidState)
	}
	m.tasks[taskID] = &domain.TaskView{TaskID: taskID, Status: domain.StatusOpen}
	return m.receipt("createTask", taskID, specCID), nil
}

func (m *Memory) ClaimTask(_ context.Context, taskID, claimer string) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, err := m.get(taskID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if view.Status != domain.StatusOpen {
		return domain.Receipt{}, fmt.Errorf("%w: task %s is %s", domain.ErrInvalidState, taskID, view.Status)
	}
	view.Status = domain.StatusClaimed
	view.Claimer = claimer
	return m.receipt("claimTask", taskID, claimer), nil
}

func (m *Memory) SubmitEvidence(_ context.Context, taskID, evidenceCID string) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, err := m.get(taskID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if view.Status != domain.StatusClaimed {
		return domain.Receipt{}, fmt.Errorf("%w: task %s is %s", domain.ErrInvalidState, taskID, view.Status)
	}
	view.Status = domain.StatusSubmitted
	view.EvidenceCID = evidenceCID
	return m.receipt("submitEvidence", taskID, evidenceCID), nil
}

// ReopenTask abandons the current claim and returns the task to Open so it
// can be claimed again. Submitted is allowed too; a reopen that races a
// submission wins and the evidence is discarded.
func (m *Memory) ReopenTask(_ context.Context, taskID string) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, err := m.get(taskID)
	if err != nil {
		return domain.Receipt{}, err
	}
	switch view.Status {
	case domain.StatusClaimed, domain.StatusSubmitted:
		view.Status = domain.StatusOpen
		view.Claimer = ""
		view.EvidenceCID = ""
		return m.receipt("reopenTask", taskID, ""), nil
	default:
		return domain.Receipt{}, fmt.Errorf("%w: task %s is %s", domain.ErrInvalidState, taskID, view.Status)
	}
}

// ApproveTask is idempotent per task: re-approving with the same report CID
// returns a fresh successful receipt and changes nothing.
func (m *Memory) ApproveTask(_ context.Context, taskID, reportCID string) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, err := m.get(taskID)
	if err != nil {
		return domain.Receipt{}, err
	}
	switch view.Status {
	case domain.StatusApproved, domain.StatusPaid:
		if view.VerifierReportCID == reportCID {
			return m.receipt("approveTask", taskID, reportCID), nil
		}
		return domain.Receipt{}, fmt.Errorf("%w: task %s already approved with another report", domain.ErrInvalidState, taskID)
	case domain.StatusSubmitted:
		view.Status = domain.StatusApproved
		view.VerifierReportCID = reportCID
		return m.receipt("approveTask", taskID, reportCID), nil
	default:
		return domain.Receipt{}, fmt.Errorf("%w: task %s is %s", domain.ErrInvalidState, taskID, view.Status)
	}
}

func (m *Memory) Payout(_ context.Context, taskID string) (domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, err := m.get(taskID)
	if err != nil {
		return domain.Receipt{}, err
	}
	if view.Status != domain.StatusApproved {
		return domain.Receipt{}, fmt.Errorf("%w: task %s is %s", domain.ErrInvalidState, taskID, view.Status)
	}
	view.Status = domain.StatusPaid
	return m.receipt("payout", taskID, ""), nil
}

func (m *Memory) GetTask(_ context.Context, taskID string) (*domain.TaskView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	view, err := m.get(taskID)
	if err != nil {
		return nil, err
	}
	out := *view
	return &out, nil
}

func (m *Memory) get(taskID string) (*domain.TaskView, error) {
	view, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
	return view, nil
}

func (m *Memory) receipt(op, taskID, arg string) domain.Receipt {
	m.seq++
	sum := sha256.Sum256([]byte(op + "|" + taskID + "|" + arg + "|" + strconv.FormatInt(m.seq, 10)))
	return domain.Receipt{
		TxID:     "0x" + hex.EncodeToString(sum[:]),
		Success:  true,
		Sequence: strconv.FormatInt(m.seq, 10),
	}
}
