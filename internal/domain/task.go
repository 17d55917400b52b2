package domain

import "time"

type TaskStatus string

const (
	StatusOpen      TaskStatus = "open"
	StatusClaimed   TaskStatus = "claimed"
	StatusSubmitted TaskStatus = "submitted"
	StatusApproved  TaskStatus = "approved"
	StatusPaid      TaskStatus = "paid"
	StatusReopened  TaskStatus = "reopened"
)

type Category string

const (
	CategorySecurity    Category = "security"
	CategoryUI          Category = "ui"
	CategoryDocs        Category = "docs"
	CategoryTranslation Category = "translation"
	CategoryTesting     Category = "testing"
	CategoryOther       Category = "other"
)

type Bounty struct {
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}

// Task is the single shared mutable record of the system. It is owned by the
// lifecycle controller; nothing else writes to it.
type Task struct {
	ID                   string
	Title                string
	Category             Category
	Bounty               Bounty
	Deliverables         []string
	DefinitionOfDone     []string
	EvidenceRequirements map[string]bool

	Status            TaskStatus
	Claimer           string
	EvidenceCID       string
	VerifierReportCID string

	CreatedAt   time.Time
	ClaimedAt   time.Time
	SubmittedAt time.Time
	ApprovedAt  time.Time

	// Zero deadline means unbounded.
	ClaimDeadline  time.Time
	SubmitDeadline time.Time
}

// TaskSpec is the structured task document consumed at registration time.
type TaskSpec struct {
	TaskID               string          `json:"task_id"`
	Title                string          `json:"title"`
	Category             Category        `json:"category"`
	Bounty               Bounty          `json:"bounty"`
	Deliverables         []string        `json:"deliverables"`
	DefinitionOfDone     []string        `json:"definition_of_done"`
	EvidenceRequirements map[string]bool `json:"evidence_requirements"`
}

// TaskView is the ledger-side projection of a task, used by the settlement
// bridge to re-check outcome after an unknown ledger result. The core never
// interprets it beyond status and recorded CIDs.
type TaskView struct {
	TaskID            string     `json:"task_id"`
	Status            TaskStatus `json:"status"`
	Claimer           string     `json:"claimer"`
	EvidenceCID       string     `json:"evidence_cid"`
	VerifierReportCID string     `json:"verifier_report_cid"`
}
