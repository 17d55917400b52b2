package domain

// SettlementInput is what the settlement policy sees for a scored report.
type SettlementInput struct {
	TaskID          string                 `json:"task_id"`
	Category        Category               `json:"category"`
	Passed          bool                   `json:"passed"`
	Score           float64                `json:"score"`
	Checks          map[string]CheckResult `json:"checks"`
	MissingRequired []string               `json:"missing_required"`
}

type PolicyViolation struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool              `json:"allow"`
	Deny  []PolicyViolation `json:"deny,omitempty"`
}
