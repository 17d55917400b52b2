package domain

type DeliverableStatus string

const (
	DeliverableProvided DeliverableStatus = "provided"
	DeliverableMissing  DeliverableStatus = "missing"
	DeliverableUnknown  DeliverableStatus = "unknown"
)

// Well-known keys of the free-form evidence map. Checks and the packager
// treat these heuristically; unknown keys are carried through untouched.
const (
	EvidencePullRequest = "github_pr"
	EvidenceDemo        = "demo"
	EvidenceDescription = "description"
	EvidenceFiles       = "files"
	EvidenceTestsPass   = "tests_passing"
	EvidenceLighthouse  = "lighthouse_score"
	EvidenceFindings    = "security_findings"
)

type PullRequestRef struct {
	URL    string `json:"url"`
	Number int    `json:"number,omitempty"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
}

type EvidenceFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type DeliverableCheck struct {
	Index       int               `json:"index"`
	Description string            `json:"description"`
	Status      DeliverableStatus `json:"status"`
	EvidenceRef string            `json:"evidence_reference,omitempty"`
	Notes       []string          `json:"notes,omitempty"`
}

// EvidenceBundle is immutable once content-addressed; timestamps are kept as
// RFC 3339 strings so the canonical bytes are reproducible.
type EvidenceBundle struct {
	TaskID            string             `json:"task_id"`
	Contributor       string             `json:"contributor"`
	SubmittedAt       string             `json:"submitted_at"`
	Evidence          map[string]any     `json:"evidence"`
	DeliverableChecks []DeliverableCheck `json:"deliverable_checks"`
}

// HasEvidence reports whether the bundle carries a non-empty value for key.
func (b EvidenceBundle) HasEvidence(key string) bool {
	v, ok := b.Evidence[key]
	if !ok || v == nil {
		return false
	}
	switch value := v.(type) {
	case string:
		return value != ""
	case []any:
		return len(value) > 0
	case []EvidenceFile:
		return len(value) > 0
	case map[string]any:
		return len(value) > 0
	default:
		return true
	}
}

// FileList extracts the packaged file manifest, tolerating both the typed
// form produced by the packager and the generic form decoded from JSON.
func (b EvidenceBundle) FileList() []EvidenceFile {
	raw, ok := b.Evidence[EvidenceFiles]
	if !ok {
		return nil
	}
	switch files := raw.(type) {
	case []EvidenceFile:
		return files
	case []any:
		out := make([]EvidenceFile, 0, len(files))
		for _, entry := range files {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			f := EvidenceFile{}
			if p, ok := m["path"].(string); ok {
				f.Path = p
			}
			switch size := m["size"].(type) {
			case float64:
				f.Size = int64(size)
			case int64:
				f.Size = size
			}
			out = append(out, f)
		}
		return out
	default:
		return nil
	}
}
