package domain

// CheckResult is produced by exactly one verification check and never
// mutated afterwards.
type CheckResult struct {
	Name    string         `json:"name"`
	Passed  bool           `json:"passed"`
	Score   float64        `json:"score"`
	Details map[string]any `json:"details,omitempty"`
}

// VerificationReport carries the aggregated verdict for one evidence bundle.
// VerifiedAt is an RFC 3339 string so the canonical serialization used for
// signing is byte-reproducible. Signature and VerifierPubKey are hex; both
// are empty until the report signer has run.
type VerificationReport struct {
	TaskID          string                 `json:"task_id"`
	EvidenceCID     string                 `json:"evidence_cid"`
	Passed          bool                   `json:"passed"`
	Score           float64                `json:"score"`
	ChecksPerformed []string               `json:"checks_performed"`
	Checks          map[string]CheckResult `json:"checks"`
	VerifiedAt      string                 `json:"verified_at"`
	VerifierVersion string                 `json:"verifier_version"`
	VerifierPubKey  string                 `json:"verifier_pubkey"`
	Signature       string                 `json:"signature"`
}

func (r VerificationReport) Signed() bool {
	return r.Signature != "" && r.VerifierPubKey != ""
}

// MissingRequired returns the required check names that never executed,
// sorted order is the caller's concern.
func (r VerificationReport) MissingRequired(required []string) []string {
	executed := make(map[string]struct{}, len(r.ChecksPerformed))
	for _, name := range r.ChecksPerformed {
		executed[name] = struct{}{}
	}
	var missing []string
	for _, name := range required {
		if _, ok := executed[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
