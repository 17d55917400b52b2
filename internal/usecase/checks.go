package usecase

import (
	"context"
	"fmt"
	"strings"

	"bountyd/internal/domain"
)

// Built-in check names. Task specs reference these in evidence_requirements.
const (
	CheckCodeReview    = "code_review"
	CheckTestsPassing  = "tests_passing"
	CheckDocumentation = "documentation"
	CheckSecurityScan  = "security_scan"
	CheckAccessibility = "accessibility"
)

// CheckFunc scores one aspect of an evidence bundle. Checks are side-effect
// free and independent of each other; a returned error degrades only this
// check's result, never the whole evaluation.
type CheckFunc func(ctx context.Context, bundle domain.EvidenceBundle) (domain.CheckResult, error)

// BuiltinChecks returns the standard check set keyed by name.
func BuiltinChecks() map[string]CheckFunc {
	return map[string]CheckFunc{
		CheckCodeReview:    checkCodeReview,
		CheckTestsPassing:  checkTestsPassing,
		CheckDocumentation: checkDocumentation,
		CheckSecurityScan:  checkSecurityScan,
		CheckAccessibility: checkAccessibility,
	}
}

func checkCodeReview(_ context.Context, bundle domain.EvidenceBundle) (domain.CheckResult, error) {
	result := domain.CheckResult{Name: CheckCodeReview}
	raw, ok := bundle.Evidence[domain.EvidencePullRequest]
	if !ok || !bundle.HasEvidence(domain.EvidencePullRequest) {
		result.Details = map[string]any{"reason": "no pull request reference in evidence"}
		return result, nil
	}

	details := map[string]any{"files_changed": len(bundle.FileList())}
	switch pr := raw.(type) {
	case domain.PullRequestRef:
		details["pr_url"] = pr.URL
	case map[string]any:
		if url, ok := pr["url"].(string); ok {
			details["pr_url"] = url
		}
	case string:
		details["pr_url"] = pr
	}

	result.Passed = true
	result.Score = 0.85
	result.Details = details
	return result, nil
}

func checkTestsPassing(_ context.Context, bundle domain.EvidenceBundle) (domain.CheckResult, error) {
	result := domain.CheckResult{Name: CheckTestsPassing}
	passing, ok := bundle.Evidence[domain.EvidenceTestsPass].(bool)
	if !ok {
		result.Details = map[string]any{"reason": "no test outcome in evidence"}
		return result, nil
	}

	result.Passed = passing
	if passing {
		result.Score = 1.0
	}
	result.Details = map[string]any{"all_tests_pass": passing}
	return result, nil
}

var documentationWords = []string{"documentation", "readme", "docs", "documented"}

func checkDocumentation(_ context.Context, bundle domain.EvidenceBundle) (domain.CheckResult, error) {
	result := domain.CheckResult{Name: CheckDocumentation}

	description, _ := bundle.Evidence[domain.EvidenceDescription].(string)
	lower := strings.ToLower(description)
	mentioned := false
	for _, word := range documentationWords {
		if strings.Contains(lower, word) {
			mentioned = true
			break
		}
	}
	docFiles := filesMatching(bundle.FileList(), docSuffixes, "doc")

	if mentioned || docFiles > 0 {
		result.Passed = true
		result.Score = 0.9
	} else {
		result.Score = 0.3
	}
	result.Details = map[string]any{
		"documentation_mentioned": mentioned,
		"documentation_files":     docFiles,
	}
	return result, nil
}

func checkSecurityScan(_ context.Context, bundle domain.EvidenceBundle) (domain.CheckResult, error) {
	result := domain.CheckResult{Name: CheckSecurityScan}

	findings := findingsList(bundle.Evidence[domain.EvidenceFindings])
	if len(findings) > 0 {
		result.Score = 0.2
		result.Details = map[string]any{
			"findings_count": len(findings),
			"findings":       findings,
		}
		return result, nil
	}

	result.Passed = true
	result.Score = 0.9
	result.Details = map[string]any{"findings_count": 0}
	return result, nil
}

func checkAccessibility(_ context.Context, bundle domain.EvidenceBundle) (domain.CheckResult, error) {
	result := domain.CheckResult{Name: CheckAccessibility}

	score, ok := lighthouseScore(bundle.Evidence[domain.EvidenceLighthouse])
	if !ok {
		result.Details = map[string]any{"reason": "no lighthouse score in evidence"}
		return result, nil
	}
	if score < 0 || score > 100 {
		return result, fmt.Errorf("lighthouse score %v out of range", score)
	}

	result.Score = score / 100
	result.Passed = score >= 80
	result.Details = map[string]any{"lighthouse_score": score}
	return result, nil
}

func findingsList(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func lighthouseScore(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
