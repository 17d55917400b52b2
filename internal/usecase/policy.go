package usecase

import (
	"context"
	"fmt"

	"bountyd/internal/domain"
)

// StaticPolicy is the built-in settlement policy used when no rego bundle is
// configured. The weighted score decides by default; RequireAllChecks
// tightens that to every required check present and every executed check
// passing.
type StaticPolicy struct {
	RequireAllChecks bool
}

func (p StaticPolicy) Evaluate(_ context.Context, input domain.SettlementInput) (domain.PolicyResult, error) {
	result := domain.PolicyResult{Allow: input.Passed}
	if !input.Passed {
		result.Deny = append(result.Deny, domain.PolicyViolation{
			Code:    "score_below_threshold",
			Message: fmt.Sprintf("aggregated score %.2f did not reach the quality threshold", input.Score),
		})
		return result, nil
	}
	if !p.RequireAllChecks {
		return result, nil
	}

	for _, name := range input.MissingRequired {
		result.Deny = append(result.Deny, domain.PolicyViolation{
			Code:    "required_check_missing",
			Message: fmt.Sprintf("required check %s was never executed", name),
		})
	}
	for name, check := range input.Checks {
		if !check.Passed {
			result.Deny = append(result.Deny, domain.PolicyViolation{
				Code:    "check_failed",
				Message: fmt.Sprintf("check %s failed with score %.2f", name, check.Score),
			})
		}
	}
	result.Allow = len(result.Deny) == 0
	return result, nil
}
