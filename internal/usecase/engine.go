package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bountyd/internal/domain"
)

// EngineConfig tunes check selection and aggregation.
type EngineConfig struct {
	QualityThreshold   float64
	CheckWeights       map[string]float64
	DefaultCheckWeight float64
	Concurrency        int
	VerifierVersion    string
}

// Engine runs the check set a task requires against an evidence bundle and
// aggregates the weighted results into an unsigned verification report.
type Engine struct {
	cfg    EngineConfig
	checks map[string]CheckFunc
	now    func() time.Time
}

func NewEngine(cfg EngineConfig, checks map[string]CheckFunc) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DefaultCheckWeight <= 0 {
		cfg.DefaultCheckWeight = 0.1
	}
	return &Engine{cfg: cfg, checks: checks, now: time.Now}
}

// WithClock overrides the time source; tests pin verified_at with it.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Register adds or replaces a named check.
func (e *Engine) Register(name string, check CheckFunc) {
	e.checks[name] = check
}

// SelectChecks resolves the check names to run for a task: every required
// name from evidence_requirements plus the category-forced check. Unknown
// names are kept so they surface as failed results rather than vanishing.
func (e *Engine) SelectChecks(task domain.Task) []string {
	selected := make(map[string]struct{})
	for name, required := range task.EvidenceRequirements {
		if required {
			selected[name] = struct{}{}
		}
	}
	switch task.Category {
	case domain.CategorySecurity:
		selected[CheckSecurityScan] = struct{}{}
	case domain.CategoryUI:
		selected[CheckAccessibility] = struct{}{}
	}

	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verify fans the selected checks out across workers, joins, and aggregates.
// A failing or panicking check contributes a zero-score result; only context
// cancellation aborts the run, and then no partial report is returned.
func (e *Engine) Verify(ctx context.Context, task domain.Task, evidenceCID string, bundle domain.EvidenceBundle) (domain.VerificationReport, error) {
	names := e.SelectChecks(task)

	results := make(map[string]domain.CheckResult, len(names))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	sem := make(chan struct{}, e.cfg.Concurrency)

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			result := e.runCheck(ctx, name, bundle)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return domain.VerificationReport{}, err
	}

	score := e.aggregate(results)
	return domain.VerificationReport{
		TaskID:          task.ID,
		EvidenceCID:     evidenceCID,
		Passed:          len(results) > 0 && score >= e.cfg.QualityThreshold,
		Score:           score,
		ChecksPerformed: names,
		Checks:          results,
		VerifiedAt:      e.now().UTC().Format(time.RFC3339),
		VerifierVersion: e.cfg.VerifierVersion,
	}, nil
}

func (e *Engine) runCheck(ctx context.Context, name string, bundle domain.EvidenceBundle) (result domain.CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failedCheck(name, fmt.Sprintf("check panicked: %v", r))
		}
	}()

	check, ok := e.checks[name]
	if !ok {
		return failedCheck(name, "unknown check")
	}
	result, err := check(ctx, bundle)
	if err != nil {
		return failedCheck(name, err.Error())
	}
	result.Name = name
	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 1 {
		result.Score = 1
	}
	return result
}

func failedCheck(name, reason string) domain.CheckResult {
	return domain.CheckResult{
		Name:    name,
		Passed:  false,
		Score:   0,
		Details: map[string]any{"error": reason},
	}
}

// aggregate computes Σ(score·weight)/Σ(weight) over executed checks. Zero
// executed checks yield zero, never a division.
func (e *Engine) aggregate(results map[string]domain.CheckResult) float64 {
	totalScore := 0.0
	totalWeight := 0.0
	for name, result := range results {
		weight, ok := e.cfg.CheckWeights[name]
		if !ok {
			weight = e.cfg.DefaultCheckWeight
		}
		totalScore += result.Score * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return totalScore / totalWeight
}
