package usecase

import (
	"fmt"
	"strings"
	"time"

	"bountyd/internal/domain"
)

// PackageInput carries the contributor-supplied references the packager
// assembles into an evidence bundle.
type PackageInput struct {
	Contributor string
	PullRequest *domain.PullRequestRef
	DemoURL     string
	Description string
	Files       []domain.EvidenceFile
	TestsPass   *bool
	Lighthouse  *float64
	Findings    []string
}

// Packager builds evidence bundles and grades them against a task's
// declared deliverables.
type Packager struct {
	now func() time.Time
}

func NewPackager() *Packager {
	return &Packager{now: time.Now}
}

// WithClock overrides the time source; tests pin submitted_at with it.
func (p *Packager) WithClock(now func() time.Time) *Packager {
	p.now = now
	return p
}

// Package assembles the bundle and derives one deliverable check per task
// deliverable. The bundle is a value object; callers hand it to the content
// store to obtain its CID.
func (p *Packager) Package(task domain.Task, input PackageInput) domain.EvidenceBundle {
	evidence := make(map[string]any)
	if input.PullRequest != nil {
		evidence[domain.EvidencePullRequest] = *input.PullRequest
	}
	if input.DemoURL != "" {
		evidence[domain.EvidenceDemo] = input.DemoURL
	}
	if input.Description != "" {
		evidence[domain.EvidenceDescription] = input.Description
	}
	if len(input.Files) > 0 {
		evidence[domain.EvidenceFiles] = input.Files
	}
	if input.TestsPass != nil {
		evidence[domain.EvidenceTestsPass] = *input.TestsPass
	}
	if input.Lighthouse != nil {
		evidence[domain.EvidenceLighthouse] = *input.Lighthouse
	}
	if len(input.Findings) > 0 {
		evidence[domain.EvidenceFindings] = input.Findings
	}

	bundle := domain.EvidenceBundle{
		TaskID:      task.ID,
		Contributor: input.Contributor,
		SubmittedAt: p.now().UTC().Format(time.RFC3339),
		Evidence:    evidence,
	}
	bundle.DeliverableChecks = checkDeliverables(task.Deliverables, bundle)
	return bundle
}

type deliverableKind int

const (
	kindSourceControl deliverableKind = iota
	kindDemo
	kindDocumentation
	kindCode
	kindGeneric
)

// classifyDeliverable buckets a free-text deliverable by keyword. Ties break
// toward the earlier bucket, so "demo PR walkthrough" counts as source
// control, not demo.
func classifyDeliverable(description string) deliverableKind {
	lower := strings.ToLower(description)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	hasWord := func(w string) bool {
		for _, candidate := range words {
			if candidate == w {
				return true
			}
		}
		return false
	}

	switch {
	case strings.Contains(lower, "github") || strings.Contains(lower, "pull request") || hasWord("pr"):
		return kindSourceControl
	case strings.Contains(lower, "demo") || hasWord("url"):
		return kindDemo
	case strings.Contains(lower, "documentation") || strings.Contains(lower, "readme") || strings.Contains(lower, "docs"):
		return kindDocumentation
	case strings.Contains(lower, "code") || strings.Contains(lower, "implementation") || strings.Contains(lower, "script"):
		return kindCode
	default:
		return kindGeneric
	}
}

var docSuffixes = []string{".md", ".rst", ".txt"}

var codeSuffixes = []string{".py", ".js", ".sol", ".go", ".rs", ".java", ".cpp"}

func checkDeliverables(deliverables []string, bundle domain.EvidenceBundle) []domain.DeliverableCheck {
	checks := make([]domain.DeliverableCheck, 0, len(deliverables))
	for i, description := range deliverables {
		check := domain.DeliverableCheck{
			Index:       i,
			Description: description,
			Status:      domain.DeliverableUnknown,
		}

		switch classifyDeliverable(description) {
		case kindSourceControl:
			if bundle.HasEvidence(domain.EvidencePullRequest) {
				check.Status = domain.DeliverableProvided
				check.EvidenceRef = domain.EvidencePullRequest
				check.Notes = append(check.Notes, "pull request linked")
			} else {
				check.Status = domain.DeliverableMissing
				check.Notes = append(check.Notes, "no pull request provided")
			}
		case kindDemo:
			if bundle.HasEvidence(domain.EvidenceDemo) {
				check.Status = domain.DeliverableProvided
				check.EvidenceRef = domain.EvidenceDemo
				check.Notes = append(check.Notes, "demo URL provided")
			} else {
				check.Status = domain.DeliverableMissing
				check.Notes = append(check.Notes, "no demo URL provided")
			}
		case kindDocumentation:
			docs := filesMatching(bundle.FileList(), docSuffixes, "doc")
			if docs > 0 {
				check.Status = domain.DeliverableProvided
				check.EvidenceRef = domain.EvidenceFiles
				check.Notes = append(check.Notes, fmt.Sprintf("found %d documentation files", docs))
			} else {
				check.Status = domain.DeliverableMissing
				check.Notes = append(check.Notes, "no documentation files found")
			}
		case kindCode:
			code := filesMatching(bundle.FileList(), codeSuffixes, "")
			if code > 0 {
				check.Status = domain.DeliverableProvided
				check.EvidenceRef = domain.EvidenceFiles
				check.Notes = append(check.Notes, fmt.Sprintf("found %d code files", code))
			} else {
				check.Status = domain.DeliverableMissing
				check.Notes = append(check.Notes, "no code files found")
			}
		default:
			if len(bundle.Evidence) > 0 {
				check.Status = domain.DeliverableProvided
				check.Notes = append(check.Notes, "general evidence provided")
			} else {
				check.Status = domain.DeliverableMissing
				check.Notes = append(check.Notes, "no evidence provided")
			}
		}
		checks = append(checks, check)
	}
	return checks
}

func filesMatching(files []domain.EvidenceFile, suffixes []string, pathHint string) int {
	count := 0
	for _, f := range files {
		lower := strings.ToLower(f.Path)
		matched := pathHint != "" && strings.Contains(lower, pathHint)
		for _, suffix := range suffixes {
			if strings.HasSuffix(lower, suffix) {
				matched = true
				break
			}
		}
		if matched {
			count++
		}
	}
	return count
}
