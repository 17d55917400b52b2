package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bountyd/internal/domain"
	"bountyd/internal/infra/crypto"
	"bountyd/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type claimRequest struct {
	Claimer string `json:"claimer"`
}

type submitRequest struct {
	Claimer     string                 `json:"claimer"`
	PullRequest *domain.PullRequestRef `json:"github_pr,omitempty"`
	DemoURL     string                 `json:"demo_url,omitempty"`
	Description string                 `json:"description,omitempty"`
	Files       []domain.EvidenceFile  `json:"files,omitempty"`
	TestsPass   *bool                  `json:"tests_passing,omitempty"`
	Lighthouse  *float64               `json:"lighthouse_score,omitempty"`
	Findings    []string               `json:"security_findings,omitempty"`
}

type submitResponse struct {
	Task         taskResponse              `json:"task"`
	EvidenceCID  string                    `json:"evidence_cid"`
	Deliverables []domain.DeliverableCheck `json:"deliverable_checks"`
}

type payoutRequest struct {
	Claimer string `json:"claimer"`
}

type taskResponse struct {
	TaskID            string          `json:"task_id"`
	Title             string          `json:"title"`
	Category          string          `json:"category"`
	Bounty            domain.Bounty   `json:"bounty"`
	Deliverables      []string        `json:"deliverables,omitempty"`
	DefinitionOfDone  []string        `json:"definition_of_done,omitempty"`
	Requirements      map[string]bool `json:"evidence_requirements,omitempty"`
	Status            string          `json:"status"`
	Claimer           string          `json:"claimer,omitempty"`
	EvidenceCID       string          `json:"evidence_cid,omitempty"`
	VerifierReportCID string          `json:"verifier_report_cid,omitempty"`
	CreatedAt         string          `json:"created_at,omitempty"`
	ClaimDeadline     string          `json:"claim_deadline,omitempty"`
	SubmitDeadline    string          `json:"submit_deadline,omitempty"`
}

type reportResponse struct {
	Report         domain.VerificationReport `json:"report"`
	SignatureValid bool                      `json:"signature_valid"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var spec domain.TaskSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	task, err := s.lifecycle.Create(c.Request.Context(), spec)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildTaskResponse(task))
}

func (s *Server) handleListTasks(c *gin.Context) {
	status := domain.TaskStatus(c.DefaultQuery("status", string(domain.StatusOpen)))
	tasks, err := s.lifecycle.ListByStatus(c.Request.Context(), status)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, buildTaskResponse(task))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.lifecycle.Get(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildTaskResponse(task))
}

func (s *Server) handleClaimTask(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	task, err := s.lifecycle.Claim(c.Request.Context(), c.Param("task_id"), req.Claimer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildTaskResponse(task))
}

// handleSubmitEvidence packages the contributor's references into a bundle,
// publishes it, and records the CID on the task. The deliverable checklist
// goes back in the response so a rejected submission is actionable.
func (s *Server) handleSubmitEvidence(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}

	task, err := s.lifecycle.Get(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	bundle := s.packager.Package(task, usecase.PackageInput{
		Contributor: req.Claimer,
		PullRequest: req.PullRequest,
		DemoURL:     req.DemoURL,
		Description: req.Description,
		Files:       req.Files,
		TestsPass:   req.TestsPass,
		Lighthouse:  req.Lighthouse,
		Findings:    req.Findings,
	})
	raw, err := crypto.MarshalBundle(bundle)
	if err != nil {
		writeError(c, err)
		return
	}
	evidenceCID, err := s.store.Put(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}

	task, err = s.lifecycle.Submit(c.Request.Context(), task.ID, req.Claimer, evidenceCID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, submitResponse{
		Task:         buildTaskResponse(task),
		EvidenceCID:  evidenceCID,
		Deliverables: bundle.DeliverableChecks,
	})
}

func (s *Server) handlePayout(c *gin.Context) {
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	task, err := s.lifecycle.Payout(c.Request.Context(), c.Param("task_id"), req.Claimer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildTaskResponse(task))
}

func (s *Server) handleReopen(c *gin.Context) {
	task, err := s.lifecycle.Reopen(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildTaskResponse(task))
}

func (s *Server) handleGetReport(c *gin.Context) {
	raw, err := s.store.Get(c.Request.Context(), c.Param("cid"))
	if err != nil {
		writeError(c, err)
		return
	}
	var report domain.VerificationReport
	if err := json.Unmarshal(raw, &report); err != nil {
		writeErrorCode(c, http.StatusBadGateway, "INVALID_REPORT", "stored blob is not a verification report")
		return
	}
	c.JSON(http.StatusOK, reportResponse{
		Report:         report,
		SignatureValid: crypto.VerifyReport(report) == nil,
	})
}

func buildTaskResponse(task domain.Task) taskResponse {
	out := taskResponse{
		TaskID:            task.ID,
		Title:             task.Title,
		Category:          string(task.Category),
		Bounty:            task.Bounty,
		Deliverables:      task.Deliverables,
		DefinitionOfDone:  task.DefinitionOfDone,
		Requirements:      task.EvidenceRequirements,
		Status:            string(task.Status),
		Claimer:           task.Claimer,
		EvidenceCID:       task.EvidenceCID,
		VerifierReportCID: task.VerifierReportCID,
	}
	if !task.CreatedAt.IsZero() {
		out.CreatedAt = task.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !task.ClaimDeadline.IsZero() {
		out.ClaimDeadline = task.ClaimDeadline.UTC().Format(time.RFC3339)
	}
	if !task.SubmitDeadline.IsZero() {
		out.SubmitDeadline = task.SubmitDeadline.UTC().Format(time.RFC3339)
	}
	return out
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidSpec):
		status, code = http.StatusBadRequest, "INVALID_SPEC"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusForbidden, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrDeadlineExceeded):
		status, code = http.StatusConflict, "DEADLINE_EXCEEDED"
	case errors.Is(err, domain.ErrInvalidState):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status, code = http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
