package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bountyd/internal/domain"
)

// Client is the JSON-over-HTTP ledger adapter. Every call carries the
// caller identity header and a bounded finality wait; exceeding the wait
// surfaces as context.DeadlineExceeded, which the settlement bridge treats
// as an unknown outcome.
type Client struct {
	baseURL     string
	callerID    string
	callTimeout time.Duration
	httpClient  *http.Client
}

func NewClient(baseURL, callerID string, callTimeout time.Duration, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ledger url is required")
	}
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		callerID:    callerID,
		callTimeout: callTimeout,
		httpClient:  httpClient,
	}, nil
}

func (c *Client) CreateTask(ctx context.Context, taskID, specCID string, bounty domain.Bounty) (domain.Receipt, error) {
	return c.call(ctx, "/v1/tasks", map[string]any{
		"task_id":  taskID,
		"spec_cid": specCID,
		"bounty":   bounty,
	})
}

func (c *Client) ClaimTask(ctx context.Context, taskID, claimer string) (domain.Receipt, error) {
	return c.call(ctx, c.taskPath(taskID, "claim"), map[string]any{"claimer": claimer})
}

func (c *Client) SubmitEvidence(ctx context.Context, taskID, evidenceCID string) (domain.Receipt, error) {
	return c.call(ctx, c.taskPath(taskID, "evidence"), map[string]any{"evidence_cid": evidenceCID})
}

func (c *Client) ReopenTask(ctx context.Context, taskID string) (domain.Receipt, error) {
	return c.call(ctx, c.taskPath(taskID, "reopen"), map[string]any{})
}

func (c *Client) ApproveTask(ctx context.Context, taskID, reportCID string) (domain.Receipt, error) {
	return c.call(ctx, c.taskPath(taskID, "approve"), map[string]any{"report_cid": reportCID})
}

func (c *Client) Payout(ctx context.Context, taskID string) (domain.Receipt, error) {
	return c.call(ctx, c.taskPath(taskID, "payout"), map[string]any{})
}

func (c *Client) GetTask(ctx context.Context, taskID string) (*domain.TaskView, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.taskPath(taskID, ""), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Caller-ID", c.callerID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportErr(ctx, err)
	}
	defer resp.Body.Close()
	if err := c.statusErr(resp); err != nil {
		return nil, err
	}

	var view domain.TaskView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("%w: decode task view: %v", domain.ErrUpstreamUnavailable, err)
	}
	return &view, nil
}

func (c *Client) call(ctx context.Context, path string, payload map[string]any) (domain.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-ID", c.callerID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Receipt{}, c.transportErr(ctx, err)
	}
	defer resp.Body.Close()
	if err := c.statusErr(resp); err != nil {
		return domain.Receipt{}, err
	}

	var receipt domain.Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: decode receipt: %v", domain.ErrUpstreamUnavailable, err)
	}
	return receipt, nil
}

func (c *Client) taskPath(taskID, action string) string {
	path := "/v1/tasks/" + url.PathEscape(taskID)
	if action != "" {
		path += "/" + action
	}
	return path
}

// transportErr distinguishes the bounded-wait expiry from plain
// connectivity failure; the bridge re-checks state only for the former.
func (c *Client) transportErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("ledger call exceeded %s: %w", c.callTimeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}

func (c *Client) statusErr(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: ledger task", domain.ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: ledger rejected transition", domain.ErrInvalidState)
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: ledger returned status %d: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}
