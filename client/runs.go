// Package client is the HTTP client for the splflow run history API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Run is a recorded execution of the token flow.
type Run struct {
	ID                 string     `json:"id"`
	Status             string     `json:"status"`
	RPCURL             string     `json:"rpc_url"`
	Signer             string     `json:"signer"`
	Receiver           string     `json:"receiver"`
	Mint               string     `json:"mint"`
	Decimals           uint8      `json:"decimals"`
	Supply             uint64     `json:"supply"`
	SignerATA          *string    `json:"signer_ata,omitempty"`
	ReceiverATA        *string    `json:"receiver_ata,omitempty"`
	ReceiverATACreated *bool      `json:"receiver_ata_created,omitempty"`
	SignerBalance      *uint64    `json:"signer_balance,omitempty"`
	ReceiverBalance    *uint64    `json:"receiver_balance,omitempty"`
	Error              *string    `json:"error,omitempty"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Steps              []Step     `json:"steps,omitempty"`
}

// Step is one recorded step of a run.
type Step struct {
	Step       string        `json:"step"`
	Status     string        `json:"status"`
	Signature  *string       `json:"signature,omitempty"`
	Account    *string       `json:"account,omitempty"`
	Amount     *uint64       `json:"amount,omitempty"`
	Detail     *string       `json:"detail,omitempty"`
	Duration   time.Duration `json:"duration"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// StartedRun identifies a run started as a workflow.
type StartedRun struct {
	RunID         string `json:"run_id"`
	WorkflowID    string `json:"workflow_id"`
	TemporalRunID string `json:"temporal_run_id"`
}

// Client is the HTTP client for the run history API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new run history API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// StartRun asks the server to start the flow as a workflow. An empty runID
// lets the server generate one; a zero transferAmount uses the worker's amount.
func (c *Client) StartRun(ctx context.Context, runID string, transferAmount uint64) (*StartedRun, error) {
	body, err := json.Marshal(map[string]interface{}{
		"run_id":          runID,
		"transfer_amount": transferAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/runs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var started StartedRun
	if err := c.do(req, http.StatusAccepted, &started); err != nil {
		return nil, err
	}

	c.logger.Debug("run started", "run_id", started.RunID, "workflow_id", started.WorkflowID)
	return &started, nil
}

// GetRun retrieves a run and its steps.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	u := fmt.Sprintf("%s/api/v1/runs/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var run Run
	if err := c.do(req, http.StatusOK, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns retrieves recorded runs, newest first. A zero limit uses the
// server default.
func (c *Client) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	u := c.baseURL + "/api/v1/runs"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var response struct {
		Runs []*Run `json:"runs"`
	}
	if err := c.do(req, http.StatusOK, &response); err != nil {
		return nil, err
	}
	return response.Runs, nil
}

// do sends req and decodes the body into out when the status matches.
func (c *Client) do(req *http.Request, wantStatus int, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
