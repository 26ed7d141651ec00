// Package trace records agent and evaluation runs to the LangSmith platform.
// LangSmith has no Go SDK, so this is a minimal client for the run and
// feedback endpoints of its REST API.
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const DefaultBaseURL = "https://api.smith.langchain.com"

// Client posts runs to a LangSmith tracing project. A client with an empty
// API key is disabled: every method is a no-op, so callers never need to
// branch on whether tracing is configured.
type Client struct {
	APIKey     string
	Project    string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(apiKey, project string, logger *slog.Logger) *Client {
	return &Client{
		APIKey:     apiKey,
		Project:    project,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.APIKey != ""
}

// Run is a handle to a started run.
type Run struct {
	ID   uuid.UUID
	Name string
}

type runPayload struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name,omitempty"`
	RunType     string         `json:"run_type,omitempty"`
	SessionName string         `json:"session_name,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartTime   string         `json:"start_time,omitempty"`
	EndTime     string         `json:"end_time,omitempty"`
}

// StartRun creates a run in the tracing project and returns its handle.
// Returns a nil handle when tracing is disabled.
func (c *Client) StartRun(ctx context.Context, name string, inputs map[string]any) (*Run, error) {
	if !c.Enabled() {
		return nil, nil
	}

	run := &Run{ID: uuid.New(), Name: name}
	payload := runPayload{
		ID:          run.ID.String(),
		Name:        name,
		RunType:     "chain",
		SessionName: c.Project,
		Inputs:      inputs,
		StartTime:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := c.post(ctx, http.MethodPost, "/runs", payload); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// EndRun records the outputs (or the error) of a run. Safe to call with a
// nil run, which happens when tracing is disabled.
func (c *Client) EndRun(ctx context.Context, run *Run, outputs map[string]any, runErr error) error {
	if !c.Enabled() || run == nil {
		return nil
	}

	payload := runPayload{
		Outputs: outputs,
		EndTime: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if runErr != nil {
		payload.Error = runErr.Error()
	}
	if err := c.post(ctx, http.MethodPatch, "/runs/"+run.ID.String(), payload); err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	return nil
}

type feedbackPayload struct {
	RunID   string  `json:"run_id"`
	Key     string  `json:"key"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment,omitempty"`
}

// AddFeedback attaches a score to a run, e.g. the judge's correctness grade.
func (c *Client) AddFeedback(ctx context.Context, run *Run, key string, score float64, comment string) error {
	if !c.Enabled() || run == nil {
		return nil
	}

	payload := feedbackPayload{
		RunID:   run.ID.String(),
		Key:     key,
		Score:   score,
		Comment: comment,
	}
	if err := c.post(ctx, http.MethodPost, "/feedback", payload); err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, method, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
