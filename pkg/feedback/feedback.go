// Package feedback asks the interview backend to start generating feedback
// for a finished session.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/internal/httpc"
)

// Status values the backend reports.
const (
	StatusSuccess           = "success"
	StatusAlreadyProcessing = "already_processing"
	StatusExists            = "exists"
)

// ErrNoSession is returned when Trigger is called without a session id.
var ErrNoSession = errors.New("feedback: empty session id")

// Result is the backend's answer.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Notification returns the line shown to the user.
func (r *Result) Notification() string {
	switch r.Status {
	case StatusSuccess:
		return "Interview complete. Your feedback is being generated."
	case StatusAlreadyProcessing:
		return "Your feedback is already being generated."
	case StatusExists:
		return "Feedback for this interview is ready."
	}
	if r.Message != "" {
		return r.Message
	}
	return fmt.Sprintf("Feedback request returned %q.", r.Status)
}

// UpstreamError reports a failed feedback request.
type UpstreamError struct {
	SessionID  string
	StatusCode int // 0 when no response arrived
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("feedback: session %s: http %d: %v", e.SessionID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("feedback: session %s: %v", e.SessionID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstreamError returns true if err is or wraps an UpstreamError.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// Client calls the feedback endpoint. Requests are never retried.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the backend at baseURL. A nil httpClient
// uses the shared httpc client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger.With("component", "feedback"),
	}
}

// Trigger starts feedback generation for sessionID.
func (c *Client) Trigger(ctx context.Context, sessionID string) (*Result, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	endpoint := fmt.Sprintf("%s/interview_call/%s/live_feedback", c.baseURL, url.PathEscape(sessionID))
	resp, err := httpc.PostJSON(ctx, c.http, endpoint, nil)
	if err != nil {
		return nil, &UpstreamError{SessionID: sessionID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, &UpstreamError{SessionID: sessionID, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &UpstreamError{SessionID: sessionID, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &UpstreamError{SessionID: sessionID, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.Status == "" {
		return nil, &UpstreamError{SessionID: sessionID, StatusCode: resp.StatusCode, Err: errors.New("response has no status")}
	}

	c.logger.Info("feedback requested", "session", sessionID, "status", result.Status)
	return &result, nil
}
