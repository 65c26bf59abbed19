package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"timed-quiz-service/internal/domain"
)

// Client talks to the quiz REST API and maps responses back onto domain errors.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL. A nil httpClient gets a 10s timeout client.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// LoginResult is the participant record plus the countdown the session should run.
type LoginResult struct {
	Participant domain.Participant
	Duration    time.Duration
}

func (c *Client) Login(ctx context.Context, participantID, displayName string) (LoginResult, error) {
	var resp struct {
		Participant domain.Participant `json:"participant"`
		Quiz        struct {
			DurationSeconds int64 `json:"durationSeconds"`
		} `json:"quiz"`
	}
	body := map[string]string{"id": participantID, "name": displayName}
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &resp); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Participant: resp.Participant,
		Duration:    time.Duration(resp.Quiz.DurationSeconds) * time.Second,
	}, nil
}

func (c *Client) CheckParticipant(ctx context.Context, participantID string) (domain.Status, bool, error) {
	var resp struct {
		Exists bool          `json:"exists"`
		Status domain.Status `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/check-participant/"+url.PathEscape(participantID), nil, &resp); err != nil {
		return "", false, err
	}
	return resp.Status, resp.Exists, nil
}

func (c *Client) Questions(ctx context.Context) ([]domain.PublicQuestion, error) {
	var questions []domain.PublicQuestion
	if err := c.do(ctx, http.MethodGet, "/api/questions", nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (c *Client) Submit(ctx context.Context, participantID string, answers map[string]string, isTimeout bool) (domain.SubmitResult, error) {
	var res domain.SubmitResult
	body := map[string]any{
		"participantId": participantID,
		"answers":       answers,
		"timeout":       isTimeout,
	}
	if err := c.do(ctx, http.MethodPost, "/api/submit", body, &res); err != nil {
		return domain.SubmitResult{}, err
	}
	return res, nil
}

func (c *Client) Disqualify(ctx context.Context, participantID string) error {
	return c.do(ctx, http.MethodPost, "/api/disqualify", map[string]string{"participantId": participantID}, nil)
}

type apiError struct {
	Error     string `json:"error"`
	Finalized bool   `json:"finalized"`
	Retryable bool   `json:"retryable"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.StorageFault(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return statusError(resp.StatusCode, apiErr)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func statusError(code int, apiErr apiError) error {
	msg := apiErr.Error
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch {
	case code == http.StatusConflict || apiErr.Finalized:
		return domain.ErrAlreadyFinalized
	case code == http.StatusBadRequest:
		return domain.Invalid("request", msg)
	case code == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	case code == http.StatusServiceUnavailable || apiErr.Retryable:
		return domain.StorageFault("server", errors.New(msg))
	default:
		return fmt.Errorf("unexpected status %d: %s", code, msg)
	}
}
