// Package client is a thin HTTP client for the footprint activities API.
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

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/api"
)

const activitiesPath = "/api/activities"

// Client wraps HTTP calls to the footprint API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a Client from a base URL (e.g. http://localhost:8080) and bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is returned when the server sends a non-2xx status.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Type, e.Message)
}

// IsStatus reports whether err is an APIError carrying status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// ListActivities returns the caller's activities.
func (c *Client) ListActivities(ctx context.Context) ([]api.ActivityView, error) {
	var out []api.ActivityView
	if err := c.do(ctx, http.MethodGet, activitiesPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateActivity records a new activity for the caller.
func (c *Client) CreateActivity(ctx context.Context, req api.ActivityRequest) (api.ActivityView, error) {
	var out api.ActivityView
	err := c.do(ctx, http.MethodPost, activitiesPath, req, &out)
	return out, err
}

// UpdateActivity sends a partial update; nil fields are omitted from the body.
func (c *Client) UpdateActivity(ctx context.Context, id string, req api.ActivityRequest) (api.ActivityView, error) {
	var out api.ActivityView
	err := c.do(ctx, http.MethodPut, activityPath(id), updateBody(req), &out)
	return out, err
}

// DeleteActivity removes an activity and returns the server's confirmation message.
func (c *Client) DeleteActivity(ctx context.Context, id string) (string, error) {
	var out api.MessageResponse
	if err := c.do(ctx, http.MethodDelete, activityPath(id), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func activityPath(id string) string {
	return activitiesPath + "/" + url.PathEscape(id)
}

// updateBody drops unset fields so the server sees only what the user changed.
func updateBody(req api.ActivityRequest) map[string]interface{} {
	body := map[string]interface{}{}
	if req.ActivityType != nil {
		body["activityType"] = *req.ActivityType
	}
	if req.Quantity != nil {
		body["quantity"] = *req.Quantity
	}
	if req.Unit != nil {
		body["unit"] = *req.Unit
	}
	if req.Date != nil {
		body["date"] = *req.Date
	}
	if req.Deadline != nil {
		body["deadline"] = *req.Deadline
	}
	return body
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp api.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Message != "" {
			return &APIError{Status: resp.StatusCode, Type: errResp.Type, Message: errResp.Message}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
