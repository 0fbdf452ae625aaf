package outbox

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
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

// ErrSubjectNotFound is returned when the registry has no version for a subject.
var ErrSubjectNotFound = errors.New("schema subject not found")

// RegistryError is a non-2xx answer from the schema registry.
type RegistryError struct {
	Status int
	Body   string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("schema registry: %d: %s", e.Status, e.Body)
}

// SchemaRegistryClient looks up and registers the JSON schemas of activity events.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSchemaRegistryClient constructs a client for the registry at baseURL.
func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureSchema returns the id of the latest version of subject, registering
// schema first when the subject does not exist yet.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	id, err := c.latestID(ctx, subject)
	if errors.Is(err, ErrSubjectNotFound) {
		return c.register(ctx, subject, schema)
	}
	return id, err
}

func (c *SchemaRegistryClient) latestID(ctx context.Context, subject string) (int, error) {
	id, err := c.call(ctx, http.MethodGet, subjectPath(subject, "versions/latest"), nil)
	var regErr *RegistryError
	if errors.As(err, &regErr) && regErr.Status == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %s", ErrSubjectNotFound, subject)
	}
	return id, err
}

func (c *SchemaRegistryClient) register(ctx context.Context, subject string, schema string) (int, error) {
	body, err := json.Marshal(map[string]string{
		"schemaType": "JSON",
		"schema":     schema,
	})
	if err != nil {
		return 0, err
	}
	id, err := c.call(ctx, http.MethodPost, subjectPath(subject, "versions"), body)
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", subject, err)
	}
	return id, nil
}

// call sends a request and decodes the {"id": n} answer both endpoints share.
func (c *SchemaRegistryClient) call(ctx context.Context, method, path string, body []byte) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", registryContentType)
	if body != nil {
		req.Header.Set("Content-Type", registryContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &RegistryError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode registry response: %w", err)
	}
	return payload.ID, nil
}

func subjectPath(subject, suffix string) string {
	return "/subjects/" + url.PathEscape(subject) + "/" + suffix
}
