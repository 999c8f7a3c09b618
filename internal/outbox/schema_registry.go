package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SchemaRegistryClient registers and resolves JSON schemas against a
// Confluent-compatible registry.
type SchemaRegistryClient struct {
	baseURL string
	client  *http.Client
}

// NewSchemaRegistryClient builds a client for the registry at baseURL.
func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureSchema returns the registry ID for subject, registering the schema
// when the subject has no versions yet.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	if id, err := c.schemaID(ctx, http.MethodGet, "/subjects/"+subject+"/versions/latest", nil); err == nil {
		return id, nil
	}

	body, err := json.Marshal(map[string]string{
		"schemaType": "JSON",
		"schema":     schema,
	})
	if err != nil {
		return 0, err
	}
	return c.schemaID(ctx, http.MethodPost, "/subjects/"+subject+"/versions", body)
}

func (c *SchemaRegistryClient) schemaID(ctx context.Context, method, path string, body []byte) (int, error) {
	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.schemaregistry.v1+json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, fmt.Errorf("schema registry: %s %s returned %d: %s", method, path, resp.StatusCode, detail)
	}

	var out struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.ID, nil
}
