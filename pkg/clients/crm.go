package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

const defaultCRMTimeout = 15 * time.Second

// CRMClient reads and writes CRM records over the practice API. It implements
// protocol.RecordStore against endpoints of the form /api/records/{type}/{id}.
type CRMClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewCRMClient(baseURL, apiKey string) *CRMClient {
	return &CRMClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultCRMTimeout},
	}
}

func (c *CRMClient) GetRecord(ctx context.Context, objectType models.ObjectType, id string) (map[string]any, error) {
	var fields map[string]any

	url := fmt.Sprintf("%s/api/records/%s/%s", c.baseURL, objectType, id)
	if err := c.do(ctx, http.MethodGet, url, nil, &fields); err != nil {
		return nil, fmt.Errorf("failed to fetch %s record %s: %w", objectType, id, err)
	}

	return fields, nil
}

func (c *CRMClient) UpdateField(ctx context.Context, objectType models.ObjectType, id, field string, value any) error {
	url := fmt.Sprintf("%s/api/records/%s/%s", c.baseURL, objectType, id)

	payload := map[string]any{field: value}
	if err := c.do(ctx, http.MethodPatch, url, payload, nil); err != nil {
		return fmt.Errorf("failed to update field %q on %s record %s: %w", field, objectType, id, err)
	}

	return nil
}

func (c *CRMClient) CreateRecord(ctx context.Context, objectType models.ObjectType, fields map[string]any) (string, error) {
	url := fmt.Sprintf("%s/api/records/%s", c.baseURL, objectType)

	var created struct {
		ID string `json:"id"`
	}

	if err := c.do(ctx, http.MethodPost, url, fields, &created); err != nil {
		return "", fmt.Errorf("failed to create %s record: %w", objectType, err)
	}

	return created.ID, nil
}

func (c *CRMClient) do(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("CRM API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
