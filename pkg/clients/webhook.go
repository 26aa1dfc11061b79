// Package clients provides the production implementations of the engine's
// collaborator contracts: the CRM record store, the outbound webhook caller
// and the notification senders.
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
)

const defaultWebhookTimeout = 30 * time.Second

// HTTPWebhookCaller delivers workflow webhook steps over HTTP. Responses of
// 5xx and network failures are reported as transient so the engine retries
// them; 4xx responses are permanent rejections.
type HTTPWebhookCaller struct {
	client *http.Client
}

func NewHTTPWebhookCaller() *HTTPWebhookCaller {
	return &HTTPWebhookCaller{
		client: &http.Client{Timeout: defaultWebhookTimeout},
	}
}

func (w *HTTPWebhookCaller) Call(ctx context.Context, url, method string, body []byte) error {
	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return &protocol.PermanentDeliveryError{Err: fmt.Errorf("failed to build webhook request: %w", err)}
	}

	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return &protocol.TransientDeliveryError{Err: err}
	}

	defer func() { _ = resp.Body.Close() }()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return &protocol.TransientDeliveryError{Err: fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return &protocol.PermanentDeliveryError{Err: fmt.Errorf("webhook endpoint rejected call with %d", resp.StatusCode)}
	default:
		return nil
	}
}
