package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dosewatch/adherence-api/internal/model"
)

// pushTransport posts the payload to the device-registered push address.
// The push service itself is an opaque delivery capability; the only
// contract this side cares about is that 404/410 mean the registration
// is dead.
type pushTransport struct {
	client *http.Client
}

func NewPushTransport(timeout time.Duration) Transport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &pushTransport{
		client: &http.Client{Timeout: timeout},
	}
}

func (t *pushTransport) Kind() model.EndpointKind {
	return model.EndpointKindPush
}

func (t *pushTransport) Send(ctx context.Context, endpoint *model.NotificationEndpoint, payload *model.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.Address, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("push delivery failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrEndpointGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}
