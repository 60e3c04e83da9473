package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BearBump/PayTrack/internal/broker/messages"
	"github.com/pkg/errors"
)

// Client POSTs messages.SessionVerified as JSON to a fulfillment endpoint.
type Client struct {
	url   string
	httpc *http.Client
}

func New(url string) *Client {
	return &Client{
		url: url,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Notify(ctx context.Context, sessionID, receiptID string, metadata map[string]any) error {
	body, err := json.Marshal(messages.SessionVerified{
		SessionID:  sessionID,
		ReceiptID:  receiptID,
		Metadata:   metadata,
		VerifiedAt: time.Now().UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", sessionID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("fulfillment webhook http %d", resp.StatusCode)
	}
	return nil
}
