// Package whatsapp is the outbound WhatsApp Business Cloud API client.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentSends bounds parallelism for batch delivery.
const maxConcurrentSends = 4

// Credentials is the per-tenant Cloud API access, stored sealed and decrypted
// at dispatch time.
type Credentials struct {
	AccessToken   string `json:"access_token"`
	PhoneNumberID string `json:"phone_number_id"`
}

// Client sends text messages through the Cloud API messages endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client against the given API base
// (e.g. https://graph.facebook.com/v19.0).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// outboundPayload mirrors the Cloud API text-message request body.
type outboundPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText delivers one text message to a phone number.
func (c *Client) SendText(ctx context.Context, creds Credentials, to, text string) error {
	payload := outboundPayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
	}
	payload.Text.Body = text

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, creds.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp delivery to %s failed: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
		return fmt.Errorf("whatsapp API error (status %d, code %d): %s", resp.StatusCode, ae.Error.Code, ae.Error.Message)
	}
	return fmt.Errorf("whatsapp API error: status %d", resp.StatusCode)
}

// BatchItem is one message of a batch send.
type BatchItem struct {
	To   string
	Text string
}

// BatchResult reports the per-item outcome of a batch send.
type BatchResult struct {
	To      string
	Success bool
	Err     error
}

// SendBatch delivers messages concurrently and reports per-item results in
// input order. A batch can partially succeed; the caller decides what to
// persist per item.
func (c *Client) SendBatch(ctx context.Context, creds Credentials, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSends)
	for i, item := range items {
		i, item := i, item // per-iteration copies for pre-1.22 loop semantics
		g.Go(func() error {
			err := c.SendText(gctx, creds, item.To, item.Text)
			results[i] = BatchResult{To: item.To, Success: err == nil, Err: err}
			return nil // per-item errors are data, not batch failure
		})
	}
	_ = g.Wait()
	return results
}
