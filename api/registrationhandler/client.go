package registrationhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/device-key-registration/api"
)

// StatusError is returned by the client for non-200 responses.
type StatusError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("registration server returned %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("registration server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a registration server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, for example
// "http://127.0.0.1:3000". A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Register posts a wire-form public key and returns the encrypted secret.
func (c *Client) Register(ctx context.Context, publicKeyWire string) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.post(ctx, "/register", api.RegisterRequest{PublicKeyBase64: publicKeyWire}, &resp); err != nil {
		return nil, err
	}
	if resp.EncryptedBase64 == "" {
		return nil, fmt.Errorf("registration response has no encryptedBase64")
	}
	return &resp, nil
}

// TestConfigs requests the diagnostic encryption sweep.
func (c *Client) TestConfigs(ctx context.Context, publicKeyWire string) (*api.TestConfigsResponse, error) {
	var resp api.TestConfigsResponse
	if err := c.post(ctx, "/test-configs", api.RegisterRequest{PublicKeyBase64: publicKeyWire}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach registration server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errResp api.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			statusErr.Message = errResp.Error
			statusErr.Detail = errResp.Detail
		}
		return statusErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}
