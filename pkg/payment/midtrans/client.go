package midtrans

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client represents a Midtrans Core API client
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Midtrans client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Create HTTP client with reasonable timeout
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() Config {
	return c.config
}

// Charge creates a bank-transfer (virtual account) transaction
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	if req.PaymentType == "" {
		req.PaymentType = "bank_transfer"
	}
	if req.BankTransfer.Bank == "" {
		req.BankTransfer.Bank = "bca"
	}

	body, err := c.doRequest(ctx, http.MethodPost, "charge", req)
	if err != nil {
		return nil, fmt.Errorf("failed to make charge request: %w", err)
	}

	var chargeResp ChargeResponse
	if err := json.Unmarshal(body, &chargeResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal charge response: %w", err)
	}

	return &chargeResp, nil
}

// TransactionStatus fetches the current status of an order. Used for manual
// reconciliation when a webhook is missed.
func (c *Client) TransactionStatus(ctx context.Context, orderID string) (*StatusResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/status", orderID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to make status request: %w", err)
	}

	var statusResp StatusResponse
	if err := json.Unmarshal(body, &statusResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status response: %w", err)
	}

	return &statusResp, nil
}

// VerifySignature checks a webhook notification signature.
// Midtrans signs notifications as hex(SHA-512(order_id + status_code +
// gross_amount + server_key)). An attacker without the server key cannot
// produce a valid signature, so this is the webhook's security boundary.
func (c *Client) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	payload := orderID + statusCode + grossAmount + c.config.ServerKey
	sum := sha512.Sum512([]byte(payload))
	expected := hex.EncodeToString(sum[:])

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureKey)) == 1
}

// doRequest performs an HTTP request to the Midtrans Core API
func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	url := fmt.Sprintf("%s/%s", c.config.BaseURL, endpoint)

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Core API uses Basic auth with the server key as username, empty password
	auth := base64.StdEncoding.EncodeToString([]byte(c.config.ServerKey + ":"))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
		}

		errorMsg := fmt.Sprintf("Midtrans API error - Status: %d, Code: %s, Message: %s",
			resp.StatusCode, errResp.StatusCode, errResp.StatusMessage)

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, errorMsg)
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, errorMsg)
		case http.StatusBadRequest:
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, errorMsg)
		default:
			return nil, fmt.Errorf("%w: %s", ErrChargeFailed, errorMsg)
		}
	}

	// Core API reports some failures with HTTP 200 and an error status_code
	var probe struct {
		StatusCode string `json:"status_code"`
	}
	if err := json.Unmarshal(body, &probe); err == nil {
		switch probe.StatusCode {
		case "401":
			return nil, fmt.Errorf("%w: status_code %s", ErrUnauthorized, probe.StatusCode)
		case "404":
			return nil, fmt.Errorf("%w: status_code %s", ErrTransactionNotFound, probe.StatusCode)
		}
	}

	return body, nil
}
