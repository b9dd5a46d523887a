// Package faucet requests test tokens for an address from a Sui faucet.
package faucet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrRateLimited is returned when the faucet refuses more requests.
var ErrRateLimited = errors.New("faucet rate limit reached, try again later")

// Faucet funds an address with test tokens.
type Faucet interface {
	RequestTokens(ctx context.Context, recipient string) error
}

// Client talks to the faucet HTTP endpoint.
type Client struct {
	host       string
	httpClient *http.Client
}

// NewClient creates a faucet client for host, e.g. https://faucet.testnet.sui.io.
func NewClient(host string, timeout time.Duration) (*Client, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return nil, errors.New("faucet host is not configured for this network")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{host: host, httpClient: &http.Client{Timeout: timeout}}, nil
}

type gasRequest struct {
	FixedAmountRequest struct {
		Recipient string `json:"recipient"`
	} `json:"FixedAmountRequest"`
}

type gasResponse struct {
	TransferredGasObjects []struct {
		Amount           uint64 `json:"amount"`
		ID               string `json:"id"`
		TransferTxDigest string `json:"transferTxDigest"`
	} `json:"transferredGasObjects"`
	Error *string `json:"error"`
}

// RequestTokens asks the faucet to send a fixed amount to recipient.
func (c *Client) RequestTokens(ctx context.Context, recipient string) error {
	var body gasRequest
	body.FixedAmountRequest.Recipient = recipient
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode faucet request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/gas", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build faucet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("faucet request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("faucet returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded gasResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode faucet response: %w", err)
	}
	if decoded.Error != nil && *decoded.Error != "" {
		return fmt.Errorf("faucet error: %s", *decoded.Error)
	}
	return nil
}

var _ Faucet = (*Client)(nil)
