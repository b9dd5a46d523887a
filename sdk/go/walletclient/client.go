// Package walletclient is a small Go client for the passkey wallet HTTP API.
package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the REST endpoints under /api/v1.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Wallet describes the session wallet.
type Wallet struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Network   string `json:"network"`
}

// Balance carries a balance in MIST and SUI.
type Balance struct {
	Address string `json:"address"`
	Mist    string `json:"mist"`
	SUI     string `json:"sui"`
}

// TransferRequest names the recipient (alias or address) and SUI amount of
// a new draft.
type TransferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// Draft describes a created, unsigned transaction.
type Draft struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Amount    string    `json:"amount"`
	Mist      string    `json:"mist"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"createdAt"`
}

// Broadcast describes a sent transaction.
type Broadcast struct {
	Digest   string    `json:"digest"`
	Status   string    `json:"status"`
	Explorer string    `json:"explorer"`
	SentAt   time.Time `json:"sentAt"`
}

// Outcome is the result recorded for a finished command.
type Outcome struct {
	Intent    string `json:"intent,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Balance   string `json:"balance,omitempty"`
	TxDigest  string `json:"tx_digest,omitempty"`
	Explorer  string `json:"explorer,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Command is a queued natural-language command.
type Command struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Status    string  `json:"status"`
	Attempts  int     `json:"attempts"`
	ErrorCode string  `json:"error_code,omitempty"`
	Outcome   Outcome `json:"outcome"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

// Finished reports whether the command reached a terminal status.
func (c Command) Finished() bool {
	return c.Status == "succeeded" || c.Status == "failed"
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Feedback   string `json:"feedback,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("wallet api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("wallet api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient returns a client for the API rooted at rawURL, for example
// "http://localhost:8080/api/v1".
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// LoadWallet recovers the passkey held by the server.
func (c *Client) LoadWallet(ctx context.Context) (Wallet, error) {
	var out Wallet
	err := c.call(ctx, http.MethodPost, "/wallet/load", nil, &out)
	return out, err
}

// CreateWallet registers a passkey on the server.
func (c *Client) CreateWallet(ctx context.Context) (Wallet, error) {
	var out Wallet
	err := c.call(ctx, http.MethodPost, "/wallet", nil, &out)
	return out, err
}

// Balance refreshes the wallet balance.
func (c *Client) Balance(ctx context.Context) (Balance, error) {
	var out Balance
	err := c.call(ctx, http.MethodGet, "/wallet/balance", nil, &out)
	return out, err
}

// CreateTransaction builds a draft, replacing any earlier one.
func (c *Client) CreateTransaction(ctx context.Context, req TransferRequest) (Draft, error) {
	var out Draft
	err := c.call(ctx, http.MethodPost, "/transactions", req, &out)
	return out, err
}

// SignTransaction signs the current draft.
func (c *Client) SignTransaction(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/transactions/sign", nil, nil)
}

// SendTransaction broadcasts the signed draft.
func (c *Client) SendTransaction(ctx context.Context) (Broadcast, error) {
	var out Broadcast
	err := c.call(ctx, http.MethodPost, "/transactions/send", nil, &out)
	return out, err
}

// SubmitCommand queues a natural-language command. A non-empty id makes the
// submission idempotent.
func (c *Client) SubmitCommand(ctx context.Context, id, text string) (Command, error) {
	var out Command
	body := map[string]string{"text": text}
	if id != "" {
		body["id"] = id
	}
	err := c.call(ctx, http.MethodPost, "/commands", body, &out)
	return out, err
}

// GetCommand fetches a command by id.
func (c *Client) GetCommand(ctx context.Context, id string) (Command, error) {
	var out Command
	err := c.call(ctx, http.MethodGet, "/commands/"+url.PathEscape(id), nil, &out)
	return out, err
}

// WaitCommand polls until the command finishes or ctx is done.
func (c *Client) WaitCommand(ctx context.Context, id string, interval time.Duration) (Command, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		cmd, err := c.GetCommand(ctx, id)
		if err != nil {
			return Command{}, err
		}
		if cmd.Finished() {
			return cmd, nil
		}
		select {
		case <-ctx.Done():
			return cmd, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) call(ctx context.Context, method, endpoint string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(rel).String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: apiErr})
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
