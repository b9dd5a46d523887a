package suirpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"PasskeyWallet/internal/ledger"
	"PasskeyWallet/internal/sui"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

const (
	coinsPageSize = 50
	// requestType asks the full node to wait until effects are applied
	// locally so the follow-up balance refresh observes them.
	requestType = "WaitForLocalExecution"
)

// Config describes how to construct a Sui JSON-RPC client.
type Config struct {
	Name     string
	RPCURL   string
	Explorer string
}

// Client implements ledger.Client over the Sui full node JSON-RPC API.
type Client struct {
	name     string
	explorer string
	rpc      *gethrpc.Client
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("sui rpc url is not configured")
	}
	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial sui node: %w", err)
	}
	return NewFromRPC(cfg, rpcClient), nil
}

// NewFromRPC wraps an existing RPC connection.
func NewFromRPC(cfg Config, rpcClient *gethrpc.Client) *Client {
	explorer := cfg.Explorer
	if explorer == "" {
		explorer = cfg.Name
	}
	return &Client{name: cfg.Name, explorer: explorer, rpc: rpcClient}
}

// Network returns the explorer network name.
func (c *Client) Network() string {
	return c.explorer
}

type balanceResponse struct {
	CoinType        string `json:"coinType"`
	CoinObjectCount int    `json:"coinObjectCount"`
	TotalBalance    string `json:"totalBalance"`
}

// GetBalance returns the total SUI balance of owner in MIST.
func (c *Client) GetBalance(ctx context.Context, owner string) (*big.Int, error) {
	var resp balanceResponse
	if err := c.rpc.CallContext(ctx, &resp, "suix_getBalance", owner, sui.CoinType); err != nil {
		return nil, fmt.Errorf("suix_getBalance: %w", err)
	}
	total, ok := new(big.Int).SetString(resp.TotalBalance, 10)
	if !ok {
		return nil, fmt.Errorf("suix_getBalance: malformed totalBalance %q", resp.TotalBalance)
	}
	return total, nil
}

type coinPage struct {
	Data []struct {
		CoinType     string `json:"coinType"`
		CoinObjectID string `json:"coinObjectId"`
		Version      string `json:"version"`
		Digest       string `json:"digest"`
		Balance      string `json:"balance"`
	} `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// GetCoins lists the coins of coinType owned by owner, following pagination
// until the gas payment limit is reached.
func (c *Client) GetCoins(ctx context.Context, owner, coinType string) ([]ledger.Coin, error) {
	if coinType == "" {
		coinType = sui.CoinType
	}
	var (
		coins  []ledger.Coin
		cursor *string
	)
	for {
		var page coinPage
		if err := c.rpc.CallContext(ctx, &page, "suix_getCoins", owner, coinType, cursor, coinsPageSize); err != nil {
			return nil, fmt.Errorf("suix_getCoins: %w", err)
		}
		for _, item := range page.Data {
			version, err := strconv.ParseUint(item.Version, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("suix_getCoins: malformed version %q", item.Version)
			}
			balance, ok := new(big.Int).SetString(item.Balance, 10)
			if !ok {
				return nil, fmt.Errorf("suix_getCoins: malformed balance %q", item.Balance)
			}
			coins = append(coins, ledger.Coin{
				ObjectRef: sui.ObjectRef{ObjectID: item.CoinObjectID, Version: version, Digest: item.Digest},
				CoinType:  item.CoinType,
				Balance:   balance,
			})
		}
		if !page.HasNextPage || page.NextCursor == nil || len(coins) >= sui.MaxGasObjects {
			return coins, nil
		}
		cursor = page.NextCursor
	}
}

// BuildTransfer serialises the transfer locally; no node round trip is
// needed for a split-and-transfer with fixed gas parameters.
func (c *Client) BuildTransfer(_ context.Context, spec sui.TransferSpec) ([]byte, error) {
	return sui.BuildTransfer(spec)
}

type executeResponse struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
}

// ExecuteTransaction broadcasts a signed transaction and waits for effects.
func (c *Client) ExecuteTransaction(ctx context.Context, txBytes, signature []byte) (ledger.ExecuteResult, error) {
	options := map[string]bool{"showEffects": true}
	var resp executeResponse
	err := c.rpc.CallContext(ctx, &resp, "sui_executeTransactionBlock",
		base64.StdEncoding.EncodeToString(txBytes),
		[]string{base64.StdEncoding.EncodeToString(signature)},
		options,
		requestType,
	)
	if err != nil {
		return ledger.ExecuteResult{}, fmt.Errorf("sui_executeTransactionBlock: %w", err)
	}
	if resp.Digest == "" {
		return ledger.ExecuteResult{}, errors.New("sui_executeTransactionBlock: response has no digest")
	}
	result := ledger.ExecuteResult{Digest: resp.Digest, Status: "success"}
	if resp.Effects != nil && resp.Effects.Status.Status != "" {
		result.Status = resp.Effects.Status.Status
		if result.Status != "success" {
			return result, fmt.Errorf("transaction %s failed on chain: %s", resp.Digest, resp.Effects.Status.Error)
		}
	}
	return result, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.rpc != nil {
		c.rpc.Close()
	}
}

var _ ledger.Client = (*Client)(nil)
