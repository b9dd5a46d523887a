package suirpc

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"PasskeyWallet/internal/sui"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/mr-tron/base58"
)

type coinItem struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

type coinPageResult struct {
	Data        []coinItem `json:"data"`
	NextCursor  *string    `json:"nextCursor"`
	HasNextPage bool       `json:"hasNextPage"`
}

type suixStub struct {
	balance  string
	pages    []coinPageResult
	cursors  []string
	coinType string
}

func (s *suixStub) GetBalance(owner, coinType string) (map[string]any, error) {
	s.coinType = coinType
	return map[string]any{"coinType": coinType, "coinObjectCount": 1, "totalBalance": s.balance}, nil
}

func (s *suixStub) GetCoins(owner, coinType string, cursor *string, limit int) (coinPageResult, error) {
	idx := 0
	if cursor != nil {
		s.cursors = append(s.cursors, *cursor)
		fmt.Sscanf(*cursor, "page-%d", &idx)
	}
	if idx >= len(s.pages) {
		return coinPageResult{}, fmt.Errorf("unknown cursor")
	}
	return s.pages[idx], nil
}

type suiStub struct {
	tx        string
	sigs      []string
	reqType   string
	status    string
	statusErr string
}

func (s *suiStub) ExecuteTransactionBlock(tx string, sigs []string, opts map[string]bool, reqType string) (map[string]any, error) {
	s.tx, s.sigs, s.reqType = tx, sigs, reqType
	if !opts["showEffects"] {
		return nil, fmt.Errorf("showEffects not requested")
	}
	return map[string]any{
		"digest":  "9vXkDigest",
		"effects": map[string]any{"status": map[string]any{"status": s.status, "error": s.statusErr}},
	}, nil
}

func newTestClient(t *testing.T, suix *suixStub, suiSvc *suiStub) *Client {
	t.Helper()
	server := gethrpc.NewServer()
	if err := server.RegisterName("suix", suix); err != nil {
		t.Fatalf("register suix: %v", err)
	}
	if err := server.RegisterName("sui", suiSvc); err != nil {
		t.Fatalf("register sui: %v", err)
	}
	t.Cleanup(server.Stop)
	client := NewFromRPC(Config{Name: "testnet"}, gethrpc.DialInProc(server))
	t.Cleanup(client.Close)
	return client
}

func coin(i int) coinItem {
	return coinItem{
		CoinType:     sui.CoinType,
		CoinObjectID: fmt.Sprintf("0x%064x", i+1),
		Version:      fmt.Sprint(10 + i),
		Digest:       base58.Encode(make([]byte, 32)),
		Balance:      "1000000000",
	}
}

func TestGetBalance(t *testing.T) {
	suix := &suixStub{balance: "1500000000"}
	client := newTestClient(t, suix, &suiStub{})

	got, err := client.GetBalance(context.Background(), "0x"+strings.Repeat("a", 64))
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if got.Cmp(big.NewInt(1_500_000_000)) != 0 {
		t.Fatalf("unexpected balance %s", got)
	}
	if suix.coinType != sui.CoinType {
		t.Fatalf("unexpected coin type %q", suix.coinType)
	}
}

func TestGetBalanceRejectsMalformedAmount(t *testing.T) {
	client := newTestClient(t, &suixStub{balance: "lots"}, &suiStub{})
	if _, err := client.GetBalance(context.Background(), "0x1"); err == nil {
		t.Fatalf("expected error for malformed balance")
	}
}

func TestGetCoinsFollowsPagination(t *testing.T) {
	next := "page-1"
	suix := &suixStub{pages: []coinPageResult{
		{Data: []coinItem{coin(0), coin(1)}, NextCursor: &next, HasNextPage: true},
		{Data: []coinItem{coin(2)}},
	}}
	client := newTestClient(t, suix, &suiStub{})

	coins, err := client.GetCoins(context.Background(), "0x1", "")
	if err != nil {
		t.Fatalf("GetCoins: %v", err)
	}
	if len(coins) != 3 {
		t.Fatalf("expected 3 coins, got %d", len(coins))
	}
	if coins[2].Version != 12 || coins[2].Balance.Int64() != 1_000_000_000 {
		t.Fatalf("unexpected coin %+v", coins[2])
	}
	if len(suix.cursors) != 1 || suix.cursors[0] != "page-1" {
		t.Fatalf("unexpected cursors %v", suix.cursors)
	}
}

func TestExecuteTransactionEncodesPayload(t *testing.T) {
	suiSvc := &suiStub{status: "success"}
	client := newTestClient(t, &suixStub{}, suiSvc)

	res, err := client.ExecuteTransaction(context.Background(), []byte{1, 2, 3}, []byte{6, 7})
	if err != nil {
		t.Fatalf("ExecuteTransaction: %v", err)
	}
	if res.Digest != "9vXkDigest" {
		t.Fatalf("unexpected digest %q", res.Digest)
	}
	if suiSvc.tx != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Fatalf("unexpected tx payload %q", suiSvc.tx)
	}
	if len(suiSvc.sigs) != 1 || suiSvc.sigs[0] != base64.StdEncoding.EncodeToString([]byte{6, 7}) {
		t.Fatalf("unexpected signatures %v", suiSvc.sigs)
	}
	if suiSvc.reqType != requestType {
		t.Fatalf("unexpected request type %q", suiSvc.reqType)
	}
}

func TestExecuteTransactionReportsOnChainFailure(t *testing.T) {
	client := newTestClient(t, &suixStub{}, &suiStub{status: "failure", statusErr: "InsufficientGas"})
	res, err := client.ExecuteTransaction(context.Background(), []byte{1}, []byte{2})
	if err == nil || !strings.Contains(err.Error(), "InsufficientGas") {
		t.Fatalf("expected on-chain failure, got %v", err)
	}
	if res.Digest != "9vXkDigest" {
		t.Fatalf("digest should be kept on failure, got %q", res.Digest)
	}
}
