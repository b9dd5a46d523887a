package provider

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"PasskeyWallet/internal/config"
	"PasskeyWallet/internal/ledger"
	"PasskeyWallet/internal/sui"
)

type nopClient struct {
	network string
	closed  bool
}

func (n *nopClient) Network() string { return n.network }
func (n *nopClient) GetBalance(context.Context, string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (n *nopClient) GetCoins(context.Context, string, string) ([]ledger.Coin, error) {
	return nil, nil
}
func (n *nopClient) BuildTransfer(context.Context, sui.TransferSpec) ([]byte, error) {
	return nil, nil
}
func (n *nopClient) ExecuteTransaction(context.Context, []byte, []byte) (ledger.ExecuteResult, error) {
	return ledger.ExecuteResult{}, nil
}
func (n *nopClient) Close() { n.closed = true }

func recordingDialer(got *ledger.NetworkDefinition) Dialer {
	return func(_ context.Context, name string, def ledger.NetworkDefinition) (ledger.Client, error) {
		*got = def
		return &nopClient{network: def.Explorer}, nil
	}
}

func TestRegistryUsesBuiltinNetwork(t *testing.T) {
	var def ledger.NetworkDefinition
	reg, err := NewRegistry(context.Background(), config.NetworkConfig{Name: "devnet"}, recordingDialer(&def))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	defer reg.Close()

	if def.RPCURL != "https://fullnode.devnet.sui.io:443" {
		t.Fatalf("unexpected rpc url %q", def.RPCURL)
	}
	client, err := reg.DefaultClient()
	if err != nil || client.Network() != "devnet" {
		t.Fatalf("unexpected default client %v, %v", client, err)
	}
	if _, err := reg.Faucet(); err != nil {
		t.Fatalf("devnet should have a faucet: %v", err)
	}
}

func TestRegistryMergesFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	content := "default: local\nnetworks:\n  local:\n    type: sui\n    rpc_url: http://127.0.0.1:9000\n    explorer: localnet\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var def ledger.NetworkDefinition
	reg, err := NewRegistry(context.Background(), config.NetworkConfig{DefinitionsFile: path, FaucetURL: "http://127.0.0.1:9123"}, recordingDialer(&def))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if reg.DefaultNetwork() != "local" || def.RPCURL != "http://127.0.0.1:9000" || def.FaucetURL != "http://127.0.0.1:9123" {
		t.Fatalf("unexpected registry state %s %+v", reg.DefaultNetwork(), def)
	}
	if len(reg.Networks()) != 4 {
		t.Fatalf("expected builtin networks plus local, got %v", reg.Networks())
	}
}

func TestRegistryMainnetHasNoFaucet(t *testing.T) {
	var def ledger.NetworkDefinition
	reg, err := NewRegistry(context.Background(), config.NetworkConfig{Name: "mainnet"}, recordingDialer(&def))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := reg.Faucet(); err == nil {
		t.Fatalf("mainnet must not expose a faucet")
	}
}

func TestRegistryUnknownNetwork(t *testing.T) {
	var def ledger.NetworkDefinition
	if _, err := NewRegistry(context.Background(), config.NetworkConfig{Name: "nowhere"}, recordingDialer(&def)); err == nil {
		t.Fatalf("expected error for unknown network")
	}
}
