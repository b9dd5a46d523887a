package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"PasskeyWallet/internal/config"
	"PasskeyWallet/internal/faucet"
	"PasskeyWallet/internal/ledger"
	"PasskeyWallet/internal/ledger/suirpc"
)

// Registry manages ledger clients keyed by network name.
type Registry struct {
	defaultNetwork string
	clients        map[string]ledger.Client
	defs           map[string]ledger.NetworkDefinition
	timeout        time.Duration
}

// Dialer opens a ledger client for one network definition.
type Dialer func(ctx context.Context, name string, def ledger.NetworkDefinition) (ledger.Client, error)

// DialSui is the default Dialer.
func DialSui(ctx context.Context, name string, def ledger.NetworkDefinition) (ledger.Client, error) {
	return suirpc.NewClient(ctx, suirpc.Config{Name: name, RPCURL: def.RPCURL, Explorer: def.Explorer})
}

// NewRegistry loads network definitions and dials the selected network.
// Only the default network is dialled eagerly; the rest stay as definitions.
func NewRegistry(ctx context.Context, cfg config.NetworkConfig, dial Dialer) (*Registry, error) {
	if dial == nil {
		dial = DialSui
	}
	defs, err := ledger.LoadNetworkDefinitions(cfg.DefinitionsFile)
	if err != nil {
		return nil, err
	}

	merged := ledger.BuiltinNetworks()
	for name, def := range defs.Networks {
		merged[name] = def
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = defs.Default
	}
	if name == "" {
		names := make([]string, 0, len(merged))
		for n := range merged {
			names = append(names, n)
		}
		sort.Strings(names)
		name = names[0]
	}

	def, ok := merged[name]
	if !ok && strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, fmt.Errorf("网络 %s 未在配置中找到", name)
	}
	if rpcURL := strings.TrimSpace(cfg.RPCURL); rpcURL != "" {
		def.RPCURL = rpcURL
	}
	if faucetURL := strings.TrimSpace(cfg.FaucetURL); faucetURL != "" {
		def.FaucetURL = faucetURL
	}
	if def.Explorer == "" {
		def.Explorer = name
	}
	if t := strings.ToLower(strings.TrimSpace(def.Type)); t != "" && t != "sui" {
		return nil, fmt.Errorf("网络 %s 使用了不支持的类型 %s", name, def.Type)
	}
	merged[name] = def

	client, err := dial(ctx, name, def)
	if err != nil {
		return nil, fmt.Errorf("初始化网络 %s 失败: %w", name, err)
	}

	return &Registry{
		defaultNetwork: name,
		clients:        map[string]ledger.Client{name: client},
		defs:           merged,
		timeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

// DefaultClient returns the client of the configured network.
func (r *Registry) DefaultClient() (ledger.Client, error) {
	if r == nil {
		return nil, errors.New("未初始化的网络客户端注册表")
	}
	client, ok := r.clients[r.defaultNetwork]
	if !ok {
		return nil, fmt.Errorf("默认网络 %s 未在注册表中", r.defaultNetwork)
	}
	return client, nil
}

// DefaultNetwork returns the name of the configured network.
func (r *Registry) DefaultNetwork() string {
	if r == nil {
		return ""
	}
	return r.defaultNetwork
}

// Faucet returns a faucet client for the default network, or an error when
// the network has no faucet (mainnet).
func (r *Registry) Faucet() (faucet.Faucet, error) {
	if r == nil {
		return nil, errors.New("未初始化的网络客户端注册表")
	}
	def := r.defs[r.defaultNetwork]
	if def.FaucetURL == "" {
		return nil, fmt.Errorf("network %s has no faucet", r.defaultNetwork)
	}
	return faucet.NewClient(def.FaucetURL, r.timeout)
}

// Networks returns the list of known network names.
func (r *Registry) Networks() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
}
