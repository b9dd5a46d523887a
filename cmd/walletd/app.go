package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"PasskeyWallet/internal/addressbook"
	"PasskeyWallet/internal/agent"
	"PasskeyWallet/internal/balance"
	"PasskeyWallet/internal/config"
	"PasskeyWallet/internal/credential/softkey"
	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/feedback"
	"PasskeyWallet/internal/interpreter"
	"PasskeyWallet/internal/ledger/provider"
	"PasskeyWallet/internal/llm"
	"PasskeyWallet/internal/llm/gemini"
	"PasskeyWallet/internal/llm/openai"
	"PasskeyWallet/internal/llm/pythonbridge"
	"PasskeyWallet/internal/observability/alerting"
	"PasskeyWallet/internal/wallet"
	"PasskeyWallet/pkg/logger"
)

// app 汇总一次进程运行所需的全部组件。
type app struct {
	cfg         *config.Config
	feedback    *feedback.Channel
	book        *addressbook.Book
	registry    *provider.Registry
	wallet      *wallet.Orchestrator
	interpreter *interpreter.Interpreter
	agent       *agent.Agent
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.PathFromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}

// bootstrap 按依赖顺序构造钱包会话、解析器与 Agent。
func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	fb := feedback.NewChannel()

	book, err := loadAddressBook(cfg.AddressBook)
	if err != nil {
		return nil, err
	}

	registry, err := provider.NewRegistry(ctx, cfg.Network, nil)
	if err != nil {
		return nil, err
	}
	client, err := registry.DefaultClient()
	if err != nil {
		registry.Close()
		return nil, err
	}

	password := cfg.Credential.Password
	if password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		password, err = config.PromptPassword("Passkey keystore password: ")
		if err != nil {
			registry.Close()
			return nil, err
		}
	}
	signer, err := softkey.New(softkey.Config{
		KeystorePath: cfg.Credential.KeystorePath,
		Password:     password,
		RPID:         cfg.Credential.RPID,
		Origin:       cfg.Credential.Origin,
	})
	if err != nil {
		registry.Close()
		return nil, err
	}

	opts := []wallet.Option{
		wallet.WithFeedback(fb),
		wallet.WithBalance(balance.NewService(client, fb)),
	}
	if f, err := registry.Faucet(); err == nil {
		opts = append(opts, wallet.WithFaucet(f))
	} else {
		logger.L().Info("当前网络没有水龙头", "network", registry.DefaultNetwork())
	}
	orchestrator := wallet.New(client, signer, book, opts...)

	interpOpts, err := remoteStrategy(ctx, cfg.Completion)
	if err != nil {
		registry.Close()
		return nil, err
	}
	in := interpreter.New(fb, interpOpts...)

	timeout := time.Duration(cfg.Network.TimeoutSeconds+cfg.Completion.TimeoutSeconds) * time.Second
	ag := agent.New(in, orchestrator, agent.WithTimeout(timeout))

	return &app{
		cfg:         cfg,
		feedback:    fb,
		book:        book,
		registry:    registry,
		wallet:      orchestrator,
		interpreter: in,
		agent:       ag,
	}, nil
}

func (a *app) Close() {
	if a.registry != nil {
		a.registry.Close()
	}
}

func loadAddressBook(cfg config.AddressBookConfig) (*addressbook.Book, error) {
	book := addressbook.New(nil)
	if cfg.Path != "" {
		loaded, err := addressbook.Load(cfg.Path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if loaded != nil {
			book = loaded
		}
	}
	for alias, addr := range cfg.Entries {
		if err := book.Add(alias, addr); err != nil {
			return nil, fmt.Errorf("地址簿别名 %s 无效: %w", alias, err)
		}
	}
	return book, nil
}

// remoteStrategy 根据配置构造远程补全策略；provider 为 none 时只使用本地规则。
func remoteStrategy(ctx context.Context, cfg config.CompletionConfig) ([]interpreter.Option, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	var (
		client llm.Client
		err    error
	)
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		if strings.TrimSpace(cfg.APIKey) == "" && strings.TrimSpace(cfg.BaseURL) == "" {
			logger.L().Warn("未设置 WALLET_COMPLETION_API_KEY 或代理 base_url，仅使用本地解析")
			return nil, nil
		}
		client, err = openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		})
	case "gemini":
		client, err = gemini.NewClient(ctx, gemini.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		})
	case "python_bridge":
		client, err = pythonbridge.NewClient(cfg.Python.PythonExecutable, cfg.Python.ScriptPath, cfg.Python.WorkingDir)
	default:
		return nil, fmt.Errorf("未知的补全服务: %s", cfg.Provider)
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化补全服务失败")
	}
	return []interpreter.Option{interpreter.WithRemote(interpreter.NewRemoteStrategy(client, timeout))}, nil
}

func alertDispatcher(cfg config.AlertingConfig) alerting.Dispatcher {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: cfg.WebhookURL})
	}
	return alerting.NewFanout(xerrors.Severity(cfg.MinSeverity), notifiers...)
}
