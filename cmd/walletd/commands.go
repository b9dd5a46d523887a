package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"PasskeyWallet/internal/agent"
	"PasskeyWallet/internal/api"
	"PasskeyWallet/internal/auth"
	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/ledger/provider"
	"PasskeyWallet/internal/sui"
	"PasskeyWallet/internal/task"
	"PasskeyWallet/pkg/logger"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "walletd",
		Short:         "Passkey wallet for the Sui network",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "配置文件路径，默认读取 WALLET_CONFIG")

	root.AddCommand(
		newServeCommand(opts),
		newExecCommand(opts),
		newReplCommand(opts),
		newWalletCommand(opts),
		newBookCommand(opts),
		newNetworksCommand(opts),
	)
	return root
}

// withApp 加载配置并构造组件，fn 返回后释放网络连接。
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	a, err := bootstrap(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API 与指令处理协程",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, serve)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	store, err := task.OpenStore(ctx, cfg.Journal)
	if err != nil {
		return err
	}
	queue, err := task.OpenQueue(ctx, cfg.Queue)
	if err != nil {
		store.Close()
		return err
	}
	commands := task.NewService(store, queue)
	defer commands.Close()

	processor := task.NewProcessor(a.agent, store, queue,
		task.WithProcessorLogger(logger.Named("processor")),
		task.WithAlertDispatcher(alertDispatcher(cfg.Alerting)),
	)

	server := api.NewServer(cfg.Server.Address, a.wallet,
		api.WithCommands(commands),
		api.WithFeedback(a.feedback),
		api.WithAddressBook(a.book),
		api.WithAuth(auth.NewService(cfg.Server.AuthToken)),
		api.WithShutdownTimeout(time.Duration(cfg.Server.ShutdownSeconds)*time.Second),
	)

	logger.L().Info("钱包服务启动",
		"address", cfg.Server.Address,
		"network", a.registry.DefaultNetwork(),
		"journal", cfg.Journal.Driver,
		"queue", cfg.Queue.Driver,
		"strategies", a.interpreter.Strategies(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return processor.Start(gctx) })
	g.Go(func() error { return server.Start(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newExecCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command>",
		Short: "执行一条自然语言指令，例如 \"send 1 SUI to alice\"",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				c := newConsole(cmd.OutOrStdout())
				if err := openWallet(ctx, a, c); err != nil {
					c.failure(err)
					return err
				}
				return runCommand(ctx, a, c, strings.Join(args, " "))
			})
		},
	}
}

func newReplCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "交互式输入指令，输入 exit 退出",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				c := newConsole(cmd.OutOrStdout())
				if err := openWallet(ctx, a, c); err != nil {
					c.failure(err)
					return err
				}
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for {
					fmt.Fprint(cmd.OutOrStdout(), c.au.Cyan("> "))
					if !scanner.Scan() {
						return scanner.Err()
					}
					line := strings.TrimSpace(scanner.Text())
					switch line {
					case "":
						continue
					case "exit", "quit":
						return nil
					}
					// 单条指令失败不结束会话。
					_ = runCommand(ctx, a, c, line)
					if ctx.Err() != nil {
						return nil
					}
				}
			})
		},
	}
}

// openWallet 在密钥库存在时恢复钱包，否则提示先创建。
func openWallet(ctx context.Context, a *app, c *console) error {
	if _, err := os.Stat(a.cfg.Credential.KeystorePath); errors.Is(err, os.ErrNotExist) {
		return xerrors.New(xerrors.CodePrecondition, "no passkey found, run `walletd wallet create` first")
	}
	return c.track(a.feedback, func() error {
		_, err := a.wallet.LoadWallet(ctx)
		return err
	})
}

func runCommand(ctx context.Context, a *app, c *console, text string) error {
	var result *agent.CommandResult
	err := c.track(a.feedback, func() error {
		var err error
		result, err = a.agent.Execute(ctx, agent.CommandRequest{Text: text})
		return err
	})
	if err != nil {
		c.failure(err)
		return err
	}
	c.success("%s", result.Message)
	if result.Explorer != "" {
		c.info("%s", result.Explorer)
	}
	return nil
}

func newWalletCommand(opts *rootOptions) *cobra.Command {
	walletCmd := &cobra.Command{
		Use:   "wallet",
		Short: "管理通行密钥钱包",
	}

	run := func(use, short string, fn func(ctx context.Context, a *app, c *console) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					c := newConsole(cmd.OutOrStdout())
					err := fn(ctx, a, c)
					if err != nil {
						c.failure(err)
					}
					return err
				})
			},
		}
	}

	walletCmd.AddCommand(
		run("create", "注册新的通行密钥并派生 Sui 地址", func(ctx context.Context, a *app, c *console) error {
			return c.track(a.feedback, func() error {
				h, err := a.wallet.CreateWallet(ctx)
				if err == nil {
					c.success("%s", h.Address)
				}
				return err
			})
		}),
		run("status", "显示钱包地址与网络", func(ctx context.Context, a *app, c *console) error {
			if err := openWallet(ctx, a, c); err != nil {
				return err
			}
			st := a.wallet.Status()
			rows := [][2]string{{"network", st.Network}, {"address", st.Address}, {"state", string(st.State)}}
			c.table([2]string{"field", "value"}, rows)
			return nil
		}),
		run("balance", "查询钱包余额", func(ctx context.Context, a *app, c *console) error {
			if err := openWallet(ctx, a, c); err != nil {
				return err
			}
			return c.track(a.feedback, func() error {
				mist, err := a.wallet.CheckBalance(ctx)
				if err == nil {
					c.success("%s SUI", sui.FormatBalance(mist))
				}
				return err
			})
		}),
		run("faucet", "向测试网水龙头申请测试币", func(ctx context.Context, a *app, c *console) error {
			if err := openWallet(ctx, a, c); err != nil {
				return err
			}
			return c.track(a.feedback, func() error {
				return a.wallet.RequestFaucet(ctx)
			})
		}),
	)
	return walletCmd
}

func newBookCommand(opts *rootOptions) *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "查看地址簿",
	}
	bookCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出全部别名",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			book, err := loadAddressBook(cfg.AddressBook)
			if err != nil {
				return err
			}
			var rows [][2]string
			for _, e := range book.Entries() {
				rows = append(rows, [2]string{e.Alias, e.Address})
			}
			newConsole(cmd.OutOrStdout()).table([2]string{"alias", "address"}, rows)
			return nil
		},
	})
	return bookCmd
}

func newNetworksCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "列出已配置的 Sui 网络",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			registry, err := provider.NewRegistry(cmd.Context(), cfg.Network, nil)
			if err != nil {
				return err
			}
			defer registry.Close()

			names := registry.Networks()
			sort.Strings(names)
			c := newConsole(cmd.OutOrStdout())
			for _, name := range names {
				if name == registry.DefaultNetwork() {
					c.success("* %s", name)
					continue
				}
				c.info("  %s", name)
			}
			return nil
		},
	}
}
