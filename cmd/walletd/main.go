package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"PasskeyWallet/pkg/logger"
)

// main 是钱包进程的入口：HTTP 服务、单条指令以及交互式会话都从这里启动。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		log.Fatalf("walletd 运行失败: %v", err)
	}
}
