package task

import (
	"context"
)

// Handler 处理来自队列的指令 ID。
type Handler func(ctx context.Context, commandID string) error

// Producer 负责向队列投递指令。
type Producer interface {
	Publish(ctx context.Context, commandID string) error
	Close() error
}

// Consumer 负责从队列中逐条消费指令。
//
// 钱包会话同一时刻只能推进一笔交易，因此消费端始终只有一个工作协程。
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// Queue 同时具备生产者与消费者能力。
type Queue interface {
	Producer
	Consumer
}

// Depth 由能够报告积压数量的队列实现。
type Depth interface {
	Depth(ctx context.Context) (int, error)
}
