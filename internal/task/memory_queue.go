package task

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed 表示队列已经关闭。
var ErrQueueClosed = errors.New("队列已关闭")

// MemoryQueue 使用 channel 实现进程内队列。
type MemoryQueue struct {
	ch        chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue 创建一个内存队列。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size), done: make(chan struct{})}
}

// Publish 将指令投递到队列。
func (q *MemoryQueue) Publish(ctx context.Context, commandID string) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	case q.ch <- commandID:
		return nil
	}
}

// Consume 在当前协程中依次处理队列中的指令，直到 ctx 取消或队列关闭。
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return nil
		case id := <-q.ch:
			_ = handler(ctx, id)
		}
	}
}

// Depth 返回尚未消费的指令数量。
func (q *MemoryQueue) Depth(context.Context) (int, error) {
	return len(q.ch), nil
}

// Close 关闭内存队列。
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
