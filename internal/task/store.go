package task

import (
	"context"

	xerrors "PasskeyWallet/internal/errors"
)

// Store 抽象了指令日志的持久化接口。
type Store interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Claim(ctx context.Context, id string) (*Task, error)
	MarkSucceeded(ctx context.Context, id string, outcome Outcome) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, outcome Outcome) error
	List(ctx context.Context, q Query) ([]*Task, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats 汇总指令日志中各状态的数量。
type Stats struct {
	Total     int   `json:"total"`
	Pending   int   `json:"pending"`
	Running   int   `json:"running"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	OldestAt  int64 `json:"oldest_at,omitempty"`
	NewestAt  int64 `json:"newest_at,omitempty"`
}

func (s *Stats) add(status Status, count int) {
	s.Total += count
	switch status {
	case StatusPending:
		s.Pending += count
	case StatusRunning:
		s.Running += count
	case StatusSucceeded:
		s.Succeeded += count
	case StatusFailed:
		s.Failed += count
	}
}
