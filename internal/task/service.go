package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"PasskeyWallet/internal/agent"
	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/pkg/logger"
)

// MaxCommandLength 限制单条指令的长度。
const MaxCommandLength = 512

// Service 负责指令的创建与查询。
type Service struct {
	store    Store
	producer Producer
}

// NewService 构造指令服务。
func NewService(store Store, producer Producer) *Service {
	return &Service{store: store, producer: producer}
}

// Submit 写入一条新的指令并推送到队列。
// 携带 ID 的重复提交直接返回已有记录，不会再次执行。
func (s *Service) Submit(ctx context.Context, req agent.CommandRequest) (*Task, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, xerrors.New(CodeTaskValidation, "指令内容不能为空")
	}
	if len(text) > MaxCommandLength {
		return nil, xerrors.New(CodeTaskValidation, "指令内容过长")
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "指令服务未初始化")
	}

	id := strings.TrimSpace(req.ID)
	if id != "" {
		existing, err := s.store.Get(ctx, id)
		if err == nil {
			return existing, nil
		}
		if !stdErrors.Is(err, ErrTaskNotFound) {
			return nil, err
		}
	} else {
		id = uuid.NewString()
	}

	task := &Task{ID: id, Text: text, Status: StatusPending}
	if err := s.store.Create(ctx, task); err != nil {
		if stdErrors.Is(err, ErrTaskConflict) {
			if existing, getErr := s.store.Get(ctx, id); getErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, id); err != nil {
		logger.L().Error("指令入队失败", slog.Any("error", err), slog.String("command_id", id))
		wrapped := xerrors.Wrap(CodeTaskPublish, err, "发布指令到队列失败")
		_ = s.store.MarkFailed(ctx, id, CodeTaskPublish, Outcome{Message: wrapped.Message()})
		return nil, wrapped
	}
	logger.Audit().Info("指令入队成功",
		slog.String("command_id", id),
		slog.String("text", text),
	)
	return task, nil
}

// Get 返回指定指令的状态。
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "指令存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的指令列表。
func (s *Service) List(ctx context.Context, q Query) ([]*Task, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "指令存储未初始化")
	}
	return s.store.List(ctx, q)
}

// Stats 返回指令日志的统计信息。
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.store == nil {
		return Stats{}, xerrors.New(xerrors.CodeInitializationFailure, "指令存储未初始化")
	}
	return s.store.Stats(ctx)
}

// Close 释放资源。
func (s *Service) Close() error {
	var errs []error
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return stdErrors.Join(errs...)
}

// WaitUntilCompleted 轮询指令状态直到结束或 ctx 取消。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Task, error) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Finished() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
