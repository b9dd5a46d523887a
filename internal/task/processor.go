package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strconv"
	"time"

	"PasskeyWallet/internal/agent"
	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/observability/alerting"
	"PasskeyWallet/internal/observability/metrics"
	"PasskeyWallet/pkg/logger"
)

// Executor 定义了处理器所需的 Agent 能力。
type Executor interface {
	Execute(ctx context.Context, req agent.CommandRequest) (*agent.CommandResult, error)
}

// Processor 负责从队列消费指令并交给 Agent 执行。
type Processor struct {
	executor Executor
	store    Store
	consumer Consumer
	logger   *slog.Logger
	alerter  alerting.Dispatcher
	now      func() time.Time
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor: executor,
		store:    store,
		consumer: consumer,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动指令处理循环，阻塞直到 ctx 取消或队列关闭。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置指令消费者")
	}
	return p.consumer.Consume(ctx, p.handle)
}

func (p *Processor) handle(ctx context.Context, id string) error {
	defer p.reportDepth(ctx)

	if p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	task, err := p.store.Claim(ctx, id)
	if err != nil {
		if stdErrors.Is(err, ErrTaskNotFound) || stdErrors.Is(err, ErrTaskCompleted) || stdErrors.Is(err, ErrTaskConflict) {
			p.logDebug("跳过指令", slog.String("command_id", id), slog.String("reason", err.Error()))
			return nil
		}
		logger.L().Error("领取指令失败", slog.Any("error", err), slog.String("command_id", id))
		return err
	}

	result, execErr := p.executor.Execute(ctx, agent.CommandRequest{ID: task.ID, Text: task.Text})
	outcome := outcomeFrom(result)

	if execErr != nil {
		code := xerrors.CodeOf(execErr)
		if code == xerrors.CodeUnknown {
			code = CodeTaskProcessing
		}
		if outcome.Message == "" {
			outcome.Message = xerrors.UserMessage(execErr)
		}
		if err := p.store.MarkFailed(ctx, task.ID, code, outcome); err != nil {
			logger.L().Error("标记指令失败状态出错", slog.Any("error", err), slog.String("command_id", task.ID))
			return err
		}
		metrics.ObserveCommand(string(StatusFailed))
		logger.Audit().Warn("指令执行失败",
			slog.String("command_id", task.ID),
			slog.String("text", task.Text),
			slog.String("error_code", string(code)),
			slog.String("error", outcome.Message),
		)
		p.emitAlert(ctx, task, code, execErr, outcome.Message)
		return execErr
	}

	if err := p.store.MarkSucceeded(ctx, task.ID, outcome); err != nil {
		logger.L().Error("标记指令成功状态失败", slog.Any("error", err), slog.String("command_id", task.ID))
		return err
	}
	metrics.ObserveCommand(string(StatusSucceeded))
	logger.Audit().Info("指令执行成功",
		slog.String("command_id", task.ID),
		slog.String("intent", outcome.Intent),
		slog.String("tx_digest", outcome.TxDigest),
	)
	return nil
}

func outcomeFrom(result *agent.CommandResult) Outcome {
	if result == nil {
		return Outcome{}
	}
	return Outcome{
		Intent:    result.Intent,
		Strategy:  result.Strategy,
		Recipient: result.Recipient,
		Amount:    result.Amount,
		Balance:   result.Balance,
		TxDigest:  result.TxDigest,
		Explorer:  result.Explorer,
		Message:   result.Message,
	}
}

func (p *Processor) reportDepth(ctx context.Context) {
	depth, ok := p.consumer.(Depth)
	if !ok {
		return
	}
	n, err := depth.Depth(ctx)
	if err != nil {
		p.logDebug("查询队列长度失败", slog.Any("error", err))
		return
	}
	metrics.SetQueueDepth(n)
}

func (p *Processor) logDebug(msg string, attrs ...slog.Attr) {
	if p.logger != nil {
		args := make([]any, len(attrs))
		for i, attr := range attrs {
			args[i] = attr
		}
		p.logger.Debug(msg, args...)
	}
}

func (p *Processor) emitAlert(ctx context.Context, task *Task, code xerrors.Code, cause error, message string) {
	if p.alerter == nil {
		return
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   xerrors.SeverityOf(cause),
		CommandID:  task.ID,
		Text:       task.Text,
		Metadata:   map[string]string{"attempts": strconv.Itoa(task.Attempts)},
		OccurredAt: p.now(),
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		logger.L().Error("告警通知失败", slog.Any("error", err), slog.String("command_id", task.ID))
	}
}
