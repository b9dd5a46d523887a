// Package task 负责自然语言指令的排队与异步执行。
//
// 指令先写入 Store 形成指令日志，再通过 Queue 投递给唯一的工作协程，
// 由 Processor 交给 Agent 执行并回写结果。指令不会自动重试。
package task

import (
	xerrors "PasskeyWallet/internal/errors"
)

// Status 表示指令在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome 保存一次指令执行的结果。
type Outcome struct {
	Intent    string `json:"intent,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Balance   string `json:"balance,omitempty"`
	TxDigest  string `json:"tx_digest,omitempty"`
	Explorer  string `json:"explorer,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Task 描述一条排队执行的钱包指令。
type Task struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Status    Status  `json:"status"`
	Attempts  int     `json:"attempts"`
	ErrorCode string  `json:"error_code,omitempty"`
	Outcome   Outcome `json:"outcome"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

// Finished 判断指令是否已经结束。
func (t *Task) Finished() bool {
	return t.Status == StatusSucceeded || t.Status == StatusFailed
}

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskConflict   xerrors.Code = "TASK_CONFLICT"
	CodeTaskCompleted  xerrors.Code = "TASK_COMPLETED"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskProcessing xerrors.Code = "TASK_PROCESSING_FAILED"
)

var (
	// ErrTaskNotFound 表示指定的指令不存在。
	ErrTaskNotFound = xerrors.New(CodeTaskNotFound, "command not found")
	// ErrTaskConflict 表示指令在当前状态下无法进行所请求的操作。
	ErrTaskConflict = xerrors.New(CodeTaskConflict, "command conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrTaskCompleted 表示指令已经执行结束。
	ErrTaskCompleted = xerrors.New(CodeTaskCompleted, "command already finished")
)

func init() {
	xerrors.Register(CodeTaskNotFound, xerrors.Attributes{
		Message:  "command not found",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTaskConflict, xerrors.Attributes{
		Message:  "command conflict",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeTaskCompleted, xerrors.Attributes{
		Message:  "command already finished",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTaskValidation, xerrors.Attributes{
		Message:  "command validation failed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTaskPublish, xerrors.Attributes{
		Message:   "failed to publish command",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
	})
	xerrors.Register(CodeTaskProcessing, xerrors.Attributes{
		Message:  "command execution failed",
		Severity: xerrors.SeverityWarning,
	})
}

// IsValidStatus 检查给定的状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneTask(task *Task) *Task {
	clone := *task
	return &clone
}
