package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/interpreter"
	"PasskeyWallet/internal/observability/metrics"
	"PasskeyWallet/internal/sui"
	"PasskeyWallet/internal/wallet"
	"PasskeyWallet/pkg/logger"
)

// CommandRequest 描述一条自然语言钱包指令。
type CommandRequest struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// CommandResult 汇总指令解析与执行得到的结果。
type CommandResult struct {
	Text      string `json:"text"`
	Intent    string `json:"intent"`
	Strategy  string `json:"strategy,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Balance   string `json:"balance,omitempty"`
	TxDigest  string `json:"tx_digest,omitempty"`
	Explorer  string `json:"explorer,omitempty"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"created_at"`
}

// Interpreter 定义了 Agent 所需的指令解析能力。
type Interpreter interface {
	Interpret(ctx context.Context, text string) (interpreter.Intent, string)
}

// Wallet 定义了 Agent 所需的钱包操作。
type Wallet interface {
	CheckBalance(ctx context.Context) (*big.Int, error)
	Transfer(ctx context.Context, recipientRaw, amount string) (*wallet.BroadcastResult, error)
}

// Agent 把解析得到的意图分派到钱包，是自然语言入口的业务核心。
type Agent struct {
	interpreter Interpreter
	wallet      Wallet
	timeout     time.Duration
	now         func() time.Time
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// WithTimeout 设置单条指令的整体超时时间，包括补全服务与链上调用。
func WithTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.timeout = 0
			return
		}
		a.timeout = timeout
	}
}

// New 创建一个 Agent。
func New(in Interpreter, w Wallet, opts ...Option) *Agent {
	ag := &Agent{
		interpreter: in,
		wallet:      w,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	return ag
}

// Execute 解析指令并执行对应的钱包操作。
// 执行失败时同时返回已填充的结果与错误，结果中的 Message 即为反馈给用户的信息。
func (a *Agent) Execute(ctx context.Context, req CommandRequest) (*CommandResult, error) {
	// 验证必要的组件是否已配置。
	if a.interpreter == nil || a.wallet == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置指令解析器或钱包")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "指令内容不能为空")
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	// 解析指令。
	intent, strategy := a.interpreter.Interpret(ctx, text)
	metrics.ObserveInterpretation(strategy, intent.Kind())

	result := &CommandResult{
		Text:      text,
		Intent:    intent.Kind(),
		Strategy:  strategy,
		CreatedAt: a.now().Unix(),
	}

	// 分派到钱包。
	var err error
	switch it := intent.(type) {
	case interpreter.CheckBalance:
		var mist *big.Int
		mist, err = a.wallet.CheckBalance(ctx)
		if err == nil {
			result.Balance = sui.FormatBalance(mist)
			result.Message = fmt.Sprintf("Balance: %s SUI", result.Balance)
		}
	case interpreter.Transfer:
		result.Recipient = it.Recipient
		result.Amount = it.Amount
		var res *wallet.BroadcastResult
		res, err = a.wallet.Transfer(ctx, it.Recipient, it.Amount)
		if err == nil {
			result.TxDigest = res.Digest
			result.Explorer = res.ExplorerURL
			result.Message = fmt.Sprintf("Sent %s SUI to %s. Digest: %s", it.Amount, it.Recipient, res.Digest)
		}
	case interpreter.Unrecognized:
		err = xerrors.New(xerrors.CodeInterpret, fmt.Sprintf("command not recognized: %q", it.Text))
	default:
		err = xerrors.New(xerrors.CodeInterpret, fmt.Sprintf("unsupported intent %s", intent.Kind()))
	}

	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			err = xerrors.Wrap(xerrors.CodeTimeout, err, "指令执行超时")
		}
		result.Message = xerrors.UserMessage(err)
		logger.Named("agent").Info("指令执行失败",
			"intent", result.Intent,
			"strategy", strategy,
			"code", xerrors.CodeOf(err),
			"error", result.Message,
		)
		return result, err
	}
	logger.Named("agent").Info("指令执行成功", "intent", result.Intent, "strategy", strategy)
	return result, nil
}
