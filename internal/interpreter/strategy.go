package interpreter

import (
	"context"
	"regexp"
	"strings"
	"time"

	"PasskeyWallet/internal/llm"
	"PasskeyWallet/pkg/logger"
)

// Strategy 尝试把文本解析为结构化意图；无法识别时返回 false，从不返回错误。
type Strategy interface {
	Name() string
	Parse(ctx context.Context, text string) (Intent, bool)
}

// Instruction 是发送给补全服务的固定指令，只允许两种规范形式。
const Instruction = `You convert wallet commands into one of exactly two canonical forms.
Reply with "check balance" when the user wants to see their balance.
Reply with "send <amount> sui to <recipient>" when the user wants to transfer SUI,
keeping the amount as a decimal number and the recipient exactly as written.
Reply with "unknown" for anything else. Do not add any other words.`

var (
	canonicalSend = regexp.MustCompile(`(?i)^send\s+([+\-]?[\d.]\S*)\s+sui\s+to\s+(\S+)$`)

	// 金额必须以数字或小数点开头，负数保留给钱包校验。
	localTransfer = regexp.MustCompile(`(?i)\b(?:send|transfer|pay)\s+([+\-]?[\d.]\S*?)\s*(?:sui\b\s*)?to\s+(\S+)`)
	localBalance  = regexp.MustCompile(`(?i)(?:\b(?:check|show|get|view|see)\b.*\bbalance\b|\bwhat(?:'s|\s+is)\b.*\bbalance\b|^\s*balance\s*[?.!]*\s*$)`)
)

const defaultRemoteTimeout = 10 * time.Second

// RemoteStrategy 调用外部补全服务，仅在回复符合规范形式时采信。
type RemoteStrategy struct {
	client  llm.Client
	timeout time.Duration
}

// NewRemoteStrategy 创建远程补全策略。timeout 小于等于零时使用默认值。
func NewRemoteStrategy(client llm.Client, timeout time.Duration) *RemoteStrategy {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RemoteStrategy{client: client, timeout: timeout}
}

// Name 返回策略名称，包含所用补全服务的名称。
func (s *RemoteStrategy) Name() string {
	if named, ok := s.client.(llm.Named); ok {
		return "remote:" + named.Name()
	}
	return "remote"
}

// Parse 实现 Strategy。传输错误、超时或不合规范的回复都视为未识别。
func (s *RemoteStrategy) Parse(ctx context.Context, text string) (Intent, bool) {
	if s == nil || s.client == nil {
		return nil, false
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Generate(callCtx, llm.Request{Instruction: Instruction, Text: text})
	if err != nil {
		logger.Named("interpreter").Warn("补全服务调用失败，降级到本地解析", "error", err)
		return nil, false
	}
	if resp == nil {
		return nil, false
	}
	intent, ok := ParseCanonical(resp.Reply)
	if !ok {
		logger.Named("interpreter").Info("补全服务回复不符合规范形式", "reply", resp.Reply)
	}
	return intent, ok
}

// ParseCanonical 校验文本是否为两种规范形式之一。
func ParseCanonical(reply string) (Intent, bool) {
	reply = strings.TrimSpace(reply)
	reply = strings.Trim(reply, "\"'`")
	reply = strings.TrimRight(reply, ".!")
	reply = strings.Join(strings.Fields(reply), " ")

	if strings.EqualFold(reply, "check balance") {
		return CheckBalance{}, true
	}
	if m := canonicalSend.FindStringSubmatch(reply); m != nil {
		return Transfer{Amount: m[1], Recipient: cleanRecipient(m[2])}, true
	}
	return nil, false
}

// LocalStrategy 使用固定短语模式匹配原文。
type LocalStrategy struct{}

// Name 返回策略名称。
func (LocalStrategy) Name() string { return "local" }

// Parse 实现 Strategy。
func (LocalStrategy) Parse(_ context.Context, text string) (Intent, bool) {
	if m := localTransfer.FindStringSubmatch(text); m != nil {
		recipient := cleanRecipient(m[2])
		if recipient == "" {
			return nil, false
		}
		return Transfer{Amount: strings.TrimSpace(m[1]), Recipient: recipient}, true
	}
	if localBalance.MatchString(text) {
		return CheckBalance{}, true
	}
	return nil, false
}

// cleanRecipient 去掉收款方末尾的标点、引号与所有格。
func cleanRecipient(token string) string {
	token = strings.Trim(token, "\"'`“”‘’")
	token = strings.TrimRight(token, ".,!?;:")
	lower := strings.ToLower(token)
	for _, suffix := range []string{"'s", "’s"} {
		if strings.HasSuffix(lower, suffix) {
			token = token[:len(token)-len(suffix)]
			break
		}
	}
	return strings.Trim(token, "\"'`“”‘’")
}
