// Package interpreter 将自然语言指令转换为结构化意图。
//
// 解析按策略链顺序进行：可选的远程补全策略在前，本地模式匹配在后，
// 第一个识别成功的策略决定结果；全部失败时返回 Unrecognized。
package interpreter

import (
	"context"
	"fmt"
	"strings"

	"PasskeyWallet/internal/feedback"
	"PasskeyWallet/pkg/logger"
)

// Interpreter 按顺序尝试各个解析策略。
type Interpreter struct {
	strategies []Strategy
	feedback   feedback.Publisher
}

// Option 定义可选的解释器配置。
type Option func(*Interpreter)

// WithRemote 在策略链最前面加入远程补全策略。
func WithRemote(s Strategy) Option {
	return func(i *Interpreter) {
		if s != nil {
			i.strategies = append([]Strategy{s}, i.strategies...)
		}
	}
}

// WithStrategies 替换整个策略链。
func WithStrategies(strategies ...Strategy) Option {
	return func(i *Interpreter) {
		i.strategies = append([]Strategy(nil), strategies...)
	}
}

// New 创建解释器。默认只启用本地模式匹配。
func New(fb feedback.Publisher, opts ...Option) *Interpreter {
	if fb == nil {
		fb = feedback.Discard{}
	}
	in := &Interpreter{
		strategies: []Strategy{LocalStrategy{}},
		feedback:   fb,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(in)
		}
	}
	return in
}

// Strategies 返回当前策略链的名称，便于诊断。
func (i *Interpreter) Strategies() []string {
	names := make([]string, 0, len(i.strategies))
	for _, s := range i.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Interpret 解析文本并返回意图以及识别它的策略名称；未识别时名称为空。
func (i *Interpreter) Interpret(ctx context.Context, text string) (Intent, string) {
	text = strings.TrimSpace(text)
	log := logger.Named("interpreter")
	if text == "" {
		i.feedback.Publish("Please type a command, e.g. \"check balance\" or \"send 0.01 sui to bob\".")
		return Unrecognized{Text: text}, ""
	}

	i.feedback.Publish("Interpreting command…")
	for _, s := range i.strategies {
		if err := ctx.Err(); err != nil {
			break
		}
		intent, ok := s.Parse(ctx, text)
		if !ok || intent == nil {
			log.Debug("策略未识别指令", "strategy", s.Name())
			continue
		}
		log.Info("指令解析成功", "strategy", s.Name(), "intent", intent.Kind())
		i.feedback.Publish(fmt.Sprintf("Understood %q via %s parser.", intent.String(), s.Name()))
		return intent, s.Name()
	}

	log.Info("指令未能识别", "text", text)
	i.feedback.Publish(fmt.Sprintf("Sorry, I did not understand %q. Try \"check balance\" or \"send <amount> sui to <recipient>\".", text))
	return Unrecognized{Text: text}, ""
}
