package llm

import "context"

// Request 描述发送给补全服务的内容：固定指令加上用户原文。
type Request struct {
	Instruction string
	Text        string
}

// Response 是补全服务返回的原始文本，调用方负责校验。
type Response struct {
	Reply string
}

// Client 定义了调用补全服务的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Named 为实现提供可读名称，用于日志与反馈信息。
type Named interface {
	Name() string
}
