package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PasskeyWallet/internal/llm"

	"google.golang.org/genai"
)

const (
	defaultModelName = "gemini-2.0-flash"
	defaultTimeout   = 10 * time.Second
)

// Config 描述了调用 Gemini API 所需的信息。
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client 通过 google.golang.org/genai 调用 Gemini 模型。
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewClient 根据配置创建 Gemini 客户端。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 Gemini API Key")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{client: client, model: model, timeout: timeout}, nil
}

// Name 返回实现名称。
func (c *Client) Name() string { return "gemini" }

// Generate 以固定指令作为 system instruction 调用模型。
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if req.Instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.Instruction, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Text), config)
	if err != nil {
		return nil, fmt.Errorf("请求 Gemini 失败: %w", err)
	}
	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return nil, errors.New("Gemini 响应内容为空")
	}
	return &llm.Response{Reply: reply}, nil
}

var (
	_ llm.Client = (*Client)(nil)
	_ llm.Named  = (*Client)(nil)
)
