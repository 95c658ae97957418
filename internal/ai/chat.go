package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ChatClient OpenAI 兼容的对话 API 客户端
type ChatClient struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

// ChatConfig 配置
type ChatConfig struct {
	APIKey  string
	BaseURL string
	Path    string // 端点路径，留空用 /v1/chat/completions
	Model   string
}

// NewChatClient 创建客户端
func NewChatClient(cfg *ChatConfig) *ChatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Path == "" {
		cfg.Path = "/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}

	return &ChatClient{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + cfg.Path,
		model:    cfg.Model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Message 消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatWithOptions 发送一轮对话请求，返回首个回复文本
func (c *ChatClient) ChatWithOptions(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var resp chatResponse
	if err := postJSON(ctx, c.client, c.endpoint, c.apiKey, req, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("无响应内容")
	}

	slog.Debug("对话 API 调用成功",
		"tokens", resp.Usage.TotalTokens,
		"model", c.model,
	)

	return resp.Choices[0].Message.Content, nil
}

// IsConfigured 检查是否已配置
func (c *ChatClient) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}

// cleanJSONResponse 清理响应中可能的 markdown 代码块
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
