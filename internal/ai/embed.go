package ai

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// EmbedClient OpenAI 兼容的向量化 API 客户端
type EmbedClient struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
}

// EmbedConfig 配置
type EmbedConfig struct {
	APIKey  string
	BaseURL string
	Path    string // 端点路径，留空用 /v1/embeddings
	Model   string
}

// NewEmbedClient 创建客户端
func NewEmbedClient(cfg *EmbedConfig) *EmbedClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.siliconflow.cn"
	}
	if cfg.Path == "" {
		cfg.Path = "/v1/embeddings"
	}
	if cfg.Model == "" {
		cfg.Model = "BAAI/bge-m3"
	}

	return &EmbedClient{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + cfg.Path,
		model:    cfg.Model,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed 生成文本向量
func (c *EmbedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	if err := postJSON(ctx, c.client, c.endpoint, c.apiKey, embedRequest{Model: c.model, Input: texts}, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	return out, nil
}

// IsConfigured 检查是否已配置
func (c *EmbedClient) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}
