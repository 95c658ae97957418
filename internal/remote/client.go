package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yuqie6/VitaQuest/internal/model"
)

// Client 远端记录库客户端
// 远端是一个按身份返回整包快照的 HTTP 端点，只有一个网络操作
type Client struct {
	baseURL    string
	apiKey     string
	maxRetries int
	client     *http.Client
}

// Config 配置
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient 创建客户端
func NewClient(cfg *Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// IsConfigured 检查是否已配置
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// FetchSnapshot 按身份拉取整包快照（带指数退避重试）
func (c *Client) FetchSnapshot(ctx context.Context, identity string) (*model.RemoteSnapshot, error) {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		snapshot, err := c.fetchOnce(ctx, identity)
		if err == nil {
			return snapshot, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}

		// 指数退避：1s, 2s, 4s...
		backoff := time.Duration(1<<uint(i)) * time.Second
		slog.Warn("拉取快照失败，准备重试", "attempt", i+1, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("达到最大重试次数 (%d): %w", c.maxRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, identity string) (*model.RemoteSnapshot, error) {
	endpoint := c.baseURL + "/snapshot?identity=" + url.QueryEscape(identity)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("远端记录库错误", "status", resp.StatusCode, "body", truncate(string(respBody), 200))
		return nil, fmt.Errorf("远端错误: %s", resp.Status)
	}

	var snapshot model.RemoteSnapshot
	if err := json.Unmarshal(respBody, &snapshot); err != nil {
		return nil, fmt.Errorf("解析快照失败: %w", err)
	}

	slog.Debug("拉取快照成功", "identity", identity, "entries", len(snapshot.Activities))
	return &snapshot, nil
}

// isRetryableError 判断是否是可重试错误
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// 网络错误或 5xx 错误可重试；解析失败不可重试
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
