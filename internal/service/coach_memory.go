package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"github.com/yuqie6/VitaQuest/internal/ai"
	"github.com/yuqie6/VitaQuest/internal/model"
)

// ChromemCoachMemory 基于 chromem-go 的周报长期记忆
// 历史周报向量化入库，生成新周报时检索相似片段作为上下文
type ChromemCoachMemory struct {
	db          *chromem.DB
	collection  *chromem.Collection
	embedClient *ai.EmbedClient
	storagePath string
}

// CoachMemoryConfig 配置
type CoachMemoryConfig struct {
	StoragePath string // 向量数据库存储路径
}

// NewChromemCoachMemory 创建周报记忆
func NewChromemCoachMemory(embedClient *ai.EmbedClient, cfg *CoachMemoryConfig) (*ChromemCoachMemory, error) {
	if cfg == nil {
		cfg = &CoachMemoryConfig{}
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = "./data/coach_memory"
	}

	// 确保目录存在
	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("创建记忆存储目录失败: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.StoragePath, false)
	if err != nil {
		return nil, fmt.Errorf("创建向量数据库失败: %w", err)
	}

	collection, err := db.GetOrCreateCollection("coach_reports", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 collection 失败: %w", err)
	}

	return &ChromemCoachMemory{
		db:          db,
		collection:  collection,
		embedClient: embedClient,
		storagePath: cfg.StoragePath,
	}, nil
}

// Index 索引一份周报
func (m *ChromemCoachMemory) Index(ctx context.Context, report *model.CoachReport) error {
	if report == nil {
		return fmt.Errorf("report 不能为空")
	}
	if !m.embedClient.IsConfigured() {
		slog.Debug("向量化 API 未配置，跳过索引")
		return nil
	}

	content := fmt.Sprintf("周期: %s ~ %s\n概述: %s\n建议: %s",
		report.StartDate, report.EndDate, report.Overview, report.Suggestions)

	embeddings, err := m.embedClient.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("生成嵌入失败: %w", err)
	}
	if len(embeddings) == 0 {
		return fmt.Errorf("嵌入结果为空")
	}

	doc := chromem.Document{
		ID:        fmt.Sprintf("report_%s_%s", report.Identity, report.StartDate),
		Content:   content,
		Embedding: embeddings[0],
		Metadata: map[string]string{
			"identity":   report.Identity,
			"start_date": report.StartDate,
		},
	}

	if err := m.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("添加文档失败: %w", err)
	}

	slog.Debug("索引周报", "identity", report.Identity, "start_date", report.StartDate)
	return nil
}

// SearchSimilar 检索相似的历史周报片段
func (m *ChromemCoachMemory) SearchSimilar(ctx context.Context, query string, limit int) ([]string, error) {
	if !m.embedClient.IsConfigured() {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}
	if count := m.collection.Count(); count < limit {
		limit = count
	}
	if limit == 0 {
		return nil, nil
	}

	embeddings, err := m.embedClient.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("生成查询嵌入失败: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, nil
	}

	results, err := m.collection.QueryEmbedding(ctx, embeddings[0], limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("检索失败: %w", err)
	}

	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Content)
	}
	return out, nil
}
