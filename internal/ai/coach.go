package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Coach AI 健康教练
type Coach struct {
	client *ChatClient
}

// NewCoach 创建教练
func NewCoach(client *ChatClient) *Coach {
	return &Coach{client: client}
}

// WeeklyReportRequest 周报生成请求
type WeeklyReportRequest struct {
	StartDate   string         // YYYY-MM-DD
	EndDate     string         // YYYY-MM-DD
	TotalPoints int            // 本周获得积分
	Level       int            // 当前等级
	KindCounts  map[string]int // 各活动类型的条目数
	Memories    []string       // 相关历史周报片段（来自长期记忆）
}

// WeeklyReportResult 周报生成结果
type WeeklyReportResult struct {
	Overview    string   `json:"overview"`    // 本周概述
	Highlights  []string `json:"highlights"`  // 做得好的地方
	Suggestions string   `json:"suggestions"` // 下周建议
}

// GenerateWeeklyReport 生成本周健康周报
func (c *Coach) GenerateWeeklyReport(ctx context.Context, req *WeeklyReportRequest) (*WeeklyReportResult, error) {
	if !c.client.IsConfigured() {
		return nil, fmt.Errorf("对话 API 未配置")
	}
	if req == nil {
		return nil, fmt.Errorf("req 不能为空")
	}

	var activityLines strings.Builder
	kinds := make([]string, 0, len(req.KindCounts))
	for kind := range req.KindCounts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		activityLines.WriteString(fmt.Sprintf("- %s: %d 次\n", kind, req.KindCounts[kind]))
	}

	var memoryContext strings.Builder
	if len(req.Memories) > 0 {
		memoryContext.WriteString("\n相关历史周报片段：\n")
		for _, m := range req.Memories {
			memoryContext.WriteString("- " + m + "\n")
		}
	}

	prompt := fmt.Sprintf(`你是用户的健康教练。根据本周（%s ~ %s）的打卡数据生成一份周报。

本周数据：
积分：%d，当前等级：%d
各类活动次数：
%s%s
请用 JSON 格式返回（不要 markdown 代码块）:
{
  "overview": "两三句话概述本周的健康表现（中文，语气温暖）",
  "highlights": ["做得好的地方，最多 3 条"],
  "suggestions": "下周的一两条具体建议（中文）"
}`,
		req.StartDate, req.EndDate, req.TotalPoints, req.Level,
		activityLines.String(), memoryContext.String())

	messages := []Message{
		{Role: "system", Content: "你是一个温暖、专业的健康习惯教练。回复必须是纯 JSON，不要 markdown。"},
		{Role: "user", Content: prompt},
	}

	response, err := c.client.ChatWithOptions(ctx, messages, 0.4, 800)
	if err != nil {
		return nil, fmt.Errorf("生成周报失败: %w", err)
	}

	response = cleanJSONResponse(response)

	var result WeeklyReportResult
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		slog.Warn("解析周报响应失败，使用原始文本", "error", err)
		// 降级处理：直接使用响应文本作为概述
		result = WeeklyReportResult{Overview: response}
	}

	return &result, nil
}
