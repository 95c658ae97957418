package dto

// SyncStatusDTO 同步状态机对 UI 的契约
// IsDataSynced 为 true（含离线接受）之前，UI 不得渲染被门控的内容
type SyncStatusDTO struct {
	State        string `json:"state"`
	IsSyncing    bool   `json:"is_syncing"`
	SyncError    string `json:"sync_error,omitempty"`
	IsDataSynced bool   `json:"is_data_synced"`
	Offline      bool   `json:"offline"` // 用户显式接受离线数据（诊断用）
}

// ProgressDTO 当前进度，只读
type ProgressDTO struct {
	Identity    string   `json:"identity"`
	DisplayName string   `json:"display_name,omitempty"`
	TotalPoints int      `json:"total_points"`
	Level       int      `json:"level"`
	Badges      []string `json:"badges"`
}

// ActivityEntryDTO 活动条目
type ActivityEntryDTO struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Variant   string         `json:"variant,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// KindStatDTO 按类型聚合的统计
type KindStatDTO struct {
	Kind       string `json:"kind"`
	EntryCount int64  `json:"entry_count"`
}

// GateCheckDTO 门控检查结果
type GateCheckDTO struct {
	Feature  string `json:"feature"`
	Window   string `json:"window"`
	CanGrant bool   `json:"can_grant"`
}

// CoachReportDTO AI 教练周报
type CoachReportDTO struct {
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Overview    string   `json:"overview"`
	Highlights  []string `json:"highlights"`
	Suggestions string   `json:"suggestions"`
	TotalPoints int      `json:"total_points"`
	EntryCount  int      `json:"entry_count"`
}

// AppStatusDTO 进程状态
type AppStatusDTO struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	StartedAt     string `json:"started_at"`
	UptimeSec     int64  `json:"uptime_sec"`
	SafeMode      bool   `json:"safe_mode"`
	SchemaVersion int    `json:"schema_version"`
	Identity      string `json:"identity"`
	Guest         bool   `json:"guest"`
}
