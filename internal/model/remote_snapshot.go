package model

// RemoteSnapshot 远端记录库返回的整包快照
// 单次拉取，不分页；历史集合以远端为权威，档案派生字段落地前必须重算
type RemoteSnapshot struct {
	Identity   string          `json:"identity"`
	Profile    RemoteProfile   `json:"profile"`
	Activities []ActivityEntry `json:"activities"`
	ExportedAt int64           `json:"exported_at"` // 远端导出时间 (毫秒)
}

// RemoteProfile 远端档案字段
// TotalPoints/Level 仅作诊断参考，本地以账本对账结果为准
type RemoteProfile struct {
	DisplayName string   `json:"display_name"`
	Badges      []string `json:"badges"`
	TotalPoints int      `json:"total_points"`
	Level       int      `json:"level"`
}
