package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/yuqie6/VitaQuest/internal/bootstrap"
	"github.com/yuqie6/VitaQuest/internal/dto"
	"github.com/yuqie6/VitaQuest/internal/eventbus"
	"github.com/yuqie6/VitaQuest/internal/model"
	"github.com/yuqie6/VitaQuest/internal/repository"
	"github.com/yuqie6/VitaQuest/internal/service"
)

type apiServer struct {
	core      *bootstrap.Core
	hub       *eventbus.Hub
	startTime time.Time
}

func newAPI(core *bootstrap.Core, hub *eventbus.Hub) *apiServer {
	return &apiServer{
		core:      core,
		hub:       hub,
		startTime: time.Now(),
	}
}

// ========== routes ==========

func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", a.wrapGET(a.getStatus))

	mux.HandleFunc("/api/sync/status", a.wrapGET(a.getSyncStatus))
	mux.HandleFunc("/api/sync/retry", a.wrapPOST(a.retrySync))
	mux.HandleFunc("/api/sync/offline", a.wrapPOST(a.useOfflineData))

	mux.HandleFunc("/api/progress", a.wrapGET(a.getProgress))

	mux.HandleFunc("/api/activities", a.wrapAny(a.activities))
	mux.HandleFunc("/api/activities/stats", a.wrapGET(a.getActivityStats))
	mux.HandleFunc("/api/activities/reset", a.wrapPOST(a.resetActivities))

	mux.HandleFunc("/api/rewards/check", a.wrapGET(a.checkReward))
	mux.HandleFunc("/api/rewards/claim", a.wrapPOST(a.claimReward))

	mux.HandleFunc("/api/coach/report", a.wrapPOST(a.generateCoachReport))
	mux.HandleFunc("/api/coach/history", a.wrapGET(a.getCoachHistory))
}

func (a *apiServer) wrapGET(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) wrapPOST(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) wrapAny(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return fn
}

// identity 当前身份（认证在外部完成，这里只消费配置值）
func (a *apiServer) identity() string {
	return a.core.Cfg.Identity.UserID
}

// guardSync 被门控的读写入口统一检查同步状态
// 同步未决时返回 409，UI 据此展示同步中/失败界面
func (a *apiServer) guardSync(w http.ResponseWriter) bool {
	if err := a.core.Services.Sync.Guard(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return false
	}
	return true
}

// ========== handlers ==========

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       a.core.Cfg.App.Name,
		"version":    a.core.Cfg.App.Version,
		"started_at": a.startTime.Format(time.RFC3339),
	})
}

func (a *apiServer) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &dto.AppStatusDTO{
		Name:          a.core.Cfg.App.Name,
		Version:       a.core.Cfg.App.Version,
		StartedAt:     a.startTime.Format(time.RFC3339),
		UptimeSec:     int64(time.Since(a.startTime).Seconds()),
		SafeMode:      a.core.DB.SafeMode,
		SchemaVersion: a.core.DB.SchemaVersion,
		Identity:      a.identity(),
		Guest:         a.core.Cfg.Identity.Guest,
	})
}

func (a *apiServer) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	state, reason := a.core.Services.Sync.Status()
	writeJSON(w, http.StatusOK, &dto.SyncStatusDTO{
		State:        string(state),
		IsSyncing:    state == service.SyncSyncing,
		SyncError:    reason,
		IsDataSynced: state == service.SyncSynced || state == service.SyncSyncedOffline,
		Offline:      state == service.SyncSyncedOffline,
	})
}

func (a *apiServer) retrySync(w http.ResponseWriter, r *http.Request) {
	// 拉取可能耗时，交给后台执行；UI 通过 /api/sync/status 或 SSE 跟踪结果。
	// handler 返回时 r.Context() 即被取消，重试必须脱离请求生命周期
	go a.core.Services.Sync.Retry(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *apiServer) useOfflineData(w http.ResponseWriter, r *http.Request) {
	a.core.Services.Sync.UseOfflineData()
	a.getSyncStatus(w, r)
}

func (a *apiServer) getProgress(w http.ResponseWriter, r *http.Request) {
	if !a.guardSync(w) {
		return
	}

	// 读路径也走对账，缓存偏差在这里静默自愈
	profile, err := a.core.Services.Ledger.Progress(r.Context(), a.identity())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &dto.ProgressDTO{
		Identity:    profile.Identity,
		DisplayName: profile.DisplayName,
		TotalPoints: profile.TotalPoints,
		Level:       profile.Level,
		Badges:      profile.Badges.List(),
	})
}

func (a *apiServer) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listActivities(w, r)
	case http.MethodPost:
		a.appendActivity(w, r)
	case http.MethodDelete:
		a.clearActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *apiServer) listActivities(w http.ResponseWriter, r *http.Request) {
	if !a.guardSync(w) {
		return
	}

	kind := r.URL.Query().Get("kind")
	date := r.URL.Query().Get("date")
	var (
		entries []model.ActivityEntry
		err     error
	)
	switch {
	case date != "":
		startMs, endMs, rangeErr := repository.DayRange(date)
		if rangeErr != nil {
			writeError(w, http.StatusBadRequest, "date 格式应为 YYYY-MM-DD")
			return
		}
		entries, err = a.core.Repos.Activity.ListByTimeRange(r.Context(), a.identity(), startMs, endMs)
	case kind != "":
		entries, err = a.core.Repos.Activity.ListByKind(r.Context(), a.identity(), kind)
	default:
		entries, err = a.core.Repos.Activity.ListByIdentity(r.Context(), a.identity())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]dto.ActivityEntryDTO, 0, len(entries))
	for i := range entries {
		out = append(out, activityToDTO(&entries[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// AppendActivityRequestDTO 打卡请求
// 不接受积分字段：积分只由服务端规则表解析
type AppendActivityRequestDTO struct {
	Kind      string         `json:"kind"`
	Variant   string         `json:"variant"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

func (a *apiServer) appendActivity(w http.ResponseWriter, r *http.Request) {
	if !a.guardSync(w) {
		return
	}

	var req AppendActivityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind 不能为空")
		return
	}

	entry := model.NewActivityEntry(a.identity(), req.Kind, req.Variant)
	if req.Timestamp > 0 {
		entry.Timestamp = req.Timestamp
	}
	if len(req.Payload) > 0 {
		entry.Payload = model.JSONMap(req.Payload)
	}

	profile, err := a.core.Services.Ledger.LogActivity(r.Context(), entry)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entry": activityToDTO(entry),
		"progress": &dto.ProgressDTO{
			Identity:    profile.Identity,
			TotalPoints: profile.TotalPoints,
			Level:       profile.Level,
			Badges:      profile.Badges.List(),
		},
	})
}

func (a *apiServer) clearActivities(w http.ResponseWriter, r *http.Request) {
	if !a.guardSync(w) {
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		writeError(w, http.StatusBadRequest, "kind 不能为空")
		return
	}

	profile, err := a.core.Services.Ledger.ClearKind(r.Context(), a.identity(), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_points": profile.TotalPoints,
		"level":        profile.Level,
	})
}

func (a *apiServer) resetActivities(w http.ResponseWriter, r *http.Request) {
	if !a.guardSync(w) {
		return
	}

	identity := a.identity()
	if _, err := a.core.Repos.Grant.DeleteByIdentity(r.Context(), identity); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	profile, err := a.core.Services.Ledger.Reset(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_points": profile.TotalPoints,
		"level":        profile.Level,
	})
}

func (a *apiServer) getActivityStats(w http.ResponseWriter, r *http.Request) {
	if !a.guardSync(w) {
		return
	}

	stats, err := a.core.Repos.Activity.GetKindStats(r.Context(), a.identity())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]dto.KindStatDTO, 0, len(stats))
	for _, s := range stats {
		out = append(out, dto.KindStatDTO{Kind: s.Kind, EntryCount: s.EntryCount})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) checkReward(w http.ResponseWriter, r *http.Request) {
	feature := r.URL.Query().Get("feature")
	if feature == "" {
		writeError(w, http.StatusBadRequest, "feature 不能为空")
		return
	}

	window, err := resolveWindow(feature, r.URL.Query().Get("window"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := a.core.Services.Gate.CanGrant(r.Context(), a.identity(), feature, time.Now(), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &dto.GateCheckDTO{
		Feature:  feature,
		Window:   string(window),
		CanGrant: ok,
	})
}

// ClaimRewardRequestDTO 奖励领取请求
type ClaimRewardRequestDTO struct {
	Feature string `json:"feature"`
	Window  string `json:"window"`
}

func (a *apiServer) claimReward(w http.ResponseWriter, r *http.Request) {
	if !a.guardSync(w) {
		return
	}

	var req ClaimRewardRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败")
		return
	}
	if req.Feature == "" {
		writeError(w, http.StatusBadRequest, "feature 不能为空")
		return
	}

	window, err := resolveWindow(req.Feature, req.Window)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	granted, err := a.core.Services.Gate.TryGrant(r.Context(), a.identity(), req.Feature, time.Now(), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// 窗口内重复领取不是错误，granted=false 由调用方决定 UX
	writeJSON(w, http.StatusOK, map[string]any{"granted": granted})
}

func (a *apiServer) generateCoachReport(w http.ResponseWriter, r *http.Request) {
	if !a.guardSync(w) {
		return
	}

	report, err := a.core.Services.Coach.GenerateWeeklyReport(r.Context(), a.identity(), time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCoachNotConfigured):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrCoachGated):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, coachReportToDTO(report))
}

func (a *apiServer) getCoachHistory(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	reports, err := a.core.Services.Coach.History(r.Context(), a.identity(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]dto.CoachReportDTO, 0, len(reports))
	for i := range reports {
		out = append(out, *coachReportToDTO(&reports[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// ========== helpers ==========

func resolveWindow(feature, raw string) (service.GateWindow, error) {
	if raw == "" {
		if window, ok := service.WindowForFeature(feature); ok {
			return window, nil
		}
		return "", errors.New("window 不能为空")
	}
	switch service.GateWindow(raw) {
	case service.WindowDaily, service.WindowWeekly, service.WindowISOWeek:
		return service.GateWindow(raw), nil
	}
	return "", errors.New("不支持的窗口类型，请使用 day/week/iso_week")
}

func activityToDTO(entry *model.ActivityEntry) dto.ActivityEntryDTO {
	return dto.ActivityEntryDTO{
		ID:        entry.ID,
		Kind:      entry.Kind,
		Variant:   entry.Variant,
		Timestamp: entry.Timestamp,
		Payload:   entry.Payload,
	}
}

func coachReportToDTO(report *model.CoachReport) *dto.CoachReportDTO {
	return &dto.CoachReportDTO{
		StartDate:   report.StartDate,
		EndDate:     report.EndDate,
		Overview:    report.Overview,
		Highlights:  report.Highlights,
		Suggestions: report.Suggestions,
		TotalPoints: report.TotalPoints,
		EntryCount:  report.EntryCount,
	}
}
