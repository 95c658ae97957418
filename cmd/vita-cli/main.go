package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/VitaQuest/internal/bootstrap"
	"github.com/yuqie6/VitaQuest/internal/model"
	"github.com/yuqie6/VitaQuest/internal/pkg/buildinfo"
	"github.com/yuqie6/VitaQuest/internal/service"
)

var (
	cfgFile string
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vita",
		Short: "VitaQuest - 健康习惯追踪与成长激励系统",
		Long:  `VitaQuest 将喝水、饮食、睡眠等健康打卡转化为积分与等级，并由 AI 教练生成每周总结。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			// CLI 是本地维护入口，直接读写本地存储，有意不经过
			// Sync.Guard：远端同步由常驻的 vita-agent 负责，这里
			// 不触发同步，本地账本对账保证结果自洽
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(progressCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(coachCmd())
	rootCmd.AddCommand(resetCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd 版本信息
func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("VitaQuest %s (%s)\n", buildinfo.Version, buildinfo.Commit)
		},
	}
	// version 不需要初始化核心依赖
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {}
	return cmd
}

// progressCmd 查看当前进度
func progressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "查看当前积分与等级",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			identity := core.Cfg.Identity.UserID

			profile, err := core.Services.Ledger.Progress(ctx, identity)
			if err != nil {
				slog.Error("读取进度失败", "error", err)
				os.Exit(1)
			}

			fmt.Printf("身份:   %s\n", profile.Identity)
			fmt.Printf("积分:   %d\n", profile.TotalPoints)
			fmt.Printf("等级:   Lv.%d\n", profile.Level)
			if badges := profile.Badges.List(); len(badges) > 0 {
				fmt.Printf("徽章:   %v\n", badges)
			}
		},
	}
}

// logCmd 手动打卡
func logCmd() *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "log <kind>",
		Short: "记录一次活动打卡（water/meal/sleep/mood/habit/social/quiz/plan）",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			identity := core.Cfg.Identity.UserID

			entry := model.NewActivityEntry(identity, args[0], variant)
			profile, err := core.Services.Ledger.LogActivity(ctx, entry)
			if err != nil {
				slog.Error("打卡失败", "error", err)
				os.Exit(1)
			}

			fmt.Printf("✅ 已记录 %s", args[0])
			if variant != "" {
				fmt.Printf("/%s", variant)
			}
			fmt.Printf("，当前积分 %d (Lv.%d)\n", profile.TotalPoints, profile.Level)
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "", "子类型，如 quiz 的 daily/weekly")
	return cmd
}

// statsCmd 活动统计
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "按类型查看活动统计",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			identity := core.Cfg.Identity.UserID

			stats, err := core.Repos.Activity.GetKindStats(ctx, identity)
			if err != nil {
				slog.Error("读取统计失败", "error", err)
				os.Exit(1)
			}
			if len(stats) == 0 {
				fmt.Println("暂无活动记录")
				return
			}

			for _, s := range stats {
				fmt.Printf("%-8s %5d 次\n", s.Kind, s.EntryCount)
			}
		},
	}
}

// reconcileCmd 手动对账
func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "重算权威总积分并纠正档案缓存",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			identity := core.Cfg.Identity.UserID

			profile, err := core.Services.Ledger.Reconcile(ctx, identity)
			if err != nil {
				slog.Error("对账失败", "error", err)
				os.Exit(1)
			}

			fmt.Printf("✅ 对账完成：积分 %d (Lv.%d)\n", profile.TotalPoints, profile.Level)
		},
	}
}

// coachCmd 生成 AI 教练周报
func coachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coach",
		Short: "生成最近 7 天的 AI 教练周报",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			identity := core.Cfg.Identity.UserID

			if !core.Services.Coach.IsConfigured() {
				fmt.Println("⚠️  对话 API Key 未配置")
				fmt.Println("   请设置环境变量或在 config.yaml 中配置 ai.chat.api_key")
				os.Exit(1)
			}

			report, err := core.Services.Coach.GenerateWeeklyReport(ctx, identity, time.Now())
			if err != nil {
				if errors.Is(err, service.ErrCoachGated) {
					fmt.Println("⏳ 本周周报已生成，请下周再来")
					return
				}
				slog.Error("生成周报失败", "error", err)
				os.Exit(1)
			}

			fmt.Printf("📋 健康周报 (%s ~ %s)\n\n", report.StartDate, report.EndDate)
			fmt.Println(report.Overview)
			if len(report.Highlights) > 0 {
				fmt.Println("\n亮点：")
				for _, h := range report.Highlights {
					fmt.Println("  - " + h)
				}
			}
			if report.Suggestions != "" {
				fmt.Println("\n建议：" + report.Suggestions)
			}
		},
	}
}

// resetCmd 整体数据重置
func resetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "清空当前身份的全部活动记录与发放记录",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			identity := core.Cfg.Identity.UserID

			if !yes {
				fmt.Printf("即将清空身份 %s 的全部数据，请加 --yes 确认\n", identity)
				os.Exit(1)
			}

			if _, err := core.Repos.Grant.DeleteByIdentity(ctx, identity); err != nil {
				slog.Error("清空发放记录失败", "error", err)
				os.Exit(1)
			}
			profile, err := core.Services.Ledger.Reset(ctx, identity)
			if err != nil {
				slog.Error("重置失败", "error", err)
				os.Exit(1)
			}

			fmt.Printf("✅ 已重置：积分 %d (Lv.%d)\n", profile.TotalPoints, profile.Level)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "确认重置")
	return cmd
}
