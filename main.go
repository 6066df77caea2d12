package main

import (
	"classwork_backend/internal/app"
	"classwork_backend/internal/config"
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "classwork",
		Short:        "每日作业与考试的分发、判分和统计服务",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "configs", "配置文件 config.yaml 所在目录")

	serve := serveCmd()
	root.AddCommand(serve, migrateCmd(), fanoutCmd(), statsCmd(), tokenCmd())

	// 不带子命令时默认启动服务
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.ForceMigrate, _ = cmd.Flags().GetBool("migrate")

			application, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			if err := application.SetupHTTP(); err != nil {
				return err
			}
			return application.Run()
		},
	}
	cmd.Flags().Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "只执行数据库迁移，完成后退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.ForceMigrate = true
			cfg.MigrateOnly = true

			application, err := app.NewApp(cfg)
			if err != nil {
				return err
			}
			application.Close(context.Background())
			fmt.Fprintln(cmd.OutOrStdout(), "数据库迁移完成")
			return nil
		},
	}
}

// fanoutCmd 发布模板并给新加入班级的学生补发副本，已有副本不受影响
func fanoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fanout",
		Short: "发布作业或考试并补发学生副本",
		RunE: func(cmd *cobra.Command, args []string) error {
			assignmentID, _ := cmd.Flags().GetUint("assignment")
			examID, _ := cmd.Flags().GetUint("exam")
			kind, id := "assignment", assignmentID
			if examID > 0 {
				kind, id = "exam", examID
			}
			if (assignmentID > 0) == (examID > 0) {
				return fmt.Errorf("exactly one of --assignment or --exam is required")
			}

			application, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close(context.Background())

			res, err := application.FanOut(cmd.Context(), kind, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().Uint("assignment", 0, "作业 ID")
	cmd.Flags().Uint("exam", 0, "考试 ID")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "输出作业统计 JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetUint("assignment")

			application, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close(context.Background())

			stats, err := application.Analytics().ComputeStats(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
	cmd.Flags().Uint("assignment", 0, "作业 ID")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

// tokenCmd 为本地调试签发令牌，正式环境由外部登录服务签发
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "签发调试用 JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetUint("user")
			role, _ := cmd.Flags().GetString("role")
			group, _ := cmd.Flags().GetString("group")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			user := &model.User{Role: model.UserRole(role), Group: group}
			user.ID = userID
			token, err := util.GenerateJWT(user, cfg.JWT.Secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint("user", 0, "用户 ID")
	f.String("role", string(model.Student), "角色：student / teacher / admin")
	f.String("group", "", "班级")
	f.Duration("ttl", 24*time.Hour, "有效期")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.NewApp(cfg)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
