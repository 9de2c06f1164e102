// @title Learner Insight API
// @version 1.0
// @description 学习者个性化与学习分析服务。
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"fmt"
	"learner_insight/internal/app"
	"learner_insight/internal/config"
	"learner_insight/pkg/logger"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	cfg        *config.Config
)

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized", zap.String("config", cfg.Source))
	return nil
}

func serve(cmd *cobra.Command, args []string) error {
	defer logger.Log.Sync()

	application, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	return application.Run()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "learner-insight",
		Short:             "Learner personalization and analytics service",
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		RunE:              serve,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs", "config directory or yaml file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE:  serve,
	})

	var seed bool
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Log.Sync()
			cfg.MigrateOnly = true
			if seed {
				cfg.Database.Seed = true
			}
			if err := app.Migrate(cfg); err != nil {
				return err
			}
			logger.Log.Info("数据库迁移完成")
			return nil
		},
	}
	migrate.Flags().BoolVar(&seed, "seed", false, "insert the starter catalog into an empty database")
	root.AddCommand(migrate)

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
