package main

import (
	"fmt"
	"time"

	"Q-ITS-Mastery-Backend/internal/api"
	"Q-ITS-Mastery-Backend/internal/client"
	"Q-ITS-Mastery-Backend/internal/monitoring"
	"Q-ITS-Mastery-Backend/internal/quantum"
	"Q-ITS-Mastery-Backend/internal/repository"
	"Q-ITS-Mastery-Backend/internal/router"
	"Q-ITS-Mastery-Backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	cfg, log, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	monitoring.Init()

	if cfg.Dify.APIKey == "" {
		log.Warn("Dify API Key 未配置，出题接口将无法使用")
	}
	if cfg.TianYan.LoginKey == "" {
		log.Warn("天衍平台登录密钥未配置，量子分析将返回计算错误")
	}

	tianyan := client.NewTianYanClient(cfg.TianYanOptions(), log)
	settings := cfg.EngineSettings()
	engine := quantum.NewEngine(settings, tianyan, log)

	repo, err := repository.NewSessionLogRepository(afero.NewOsFs(), cfg.Session.LogsDir, log)
	if err != nil {
		return err
	}
	questions := service.NewQuestionService(cfg.Dify.APIURL, cfg.Dify.APIKey, cfg.Dify.TimeoutSeconds, log)
	sessions := service.NewSessionService(questions, engine, repo, settings.Thresholds, cfg.Dify.UserID, log).
		WithIdleTimeout(time.Duration(cfg.Session.IdleTimeoutMinutes) * time.Minute)
	handler := api.NewSessionHandler(sessions, tianyan, log)

	gin.SetMode(cfg.Server.Mode)
	r := router.SetupRouter(handler, cfg)

	log.Info("服务启动",
		zap.String("addr", fmt.Sprintf("http://localhost%s", cfg.Server.Port)),
		zap.String("machine", settings.MachineName),
		zap.Int("qubits", settings.Capacity))
	if err := r.Run(cfg.Server.Port); err != nil {
		log.Error("服务启动失败", zap.Error(err))
		return err
	}
	return nil
}
