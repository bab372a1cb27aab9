package server

import (
	"context"
	"fmt"
	"time"

	"modbot-keeper/cmd/root"
	"modbot-keeper/controllers"
	"modbot-keeper/internal/config"
	"modbot-keeper/internal/logger"
	"modbot-keeper/internal/middleware"
	"modbot-keeper/internal/models"
	"modbot-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动热重载守护进程",
	Run: func(cmd *cobra.Command, args []string) {
		if err := startServer(context.Background()); err != nil {
			logger.Fatal(err)
		}
	},
}

/**
 * Assemble and start the keeper daemon
 * @description
 * - Builds the orchestrator with the built-in subsystems and computes
 *   the reload order; a dependency cycle aborts startup
 * - Wires the file watcher, emergency-recovery hooks and the reload
 *   completion alert
 * - Exposes the control API over gin
 */
func startServer(ctx context.Context) error {
	cfg := &config.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	alerter := services.NewLogAlerter()
	registry := services.NewFileCommandRegistry(cfg.Watcher.CommandsDir)
	orch := services.NewReloadOrchestrator(
		registry,
		alerter,
		cfg.Watcher.CommandsDir,
		time.Duration(cfg.Reload.HookTimeoutSeconds)*time.Second,
	)
	services.RegisterBuiltins(orch)
	if err := orch.Init(); err != nil {
		// 循环依赖是致命配置错误，不允许进入可重载状态
		return err
	}
	if _, err := registry.ReloadCommands(); err != nil {
		logger.Warnf("Initial command load failed: %v", err)
	}

	watcher := services.NewFileWatcher(
		orch,
		cfg.Watcher.ConfigFiles,
		cfg.Watcher.CommandsDir,
		time.Duration(cfg.Reload.DebounceMs)*time.Millisecond,
	)
	orch.Rollback().SetRecoveryHooks(watcher.Cleanup, watcher.Start)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("启动文件监视失败: %v", err)
	}
	defer watcher.Cleanup()

	orch.OnReloadComplete(func(result models.ReloadResult) {
		logger.Debugf("Reload event: success=%v components=%v", result.Success, result.ReloadedComponents)
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.MetricsMiddleware())

	checker := services.NewHealthChecker(orch, registry)
	apiController := controllers.NewAPIController(orch, checker)
	apiController.RegisterRoutes(router)

	logger.Infof("modbot-keeper listening on %s", cfg.Server.Address)
	return router.Run(cfg.Server.Address)
}

func init() {
	root.RootCmd.AddCommand(serverCmd)
}
