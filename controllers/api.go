package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"modbot-keeper/internal/models"
	"modbot-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIController struct {
	orch    *services.ReloadOrchestrator
	checker *services.HealthChecker
}

/**
 * Create new API controller instance
 * @param {*services.ReloadOrchestrator} orch - Reload orchestrator handle
 * @param {*services.HealthChecker} checker - Health check engine
 * @returns {*APIController} New API controller instance
 */
func NewAPIController(orch *services.ReloadOrchestrator, checker *services.HealthChecker) *APIController {
	return &APIController{
		orch:    orch,
		checker: checker,
	}
}

/**
 * Register all API routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - Creates /modbot/api/v1 route group
 * - Registers routes for:
 *   - Hot reload (full/subset/single command)
 *   - Rollback (full/selective/emergency recovery)
 *   - Status, history and health diagnostics
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.POST("/modbot/api/v1/reload", a.Reload)
	r.POST("/modbot/api/v1/reload/command/:filename", a.ReloadCommand)
	r.POST("/modbot/api/v1/rollback", a.Rollback)
	r.POST("/modbot/api/v1/rollback/selective", a.SelectiveRollback)
	r.POST("/modbot/api/v1/recovery", a.EmergencyRecovery)
	r.GET("/modbot/api/v1/status", a.Status)
	r.GET("/modbot/api/v1/history", a.History)
	r.GET("/modbot/api/v1/moderation/:component/record/:userId", a.ModerationRecord)
	r.GET("/healthz", a.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// @Summary 热重载
// @Description 按依赖顺序热重载指定组件子集，子集为空表示全量重载
// @Tags Reload
// @Accept json
// @Produce json
// @Param request body models.ReloadRequest false "目标组件子集"
// @Success 200 {object} models.ReloadResult "批次结果，含每个组件的失败明细"
// @Failure 409 {object} models.ErrorResponse "已有批次在执行，调用方需要重试"
// @Router /modbot/api/v1/reload [post]
func (a *APIController) Reload(c *gin.Context) {
	var req models.ReloadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Code:  "reload.bad_request",
				Error: err.Error(),
			})
			return
		}
	}

	result, err := a.orch.HotReload(c.Request.Context(), req.Components)
	if errors.Is(err, services.ErrReloadInProgress) {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Code:  "reload.in_progress",
			Error: err.Error(),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:  "reload.failed",
			Error: err.Error(),
		})
		return
	}
	// 部分失败也返回200：结构化结果里带有逐组件的错误明细
	c.JSON(http.StatusOK, result)
}

// @Summary 重载单个命令
// @Description 从命令源目录重新加载指定命令文件并重新注册命令表
// @Tags Reload
// @Produce json
// @Param filename path string true "命令文件名"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /modbot/api/v1/reload/command/{filename} [post]
func (a *APIController) ReloadCommand(c *gin.Context) {
	filename := c.Param("filename")
	if err := a.orch.ReloadCommand(filename); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:  "reload.command_failed",
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Command reloaded: " + filename,
	})
}

// @Summary 全量回滚
// @Description 回滚到最近的检查点，整表替换命令和各组件的config/data
// @Tags Rollback
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} models.ErrorResponse "没有可用检查点"
// @Router /modbot/api/v1/rollback [post]
func (a *APIController) Rollback(c *gin.Context) {
	if err := a.orch.PerformRollback(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrNoCheckpoint) || errors.Is(err, services.ErrReloadInProgress) {
			status = http.StatusConflict
		}
		c.JSON(status, models.ErrorResponse{
			Code:  "rollback.failed",
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Rolled back to the most recent checkpoint",
	})
}

// @Summary 选择性回滚
// @Description 只从最近检查点恢复指定组件，健康子系统的状态不受影响
// @Tags Rollback
// @Accept json
// @Produce json
// @Param request body models.RollbackRequest false "要回滚的组件子集"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} models.ErrorResponse "没有可用检查点"
// @Router /modbot/api/v1/rollback/selective [post]
func (a *APIController) SelectiveRollback(c *gin.Context) {
	var req models.RollbackRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Code:  "rollback.bad_request",
				Error: err.Error(),
			})
			return
		}
	}
	if err := a.orch.PerformSelectiveRollback(req.Components); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrNoCheckpoint) || errors.Is(err, services.ErrReloadInProgress) {
			status = http.StatusConflict
		}
		c.JSON(status, models.ErrorResponse{
			Code:  "rollback.failed",
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Selective rollback completed",
	})
}

// @Summary 紧急恢复
// @Description 停止watcher、全量回滚、重新初始化关键组件、重启watcher；链路中任何失败都是致命的
// @Tags Rollback
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /modbot/api/v1/recovery [post]
func (a *APIController) EmergencyRecovery(c *gin.Context) {
	if err := a.orch.Rollback().EmergencyRecovery(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Code:  "recovery.failed",
			Error: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Emergency recovery completed",
	})
}

// @Summary 编排器状态
// @Description 返回编排器状态、重载顺序、检查点数量和最近一次批次结果
// @Tags System
// @Produce json
// @Success 200 {object} models.ReloadStatus
// @Router /modbot/api/v1/status [get]
func (a *APIController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, a.orch.GetStatus())
}

// @Summary 重载历史
// @Description 返回最近的重载批次历史，最新的在尾部
// @Tags System
// @Produce json
// @Param limit query int false "返回条数上限"
// @Success 200 {object} []models.ReloadResult
// @Router /modbot/api/v1/history [get]
func (a *APIController) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Code:  "history.bad_request",
				Error: "limit must be an integer",
			})
			return
		}
		limit = parsed
	}
	c.JSON(http.StatusOK, a.orch.GetHistory(limit))
}

// @Summary 查询违规记录
// @Description 通过隔离包装的审核操作面查询某用户的违规记录；组件故障时降级为确定性回退值而不是500
// @Tags Moderation
// @Produce json
// @Param component path string true "台账组件名"
// @Param userId path string true "用户ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse "组件未暴露审核操作面"
// @Router /modbot/api/v1/moderation/{component}/record/{userId} [get]
func (a *APIController) ModerationRecord(c *gin.Context) {
	component := c.Param("component")
	surface := a.orch.Moderation(component)
	if surface == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Code:  "moderation.unknown_component",
			Error: "no moderation surface for component: " + component,
		})
		return
	}
	userID := c.Param("userId")
	c.JSON(http.StatusOK, gin.H{
		"component": component,
		"userId":    userID,
		"hasRecord": surface.HasRecord(userID),
		"record":    surface.GetRecord(userID),
	})
}

// @Summary 健康检查
// @Description 只读诊断：对每个组件和命令注册表做结构检查和存活检查，返回逐项问题清单
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthReport
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, a.checker.PerformHealthCheck())
}
