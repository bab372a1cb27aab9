package services

import (
	"fmt"
	"time"

	"modbot-keeper/internal/logger"
	"modbot-keeper/internal/models"
)

// requiredDataComponents 结构检查目标：这些组件的data集合不允许为空
var requiredDataComponents = map[string]bool{
	"warnings":  true,
	"banlist":   true,
	"blocklist": true,
}

/**
 * Health check engine: read-only diagnostic pass over every known
 * component plus the command registry
 * @description
 * - Structural check: critical collections must be non-empty
 * - Liveness check: gateway connectivity flag
 * - healthy if all pass, degraded on any non-fatal issue, unhealthy
 *   when any single check panics
 * - Never mutates any state; the report is recomputed on demand and
 *   never stored
 */
type HealthChecker struct {
	orch     *ReloadOrchestrator
	registry CommandRegistry
}

func NewHealthChecker(orch *ReloadOrchestrator, registry CommandRegistry) *HealthChecker {
	return &HealthChecker{orch: orch, registry: registry}
}

/**
 * Perform the aggregated health check
 * @returns {models.HealthReport} Overall status plus itemized issues
 *                                for operator remediation
 */
func (hc *HealthChecker) PerformHealthCheck() models.HealthReport {
	report := models.HealthReport{
		Overall:    models.Healthy,
		Components: make(map[string]models.ComponentHealth),
		Issues:     []string{},
		Timestamp:  time.Now(),
	}

	for name, comp := range hc.orch.componentMap() {
		health := hc.checkComponent(name, comp)
		report.Components[name] = health
		hc.fold(&report, name, health)
	}

	cmdHealth := hc.checkCommands()
	report.Components[commandsTarget] = cmdHealth
	hc.fold(&report, commandsTarget, cmdHealth)

	return report
}

func (hc *HealthChecker) fold(report *models.HealthReport, name string, health models.ComponentHealth) {
	switch health.Status {
	case models.Unhealthy:
		report.Overall = models.Unhealthy
	case models.Degraded:
		if report.Overall != models.Unhealthy {
			report.Overall = models.Degraded
		}
	}
	if health.Issue != "" {
		report.Issues = append(report.Issues, fmt.Sprintf("%s: %s", name, health.Issue))
	}
}

/**
 * Check one component: structural then liveness
 * @description
 * - A panicking check marks the component unhealthy instead of
 *   aborting the pass
 */
func (hc *HealthChecker) checkComponent(name string, comp Component) (health models.ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Health check for '%s' panicked: %v", name, r)
			health = models.ComponentHealth{
				Status: models.Unhealthy,
				Issue:  fmt.Sprintf("check threw: %v", r),
			}
		}
	}()

	if requiredDataComponents[name] {
		if h, ok := comp.(DataHolder); ok {
			if len(h.Data()) == 0 {
				return models.ComponentHealth{
					Status: models.Degraded,
					Issue:  "required data collection is empty",
				}
			}
		}
	}
	if h, ok := comp.(GatewayState); ok {
		if !h.Connected() {
			return models.ComponentHealth{
				Status: models.Degraded,
				Issue:  "gateway is not connected",
			}
		}
	}
	return models.ComponentHealth{Status: models.Healthy}
}

func (hc *HealthChecker) checkCommands() (health models.ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			health = models.ComponentHealth{
				Status: models.Unhealthy,
				Issue:  fmt.Sprintf("check threw: %v", r),
			}
		}
	}()
	if len(hc.registry.Commands()) == 0 {
		return models.ComponentHealth{
			Status: models.Degraded,
			Issue:  "command table is empty",
		}
	}
	return models.ComponentHealth{Status: models.Healthy}
}
