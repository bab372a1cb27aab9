package services

import (
	"fmt"

	"modbot-keeper/internal/logger"
	"modbot-keeper/internal/models"
)

/**
 * Moderation surface exposed by ledger-like subsystems, the method
 * set eligible for error isolation
 * @description
 * - Admin checks are on the critical allowlist: their silent failure
 *   would be unsafe, so the wrapper re-raises instead of defaulting
 * - Accessors and mutators degrade to deterministic fallbacks
 */
type ModerationSurface interface {
	IsAdmin(userID string) bool
	HasRecord(userID string) bool
	GetRecord(userID string) *models.ModerationRecord
	AddRecord(record models.ModerationRecord) models.OpResult
	RemoveRecord(userID string) models.OpResult
	SaveLedger() models.OpResult
}

// criticalMethods 按组件划分的关键方法允许清单
var criticalMethods = map[string]map[string]bool{
	"warnings":  {"IsAdmin": true},
	"banlist":   {"IsAdmin": true},
	"blocklist": {"IsAdmin": true},
}

/**
 * Wrap a moderation component in an error boundary
 * @param {string} name - Component name, selects the critical allowlist
 * @param {ModerationSurface} inner - The real component
 * @param {Alerter} alerter - Receives fault reports, may be nil
 * @returns {ModerationSurface} Forwarding adapter with the
 *                              try/catch-and-fallback policy applied
 * @description
 * - Every call runs behind a panic boundary
 * - On failure the fault is reported, then either re-raised (critical
 *   method) or replaced by the verb-prefix fallback:
 *   Is/Has -> false, Get/Load -> nil, Add/Remove/Save -> {success:false}
 */
func IsolateModeration(name string, inner ModerationSurface, alerter Alerter) ModerationSurface {
	return &isolatedModeration{
		name:    name,
		inner:   inner,
		alerter: alerter,
	}
}

type isolatedModeration struct {
	name    string
	inner   ModerationSurface
	alerter Alerter
}

// guard 统一的故障边界；关键方法重新抛出，其余吞掉
func (m *isolatedModeration) guard(method string) {
	r := recover()
	if r == nil {
		return
	}
	m.report(method, r)
}

func (m *isolatedModeration) IsAdmin(userID string) (result bool) {
	defer m.guard("IsAdmin")
	return m.inner.IsAdmin(userID)
}

func (m *isolatedModeration) HasRecord(userID string) (result bool) {
	defer m.guard("HasRecord")
	return m.inner.HasRecord(userID)
}

func (m *isolatedModeration) GetRecord(userID string) (record *models.ModerationRecord) {
	defer m.guard("GetRecord")
	return m.inner.GetRecord(userID)
}

func (m *isolatedModeration) AddRecord(record models.ModerationRecord) (result models.OpResult) {
	defer func() {
		if r := recover(); r != nil {
			m.report("AddRecord", r)
			result = models.OpResult{Success: false, Message: fmt.Sprintf("%v", r)}
		}
	}()
	return m.inner.AddRecord(record)
}

func (m *isolatedModeration) RemoveRecord(userID string) (result models.OpResult) {
	defer func() {
		if r := recover(); r != nil {
			m.report("RemoveRecord", r)
			result = models.OpResult{Success: false, Message: fmt.Sprintf("%v", r)}
		}
	}()
	return m.inner.RemoveRecord(userID)
}

func (m *isolatedModeration) SaveLedger() (result models.OpResult) {
	defer func() {
		if r := recover(); r != nil {
			m.report("SaveLedger", r)
			result = models.OpResult{Success: false, Message: fmt.Sprintf("%v", r)}
		}
	}()
	return m.inner.SaveLedger()
}

// report 上报故障并按关键方法允许清单决定是否重新抛出
func (m *isolatedModeration) report(method string, r interface{}) {
	logger.Errorf("Isolated component '%s' failed in %s: %v", m.name, method, r)
	notifyAlert(m.alerter, "Component fault",
		fmt.Sprintf("'%s.%s' failed: %v", m.name, method, r),
		map[string]string{"component": m.name, "method": method}, "red")
	if criticalMethods[m.name][method] {
		panic(r)
	}
}
