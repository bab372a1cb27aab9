package services

import (
	"strings"
	"testing"

	"modbot-keeper/internal/models"
)

// faultySurface 每个方法都抛出的审核面实现
type faultySurface struct{}

func (f *faultySurface) IsAdmin(userID string) bool { panic("ledger corrupted") }
func (f *faultySurface) HasRecord(userID string) bool { panic("ledger corrupted") }
func (f *faultySurface) GetRecord(userID string) *models.ModerationRecord {
	panic("ledger corrupted")
}
func (f *faultySurface) AddRecord(record models.ModerationRecord) models.OpResult {
	panic("ledger corrupted")
}
func (f *faultySurface) RemoveRecord(userID string) models.OpResult { panic("ledger corrupted") }
func (f *faultySurface) SaveLedger() models.OpResult { panic("ledger corrupted") }

// healthySurface 透传验证用的正常实现
type healthySurface struct {
	records map[string]models.ModerationRecord
}

func (h *healthySurface) IsAdmin(userID string) bool { return userID == "admin" }
func (h *healthySurface) HasRecord(userID string) bool {
	_, ok := h.records[userID]
	return ok
}
func (h *healthySurface) GetRecord(userID string) *models.ModerationRecord {
	if record, ok := h.records[userID]; ok {
		return &record
	}
	return nil
}
func (h *healthySurface) AddRecord(record models.ModerationRecord) models.OpResult {
	h.records[record.UserID] = record
	return models.OpResult{Success: true}
}
func (h *healthySurface) RemoveRecord(userID string) models.OpResult {
	delete(h.records, userID)
	return models.OpResult{Success: true}
}
func (h *healthySurface) SaveLedger() models.OpResult { return models.OpResult{Success: true} }

/**
 * TestIsolationPassthrough 验证无故障时的透明转发
 */
func TestIsolationPassthrough(t *testing.T) {
	inner := &healthySurface{records: map[string]models.ModerationRecord{}}
	wrapped := IsolateModeration("warnings", inner, nil)

	if !wrapped.IsAdmin("admin") {
		t.Error("passthrough IsAdmin lost the real answer")
	}
	if r := wrapped.AddRecord(models.ModerationRecord{UserID: "u1", Reason: "spam"}); !r.Success {
		t.Errorf("passthrough AddRecord failed: %+v", r)
	}
	if !wrapped.HasRecord("u1") {
		t.Error("passthrough HasRecord lost the record")
	}
	if record := wrapped.GetRecord("u1"); record == nil || record.Reason != "spam" {
		t.Errorf("passthrough GetRecord returned %+v", record)
	}
}

/**
 * TestIsolationFallbacks 验证非关键方法的确定性降级
 * @description
 * - Is/Has前缀降级为false，Get前缀降级为nil
 * - Add/Remove/Save降级为失败的操作结果
 */
func TestIsolationFallbacks(t *testing.T) {
	wrapped := IsolateModeration("banlist", &faultySurface{}, nil)

	if wrapped.HasRecord("u1") {
		t.Error("Has-prefix method must degrade to false")
	}
	if record := wrapped.GetRecord("u1"); record != nil {
		t.Errorf("Get-prefix method must degrade to nil, got %+v", record)
	}
	if r := wrapped.AddRecord(models.ModerationRecord{UserID: "u1"}); r.Success {
		t.Error("Add-prefix method must degrade to a failed result")
	} else if !strings.Contains(r.Message, "ledger corrupted") {
		t.Errorf("degraded result must carry the fault, got %q", r.Message)
	}
	if r := wrapped.RemoveRecord("u1"); r.Success {
		t.Error("Remove-prefix method must degrade to a failed result")
	}
	if r := wrapped.SaveLedger(); r.Success {
		t.Error("Save-prefix method must degrade to a failed result")
	}
}

/**
 * TestIsolationCriticalRethrows 验证关键方法重新抛出
 * @description
 * - IsAdmin在允许清单上：静默降级为false会把普通用户当非管理员
 *   放行敏感操作的反向错误，必须向上抛
 */
func TestIsolationCriticalRethrows(t *testing.T) {
	wrapped := IsolateModeration("warnings", &faultySurface{}, nil)

	defer func() {
		if r := recover(); r == nil {
			t.Error("critical IsAdmin fault must be re-raised")
		}
	}()
	wrapped.IsAdmin("u1")
}

/**
 * TestIsolationCriticalListIsPerComponent 验证允许清单按组件划分
 * @description
 * - 同一方法名在未列出的组件上走普通降级
 */
func TestIsolationCriticalListIsPerComponent(t *testing.T) {
	wrapped := IsolateModeration("scratchpad", &faultySurface{}, nil)

	if wrapped.IsAdmin("u1") {
		t.Error("non-critical IsAdmin must degrade to false")
	}
}

// faultyLedgerComp 既是组件又暴露故障审核面
type faultyLedgerComp struct {
	*fakeComponent
	*faultySurface
}

/**
 * TestOrchestratorModerationRegistry 验证编排器只暴露隔离后的审核面
 * @description
 * - 注册后取到的面已经过包装：故障方法降级而不是把panic漏给调用方
 * - 未注册的组件取到nil
 */
func TestOrchestratorModerationRegistry(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	comp := &faultyLedgerComp{
		fakeComponent: newFakeComponent("banlist"),
		faultySurface: &faultySurface{},
	}
	orch.RegisterComponent(comp, nil)
	orch.RegisterModeration("banlist", comp)

	surface := orch.Moderation("banlist")
	if surface == nil {
		t.Fatal("registered moderation surface must be reachable")
	}
	if surface.HasRecord("u1") {
		t.Error("faulting surface must degrade to false through the wrapper")
	}
	if orch.Moderation("ghost") != nil {
		t.Error("unregistered component must yield nil")
	}
}

/**
 * TestBuiltinModerationWiring 验证内置装配把warnings审核面接入编排器
 */
func TestBuiltinModerationWiring(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	RegisterBuiltins(orch)

	surface := orch.Moderation("warnings")
	if surface == nil {
		t.Fatal("warnings must expose an isolated moderation surface")
	}
	if surface.HasRecord("u1") {
		t.Error("empty ledger must report no record")
	}
	if orch.Moderation("banlist") != nil {
		t.Error("plain ledgers must not expose a moderation surface")
	}
}
