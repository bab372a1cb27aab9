package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"modbot-keeper/internal/models"
)

func newTestOrchestrator(t *testing.T) (*ReloadOrchestrator, *FileCommandRegistry) {
	t.Helper()
	dir := t.TempDir()
	registry := NewFileCommandRegistry(dir)
	orch := NewReloadOrchestrator(registry, nil, dir, time.Second)
	return orch, registry
}

/**
 * TestHotReloadFullBatch 验证全量批次
 * @description
 * - 按依赖序重载全部组件，命令表重载折叠进同一结果
 * - 结果结构化返回：成功标志、重载清单、耗时
 */
func TestHotReloadFullBatch(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	storage := newFakeComponent("storage")
	warnings := newFakeComponent("warnings")
	orch.RegisterComponent(storage, nil)
	orch.RegisterComponent(warnings, []string{"storage"})
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	result, err := orch.HotReload(context.Background(), nil)
	if err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got errors %v", result.Errors)
	}
	want := []string{"storage", "warnings", "commands"}
	if len(result.ReloadedComponents) != len(want) {
		t.Fatalf("expected reloaded %v, got %v", want, result.ReloadedComponents)
	}
	for i, name := range want {
		if result.ReloadedComponents[i] != name {
			t.Fatalf("expected dependency order %v, got %v", want, result.ReloadedComponents)
		}
	}
	if result.Commands == nil {
		t.Error("full batch must fold the command summary into the result")
	}
	if storage.reloads != 1 || warnings.reloads != 1 {
		t.Errorf("expected each hook invoked once, got storage=%d warnings=%d",
			storage.reloads, warnings.reloads)
	}
	if result.Duration <= 0 {
		t.Error("result must carry the batch duration")
	}
}

/**
 * TestHotReloadNotReady 验证未初始化时拒绝重载
 */
func TestHotReloadNotReady(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	orch.RegisterComponent(newFakeComponent("storage"), nil)

	_, err := orch.HotReload(context.Background(), nil)
	if !errors.Is(err, ErrOrchestratorNotReady) {
		t.Errorf("expected ErrOrchestratorNotReady, got %v", err)
	}
}

/**
 * TestHotReloadSingleFlight 验证单飞门闸
 * @description
 * - 批次进行中并发触发被立即拒绝，不排队
 * - 第一个批次放行后门闸释放，后续批次恢复可用
 */
func TestHotReloadSingleFlight(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	comp := newFakeComponent("storage")
	comp.started = make(chan struct{})
	comp.release = make(chan struct{})
	orch.RegisterComponent(comp, nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	started := comp.started
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		orch.HotReload(context.Background(), []string{"storage"})
	}()

	<-started
	_, err := orch.HotReload(context.Background(), []string{"storage"})
	if !errors.Is(err, ErrReloadInProgress) {
		t.Errorf("expected ErrReloadInProgress for concurrent trigger, got %v", err)
	}
	// 被拒绝的调用不触碰任何组件状态
	if comp.reloads != 1 {
		t.Errorf("rejected trigger must not invoke hooks, got %d reloads", comp.reloads)
	}

	close(comp.release)
	<-firstDone

	// 门闸释放后批次恢复可用
	comp.release = nil
	if _, err := orch.HotReload(context.Background(), []string{"storage"}); err != nil {
		t.Errorf("expected gate released after batch, got %v", err)
	}
}

// gatedComponent 布防后SetConfig阻塞，用于在恢复中途卡住回滚
type gatedComponent struct {
	*fakeComponent
	armed     bool
	restoring chan struct{}
	release   chan struct{}
}

func (c *gatedComponent) SetConfig(config map[string]interface{}) {
	if c.armed {
		if c.restoring != nil {
			close(c.restoring)
			c.restoring = nil
		}
		<-c.release
	}
	c.fakeComponent.SetConfig(config)
}

/**
 * TestHotReloadRejectedDuringRollback 验证回滚期间拒绝新批次
 * @description
 * - 回滚恢复组件状态时编排器不是idle
 * - 并发的热重载和二次回滚都被拒绝，组件状态不被触碰
 */
func TestHotReloadRejectedDuringRollback(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	comp := &gatedComponent{
		fakeComponent: newFakeComponent("storage"),
		release:       make(chan struct{}),
	}
	orch.RegisterComponent(comp, nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// 先跑一个批次以创建检查点
	if _, err := orch.HotReload(context.Background(), []string{"storage"}); err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	reloadsBefore := comp.reloads

	comp.armed = true
	comp.restoring = make(chan struct{})
	restoring := comp.restoring

	rollbackDone := make(chan error, 1)
	go func() {
		rollbackDone <- orch.PerformRollback()
	}()

	<-restoring
	if _, err := orch.HotReload(context.Background(), []string{"storage"}); !errors.Is(err, ErrReloadInProgress) {
		t.Errorf("expected reload rejected mid-rollback, got %v", err)
	}
	if err := orch.PerformSelectiveRollback([]string{"storage"}); !errors.Is(err, ErrReloadInProgress) {
		t.Errorf("expected second rollback rejected mid-rollback, got %v", err)
	}
	if comp.reloads != reloadsBefore {
		t.Errorf("rejected reload must not touch component state, reloads %d -> %d",
			reloadsBefore, comp.reloads)
	}

	close(comp.release)
	if err := <-rollbackDone; err != nil {
		t.Fatalf("PerformRollback failed: %v", err)
	}
	comp.armed = false
	if _, err := orch.HotReload(context.Background(), []string{"storage"}); err != nil {
		t.Errorf("expected orchestrator idle after rollback, got %v", err)
	}
}

// fragileConfigComp Config被调用若干次后开始抛出，用于触发批次级故障
type fragileConfigComp struct {
	*fakeComponent
	calls     int
	goodCalls int
}

func (c *fragileConfigComp) Config() map[string]interface{} {
	c.calls++
	if c.calls > c.goodCalls {
		panic("config backend lost")
	}
	return c.fakeComponent.Config()
}

/**
 * TestBatchPanicTriggersAutoRollback 验证批次级故障自动回滚
 * @description
 * - 逃出编排循环的异常（检查点捕获时抛出）标记BatchError
 * - 存在检查点时自动回滚并置RollbackPerformed
 * - 不成功的结果正常返回而不是向上抛
 */
func TestBatchPanicTriggersAutoRollback(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	// 第一个批次的3次Config调用（检查点、保留、恢复）放行，之后抛出
	comp := &fragileConfigComp{fakeComponent: newFakeComponent("storage"), goodCalls: 3}
	orch.RegisterComponent(comp, nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	first, err := orch.HotReload(context.Background(), []string{"storage"})
	if err != nil || !first.Success {
		t.Fatalf("first batch must succeed: err=%v result=%+v", err, first)
	}

	second, err := orch.HotReload(context.Background(), []string{"storage"})
	if err != nil {
		t.Fatalf("HotReload must return the result, not an error: %v", err)
	}
	if second.Success {
		t.Fatal("batch-level failure must not report success")
	}
	if second.BatchError == "" {
		t.Error("batch-level failure must carry BatchError")
	}
	if !second.RollbackPerformed {
		t.Errorf("automatic rollback must run when a checkpoint exists: %+v", second)
	}
	if second.RollbackError != "" {
		t.Errorf("rollback against an existing checkpoint must succeed: %q", second.RollbackError)
	}

	status := orch.GetStatus()
	if status.State != string(StateIdle) || status.ReloadInProgress {
		t.Errorf("gate must be released after a failed batch: %+v", status)
	}
}

/**
 * TestBatchPanicWithoutCheckpoint 验证无检查点时回滚失败被单独记录
 */
func TestBatchPanicWithoutCheckpoint(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	comp := &fragileConfigComp{fakeComponent: newFakeComponent("storage"), goodCalls: 0}
	orch.RegisterComponent(comp, nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	result, err := orch.HotReload(context.Background(), []string{"storage"})
	if err != nil {
		t.Fatalf("HotReload must return the result, not an error: %v", err)
	}
	if result.Success || result.BatchError == "" {
		t.Fatalf("expected batch failure, got %+v", result)
	}
	if result.RollbackPerformed {
		t.Error("no checkpoint exists, rollback must not be reported as performed")
	}
	if !strings.Contains(result.RollbackError, ErrNoCheckpoint.Error()) {
		t.Errorf("rollback failure must be recorded separately, got %q", result.RollbackError)
	}
}

/**
 * TestHotReloadPartialFailure 验证单组件失败不阻断批次
 * @description
 * - 失败组件计入错误清单，其快照被丢弃
 * - 兄弟组件照常重载，整体Success为false
 */
func TestHotReloadPartialFailure(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	broken := newFakeComponent("warnings")
	broken.reloadErr = errors.New("bad ledger file")
	healthy := newFakeComponent("banlist")
	orch.RegisterComponent(broken, nil)
	orch.RegisterComponent(healthy, nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	result, err := orch.HotReload(context.Background(), []string{"warnings", "banlist"})
	if err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	if result.Success {
		t.Error("batch with a failed component must not be successful")
	}
	if len(result.Errors) != 1 || result.Errors[0].Component != "warnings" {
		t.Fatalf("expected one error for warnings, got %v", result.Errors)
	}
	if len(result.ReloadedComponents) != 1 || result.ReloadedComponents[0] != "banlist" {
		t.Errorf("sibling must still reload, got %v", result.ReloadedComponents)
	}
	if orch.states.Preserved("warnings") {
		t.Error("failed component's snapshot must be discarded")
	}
}

/**
 * TestHotReloadPanickingHook 验证钩子panic被转成组件错误
 */
func TestHotReloadPanickingHook(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	comp := newFakeComponent("antiraid")
	comp.panicMsg = "heuristics exploded"
	orch.RegisterComponent(comp, nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	result, err := orch.HotReload(context.Background(), []string{"antiraid"})
	if err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	if result.Success || len(result.Errors) != 1 {
		t.Fatalf("expected a single component error, got %+v", result)
	}
	if result.BatchError != "" {
		t.Error("a hook panic is a component error, not a batch failure")
	}
}

/**
 * TestHotReloadHookTimeout 验证钩子超时
 * @description
 * - 超时的钩子goroutine被放弃，批次继续
 * - 超时计为该组件的错误
 */
func TestHotReloadHookTimeout(t *testing.T) {
	dir := t.TempDir()
	registry := NewFileCommandRegistry(dir)
	orch := NewReloadOrchestrator(registry, nil, dir, 30*time.Millisecond)

	stuck := newFakeComponent("gateway")
	stuck.release = make(chan struct{})
	defer close(stuck.release)
	orch.RegisterComponent(stuck, nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	result, err := orch.HotReload(context.Background(), []string{"gateway"})
	if err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	if result.Success || len(result.Errors) != 1 {
		t.Fatalf("expected timeout recorded as component error, got %+v", result)
	}
	if result.Errors[0].Component != "gateway" {
		t.Errorf("expected gateway error, got %v", result.Errors)
	}
}

/**
 * TestHotReloadUnknownTarget 验证未注册目标被跳过
 */
func TestHotReloadUnknownTarget(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	comp := newFakeComponent("storage")
	orch.RegisterComponent(comp, nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	result, err := orch.HotReload(context.Background(), []string{"storage", "ghost"})
	if err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	if !result.Success {
		t.Errorf("unknown target must be skipped, not failed: %v", result.Errors)
	}
	if len(result.ReloadedComponents) != 1 || result.ReloadedComponents[0] != "storage" {
		t.Errorf("expected only storage reloaded, got %v", result.ReloadedComponents)
	}
}

/**
 * TestHotReloadCreatesCheckpoint 验证子集重载也创建全系统检查点
 */
func TestHotReloadCreatesCheckpoint(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	orch.RegisterComponent(newFakeComponent("storage"), nil)
	orch.RegisterComponent(newFakeComponent("warnings"), nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := orch.HotReload(context.Background(), []string{"warnings"}); err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	if orch.rollback.Count() != 1 {
		t.Errorf("expected one checkpoint after subset reload, got %d", orch.rollback.Count())
	}
}

/**
 * TestReloadHistoryRing 验证历史环形上限
 * @description
 * - 连续执行超过上限的批次，只保留最近50条
 * - GetHistory限量返回时最新的在尾部
 */
func TestReloadHistoryRing(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	orch.RegisterComponent(newFakeComponent("storage"), nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for i := 0; i < maxHistory+5; i++ {
		if _, err := orch.HotReload(context.Background(), []string{"storage"}); err != nil {
			t.Fatalf("HotReload %d failed: %v", i, err)
		}
	}
	history := orch.GetHistory(0)
	if len(history) != maxHistory {
		t.Fatalf("expected history capped at %d, got %d", maxHistory, len(history))
	}
	limited := orch.GetHistory(10)
	if len(limited) != 10 {
		t.Fatalf("expected 10 limited entries, got %d", len(limited))
	}
	if !limited[9].Timestamp.Equal(history[len(history)-1].Timestamp) {
		t.Error("limited history must keep the newest entries, newest last")
	}
}

/**
 * TestInitDetectsCycle 验证循环依赖阻止进入可重载状态
 */
func TestInitDetectsCycle(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	orch.RegisterComponent(newFakeComponent("a"), []string{"b"})
	orch.RegisterComponent(newFakeComponent("b"), []string{"a"})

	err := orch.Init()
	if !errors.Is(err, ErrDependencyCycle) {
		t.Fatalf("expected ErrDependencyCycle, got %v", err)
	}
	if _, err := orch.HotReload(context.Background(), nil); !errors.Is(err, ErrOrchestratorNotReady) {
		t.Errorf("orchestrator must stay unready after cycle, got %v", err)
	}
}

/**
 * TestOnReloadCompleteListener 验证批次完成事件
 * @description
 * - 观察者收到结构化结果
 * - 观察者panic不影响编排器
 */
func TestOnReloadCompleteListener(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	orch.RegisterComponent(newFakeComponent("storage"), nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	received := 0
	orch.OnReloadComplete(func(r models.ReloadResult) {
		received++
		if !r.Success {
			t.Errorf("listener received unsuccessful result: %+v", r)
		}
	})
	orch.OnReloadComplete(func(r models.ReloadResult) {
		panic("listener exploded")
	})

	if _, err := orch.HotReload(context.Background(), []string{"storage"}); err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	if received != 1 {
		t.Errorf("expected listener invoked once, got %d", received)
	}
}

/**
 * TestGetStatus 验证状态快照
 */
func TestGetStatus(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	orch.RegisterComponent(newFakeComponent("storage"), nil)
	orch.RegisterComponent(newFakeComponent("warnings"), []string{"storage"})
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	status := orch.GetStatus()
	if status.State != string(StateIdle) || status.ReloadInProgress {
		t.Errorf("fresh orchestrator must be idle: %+v", status)
	}
	if len(status.ReloadOrder) != 2 || status.ReloadOrder[0] != "storage" {
		t.Errorf("unexpected reload order: %v", status.ReloadOrder)
	}
	if status.LastResult != nil {
		t.Error("no history yet, LastResult must be nil")
	}

	if _, err := orch.HotReload(context.Background(), []string{"storage"}); err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	status = orch.GetStatus()
	if status.HistoryCount != 1 || status.CheckpointCount != 1 {
		t.Errorf("expected one history entry and one checkpoint, got %+v", status)
	}
	if status.LastResult == nil || !status.LastResult.Success {
		t.Errorf("expected successful last result, got %+v", status.LastResult)
	}
}

/**
 * TestConcurrentStatusReads 验证批次执行与状态读取可并发
 * @description
 * - 状态、历史和命令表由API处理协程读取，批次由watcher协程写入
 * - 读写都在锁下进行，go test -race下必须干净
 */
func TestConcurrentStatusReads(t *testing.T) {
	orch, registry := newTestOrchestrator(t)
	orch.RegisterComponent(newFakeComponent("storage"), nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			status := orch.GetStatus()
			if status.HistoryCount > maxHistory {
				t.Errorf("history count beyond cap: %d", status.HistoryCount)
				return
			}
			orch.GetHistory(5)
			registry.Commands()
		}
	}()

	for i := 0; i < 30; i++ {
		if _, err := orch.HotReload(context.Background(), nil); err != nil {
			t.Fatalf("HotReload %d failed: %v", i, err)
		}
	}
	close(stop)
	<-readerDone
}

/**
 * TestPerformRollbackStateGate 验证回滚入口的门闸与错误
 */
func TestPerformRollbackStateGate(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	orch.RegisterComponent(newFakeComponent("storage"), nil)
	if err := orch.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := orch.PerformRollback(); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("expected ErrNoCheckpoint before any batch, got %v", err)
	}
	if _, err := orch.HotReload(context.Background(), []string{"storage"}); err != nil {
		t.Fatalf("HotReload failed: %v", err)
	}
	if err := orch.PerformRollback(); err != nil {
		t.Errorf("expected rollback after a batch, got %v", err)
	}
	if err := orch.PerformSelectiveRollback([]string{"storage"}); err != nil {
		t.Errorf("expected selective rollback after a batch, got %v", err)
	}
}
