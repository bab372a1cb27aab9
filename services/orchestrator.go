package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"modbot-keeper/internal/logger"
	"modbot-keeper/internal/models"
)

var (
	ErrReloadInProgress     = errors.New("hot reload already in progress")
	ErrComponentNotFound    = errors.New("component not found")
	ErrOrchestratorNotReady = errors.New("orchestrator not initialized")
)

// maxHistory 重载历史环形上限，最新的在尾部
const maxHistory = 50

// commandsTarget 伪目标：命令表重载
const commandsTarget = "commands"

type OrchestratorState string

const (
	StateIdle        OrchestratorState = "idle"
	StateRunning     OrchestratorState = "running"
	StateRollingBack OrchestratorState = "rolling_back"
)

/**
 * Reload orchestrator runs hot-reload batches across registered
 * components in dependency order
 * @description
 * - Owns the component registry, dependency graph, state engine,
 *   rollback manager and history; nothing lives in package globals
 * - Single-flight: at most one batch runs at a time, concurrent
 *   callers are rejected with ErrReloadInProgress, never queued
 * - Partial-failure tolerant: one broken component never blocks
 *   sibling reloads
 */
type ReloadOrchestrator struct {
	mu               sync.Mutex
	reloadInProgress bool
	state            OrchestratorState

	components map[string]Component
	graph      *DependencyGraph
	order      []string
	moderation map[string]ModerationSurface

	states   *StateEngine
	rollback *RollbackManager
	registry CommandRegistry
	alerter  Alerter

	commandsDir string
	hookTimeout time.Duration

	history   []models.ReloadResult
	listeners []func(models.ReloadResult)
}

/**
 * Create new reload orchestrator instance
 * @param {CommandRegistry} registry - Command registry collaborator, must also expose the rollback table surface
 * @param {Alerter} alerter - Alerting collaborator, may be nil
 * @param {string} commandsDir - Command source directory for single-command reloads
 * @param {time.Duration} hookTimeout - Upper bound for one reload hook
 * @returns {ReloadOrchestrator} Returns new orchestrator instance
 */
func NewReloadOrchestrator(registry CommandRegistry, alerter Alerter, commandsDir string, hookTimeout time.Duration) *ReloadOrchestrator {
	o := &ReloadOrchestrator{
		state:       StateIdle,
		components:  make(map[string]Component),
		graph:       NewDependencyGraph(),
		moderation:  make(map[string]ModerationSurface),
		states:      NewStateEngine(),
		registry:    registry,
		alerter:     alerter,
		commandsDir: commandsDir,
		hookTimeout: hookTimeout,
	}
	var table CommandTable
	if t, ok := registry.(CommandTable); ok {
		table = t
	}
	o.rollback = NewRollbackManager(o.componentMap, table, alerter)
	if registry != nil {
		o.rollback.registerCommands = registry.RegisterCommands
	}
	return o
}

/**
 * Register component with its dependency declaration
 * @param {Component} comp - Component instance
 * @param {[]string} deps - Names of components that must reload first
 * @description
 * - Must happen before Init; descriptors are declared once
 */
func (o *ReloadOrchestrator) RegisterComponent(comp Component, deps []string) {
	o.components[comp.Name()] = comp
	o.graph.Register(comp.Name(), deps)
}

/**
 * Compute the reload order from the registered declarations
 * @returns {error} ErrDependencyCycle wrapped as fatal configuration error
 * @description
 * - A cycle means the system must not proceed to reload-capable state
 * - Recomputed only when descriptors change, every batch consumes the
 *   cached order
 */
func (o *ReloadOrchestrator) Init() error {
	order, err := o.graph.ComputeOrder()
	if err != nil {
		return fmt.Errorf("fatal configuration error: %w", err)
	}
	o.order = order
	logger.Infof("Reload order computed: %v", order)
	return nil
}

// componentMap 注册表访问器，回滚管理器通过它枚举组件
func (o *ReloadOrchestrator) componentMap() map[string]Component {
	return o.components
}

// Component 按名称查找已注册组件
func (o *ReloadOrchestrator) Component(name string) Component {
	return o.components[name]
}

/**
 * Register a component's moderation surface behind the error boundary
 * @param {string} name - Component name
 * @param {Component} comp - Component instance, must expose the surface
 * @description
 * - Callers always reach the surface through the isolation wrapper,
 *   never the raw component
 */
func (o *ReloadOrchestrator) RegisterModeration(name string, comp Component) {
	surface, ok := comp.(ModerationSurface)
	if !ok {
		return
	}
	o.moderation[name] = IsolateModeration(name, surface, o.alerter)
}

// Moderation 按名称获取隔离后的审核操作面，未注册返回nil
func (o *ReloadOrchestrator) Moderation(name string) ModerationSurface {
	return o.moderation[name]
}

// Rollback 回滚管理器访问器
func (o *ReloadOrchestrator) Rollback() *RollbackManager {
	return o.rollback
}

// OnReloadComplete 注册批次完成事件的观察者
func (o *ReloadOrchestrator) OnReloadComplete(fn func(models.ReloadResult)) {
	o.listeners = append(o.listeners, fn)
}

/**
 * Run a hot-reload batch over the target component subset
 * @param {context.Context} ctx - Context passed down to reload hooks
 * @param {[]string} names - Target subset, nil/empty means everything
 * @returns {models.ReloadResult} Structured batch result, always populated
 * @returns {error} ErrReloadInProgress when a batch is already running
 * @description
 * - Rejects immediately when not idle, callers must retry
 * - Unconditionally creates a full-system checkpoint first, so any
 *   subset reload is fully undoable
 * - Iterates targets strictly in dependency order, awaiting each hook
 *   before the next; per-component failures are recorded and iteration
 *   continues
 * - The "commands" pseudo-target (or a full batch) delegates to the
 *   command registry and folds its summary into the result
 * - A failure escaping the loop itself triggers automatic rollback;
 *   the unsuccessful result is still returned, not thrown
 */
func (o *ReloadOrchestrator) HotReload(ctx context.Context, names []string) (models.ReloadResult, error) {
	if o.order == nil {
		return models.ReloadResult{}, ErrOrchestratorNotReady
	}

	o.mu.Lock()
	// 回滚也占用编排器：非idle一律拒绝，绝不排队
	if o.state != StateIdle {
		o.mu.Unlock()
		return models.ReloadResult{}, ErrReloadInProgress
	}
	o.reloadInProgress = true
	o.state = StateRunning
	o.mu.Unlock()

	// 单飞门闸必须释放，哪怕批次内部panic
	defer func() {
		o.mu.Lock()
		o.reloadInProgress = false
		o.state = StateIdle
		o.mu.Unlock()
	}()

	start := time.Now()
	result := o.runBatch(ctx, names)
	result.Duration = time.Since(start)
	result.Timestamp = time.Now()

	o.mu.Lock()
	o.history = append(o.history, result)
	if len(o.history) > maxHistory {
		o.history = o.history[1:]
	}
	o.mu.Unlock()
	recordReloadMetrics(result.Success, result.Duration.Seconds())
	o.emit(result)

	if result.Success {
		logger.Infof("Hot reload finished: %d components in %s",
			len(result.ReloadedComponents), result.Duration)
	} else {
		logger.Errorf("Hot reload finished with %d errors in %s",
			len(result.Errors), result.Duration)
		notifyAlert(o.alerter, "Hot reload failed",
			fmt.Sprintf("%d of %d targeted components failed",
				len(result.Errors), len(result.Errors)+len(result.ReloadedComponents)),
			errorFields(result.Errors), "red")
	}
	return result, nil
}

func (o *ReloadOrchestrator) runBatch(ctx context.Context, names []string) (result models.ReloadResult) {
	result.ReloadedComponents = []string{}
	result.Errors = []models.ComponentError{}

	// 逃出编排循环本身的异常触发自动回滚
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.BatchError = fmt.Sprintf("batch failure: %v", r)
			logger.Errorf("Hot reload batch failed catastrophically: %v", r)

			o.mu.Lock()
			o.state = StateRollingBack
			o.mu.Unlock()
			if err := o.rollback.Rollback(); err != nil {
				// 回滚失败是独立的一类故障
				result.RollbackError = err.Error()
				logger.Errorf("Automatic rollback failed: %v", err)
			} else {
				result.RollbackPerformed = true
				recordRollback()
			}
		}
	}()

	// 即使是子集重载也创建全系统检查点
	o.rollback.CreateCheckpoint()
	recordCheckpointCount(o.rollback.Count())

	fullBatch := len(names) == 0
	targets := o.resolveTargets(names)

	for _, name := range targets {
		o.states.Preserve(name, o.components[name])
	}

	for _, name := range targets {
		comp := o.components[name]
		if err := o.runHook(ctx, name, comp); err != nil {
			result.Errors = append(result.Errors, models.ComponentError{
				Component: name,
				Error:     err.Error(),
			})
			o.states.Discard(name)
			logger.Errorf("Component '%s' failed to reload: %v", name, err)
			continue
		}
		o.states.Restore(name, comp)
		result.ReloadedComponents = append(result.ReloadedComponents, name)
		logger.Infof("Component '%s' reloaded", name)
	}

	if fullBatch || containsName(names, commandsTarget) {
		summary, err := o.registry.ReloadCommands()
		if err != nil {
			result.Errors = append(result.Errors, models.ComponentError{
				Component: commandsTarget,
				Error:     err.Error(),
			})
		} else {
			result.Commands = &summary
			result.ReloadedComponents = append(result.ReloadedComponents, commandsTarget)
		}
	}

	result.Success = len(result.Errors) == 0
	return result
}

/**
 * Resolve the target list against the computed reload order
 * @description
 * - The full computed order for a full batch, a filtered subset otherwise
 * - Unknown or unregistered names are skipped with a log line
 */
func (o *ReloadOrchestrator) resolveTargets(names []string) []string {
	if len(names) == 0 {
		targets := make([]string, 0, len(o.order))
		for _, name := range o.order {
			if _, exists := o.components[name]; exists {
				targets = append(targets, name)
			}
		}
		return targets
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if name == commandsTarget {
			continue
		}
		if _, exists := o.components[name]; !exists {
			logger.Warnf("Requested component '%s' is not registered, skipping", name)
			continue
		}
		wanted[name] = true
	}
	targets := make([]string, 0, len(wanted))
	for _, name := range o.order {
		if wanted[name] {
			targets = append(targets, name)
		}
	}
	return targets
}

/**
 * Invoke one component's reload hook, bounded by the configured timeout
 * @description
 * - Components without a hook are a no-op
 * - A panicking hook is converted into a component error
 * - On timeout the hook goroutine is abandoned and the batch moves on;
 *   the hook keeps the expired context and is expected to bail out
 */
func (o *ReloadOrchestrator) runHook(ctx context.Context, name string, comp Component) error {
	hook, ok := comp.(Reloader)
	if !ok {
		return nil
	}
	hctx := ctx
	var cancel context.CancelFunc
	if o.hookTimeout > 0 {
		hctx, cancel = context.WithTimeout(ctx, o.hookTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("reload hook panicked: %v", r)
			}
		}()
		done <- hook.Reload(hctx)
	}()

	select {
	case err := <-done:
		return err
	case <-hctx.Done():
		return fmt.Errorf("reload hook for '%s' exceeded %s: %w", name, o.hookTimeout, hctx.Err())
	}
}

/**
 * Reload a single command source file and re-register the table
 * @param {string} filename - Descriptor file name inside the commands dir
 */
func (o *ReloadOrchestrator) ReloadCommand(filename string) error {
	if err := o.registry.LoadCommandFile(o.commandsDir, filename); err != nil {
		return err
	}
	return o.registry.RegisterCommands()
}

// PerformRollback 全量回滚入口，带状态迁移和指标
func (o *ReloadOrchestrator) PerformRollback() error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrReloadInProgress
	}
	o.state = StateRollingBack
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
	}()

	if err := o.rollback.Rollback(); err != nil {
		return err
	}
	recordRollback()
	return nil
}

// PerformSelectiveRollback 选择性回滚入口
func (o *ReloadOrchestrator) PerformSelectiveRollback(names []string) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return ErrReloadInProgress
	}
	o.state = StateRollingBack
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
	}()

	if err := o.rollback.SelectiveRollback(names); err != nil {
		return err
	}
	recordRollback()
	return nil
}

/**
 * Get current orchestrator status snapshot
 * @returns {models.ReloadStatus} State, reload order, checkpoint and history counts
 */
func (o *ReloadOrchestrator) GetStatus() models.ReloadStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	names := make([]string, 0, len(o.components))
	for _, name := range o.order {
		if _, exists := o.components[name]; exists {
			names = append(names, name)
		}
	}
	status := models.ReloadStatus{
		State:            string(o.state),
		ReloadInProgress: o.reloadInProgress,
		ReloadOrder:      append([]string{}, o.order...),
		Components:       names,
		CheckpointCount:  o.rollback.Count(),
		HistoryCount:     len(o.history),
	}
	if len(o.history) > 0 {
		last := o.history[len(o.history)-1]
		status.LastResult = &last
	}
	return status
}

/**
 * Get reload history, newest last
 * @param {int} limit - Max entries to return, <=0 returns everything
 */
func (o *ReloadOrchestrator) GetHistory(limit int) []models.ReloadResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	history := o.history
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]models.ReloadResult{}, history...)
}

// emit 通知观察者，观察者panic不影响编排器
func (o *ReloadOrchestrator) emit(result models.ReloadResult) {
	for _, fn := range o.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Reload event listener panicked: %v", r)
				}
			}()
			fn(result)
		}()
	}
}

func containsName(names []string, target string) bool {
	for _, name := range names {
		if name == target {
			return true
		}
	}
	return false
}

func errorFields(errs []models.ComponentError) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		fields[e.Component] = e.Error
	}
	return fields
}
