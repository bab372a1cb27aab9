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

var ErrNoCheckpoint = errors.New("no rollback checkpoint available")

// maxCheckpoints 检查点环形上限，超出后最旧的先被淘汰
const maxCheckpoints = 5

// CommandTable 回滚路径需要的命令注册表切面
type CommandTable interface {
	Commands() map[string]models.Command
	ReplaceCommands(map[string]models.Command)
}

// ManagerState 单个组件的浅层状态（config/data）
type ManagerState struct {
	Config map[string]interface{}
	Data   map[string]interface{}
}

// RollbackCheckpoint 全系统检查点：各组件浅层状态加整张命令表
type RollbackCheckpoint struct {
	Timestamp time.Time
	Managers  map[string]ManagerState
	Commands  map[string]models.Command
}

/**
 * Rollback manager maintains a bounded ring of full-system checkpoints
 * @description
 * - Checkpoints cover every component's shallow config/data plus the
 *   whole command table, so any subset reload is always fully undoable
 * - In-memory only, never persisted across a process restart
 * - Requesting rollback with zero checkpoints is always a hard error
 */
type RollbackManager struct {
	components func() map[string]Component
	table      CommandTable
	alerter    Alerter

	// mu只保护检查点环本身；组件状态的读写由编排器门闸串行化
	mu          sync.Mutex
	checkpoints []*RollbackCheckpoint

	// emergencyRecovery链路
	stopWatchers     func()
	startWatchers    func() error
	registerCommands func() error
	critical         []string
}

func NewRollbackManager(components func() map[string]Component, table CommandTable, alerter Alerter) *RollbackManager {
	return &RollbackManager{
		components: components,
		table:      table,
		alerter:    alerter,
		critical:   []string{"gateway", "storage", "commands"},
	}
}

// SetRecoveryHooks 注入紧急恢复需要的watcher停启回调
func (rm *RollbackManager) SetRecoveryHooks(stop func(), start func() error) {
	rm.stopWatchers = stop
	rm.startWatchers = start
}

/**
 * Create a full-system rollback checkpoint
 * @returns {RollbackCheckpoint} The checkpoint just stored
 * @description
 * - Shallow-copies config/data of every component plus the command table
 * - Beyond the cap the oldest checkpoint is evicted, strictly by
 *   creation time
 */
func (rm *RollbackManager) CreateCheckpoint() *RollbackCheckpoint {
	cp := &RollbackCheckpoint{
		Timestamp: time.Now(),
		Managers:  make(map[string]ManagerState),
		Commands:  make(map[string]models.Command),
	}
	for name, comp := range rm.components() {
		state := ManagerState{}
		if h, ok := comp.(ConfigHolder); ok {
			state.Config = copyAnyMap(h.Config())
		}
		if h, ok := comp.(DataHolder); ok {
			state.Data = copyAnyMap(h.Data())
		}
		cp.Managers[name] = state
	}
	if rm.table != nil {
		for name, cmd := range rm.table.Commands() {
			cp.Commands[name] = cmd
		}
	}

	rm.mu.Lock()
	rm.checkpoints = append(rm.checkpoints, cp)
	if len(rm.checkpoints) > maxCheckpoints {
		evicted := rm.checkpoints[0]
		rm.checkpoints = rm.checkpoints[1:]
		logger.Debugf("Evicted oldest checkpoint from %s", evicted.Timestamp.Format(time.RFC3339))
	}
	stored := len(rm.checkpoints)
	rm.mu.Unlock()
	logger.Infof("Rollback checkpoint created (%d components, %d commands, %d stored)",
		len(cp.Managers), len(cp.Commands), stored)
	return cp
}

// Count 当前存储的检查点数量
func (rm *RollbackManager) Count() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.checkpoints)
}

func (rm *RollbackManager) latest() (*RollbackCheckpoint, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.checkpoints) == 0 {
		return nil, ErrNoCheckpoint
	}
	return rm.checkpoints[len(rm.checkpoints)-1], nil
}

/**
 * Roll the whole system back to the most recent checkpoint
 * @returns {error} ErrNoCheckpoint when none exists, nil on success
 * @description
 * - Full replace of the command table and of every component's
 *   config/data, unconditionally
 */
func (rm *RollbackManager) Rollback() error {
	cp, err := rm.latest()
	if err != nil {
		return err
	}
	components := rm.components()
	for name, state := range cp.Managers {
		comp, exists := components[name]
		if !exists {
			logger.Warnf("Checkpointed component '%s' no longer registered, skipping", name)
			continue
		}
		rm.restoreManager(comp, state)
	}
	if rm.table != nil {
		rm.table.ReplaceCommands(copyCommandMap(cp.Commands))
	}
	logger.Infof("Rolled back to checkpoint from %s", cp.Timestamp.Format(time.RFC3339))
	notifyAlert(rm.alerter, "Rollback performed",
		fmt.Sprintf("System state restored to checkpoint from %s", cp.Timestamp.Format(time.RFC3339)),
		map[string]string{"components": fmt.Sprintf("%d", len(cp.Managers))}, "orange")
	return nil
}

/**
 * Restore only the named components from the most recent checkpoint
 * @param {[]string} names - Component subset; empty restores everything
 * @returns {error} ErrNoCheckpoint when none exists
 * @description
 * - Surgical recovery that leaves healthy subsystems' state untouched
 * - The command table is restored only when "commands" is named or the
 *   subset is omitted
 */
func (rm *RollbackManager) SelectiveRollback(names []string) error {
	cp, err := rm.latest()
	if err != nil {
		return err
	}
	restoreAll := len(names) == 0
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	components := rm.components()
	for name, state := range cp.Managers {
		if !restoreAll && !wanted[name] {
			continue
		}
		comp, exists := components[name]
		if !exists {
			continue
		}
		rm.restoreManager(comp, state)
		logger.Infof("Selectively rolled back '%s'", name)
	}
	if rm.table != nil && (restoreAll || wanted["commands"]) {
		rm.table.ReplaceCommands(copyCommandMap(cp.Commands))
		logger.Info("Command table selectively rolled back")
	}
	return nil
}

func (rm *RollbackManager) restoreManager(comp Component, state ManagerState) {
	if h, ok := comp.(ConfigHolder); ok && state.Config != nil {
		h.SetConfig(copyAnyMap(state.Config))
	}
	if h, ok := comp.(DataHolder); ok && state.Data != nil {
		h.SetData(copyAnyMap(state.Data))
	}
}

/**
 * Emergency recovery chain for catastrophic failure
 * @param {context.Context} ctx - Context bounding the critical reload hooks
 * @returns {error} Any failure in the chain, fatal and re-raised
 * @description
 * - stop watchers -> full rollback -> reinitialize the fixed allowlist
 *   of critical components via their reload hooks -> restart watchers
 * - No further fallback exists beyond this chain
 */
func (rm *RollbackManager) EmergencyRecovery(ctx context.Context) error {
	logger.Warn("Emergency recovery started")
	if rm.stopWatchers != nil {
		rm.stopWatchers()
	}

	if err := rm.Rollback(); err != nil {
		notifyAlert(rm.alerter, "Emergency recovery failed", err.Error(), nil, "red")
		return fmt.Errorf("emergency recovery: rollback failed: %w", err)
	}

	components := rm.components()
	for _, name := range rm.critical {
		// 命令表不是注册表里的组件：回滚后重新向平台注册
		if name == "commands" {
			if rm.registerCommands == nil {
				continue
			}
			if err := rm.registerCommands(); err != nil {
				notifyAlert(rm.alerter, "Emergency recovery failed",
					fmt.Sprintf("Command table failed to re-register: %v", err), nil, "red")
				return fmt.Errorf("emergency recovery: re-register commands: %w", err)
			}
			logger.Info("Command table re-registered")
			continue
		}
		comp, exists := components[name]
		if !exists {
			continue
		}
		hook, ok := comp.(Reloader)
		if !ok {
			continue
		}
		if err := hook.Reload(ctx); err != nil {
			notifyAlert(rm.alerter, "Emergency recovery failed",
				fmt.Sprintf("Critical component '%s' failed to reinitialize: %v", name, err), nil, "red")
			return fmt.Errorf("emergency recovery: reinitialize '%s': %w", name, err)
		}
		logger.Infof("Critical component '%s' reinitialized", name)
	}

	if rm.startWatchers != nil {
		if err := rm.startWatchers(); err != nil {
			notifyAlert(rm.alerter, "Emergency recovery failed",
				fmt.Sprintf("Watchers failed to restart: %v", err), nil, "red")
			return fmt.Errorf("emergency recovery: restart watchers: %w", err)
		}
	}
	logger.Info("Emergency recovery completed")
	notifyAlert(rm.alerter, "Emergency recovery completed",
		"System rolled back and critical components reinitialized", nil, "green")
	return nil
}

func copyCommandMap(src map[string]models.Command) map[string]models.Command {
	dst := make(map[string]models.Command, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
