package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modbot-keeper/internal/env"
	"modbot-keeper/internal/logger"
	"modbot-keeper/internal/models"
)

/**
 * Built-in bot subsystems
 * @description
 * - Thin concrete components carrying exactly the state surfaces the
 *   orchestrator preserves across reloads; the moderation heuristics
 *   themselves live elsewhere
 * - Reload hooks re-read each subsystem's backing file; the file
 *   formats are owned by the subsystems, the orchestrator only reacts
 *   to their modification events
 */

// ledgerComponent 台账类子系统的公共骨架（warnings/banlist/blocklist/storage）
type ledgerComponent struct {
	name     string
	file     string
	config   map[string]interface{}
	data     map[string]interface{}
	cache    map[string]interface{}
	reloaded int
}

func newLedgerComponent(name, file string) *ledgerComponent {
	return &ledgerComponent{
		name:   name,
		file:   file,
		config: map[string]interface{}{},
		data:   map[string]interface{}{},
		cache:  map[string]interface{}{},
	}
}

func (c *ledgerComponent) Name() string { return c.name }
func (c *ledgerComponent) Config() map[string]interface{} { return c.config }
func (c *ledgerComponent) SetConfig(config map[string]interface{}) { c.config = config }
func (c *ledgerComponent) Data() map[string]interface{} { return c.data }
func (c *ledgerComponent) SetData(data map[string]interface{}) { c.data = data }
func (c *ledgerComponent) Cache() map[string]interface{} { return c.cache }
func (c *ledgerComponent) SetCache(cache map[string]interface{}) { c.cache = cache }

/**
 * Reload hook: drop derived cache and re-read the backing file
 * @description
 * - A missing backing file leaves the in-memory ledger as is
 * - Preserved data is merged back by the state engine afterwards
 */
func (c *ledgerComponent) Reload(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.cache = map[string]interface{}{}
	c.reloaded++
	if c.file == "" {
		return nil
	}
	raw, err := os.ReadFile(c.file)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debugf("Backing file for '%s' missing, keeping in-memory ledger", c.name)
			return nil
		}
		return fmt.Errorf("read backing file: %w", err)
	}
	fresh := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fresh); err != nil {
		return fmt.Errorf("parse backing file: %w", err)
	}
	c.data = fresh
	return nil
}

// warningsComponent 警告台账，同时暴露可被隔离包装的审核操作面
type warningsComponent struct {
	*ledgerComponent
}

func newWarningsComponent(file string) *warningsComponent {
	return &warningsComponent{ledgerComponent: newLedgerComponent("warnings", file)}
}

func (c *warningsComponent) IsAdmin(userID string) bool {
	admins, ok := c.config["admins"].([]interface{})
	if !ok {
		return false
	}
	for _, admin := range admins {
		if admin == userID {
			return true
		}
	}
	return false
}

func (c *warningsComponent) HasRecord(userID string) bool {
	_, ok := c.data[userID]
	return ok
}

func (c *warningsComponent) GetRecord(userID string) *models.ModerationRecord {
	raw, ok := c.data[userID]
	if !ok {
		return nil
	}
	record, ok := raw.(models.ModerationRecord)
	if !ok {
		return nil
	}
	return &record
}

func (c *warningsComponent) AddRecord(record models.ModerationRecord) models.OpResult {
	if record.UserID == "" {
		return models.OpResult{Success: false, Message: "record without user id"}
	}
	record.IssuedAt = time.Now()
	c.data[record.UserID] = record
	return models.OpResult{Success: true}
}

func (c *warningsComponent) RemoveRecord(userID string) models.OpResult {
	if _, ok := c.data[userID]; !ok {
		return models.OpResult{Success: false, Message: "no record for user"}
	}
	delete(c.data, userID)
	return models.OpResult{Success: true}
}

func (c *warningsComponent) SaveLedger() models.OpResult {
	if c.file == "" {
		return models.OpResult{Success: false, Message: "no backing file"}
	}
	raw, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return models.OpResult{Success: false, Message: err.Error()}
	}
	if err := os.WriteFile(c.file, raw, 0644); err != nil {
		return models.OpResult{Success: false, Message: err.Error()}
	}
	return models.OpResult{Success: true}
}

// gatewayComponent 平台网关桥：连接标志加出站队列
type gatewayComponent struct {
	config    map[string]interface{}
	connected bool
	outbox    []string
}

func newGatewayComponent() *gatewayComponent {
	return &gatewayComponent{
		config: map[string]interface{}{},
		outbox: []string{},
	}
}

func (c *gatewayComponent) Name() string { return "gateway" }
func (c *gatewayComponent) Config() map[string]interface{} { return c.config }
func (c *gatewayComponent) SetConfig(config map[string]interface{}) { c.config = config }
func (c *gatewayComponent) Connected() bool { return c.connected }
func (c *gatewayComponent) SetConnected(connected bool) { c.connected = connected }
func (c *gatewayComponent) Outbox() []string { return c.outbox }
func (c *gatewayComponent) SetOutbox(outbox []string) { c.outbox = outbox }

func (c *gatewayComponent) Reload(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	// 连接本身由平台客户端负责，重载只重置桥接状态
	c.connected = false
	c.outbox = []string{}
	return nil
}

// antiraidComponent 反突袭启发式：冷却表和评分表
type antiraidComponent struct {
	config    map[string]interface{}
	cooldowns map[string]time.Time
	scores    map[string]int
}

func newAntiraidComponent() *antiraidComponent {
	return &antiraidComponent{
		config:    map[string]interface{}{},
		cooldowns: map[string]time.Time{},
		scores:    map[string]int{},
	}
}

func (c *antiraidComponent) Name() string { return "antiraid" }
func (c *antiraidComponent) Config() map[string]interface{} { return c.config }
func (c *antiraidComponent) SetConfig(config map[string]interface{}) { c.config = config }
func (c *antiraidComponent) Cooldowns() map[string]time.Time { return c.cooldowns }
func (c *antiraidComponent) SetCooldowns(cooldowns map[string]time.Time) { c.cooldowns = cooldowns }
func (c *antiraidComponent) Scores() map[string]int { return c.scores }
func (c *antiraidComponent) SetScores(scores map[string]int) { c.scores = scores }

func (c *antiraidComponent) Reload(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.cooldowns = map[string]time.Time{}
	c.scores = map[string]int{}
	return nil
}

// piiComponent PII监控：活跃监控集合
type piiComponent struct {
	config    map[string]interface{}
	watchlist map[string]bool
}

func newPIIComponent() *piiComponent {
	return &piiComponent{
		config:    map[string]interface{}{},
		watchlist: map[string]bool{},
	}
}

func (c *piiComponent) Name() string { return "piimonitor" }
func (c *piiComponent) Config() map[string]interface{} { return c.config }
func (c *piiComponent) SetConfig(config map[string]interface{}) { c.config = config }
func (c *piiComponent) Watchlist() map[string]bool { return c.watchlist }
func (c *piiComponent) SetWatchlist(watchlist map[string]bool) { c.watchlist = watchlist }

func (c *piiComponent) Reload(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.watchlist = map[string]bool{}
	return nil
}

/**
 * Register the built-in subsystems with their dependency declarations
 * @description
 * - Ledgers depend on storage; heuristics depend on the ledgers they
 *   score against; platform-facing components depend on the gateway
 */
func RegisterBuiltins(o *ReloadOrchestrator) {
	dir := env.ModbotDir
	warnings := newWarningsComponent(filepath.Join(dir, "warnings.json"))
	o.RegisterComponent(newLedgerComponent("storage", ""), nil)
	o.RegisterComponent(newGatewayComponent(), nil)
	o.RegisterComponent(warnings, []string{"storage"})
	o.RegisterComponent(newLedgerComponent("banlist", filepath.Join(dir, "banlist.json")), []string{"storage"})
	o.RegisterComponent(newLedgerComponent("blocklist", filepath.Join(dir, "blocklist.json")), []string{"storage"})
	o.RegisterComponent(newAntiraidComponent(), []string{"warnings", "banlist"})
	o.RegisterComponent(newPIIComponent(), []string{"gateway"})
	// 审核操作面只通过隔离包装暴露
	o.RegisterModeration("warnings", warnings)
}
