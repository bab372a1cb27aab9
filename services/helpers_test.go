package services

import (
	"context"
	"fmt"
	"time"

	"modbot-keeper/internal/config"
	"modbot-keeper/internal/logger"
)

func init() {
	// 测试环境日志走控制台，只保留error级别
	logger.InitLoggerWithMode(&config.LogConfig{Path: "console", Level: "error"}, false)
}

// fakeComponent 可配置行为的测试组件，携带全部通用状态面
type fakeComponent struct {
	name   string
	config map[string]interface{}
	data   map[string]interface{}
	cache  map[string]interface{}

	reloads   int
	reloadErr error
	panicMsg  string
	started   chan struct{}
	release   chan struct{}
}

func newFakeComponent(name string) *fakeComponent {
	return &fakeComponent{
		name:   name,
		config: map[string]interface{}{},
		data:   map[string]interface{}{},
		cache:  map[string]interface{}{},
	}
}

func (c *fakeComponent) Name() string { return c.name }
func (c *fakeComponent) Config() map[string]interface{} { return c.config }
func (c *fakeComponent) SetConfig(config map[string]interface{}) { c.config = config }
func (c *fakeComponent) Data() map[string]interface{} { return c.data }
func (c *fakeComponent) SetData(data map[string]interface{}) { c.data = data }
func (c *fakeComponent) Cache() map[string]interface{} { return c.cache }
func (c *fakeComponent) SetCache(cache map[string]interface{}) { c.cache = cache }

func (c *fakeComponent) Reload(ctx context.Context) error {
	c.reloads++
	if c.panicMsg != "" {
		panic(c.panicMsg)
	}
	if c.started != nil {
		close(c.started)
		c.started = nil
	}
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return fmt.Errorf("reload interrupted: %w", ctx.Err())
		}
	}
	return c.reloadErr
}

// fakeGateway 实现网关扩展状态面的测试组件
type fakeGateway struct {
	config    map[string]interface{}
	connected bool
	outbox    []string
	reloads   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		config: map[string]interface{}{},
		outbox: []string{},
	}
}

func (c *fakeGateway) Name() string { return "gateway" }
func (c *fakeGateway) Config() map[string]interface{} { return c.config }
func (c *fakeGateway) SetConfig(config map[string]interface{}) { c.config = config }
func (c *fakeGateway) Connected() bool { return c.connected }
func (c *fakeGateway) SetConnected(connected bool) { c.connected = connected }
func (c *fakeGateway) Outbox() []string { return c.outbox }
func (c *fakeGateway) SetOutbox(outbox []string) { c.outbox = outbox }

func (c *fakeGateway) Reload(ctx context.Context) error {
	c.reloads++
	c.connected = false
	c.outbox = []string{}
	return nil
}

// fakeAntiraid 实现反突袭扩展状态面的测试组件
type fakeAntiraid struct {
	cooldowns map[string]time.Time
	scores    map[string]int
}

func newFakeAntiraid() *fakeAntiraid {
	return &fakeAntiraid{
		cooldowns: map[string]time.Time{},
		scores:    map[string]int{},
	}
}

func (c *fakeAntiraid) Name() string { return "antiraid" }
func (c *fakeAntiraid) Cooldowns() map[string]time.Time { return c.cooldowns }
func (c *fakeAntiraid) SetCooldowns(cooldowns map[string]time.Time) { c.cooldowns = cooldowns }
func (c *fakeAntiraid) Scores() map[string]int { return c.scores }
func (c *fakeAntiraid) SetScores(scores map[string]int) { c.scores = scores }
