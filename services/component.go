package services

import (
	"context"
	"time"
)

// Component 被编排器管理的子系统
type Component interface {
	Name() string
}

// Reloader 带热重载钩子的组件，钩子是可选的
type Reloader interface {
	Reload(ctx context.Context) error
}

// ConfigHolder 携带可保留config状态的组件
type ConfigHolder interface {
	Config() map[string]interface{}
	SetConfig(map[string]interface{})
}

// DataHolder 携带可保留data状态的组件
type DataHolder interface {
	Data() map[string]interface{}
	SetData(map[string]interface{})
}

// CacheHolder 携带可保留cache状态的组件
type CacheHolder interface {
	Cache() map[string]interface{}
	SetCache(map[string]interface{})
}

// TimerHolder 携带可保留timers状态的组件
type TimerHolder interface {
	Timers() map[string]time.Time
	SetTimers(map[string]time.Time)
}

// ConnectionHolder 携带可保留connections状态的组件
type ConnectionHolder interface {
	Connections() map[string]string
	SetConnections(map[string]string)
}

// GatewayState 网关扩展状态：连接标志和出站队列
type GatewayState interface {
	Connected() bool
	SetConnected(bool)
	Outbox() []string
	SetOutbox([]string)
}

// AntiRaidState 反突袭扩展状态：冷却表和评分表
type AntiRaidState interface {
	Cooldowns() map[string]time.Time
	SetCooldowns(map[string]time.Time)
	Scores() map[string]int
	SetScores(map[string]int)
}

// MonitorState PII监控扩展状态：活跃监控集合
type MonitorState interface {
	Watchlist() map[string]bool
	SetWatchlist(map[string]bool)
}
