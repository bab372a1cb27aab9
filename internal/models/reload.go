package models

import (
	"time"
)

// ComponentError 单个组件重载失败记录
// @Description 一次热重载批次中某个组件的失败详情
type ComponentError struct {
	Component string `json:"component" example:"warnings" description:"组件名称"`
	Error     string `json:"error" example:"ledger file corrupted" description:"失败原因"`
}

// CommandReloadSummary 命令表重载摘要
// @Description 命令注册表重载后的增删统计
type CommandReloadSummary struct {
	Added   []string `json:"added" description:"新增命令"`
	Removed []string `json:"removed" description:"移除命令"`
	Total   int      `json:"total" example:"42" description:"命令总数"`
}

// ReloadResult 热重载批次结果
// @Description 一次热重载批次的结构化结果，始终返回而不是抛出
type ReloadResult struct {
	Success            bool                  `json:"success" example:"true" description:"是否全部成功"`
	ReloadedComponents []string              `json:"reloadedComponents" description:"成功重载的组件列表"`
	Errors             []ComponentError      `json:"errors" description:"失败组件明细"`
	Commands           *CommandReloadSummary `json:"commands,omitempty" description:"命令表重载摘要"`
	RollbackPerformed  bool                  `json:"rollbackPerformed" example:"false" description:"是否触发了自动回滚"`
	RollbackError      string                `json:"rollbackError,omitempty" description:"自动回滚失败原因"`
	BatchError         string                `json:"batchError,omitempty" description:"批次级失败原因"`
	Duration           time.Duration         `json:"duration" swaggertype:"integer" description:"批次耗时"`
	Timestamp          time.Time             `json:"timestamp" example:"2024-01-01T10:00:00Z" description:"批次完成时间"`
}

// ReloadRequest 热重载请求
// @Description 热重载API请求体，components为空表示全量重载
type ReloadRequest struct {
	Components []string `json:"components" description:"目标组件子集，空表示全部"`
}

// RollbackRequest 选择性回滚请求
type RollbackRequest struct {
	Components []string `json:"components" description:"要回滚的组件子集，空表示全部"`
}

// ReloadStatus 编排器状态
// @Description 热重载编排器当前状态快照
type ReloadStatus struct {
	State            string        `json:"state" example:"idle" description:"编排器状态: idle/running/rolling_back"`
	ReloadInProgress bool          `json:"reloadInProgress" example:"false" description:"是否有批次在执行"`
	ReloadOrder      []string      `json:"reloadOrder" description:"依赖安全的重载顺序"`
	Components       []string      `json:"components" description:"已注册的组件"`
	CheckpointCount  int           `json:"checkpointCount" example:"3" description:"当前回滚检查点数量"`
	HistoryCount     int           `json:"historyCount" example:"17" description:"历史记录条数"`
	LastResult       *ReloadResult `json:"lastResult,omitempty" description:"最近一次批次结果"`
}

// Command 已注册命令
// @Description 命令注册表中的一条命令
type Command struct {
	Name        string `json:"name" example:"warn" description:"命令名称"`
	Description string `json:"description" example:"issue a warning" description:"命令说明"`
}
