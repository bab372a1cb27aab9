package models

import (
	"time"
)

// HealthStatus 组件或系统健康状态
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// ComponentHealth 单个组件健康检查结果
// @Description 单个组件的健康状态与问题描述
type ComponentHealth struct {
	Status HealthStatus `json:"status" example:"healthy" description:"组件状态"`
	Issue  string       `json:"issue,omitempty" example:"warning ledger is empty" description:"问题描述"`
}

// HealthReport 健康检查报告
// @Description 健康检查API响应数据结构，按需重算，从不存储
type HealthReport struct {
	Overall    HealthStatus               `json:"overall" example:"healthy" description:"总体状态"`
	Components map[string]ComponentHealth `json:"components" description:"各组件检查结果"`
	Issues     []string                   `json:"issues" description:"问题清单"`
	Timestamp  time.Time                  `json:"timestamp" example:"2024-01-01T10:00:00Z" description:"检查时间戳"`
}
