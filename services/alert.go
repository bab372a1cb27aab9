package services

import (
	"modbot-keeper/internal/logger"
)

// Alerter 告警协作方，用于上报重载结果、组件故障和回滚结果
// 它自身的失败会被吞掉，绝不影响编排器
type Alerter interface {
	SendSystemAlert(title, description string, fields map[string]string, color string)
}

// LogAlerter 把系统告警写入日志的默认实现
type LogAlerter struct{}

func NewLogAlerter() *LogAlerter {
	return &LogAlerter{}
}

func (a *LogAlerter) SendSystemAlert(title, description string, fields map[string]string, color string) {
	logger.Warnf("System alert [%s]: %s fields=%v", title, description, fields)
}

// notifyAlert 统一的告警出口，协作方panic也不致命
func notifyAlert(alerter Alerter, title, description string, fields map[string]string, color string) {
	if alerter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Alerter failed delivering '%s': %v", title, r)
		}
	}()
	alerter.SendSystemAlert(title, description, fields, color)
}
