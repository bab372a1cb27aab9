package models

import (
	"time"
)

// OpResult 隔离包装器中写操作的通用结果
type OpResult struct {
	Success bool   `json:"success" example:"true" description:"操作是否成功"`
	Message string `json:"message,omitempty" description:"附加说明"`
}

// ModerationRecord 违规记录
// @Description 警告台账中的一条违规记录
type ModerationRecord struct {
	UserID   string    `json:"userId" example:"10086" description:"用户ID"`
	Reason   string    `json:"reason" example:"spam" description:"违规原因"`
	Count    int       `json:"count" example:"2" description:"累计警告次数"`
	IssuedAt time.Time `json:"issuedAt" description:"记录时间"`
}
