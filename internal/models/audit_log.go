package models

import (
	"encoding/json"
	"time"
)

// Операторы изменений
const (
	OperatorAdmin    = "admin"
	OperatorTelegram = "telegram"
	OperatorSystem   = "system"
)

// AuditLog - запись журнала изменений, сделанных администратором или сервером
type AuditLog struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	Action     string          `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType string          `gorm:"type:varchar(32);not null" json:"targetType"`
	TargetID   string          `gorm:"type:varchar(64)" json:"targetId"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Operator   string          `gorm:"type:varchar(16);not null" json:"operator"`
	CreatedAt  time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
