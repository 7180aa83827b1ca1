package models

import (
	"strings"
	"time"
)

// Тип правила классификации
const (
	RuleBlack = "black"
	RuleWhite = "white"
)

// Режим сравнения
const (
	MatchProcess = "process"
	MatchTitle   = "title"
)

type ClassificationRule struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	RuleType   string    `gorm:"type:varchar(8);not null;index" json:"ruleType"`
	MatchMode  string    `gorm:"type:varchar(8);not null" json:"matchMode"`
	MatchValue string    `gorm:"not null" json:"matchValue"`
	Enabled    bool      `gorm:"not null" json:"enabled"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (ClassificationRule) TableName() string {
	return "classification_rules"
}

// Normalize приводит поля к каноническому виду
func (r *ClassificationRule) Normalize() {
	r.RuleType = strings.TrimSpace(strings.ToLower(r.RuleType))
	r.MatchMode = strings.TrimSpace(strings.ToLower(r.MatchMode))
	r.MatchValue = strings.TrimSpace(strings.ToLower(r.MatchValue))
	r.Note = strings.TrimSpace(r.Note)
}

// IsValid проверяет валидность данных
func (r *ClassificationRule) IsValid() bool {
	if r.RuleType != RuleBlack && r.RuleType != RuleWhite {
		return false
	}
	if r.MatchMode != MatchProcess && r.MatchMode != MatchTitle {
		return false
	}
	return r.MatchValue != ""
}
