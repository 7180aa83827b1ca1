package models

import (
	"strings"
	"time"
)

// Department - отдел. ParentID = 0 у отдела верхнего уровня
type Department struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	ParentID  uint      `gorm:"not null;default:0;index" json:"parentId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Department) TableName() string {
	return "departments"
}

// IsValid проверяет валидность данных
func (d *Department) IsValid() bool {
	if strings.TrimSpace(d.Name) == "" {
		return false
	}
	return d.ID == 0 || d.ParentID != d.ID
}
