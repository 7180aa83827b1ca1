package models

import (
	"strings"
	"time"
)

type Employee struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Code         string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	Name         string    `gorm:"not null" json:"name"`
	DepartmentID uint      `gorm:"index" json:"departmentId"`
	Enabled      bool      `gorm:"not null" json:"enabled"`
	Fingerprint  string    `json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName задает имя таблицы в БД
func (Employee) TableName() string {
	return "employees"
}

// HasDevice - к сотруднику уже привязано устройство
func (e *Employee) HasDevice() bool {
	return e.Fingerprint != ""
}

// IsValid проверяет валидность данных
func (e *Employee) IsValid() bool {
	return strings.TrimSpace(e.Code) != "" && strings.TrimSpace(e.Name) != ""
}

// ClientToken - выданный агенту токен, ID совпадает с jti в подписанном токене
type ClientToken struct {
	ID           string     `gorm:"primarykey;type:varchar(64)" json:"id"`
	EmployeeCode string     `gorm:"type:varchar(32);not null;index" json:"employeeCode"`
	Fingerprint  string     `json:"-"`
	IssuedAt     time.Time  `gorm:"not null" json:"issuedAt"`
	LastSeenAt   *time.Time `json:"lastSeenAt"`
	Revoked      bool       `gorm:"not null" json:"revoked"`
}

func (ClientToken) TableName() string {
	return "client_tokens"
}
