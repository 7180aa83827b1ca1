package models

import (
	"strings"
	"time"
)

// Типы полей анкеты завершения дня
const (
	FieldText   = "text"
	FieldNumber = "number"
	FieldSelect = "select"
)

// CheckoutTemplate - анкета, которую сотрудник отдела заполняет при завершении дня.
// В отделе включена не более чем одна анкета
type CheckoutTemplate struct {
	ID           uint            `gorm:"primarykey" json:"id"`
	DepartmentID uint            `gorm:"not null;index" json:"departmentId"`
	Name         string          `gorm:"not null" json:"name"`
	Enabled      bool            `gorm:"not null" json:"enabled"`
	Fields       []CheckoutField `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE" json:"fields,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (CheckoutTemplate) TableName() string {
	return "checkout_templates"
}

// CheckoutField - поле анкеты
type CheckoutField struct {
	ID         uint     `gorm:"primarykey" json:"id"`
	TemplateID uint     `gorm:"not null;index" json:"templateId"`
	Name       string   `gorm:"not null" json:"name"`
	Type       string   `gorm:"type:varchar(16);not null" json:"type"`
	Required   bool     `gorm:"not null" json:"required"`
	SortOrder  int      `gorm:"not null;default:0" json:"sortOrder"`
	Enabled    bool     `gorm:"not null" json:"enabled"`
	Options    []string `gorm:"serializer:json" json:"options"`
}

func (CheckoutField) TableName() string {
	return "checkout_fields"
}

// Normalize убирает пустые варианты и пробелы
func (f *CheckoutField) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Type = strings.TrimSpace(strings.ToLower(f.Type))
	options := make([]string, 0, len(f.Options))
	for _, option := range f.Options {
		if option = strings.TrimSpace(option); option != "" {
			options = append(options, option)
		}
	}
	if f.Type != FieldSelect {
		options = nil
	}
	f.Options = options
}

// IsValid проверяет валидность данных
func (f *CheckoutField) IsValid() bool {
	if f.TemplateID == 0 || f.Name == "" {
		return false
	}
	switch f.Type {
	case FieldText, FieldNumber:
		return true
	case FieldSelect:
		return len(f.Options) > 0
	default:
		return false
	}
}

// HasOption проверяет, что значение есть среди вариантов
func (f *CheckoutField) HasOption(value string) bool {
	for _, option := range f.Options {
		if option == value {
			return true
		}
	}
	return false
}

// CheckoutSubmission - заполненная агентом анкета. Ключ Data - ID поля
type CheckoutSubmission struct {
	TemplateID uint              `json:"templateId"`
	Data       map[string]string `json:"data"`
}

// CheckoutAnswer - ответ на поле анкеты вместе со снимком поля
type CheckoutAnswer struct {
	FieldID uint   `json:"fieldId"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Value   string `json:"value"`
}

// CheckoutRecord - анкета, сохраненная вместе с закрытием сессии. Одна на сессию
type CheckoutRecord struct {
	ID            uint             `gorm:"primarykey" json:"id"`
	WorkSessionID uint             `gorm:"not null;uniqueIndex" json:"workSessionId"`
	EmployeeCode  string           `gorm:"type:varchar(32);not null;index" json:"employeeCode"`
	DepartmentID  uint             `gorm:"index" json:"departmentId"`
	TemplateID    uint             `gorm:"index" json:"templateId"`
	TemplateName  string           `json:"templateName"`
	WorkDate      string           `gorm:"type:varchar(10);not null;index" json:"workDate"`
	StartAt       time.Time        `gorm:"not null" json:"startAt"`
	EndAt         time.Time        `gorm:"not null" json:"endAt"`
	Answers       []CheckoutAnswer `gorm:"serializer:json" json:"answers"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"createdAt"`
}

func (CheckoutRecord) TableName() string {
	return "checkout_records"
}
