package models

import "time"

// Политика обновления агента
const (
	UpdateOptional = 0
	UpdateForced   = 1
)

// Settings - единственная строка с политикой для агентов
type Settings struct {
	ID                       uint      `gorm:"primarykey" json:"-"`
	IdleThresholdSeconds     int       `gorm:"not null" json:"idleThresholdSeconds"`
	HeartbeatIntervalSeconds int       `gorm:"not null" json:"heartbeatIntervalSeconds"`
	OfflineThresholdSeconds  int       `gorm:"not null" json:"offlineThresholdSeconds"`
	UpdatePolicy             int       `gorm:"not null;default:0" json:"updatePolicy"`
	LatestVersion            string    `json:"latestVersion"`
	UpdateURL                string    `json:"updateUrl"`
	UpdatedAt                time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Settings) TableName() string {
	return "settings"
}

// IsValid проверяет валидность данных
func (s *Settings) IsValid() bool {
	if s.IdleThresholdSeconds <= 0 || s.HeartbeatIntervalSeconds <= 0 || s.OfflineThresholdSeconds <= 0 {
		return false
	}
	return s.UpdatePolicy == UpdateOptional || s.UpdatePolicy == UpdateForced
}

// RequiresUpdate - агент обязан обновиться перед отправкой отчетов
func (s *Settings) RequiresUpdate(clientVersion string) bool {
	if s.UpdatePolicy != UpdateForced || s.LatestVersion == "" {
		return false
	}
	return CompareVersions(clientVersion, s.LatestVersion) < 0
}

// ClientPolicy - политика, которую сервер возвращает агенту в ответе на отчет
type ClientPolicy struct {
	IdleThresholdSeconds     int    `json:"idleThresholdSeconds"`
	HeartbeatIntervalSeconds int    `json:"heartbeatIntervalSeconds"`
	OfflineThresholdSeconds  int    `json:"offlineThresholdSeconds"`
	UpdatePolicy             int    `json:"updatePolicy"`
	LatestVersion            string `json:"latestVersion,omitempty"`
	UpdateURL                string `json:"updateUrl,omitempty"`
}

func (s *Settings) Policy() ClientPolicy {
	return ClientPolicy{
		IdleThresholdSeconds:     s.IdleThresholdSeconds,
		HeartbeatIntervalSeconds: s.HeartbeatIntervalSeconds,
		OfflineThresholdSeconds:  s.OfflineThresholdSeconds,
		UpdatePolicy:             s.UpdatePolicy,
		LatestVersion:            s.LatestVersion,
		UpdateURL:                s.UpdateURL,
	}
}
