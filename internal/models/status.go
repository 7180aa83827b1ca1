package models

import (
	"strings"
	"time"
)

// Коды статусов активности
const (
	StatusWork     = "work"
	StatusNormal   = "normal"
	StatusFish     = "fish"
	StatusIdle     = "idle"
	StatusOffline  = "offline"
	StatusBreak    = "break"
	StatusOffwork  = "offwork"
	StatusIncident = "incident"
)

// Типы отчетов агента
const (
	ReportStartup   = "startup"
	ReportChange    = "change"
	ReportHeartbeat = "heartbeat"
	ReportWorkStart = "work_start"
	ReportWorkEnd   = "work_end"
	ReportBreak     = "break"
)

// Источники сегментов
const (
	SourceAgent    = "agent"
	SourceManual   = "manual"
	SourceIncident = "incident"
)

const dateLayout = "2006-01-02"

// StatusLabel возвращает подпись статуса для отображения
func StatusLabel(code string) string {
	switch code {
	case StatusWork:
		return "Работа"
	case StatusNormal:
		return "Обычное"
	case StatusFish:
		return "Отвлечение"
	case StatusIdle:
		return "Нет на месте"
	case StatusOffline:
		return "Не в сети"
	case StatusBreak:
		return "Перерыв"
	case StatusOffwork:
		return "Рабочий день завершен"
	case StatusIncident:
		return "Системный сбой"
	default:
		return "Неизвестно"
	}
}

// SourceLabel возвращает подпись источника сегмента
func SourceLabel(source string) string {
	switch source {
	case SourceAgent:
		return "Агент"
	case SourceManual:
		return "Корректировка"
	case SourceIncident:
		return "Системный сбой"
	default:
		return "Неизвестно"
	}
}

// IsThresholdStatus проверяет, можно ли задать порог для статуса
func IsThresholdStatus(code string) bool {
	switch strings.TrimSpace(code) {
	case StatusWork, StatusNormal, StatusFish, StatusIdle, StatusOffline, StatusBreak:
		return true
	default:
		return false
	}
}

// IsProductive - работа и обычная активность идут в зачет целевого времени
func IsProductive(code string) bool {
	return code == StatusWork || code == StatusNormal
}

func IsValidReportType(reportType string) bool {
	switch reportType {
	case ReportStartup, ReportChange, ReportHeartbeat, ReportWorkStart, ReportWorkEnd, ReportBreak:
		return true
	default:
		return false
	}
}

// WorkDateOf возвращает рабочую дату в локальном часовом поясе
func WorkDateOf(t time.Time) string {
	return t.In(time.Local).Format(dateLayout)
}

// DayWindow возвращает границы суток [start, end) для даты в формате 2006-01-02
func DayWindow(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day, day.AddDate(0, 0, 1), nil
}
