// Package classifier определяет статус активности по отчету агента.
package classifier

import (
	"strings"

	"worksentry/internal/models"
)

// RuleSet - нормализованный набор включенных правил
type RuleSet struct {
	black []matcher
	white []matcher
}

type matcher struct {
	mode  string
	value string
}

// NewRuleSet отбирает включенные правила. Правила с пустым значением пропускаются
func NewRuleSet(rules []models.ClassificationRule) RuleSet {
	var set RuleSet
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		m := matcher{
			mode:  normalize(rule.MatchMode),
			value: normalize(rule.MatchValue),
		}
		if m.value == "" {
			continue
		}
		switch normalize(rule.RuleType) {
		case models.RuleBlack:
			set.black = append(set.black, m)
		case models.RuleWhite:
			set.white = append(set.white, m)
		}
	}
	return set
}

// Len возвращает количество действующих правил
func (s RuleSet) Len() int {
	return len(s.black) + len(s.white)
}

// Classify возвращает код статуса для отчета.
// Черный список важнее белого: процесс из обоих списков считается отвлечением
func Classify(sample models.ActivitySample, rules RuleSet, idleThresholdSeconds int) string {
	if strings.EqualFold(strings.TrimSpace(sample.ReportType), models.ReportBreak) {
		return models.StatusBreak
	}
	if idleThresholdSeconds > 0 && sample.IdleSeconds >= idleThresholdSeconds {
		return models.StatusIdle
	}

	process := normalize(sample.ProcessName)
	title := normalize(sample.WindowTitle)

	for _, m := range rules.black {
		if m.match(process, title) {
			return models.StatusFish
		}
	}
	for _, m := range rules.white {
		if m.match(process, title) {
			return models.StatusWork
		}
	}
	return models.StatusNormal
}

func (m matcher) match(process, title string) bool {
	switch m.mode {
	case models.MatchProcess:
		return process == m.value
	case models.MatchTitle:
		return strings.Contains(title, m.value)
	default:
		return false
	}
}

// Description формирует подпись вида "chrome: Inbox"
func Description(processName, windowTitle string) string {
	processName = strings.TrimSpace(processName)
	windowTitle = strings.TrimSpace(windowTitle)
	if len(processName) > 4 && strings.EqualFold(processName[len(processName)-4:], ".exe") {
		processName = processName[:len(processName)-4]
	}
	if processName == "" {
		return windowTitle
	}
	if windowTitle == "" {
		return processName
	}
	return processName + ": " + windowTitle
}

// DescribeSample возвращает подпись для отчета с учетом перерыва
func DescribeSample(sample models.ActivitySample) string {
	if strings.EqualFold(strings.TrimSpace(sample.ReportType), models.ReportBreak) {
		return models.StatusLabel(models.StatusBreak)
	}
	return Description(sample.ProcessName, sample.WindowTitle)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
