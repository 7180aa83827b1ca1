package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"worksentry/internal/models"
	"worksentry/internal/policy"
	"worksentry/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	botTimeout      = 15 * time.Second
	botPendingLimit = 10
)

func (b *BotHandler) handleCommand(message *tgbotapi.Message) {
	command := message.Command()
	args := message.CommandArguments()

	switch command {
	case "start", "help":
		b.sendHelpMessage(message)
	case "live":
		b.showLive(message)
	case "pending":
		b.showPending(message)
	case "stat":
		b.showDailyStat(message, args)
	case "reset":
		b.resetDevice(message, args)
	default:
		b.send(message.Chat.ID, "❌ Неизвестная команда. Используйте /help для списка команд.")
	}
}

func (b *BotHandler) sendHelpMessage(message *tgbotapi.Message) {
	text := `📋 Доступные команды:

👀 Наблюдение:
/live - Текущие статусы сотрудников
/pending - Итоги дня, ожидающие причину

📊 Статистика:
/stat КОД [ГГГГ-ММ-ДД] - Итоги дня сотрудника
    Пример: /stat E001 2026-03-10

🛠 Управление:
/reset КОД - Сбросить привязку устройства сотрудника

/help - Показать это сообщение`

	b.send(message.Chat.ID, text)
}

func (b *BotHandler) showLive(message *tgbotapi.Message) {
	views := b.live.Snapshot()
	if len(views) == 0 {
		b.send(message.Chat.ID, "👀 Нет данных о сотрудниках.")
		return
	}

	b.send(message.Chat.ID, formatLive(views))
}

func formatLive(views []models.LiveView) string {
	lines := []string{"👀 Статусы сотрудников:", ""}
	for _, view := range views {
		who := view.EmployeeCode
		if view.EmployeeName != "" {
			who = fmt.Sprintf("%s (%s)", view.EmployeeName, view.EmployeeCode)
		}
		line := fmt.Sprintf("%s %s: %s", statusEmoji(view.StatusCode), who, view.StatusLabel)
		if view.Working && view.DelaySeconds > 0 {
			line += fmt.Sprintf(", %s назад", policy.FormatDuration(view.DelaySeconds))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func statusEmoji(code string) string {
	switch code {
	case models.StatusWork:
		return "🟢"
	case models.StatusNormal:
		return "🔵"
	case models.StatusFish:
		return "🐟"
	case models.StatusIdle:
		return "💤"
	case models.StatusBreak:
		return "☕"
	case models.StatusOffline:
		return "📴"
	case models.StatusOffwork:
		return "🏠"
	default:
		return "❔"
	}
}

func (b *BotHandler) showPending(message *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), botTimeout)
	defer cancel()

	reviews, err := b.reviews.Pending(ctx, botPendingLimit)
	if err != nil {
		b.logger.WithError(err).Error("Failed to load pending reviews")
		b.send(message.Chat.ID, "❌ Ошибка получения итогов: "+err.Error())
		return
	}
	if len(reviews) == 0 {
		b.send(message.Chat.ID, "✅ Нет итогов, ожидающих причину.")
		return
	}

	lines := []string{"📝 Ожидают причину:", ""}
	for _, review := range reviews {
		line := fmt.Sprintf("#%d %s %s, нарушений: %d", review.ID, review.EmployeeCode, review.WorkDate, len(review.Violations))
		if review.AutoClosed {
			line += " (закрыт автоматически)"
		}
		lines = append(lines, line)
	}
	b.send(message.Chat.ID, strings.Join(lines, "\n"))
}

func (b *BotHandler) showDailyStat(message *tgbotapi.Message, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.send(message.Chat.ID, "❌ Укажите код сотрудника. Пример: /stat E001 2026-03-10")
		return
	}

	date := models.WorkDateOf(time.Now())
	if len(fields) > 1 {
		date = fields[1]
	}
	if _, _, err := models.DayWindow(date); err != nil {
		b.send(message.Chat.ID, "❌ Дата должна быть в формате ГГГГ-ММ-ДД")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), botTimeout)
	defer cancel()

	stat, err := b.stats.Get(ctx, fields[0], date)
	if err != nil {
		b.logger.WithError(err).Error("Failed to load daily stat")
		b.send(message.Chat.ID, "❌ Ошибка получения статистики: "+err.Error())
		return
	}
	b.send(message.Chat.ID, b.stats.FormatStat(stat))
}

func (b *BotHandler) resetDevice(message *tgbotapi.Message, args string) {
	code := strings.TrimSpace(args)
	if code == "" {
		b.send(message.Chat.ID, "❌ Укажите код сотрудника. Пример: /reset E001")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), botTimeout)
	defer cancel()

	if err := b.clients.ResetDevice(ctx, code); err != nil {
		b.send(message.Chat.ID, "❌ Не удалось сбросить привязку: "+err.Error())
		return
	}
	b.audit.Record(ctx, models.OperatorTelegram, service.AuditDeviceReset, "employee", code, nil)
	b.send(message.Chat.ID, fmt.Sprintf("✅ Привязка устройства %s сброшена. Агент должен пройти привязку заново.", code))
}
