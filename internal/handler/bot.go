package handler

import (
	"worksentry/internal/logging"
	"worksentry/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type messageSender interface {
	SendText(chatID int64, text string) error
}

// BotHandler - команды администратора в Telegram. Отвечает только в ADMIN_CHAT_ID
type BotHandler struct {
	sender      messageSender
	live        *service.LiveService
	reviews     *service.ReviewService
	stats       *service.DailyStatService
	clients     *service.ClientService
	audit       *service.AuditService
	adminChatID int64
	logger      *logrus.Logger
}

func NewBotHandler(
	sender messageSender,
	liveService *service.LiveService,
	reviews *service.ReviewService,
	stats *service.DailyStatService,
	clients *service.ClientService,
	audit *service.AuditService,
	adminChatID int64,
) *BotHandler {
	return &BotHandler{
		sender:      sender,
		live:        liveService,
		reviews:     reviews,
		stats:       stats,
		clients:     clients,
		audit:       audit,
		adminChatID: adminChatID,
		logger:      logging.New(),
	}
}

func (b *BotHandler) HandleUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil {
			continue
		}

		b.handleMessage(update.Message)
	}
}

func (b *BotHandler) handleMessage(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	username := ""
	if message.From != nil {
		username = message.From.UserName
	}
	b.logger.WithFields(logrus.Fields{
		"chat_id":  chatID,
		"username": username,
	}).Infof("Bot message: %s", message.Text)

	if chatID != b.adminChatID {
		b.logger.WithField("chat_id", chatID).Warn("Unauthorized bot access")
		b.send(chatID, "❌ Доступ запрещен. Бот отвечает только администратору.")
		return
	}

	if message.IsCommand() {
		b.handleCommand(message)
		return
	}

	b.send(chatID, "Используйте /help для списка команд.")
}

func (b *BotHandler) send(chatID int64, text string) {
	if err := b.sender.SendText(chatID, text); err != nil {
		b.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send bot message")
	}
}
