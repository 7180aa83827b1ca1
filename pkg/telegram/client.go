package telegram

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Client struct {
	Bot          *tgbotapi.BotAPI
	UpdateConfig tgbotapi.UpdateConfig
	// AdminChatID - чат для уведомлений, 0 отключает Notify
	AdminChatID int64
}

func NewClient(token string, adminChatID int64, debug bool) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	bot.Debug = debug

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	return &Client{
		Bot:          bot,
		UpdateConfig: updateConfig,
		AdminChatID:  adminChatID,
	}, nil
}

// Updates открывает long polling
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	return c.Bot.GetUpdatesChan(c.UpdateConfig)
}

// SendText отправляет сообщение в Markdown
func (c *Client) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := c.Bot.Send(msg)
	return err
}

// Notify отправляет сообщение в чат администратора
func (c *Client) Notify(text string) error {
	if c.AdminChatID == 0 {
		return errors.New("не задан ADMIN_CHAT_ID")
	}
	return c.SendText(c.AdminChatID, text)
}

// Stop прекращает получение обновлений
func (c *Client) Stop() {
	c.Bot.StopReceivingUpdates()
}
