package notifier

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

type TelegramNotifier struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	retries int
	delay   time.Duration
}

func NewTelegramNotifier(api *tgbotapi.BotAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{api: api, chatID: chatID, retries: 3, delay: 5 * time.Second}
}

func (t *TelegramNotifier) Send(message string) error {
	msg := tgbotapi.NewMessage(t.chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (t *TelegramNotifier) SendWithRetry(message string) error {
	var err error
	for attempt := 1; attempt <= t.retries; attempt++ {
		if err = t.Send(message); err == nil {
			return nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("notification send failed")
		time.Sleep(t.delay)
	}
	return err
}
