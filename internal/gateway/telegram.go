package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramLimit = 4096

type TelegramGateway struct {
	Bot     *tgbotapi.BotAPI
	Handler *Handler
	logger  *slog.Logger
}

func NewTelegramGateway(token string, handler *Handler) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	handler.Platform = "telegram"
	logger := handler.logger().With("gateway", "telegram")
	logger.Info("Authorized on account.", "username", bot.Self.UserName)

	return &TelegramGateway{
		Bot:     bot,
		Handler: handler,
		logger:  logger,
	}, nil
}

func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			tg.logger.Info("Message received.", "from", senderName(update.Message))

			chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
			reply := tg.Handler.Handle(ctx, chatID, update.Message.Text)
			if reply == "" {
				continue
			}
			if err := tg.Send(chatID, reply); err != nil {
				tg.logger.Error("Failed to reply.", "chat_id", chatID, "error", err)
			}
		}
	}
}

// senderName is empty for channel posts, which carry no sender.
func senderName(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	return msg.From.UserName
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	for _, part := range chunk(text, telegramLimit) {
		msg := tgbotapi.NewMessage(id, part)
		if _, err := tg.Bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
