package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

const discordLimit = 2000

// DiscordGateway answers messages in the channels and DMs the bot can read.
type DiscordGateway struct {
	Session *discordgo.Session
	Handler *Handler
	logger  *slog.Logger
}

func NewDiscordGateway(token string, handler *Handler) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	handler.Platform = "discord"
	return &DiscordGateway{
		Session: session,
		Handler: handler,
		logger:  handler.logger().With("gateway", "discord"),
	}, nil
}

func (d *DiscordGateway) Start(ctx context.Context) error {
	remove := d.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
			return
		}
		d.logger.Info("Message received.", "from", m.Author.Username, "channel", m.ChannelID)

		reply := d.Handler.Handle(ctx, m.ChannelID, m.Content)
		if reply == "" {
			return
		}
		if err := d.Send(m.ChannelID, reply); err != nil {
			d.logger.Error("Failed to reply.", "channel", m.ChannelID, "error", err)
		}
	})
	defer remove()

	if err := d.Session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	d.logger.Info("Connected.", "username", d.Session.State.User.Username)

	<-ctx.Done()
	return nil
}

func (d *DiscordGateway) Send(chatID string, text string) error {
	for _, part := range chunk(text, discordLimit) {
		if _, err := d.Session.ChannelMessageSend(chatID, part); err != nil {
			return err
		}
	}
	return nil
}

func (d *DiscordGateway) Stop() error {
	return d.Session.Close()
}
