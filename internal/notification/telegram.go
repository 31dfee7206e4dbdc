// Package notification delivers match and playdate notifications to owners over
// Telegram and email.
package notification

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/pawmatch/pawmatch/internal/interfaces"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

// telegramSender is the slice of *bot.Bot used for delivery
type telegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier sends notifications to an owner's linked Telegram chat
type TelegramNotifier struct {
	bot      telegramSender
	contacts interfaces.ContactDirectory
}

// NewTelegramNotifier creates a notifier for the bot behind token. The bot is only
// used for outgoing messages, so no updates are polled.
func NewTelegramNotifier(token string, contacts interfaces.ContactDirectory) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: b, contacts: contacts}, nil
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) SendMatchNotification(ctx context.Context, userID, title, message string, data map[string]string) error {
	return n.send(ctx, userID, formatText(title, message))
}

func (n *TelegramNotifier) SendPlaydateRequestNotification(ctx context.Context, userID, requestID, otherDogName string) error {
	title, message := playdateRequestText(otherDogName)
	return n.send(ctx, userID, formatText(title, message))
}

func (n *TelegramNotifier) send(ctx context.Context, userID, text string) error {
	contact, err := n.contacts.GetContact(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve telegram chat: %w", err)
	}
	if contact == nil || contact.TelegramChatID == nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "telegram_notify",
			"user_id":   userID,
		}).Debug("Owner has no linked Telegram chat")
		return nil
	}

	_, err = n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *contact.TelegramChatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func formatText(title, message string) string {
	return title + "\n\n" + message
}

func playdateRequestText(otherDogName string) (title, message string) {
	return "Playdate request",
		fmt.Sprintf("%s would like a playdate! Open PawMatch to accept, decline or suggest another time.", otherDogName)
}
