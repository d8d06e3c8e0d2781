package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/medtechbot/internal/config"
	"github.com/edgard/medtechbot/internal/conversation"
)

// Conversation is the engine contract the handlers drive.
type Conversation interface {
	HandleStart(ctx context.Context, userID int64) (conversation.Action, error)
	HandleCancel(ctx context.Context, userID int64) (conversation.Action, error)
	HandleMessage(ctx context.Context, in conversation.Inbound) (conversation.Action, error)
}

// MessageSender sends replies. *bot.Bot satisfies it.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Conversation Conversation
	// Sender overrides the bot the update arrived on. Tests set it.
	Sender MessageSender
}

func (d HandlerDeps) sender(b *bot.Bot) MessageSender {
	if d.Sender != nil {
		return d.Sender
	}
	return b
}

func (d HandlerDeps) generalError() string {
	if d.Config != nil && d.Config.Messages.GeneralError != "" {
		return d.Config.Messages.GeneralError
	}
	return config.DefaultMessages.GeneralError
}

// reply renders an engine action as a Telegram message.
func (d HandlerDeps) reply(ctx context.Context, b *bot.Bot, chatID int64, action conversation.Action) error {
	_, err := d.sender(b).SendMessage(ctx, replyParams(chatID, action))
	return err
}

// replyError tells the user something went wrong without touching the keyboard.
func (d HandlerDeps) replyError(ctx context.Context, b *bot.Bot, chatID int64, log *slog.Logger) {
	if err := d.reply(ctx, b, chatID, conversation.Action{Text: d.generalError()}); err != nil {
		log.ErrorContext(ctx, "Failed to send error message", "error", err, "chat_id", chatID)
	}
}

func replyParams(chatID int64, action conversation.Action) *bot.SendMessageParams {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   action.Text,
	}
	if action.HTML {
		params.ParseMode = models.ParseModeHTML
	}
	switch {
	case action.RemoveMenu:
		params.ReplyMarkup = &models.ReplyKeyboardRemove{RemoveKeyboard: true}
	case len(action.Menu) > 0:
		params.ReplyMarkup = replyKeyboard(action.Menu)
	}
	return params
}

func replyKeyboard(menu [][]string) *models.ReplyKeyboardMarkup {
	rows := make([][]models.KeyboardButton, 0, len(menu))
	for _, labels := range menu {
		row := make([]models.KeyboardButton, 0, len(labels))
		for _, label := range labels {
			row = append(row, models.KeyboardButton{Text: label})
		}
		rows = append(rows, row)
	}
	return &models.ReplyKeyboardMarkup{
		Keyboard:        rows,
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

// inbound builds the engine input from a Telegram message.
func inbound(msg *models.Message) conversation.Inbound {
	return conversation.Inbound{
		UserID:      msg.From.ID,
		Text:        msg.Text,
		Handle:      msg.From.Username,
		DisplayName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
	}
}
