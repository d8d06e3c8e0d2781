package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewMessageHandler returns the handler for every text message that is not a
// registered command. It is meant to be installed with bot.WithDefaultHandler,
// which receives all unmatched updates, so it filters them itself.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return PrivateChatOnly(deps)(messageHandler{deps}.Handle)
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}

	chatID := msg.Chat.ID
	action, err := h.deps.Conversation.HandleMessage(ctx, inbound(msg))
	if err != nil {
		log.ErrorContext(ctx, "Failed to handle message", "error", err, "user_id", msg.From.ID)
		h.deps.replyError(ctx, b, chatID, log)
		return
	}

	if err := h.deps.reply(ctx, b, chatID, action); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}
