package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCancelHandler returns a handler for the /cancel command.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return cancelHandler{deps}.Handle
}

type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "cancel")

	if update.Message == nil || update.Message.From == nil {
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	log.InfoContext(ctx, "Handling /cancel command", "chat_id", chatID, "user_id", userID)

	action, err := h.deps.Conversation.HandleCancel(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to cancel conversation", "error", err, "user_id", userID)
		h.deps.replyError(ctx, b, chatID, log)
		return
	}
	if err := h.deps.reply(ctx, b, chatID, action); err != nil {
		log.ErrorContext(ctx, "Failed to send cancellation message", "error", err, "chat_id", chatID)
	}
}
