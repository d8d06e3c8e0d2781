package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler resets the user's conversation and shows the main menu.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID
	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID, "user_id", userID)

	action, err := h.deps.Conversation.HandleStart(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to reset conversation", "error", err, "user_id", userID)
		h.deps.replyError(ctx, b, chatID, log)
		return
	}
	if err := h.deps.reply(ctx, b, chatID, action); err != nil {
		log.ErrorContext(ctx, "Failed to send welcome message", "error", err, "chat_id", chatID)
		return
	}
	log.DebugContext(ctx, "Successfully sent welcome message", "chat_id", chatID)
}
