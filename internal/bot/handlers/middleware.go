// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// PrivateChatOnly creates a middleware that only lets text messages sent by a
// user in a private chat through. Conversations are one-to-one, so anything
// posted in groups or channels (including the destination chats) is dropped.
func PrivateChatOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}
			if update.Message.Chat.Type != models.ChatTypePrivate {
				deps.Logger.With("middleware", "PrivateChatOnly").DebugContext(ctx, "Ignoring message outside a private chat",
					"chat_id", update.Message.Chat.ID, "chat_type", update.Message.Chat.Type)
				return
			}
			next(ctx, bot, update)
		}
	}
}
