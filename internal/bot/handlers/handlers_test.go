package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/medtechbot/internal/config"
	"github.com/edgard/medtechbot/internal/conversation"
	"github.com/edgard/medtechbot/internal/domain"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
	err  error
}

func (r *recordingSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, params)
	return &models.Message{}, r.err
}

func (r *recordingSender) last(t *testing.T) *bot.SendMessageParams {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1]
}

type stubSubmitter struct {
	mu       sync.Mutex
	requests []domain.CompletedRequest
}

func (s *stubSubmitter) Submit(_ context.Context, req domain.CompletedRequest) domain.DispatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return domain.DispatchResult{RequestID: req.ID, Flow: req.Flow, Delivered: true}
}

type failingConversation struct{}

var errStore = errors.New("store unavailable")

func (failingConversation) HandleStart(context.Context, int64) (conversation.Action, error) {
	return conversation.Action{}, errStore
}

func (failingConversation) HandleCancel(context.Context, int64) (conversation.Action, error) {
	return conversation.Action{}, errStore
}

func (failingConversation) HandleMessage(context.Context, conversation.Inbound) (conversation.Action, error) {
	return conversation.Action{}, errStore
}

type harness struct {
	deps      HandlerDeps
	sender    *recordingSender
	submitter *stubSubmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{Messages: config.DefaultMessages}
	submitter := &stubSubmitter{}
	engine := conversation.NewEngine(
		conversation.NewMemoryStore(),
		conversation.MustDefaultFlowTable(),
		submitter,
		cfg.Messages.Conversation(),
	)
	sender := &recordingSender{}
	return &harness{
		deps: HandlerDeps{
			Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
			Config:       cfg,
			Conversation: engine,
			Sender:       sender,
		},
		sender:    sender,
		submitter: submitter,
	}
}

func privateMessage(userID int64, text string) *models.Update {
	return &models.Update{
		ID: 1,
		Message: &models.Message{
			Chat: models.Chat{ID: userID, Type: models.ChatTypePrivate},
			From: &models.User{ID: userID, Username: "clinic_admin", FirstName: "Анна", LastName: "Петрова"},
			Text: text,
		},
	}
}

func TestStartHandler_ShowsMainMenu(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	NewStartHandler(h.deps)(context.Background(), nil, privateMessage(10, "/start"))

	params := h.sender.last(t)
	assert.Equal(t, int64(10), params.ChatID)
	assert.Equal(t, config.DefaultMessages.Welcome, params.Text)
	assert.Equal(t, models.ParseModeHTML, params.ParseMode)

	kb, ok := params.ReplyMarkup.(*models.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, kb.ResizeKeyboard)
	assert.True(t, kb.OneTimeKeyboard)
	require.Len(t, kb.Keyboard, len(conversation.DefaultMainMenu()))
	assert.Equal(t, conversation.LabelUrgent, kb.Keyboard[0][0].Text)
}

func TestMessageHandler_RepairFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	handle := NewMessageHandler(h.deps)
	ctx := context.Background()

	for _, text := range []string{
		conversation.LabelRepair,
		"КТ",
		"GE Optima",
		"Не включается",
		"+7 900 000-00-00",
		"clinic@example.com",
		"Пропустить",
	} {
		handle(ctx, nil, privateMessage(20, text))
	}

	require.Len(t, h.submitter.requests, 1)
	req := h.submitter.requests[0]
	assert.Equal(t, domain.FlowRepair, req.Flow)
	assert.Equal(t, "clinic_admin", req.RequesterHandle)
	assert.Equal(t, "Анна Петрова", req.RequesterDisplayName)

	confirmation := h.sender.last(t)
	assert.Equal(t, models.ParseModeHTML, confirmation.ParseMode)
	assert.Equal(t, &models.ReplyKeyboardRemove{RemoveKeyboard: true}, confirmation.ReplyMarkup)
}

func TestCancelHandler_RemovesKeyboard(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	NewMessageHandler(h.deps)(context.Background(), nil, privateMessage(30, conversation.LabelAudit))
	NewCancelHandler(h.deps)(context.Background(), nil, privateMessage(30, "/cancel"))

	params := h.sender.last(t)
	assert.Equal(t, config.DefaultMessages.Cancelled, params.Text)
	assert.Empty(t, params.ParseMode)
	assert.Equal(t, &models.ReplyKeyboardRemove{RemoveKeyboard: true}, params.ReplyMarkup)

	// After cancel the next message is main-menu input again.
	NewMessageHandler(h.deps)(context.Background(), nil, privateMessage(30, "+7 900"))
	assert.Equal(t, config.DefaultMessages.ChooseFromMenu, h.sender.last(t).Text)
}

func TestMessageHandler_IgnoresNonPrivateAndNonText(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	handle := NewMessageHandler(h.deps)
	ctx := context.Background()

	group := privateMessage(40, conversation.LabelRepair)
	group.Message.Chat.Type = models.ChatTypeSupergroup
	handle(ctx, nil, group)

	photo := privateMessage(40, "")
	handle(ctx, nil, photo)

	handle(ctx, nil, &models.Update{ID: 2, ChannelPost: &models.Message{Text: "post"}})
	handle(ctx, nil, &models.Update{ID: 3, Message: &models.Message{Chat: models.Chat{Type: models.ChatTypePrivate}, Text: "no sender"}})

	assert.Empty(t, h.sender.sent)
}

func TestHandlers_EngineErrorRepliesWithGeneralError(t *testing.T) {
	t.Parallel()

	tests := map[string]func(HandlerDeps) bot.HandlerFunc{
		"start":   NewStartHandler,
		"cancel":  NewCancelHandler,
		"message": NewMessageHandler,
	}
	for name, newHandler := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.deps.Conversation = failingConversation{}

			newHandler(h.deps)(context.Background(), nil, privateMessage(50, conversation.LabelRepair))

			params := h.sender.last(t)
			assert.Equal(t, config.DefaultMessages.GeneralError, params.Text)
			assert.Nil(t, params.ReplyMarkup)
		})
	}
}

func TestHandlers_SendFailureDoesNotPanic(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.sender.err = errors.New("blocked by user")

	assert.NotPanics(t, func() {
		NewStartHandler(h.deps)(context.Background(), nil, privateMessage(60, "/start"))
		NewMessageHandler(h.deps)(context.Background(), nil, privateMessage(60, conversation.LabelRental))
	})
	assert.Len(t, h.sender.sent, 2)
}

func TestReplyParams(t *testing.T) {
	t.Parallel()

	plain := replyParams(7, conversation.Action{Text: "Введите модель аппарата:"})
	assert.Nil(t, plain.ReplyMarkup)
	assert.Empty(t, plain.ParseMode)

	withMenu := replyParams(7, conversation.Action{Text: "x", Menu: [][]string{{"Пропустить"}, {"Назад"}}})
	kb, ok := withMenu.ReplyMarkup.(*models.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, [][]models.KeyboardButton{{{Text: "Пропустить"}}, {{Text: "Назад"}}}, kb.Keyboard)
}

func TestRegisterAllCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	registered := RegisterAllCommands(h.deps)
	require.Len(t, registered, 2)
	for name, pattern := range map[string]string{"/start": "start", "/cancel": "cancel"} {
		reg, ok := registered[name]
		require.True(t, ok, name)
		assert.Equal(t, pattern, reg.Pattern)
		assert.Equal(t, bot.MatchTypeCommandStartOnly, reg.MatchType)
		assert.NotNil(t, reg.Handler)
		assert.Len(t, reg.Middleware, 1)
	}
}
