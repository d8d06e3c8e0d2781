package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/medtechbot/internal/resilience"
)

const defaultSendTimeout = 10 * time.Second

// MessageSender is the part of *bot.Bot that sends text messages.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// ChannelSender posts request records to destination chats. With breakers
// enabled each destination gets its own circuit breaker, so one broken chat
// does not hold back the others.
type ChannelSender struct {
	client  MessageSender
	timeout time.Duration

	breakerCfg *resilience.CircuitBreakerConfig
	mu         sync.Mutex
	breakers   map[string]*resilience.CircuitBreaker
}

// SenderOption configures a ChannelSender.
type SenderOption func(*ChannelSender)

// WithCircuitBreakers guards every destination with a breaker built from cfg.
// cfg.Name is replaced by the destination.
func WithCircuitBreakers(cfg resilience.CircuitBreakerConfig) SenderOption {
	return func(s *ChannelSender) {
		s.breakerCfg = &cfg
	}
}

// WithSendTimeout bounds every send by d, with or without breakers.
// A non-positive d disables the bound.
func WithSendTimeout(d time.Duration) SenderOption {
	return func(s *ChannelSender) {
		s.timeout = d
	}
}

// NewChannelSender returns a ChannelSender that sends through client.
func NewChannelSender(client MessageSender, opts ...SenderOption) *ChannelSender {
	s := &ChannelSender{
		client:   client,
		timeout:  defaultSendTimeout,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendToChannel sends text as plain text to destination.
func (s *ChannelSender) SendToChannel(ctx context.Context, destination, text string) error {
	chatID, err := ChatID(destination)
	if err != nil {
		return err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	send := func(ctx context.Context) error {
		_, err := s.client.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
		return err
	}

	if breaker := s.breaker(destination); breaker != nil {
		err = breaker.Execute(ctx, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to send to %s: %w", destination, err)
	}
	return nil
}

// BreakerState reports the breaker state for destination; closed when breakers are off.
func (s *ChannelSender) BreakerState(destination string) resilience.CircuitState {
	if breaker := s.breaker(destination); breaker != nil {
		return breaker.State()
	}
	return resilience.StateClosed
}

func (s *ChannelSender) breaker(destination string) *resilience.CircuitBreaker {
	if s.breakerCfg == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[destination]; ok {
		return b
	}
	cfg := *s.breakerCfg
	cfg.Name = "channel " + destination
	b := resilience.NewCircuitBreaker(cfg)
	s.breakers[destination] = b
	return b
}

// ChatID converts a configured destination into a value accepted by the Bot API:
// an int64 for numeric ids, the "@name" string for public channels.
func ChatID(destination string) (any, error) {
	d := strings.TrimSpace(destination)
	if d == "" {
		return nil, fmt.Errorf("empty destination")
	}
	if strings.HasPrefix(d, "@") {
		if len(d) == 1 {
			return nil, fmt.Errorf("invalid destination %q", destination)
		}
		return d, nil
	}
	id, err := strconv.ParseInt(d, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid destination %q: want a chat id or @channel", destination)
	}
	return id, nil
}
