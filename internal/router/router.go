// Package router formats completed requests, journals them and delivers them to
// the destination channel bound to their flow.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/medtechbot/internal/database"
	"github.com/edgard/medtechbot/internal/domain"
	"github.com/edgard/medtechbot/internal/metrics"
)

// ErrNoDestination is returned when a flow has no destination bound to it.
var ErrNoDestination = errors.New("no destination for flow")

// Sender delivers a formatted record to a destination channel.
type Sender interface {
	SendToChannel(ctx context.Context, destination, text string) error
}

// Journal is the subset of database.Store the router needs.
type Journal interface {
	SaveRequest(ctx context.Context, req *database.Request) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, cause string, at time.Time) error
	GetUndeliveredRequests(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*database.Request, error)
}

// Router routes completed requests. It is safe for concurrent use.
type Router struct {
	sender       Sender
	journal      Journal
	destinations map[domain.FlowKind]string
	logger       *slog.Logger
	metrics      *metrics.Collectors
	now          func() time.Time
	location     *time.Location
	maxAttempts  int
	retryAfter   time.Duration
}

// Option configures a Router.
type Option func(*Router)

// WithMetrics enables metric collection.
func WithMetrics(m *metrics.Collectors) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithClock overrides the time source used for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// WithLocation sets the time zone used for the record timestamp.
func WithLocation(loc *time.Location) Option {
	return func(r *Router) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithRetryPolicy sets how often and how soon undelivered requests are retried.
func WithRetryPolicy(maxAttempts int, retryAfter time.Duration) Option {
	return func(r *Router) {
		if maxAttempts > 0 {
			r.maxAttempts = maxAttempts
		}
		if retryAfter >= 0 {
			r.retryAfter = retryAfter
		}
	}
}

// New creates a Router. Every flow kind must have a destination. journal may be
// nil, in which case requests are delivered once and never retried.
func New(sender Sender, journal Journal, destinations map[domain.FlowKind]string, logger *slog.Logger, opts ...Option) (*Router, error) {
	if sender == nil {
		return nil, errors.New("router requires a sender")
	}
	for _, kind := range domain.Flows {
		if destinations[kind] == "" {
			return nil, fmt.Errorf("%w: %s", ErrNoDestination, kind)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		sender:       sender,
		journal:      journal,
		destinations: make(map[domain.FlowKind]string, len(destinations)),
		logger:       logger.With("component", "router"),
		now:          time.Now,
		location:     time.Local,
		maxAttempts:  5,
		retryAfter:   time.Minute,
	}
	for kind, dest := range destinations {
		r.destinations[kind] = dest
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Destination returns the channel bound to kind.
func (r *Router) Destination(kind domain.FlowKind) (string, bool) {
	dest, ok := r.destinations[kind]
	return dest, ok
}

// Submit formats req, journals it and makes a single delivery attempt. Journal
// failures are logged and do not prevent delivery.
func (r *Router) Submit(ctx context.Context, req domain.CompletedRequest) domain.DispatchResult {
	start := time.Now()
	result := domain.DispatchResult{RequestID: req.ID, Flow: req.Flow}

	dest, ok := r.destinations[req.Flow]
	if !ok {
		result.Err = fmt.Errorf("%w: %s", ErrNoDestination, req.Flow)
		r.metrics.Submitted(req.Flow.String(), false, 0)
		return result
	}
	result.Destination = dest

	req.SubmittedAt = req.SubmittedAt.In(r.location)
	body := Format(req)

	if r.journal != nil {
		row := &database.Request{
			ID:          req.ID,
			Flow:        req.Flow.String(),
			Destination: dest,
			RequesterID: req.RequesterID,
			Body:        body,
			CreatedAt:   req.SubmittedAt,
		}
		if err := r.journal.SaveRequest(ctx, row); err != nil {
			r.logger.ErrorContext(ctx, "Failed to journal request, delivering anyway",
				"request_id", req.ID, "flow", req.Flow, "error", err)
		} else {
			result.Journaled = true
		}
	}

	sendErr := r.sender.SendToChannel(ctx, dest, body)
	result.Delivered = sendErr == nil
	if sendErr != nil {
		result.Err = fmt.Errorf("failed to deliver request %s to %s: %w", req.ID, dest, sendErr)
	}

	if result.Journaled {
		r.mark(ctx, req.ID, sendErr)
	}

	r.metrics.Submitted(req.Flow.String(), result.Delivered, time.Since(start).Seconds())
	r.logger.DebugContext(ctx, "Request dispatched",
		"request_id", req.ID, "flow", req.Flow, "destination", dest, "delivered", result.Delivered)
	return result
}

// Redeliver retries up to limit journaled requests that are still undelivered,
// were last attempted at least retryAfter ago and have attempts left. It returns
// how many were attempted and how many got through.
func (r *Router) Redeliver(ctx context.Context, limit int) (attempted, delivered int, err error) {
	if r.journal == nil {
		return 0, 0, nil
	}

	due, err := r.journal.GetUndeliveredRequests(ctx, r.now().Add(-r.retryAfter), r.maxAttempts, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list undelivered requests: %w", err)
	}

	for _, row := range due {
		if ctx.Err() != nil {
			return attempted, delivered, ctx.Err()
		}
		attempted++

		sendErr := r.sender.SendToChannel(ctx, row.Destination, row.Body)
		r.mark(ctx, row.ID, sendErr)
		r.metrics.Redelivered(sendErr == nil)
		if sendErr != nil {
			r.logger.WarnContext(ctx, "Redelivery failed",
				"request_id", row.ID, "flow", row.Flow, "attempt", row.Attempts+1, "error", sendErr)
			continue
		}
		delivered++
		r.logger.InfoContext(ctx, "Request redelivered",
			"request_id", row.ID, "flow", row.Flow, "attempt", row.Attempts+1)
	}
	return attempted, delivered, nil
}

func (r *Router) mark(ctx context.Context, id string, sendErr error) {
	var err error
	if sendErr == nil {
		err = r.journal.MarkDelivered(ctx, id, r.now())
	} else {
		err = r.journal.MarkFailed(ctx, id, sendErr.Error(), r.now())
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update journaled request", "request_id", id, "error", err)
	}
}
