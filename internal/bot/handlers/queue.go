package handlers

import (
	"context"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// UserQueue runs the updates of one user strictly in the order they reach its
// middleware, while different users are handled concurrently. The middleware
// must be called in polling order, so the bot is built with
// bot.WithNotAsyncHandlers and a single worker.
type UserQueue struct {
	mu sync.Mutex
	// pending holds the waiting jobs of users whose drain goroutine is running.
	pending map[int64][]func()
	wg      sync.WaitGroup
}

// NewUserQueue returns an empty queue.
func NewUserQueue() *UserQueue {
	return &UserQueue{pending: make(map[int64][]func())}
}

// Middleware hands the update to the sender's queue and returns immediately.
// Updates without a sender run on their own goroutine.
func (q *UserQueue) Middleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		job := func() { next(ctx, b, update) }
		userID, ok := updateUserID(update)
		if !ok {
			q.wg.Add(1)
			go func() {
				defer q.wg.Done()
				job()
			}()
			return
		}
		q.enqueue(userID, job)
	}
}

// Wait blocks until every queued update has been handled.
func (q *UserQueue) Wait() {
	q.wg.Wait()
}

func (q *UserQueue) enqueue(userID int64, job func()) {
	q.mu.Lock()
	if jobs, running := q.pending[userID]; running {
		q.pending[userID] = append(jobs, job)
		q.mu.Unlock()
		return
	}
	q.pending[userID] = nil
	q.mu.Unlock()

	q.wg.Add(1)
	go q.drain(userID, job)
}

func (q *UserQueue) drain(userID int64, job func()) {
	defer q.wg.Done()
	for {
		job()

		q.mu.Lock()
		jobs := q.pending[userID]
		if len(jobs) == 0 {
			delete(q.pending, userID)
			q.mu.Unlock()
			return
		}
		job = jobs[0]
		jobs[0] = nil
		q.pending[userID] = jobs[1:]
		q.mu.Unlock()
	}
}

func updateUserID(update *models.Update) (int64, bool) {
	switch {
	case update == nil:
		return 0, false
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	case update.EditedMessage != nil && update.EditedMessage.From != nil:
		return update.EditedMessage.From.ID, true
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, true
	}
	return 0, false
}
