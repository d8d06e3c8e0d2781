package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a journaled request does not exist.
var ErrNotFound = errors.New("request not found")

// Store defines the journal operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveRequest inserts a new request in pending state.
	SaveRequest(ctx context.Context, req *Request) error

	// MarkDelivered records a successful delivery attempt.
	MarkDelivered(ctx context.Context, id string, at time.Time) error

	// MarkFailed records a failed delivery attempt and its error.
	MarkFailed(ctx context.Context, id string, cause string, at time.Time) error

	// GetRequest retrieves a request by id. Returns ErrNotFound if it does not exist.
	GetRequest(ctx context.Context, id string) (*Request, error)

	// GetUndeliveredRequests returns up to limit pending or failed requests last
	// touched at or before olderThan with fewer than maxAttempts attempts, oldest first.
	GetUndeliveredRequests(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*Request, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRequest inserts a new request record.
func (s *sqlxStore) SaveRequest(ctx context.Context, req *Request) error {
	if req == nil {
		return fmt.Errorf("cannot save nil request")
	}
	if req.ID == "" {
		return fmt.Errorf("request must have an id")
	}
	if req.Destination == "" {
		return fmt.Errorf("request %s must have a destination", req.ID)
	}
	if req.Body == "" {
		return fmt.Errorf("request %s must have a body", req.ID)
	}

	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.CreatedAt
	req.Status = StatusPending
	req.Attempts = 0

	query := `
        INSERT INTO requests (id, flow, destination, requester_id, body, status, attempts, last_error, created_at, updated_at, delivered_at)
        VALUES (:id, :flow, :destination, :requester_id, :body, :status, :attempts, :last_error, :created_at, :updated_at, :delivered_at);
    `

	if _, err := s.db.NamedExecContext(ctx, query, req); err != nil {
		s.logger.ErrorContext(ctx, "Error saving request", "request_id", req.ID, "flow", req.Flow, "error", err)
		return fmt.Errorf("failed to save request %s: %w", req.ID, err)
	}

	s.logger.DebugContext(ctx, "Request journaled", "request_id", req.ID, "flow", req.Flow)
	return nil
}

// MarkDelivered sets the request delivered and counts the attempt.
func (s *sqlxStore) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	query := s.db.Rebind(`
        UPDATE requests
        SET status = ?, attempts = attempts + 1, last_error = NULL, updated_at = ?, delivered_at = ?
        WHERE id = ?;
    `)
	return s.updateOne(ctx, id, "delivered", query, StatusDelivered, at, at, id)
}

// MarkFailed sets the request failed, counts the attempt and keeps the last error.
func (s *sqlxStore) MarkFailed(ctx context.Context, id string, cause string, at time.Time) error {
	query := s.db.Rebind(`
        UPDATE requests
        SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ?
        WHERE id = ?;
    `)
	return s.updateOne(ctx, id, "failed", query, StatusFailed, cause, at.UTC(), id)
}

// updateOne runs an UPDATE in a transaction and requires exactly one affected row.
func (s *sqlxStore) updateOne(ctx context.Context, id, op, query string, args ...any) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "request_id", id, "op", op, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating request", "request_id", id, "op", op, "error", err)
		return fmt.Errorf("failed to mark request %s %s: %w", id, op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for request %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to mark request %s %s: %w", id, op, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "request_id", id, "op", op, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Request updated", "request_id", id, "op", op)
	return nil
}

// GetRequest retrieves a request by id.
func (s *sqlxStore) GetRequest(ctx context.Context, id string) (*Request, error) {
	var req Request
	query := s.db.Rebind(`
        SELECT id, flow, destination, requester_id, body, status, attempts, last_error, created_at, updated_at, delivered_at
        FROM requests
        WHERE id = ?;
    `)
	if err := s.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Error fetching request", "request_id", id, "error", err)
		return nil, fmt.Errorf("failed to get request %s: %w", id, err)
	}
	return &req, nil
}

// GetUndeliveredRequests lists requests due for another delivery attempt.
func (s *sqlxStore) GetUndeliveredRequests(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*Request, error) {
	if limit <= 0 {
		limit = 20
		s.logger.DebugContext(ctx, "Invalid limit provided, using default", "default_limit", limit)
	} else if limit > 500 {
		limit = 500
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping", "capped_limit", limit)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var requests []*Request
	query := s.db.Rebind(`
        SELECT id, flow, destination, requester_id, body, status, attempts, last_error, created_at, updated_at, delivered_at
        FROM requests
        WHERE status IN (?, ?) AND attempts < ? AND updated_at <= ?
        ORDER BY created_at ASC
        LIMIT ?;
    `)
	err := s.db.SelectContext(ctx, &requests, query, StatusPending, StatusFailed, maxAttempts, olderThan.UTC(), limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching undelivered requests", "error", err)
		return nil, fmt.Errorf("failed to get undelivered requests: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched undelivered requests", "count", len(requests))
	return requests, nil
}

// RunSQLMaintenance vacuums the database. VACUUM must run outside a transaction
// on both supported drivers.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	statement := "VACUUM;"
	if s.db.DriverName() == DriverPostgres {
		statement = "VACUUM ANALYZE requests;"
	}

	s.logger.InfoContext(ctx, "Starting database maintenance", "statement", statement)
	_, err := s.db.ExecContext(ctx, statement)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error running VACUUM", "error", err)
		return fmt.Errorf("failed to run VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed")
	return nil
}
