package database

import (
	"database/sql"
	"time"
)

// RequestStatus is the delivery state of a journaled request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusDelivered RequestStatus = "delivered"
	StatusFailed    RequestStatus = "failed"
)

// Request is a completed service request as it was sent (or is to be sent) to
// its destination channel. Body holds the formatted record.
type Request struct {
	ID          string         `db:"id"`
	Flow        string         `db:"flow"`
	Destination string         `db:"destination"`
	RequesterID int64          `db:"requester_id"`
	Body        string         `db:"body"`
	Status      RequestStatus  `db:"status"`
	Attempts    int            `db:"attempts"`
	LastError   sql.NullString `db:"last_error"`

	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
	DeliveredAt sql.NullTime `db:"delivered_at"`
}
