package domain

import "time"

// CompletedRequest is the snapshot produced when a user finishes a flow.
// It is handed to the router once and then discarded.
type CompletedRequest struct {
	ID                   string
	Flow                 FlowKind
	SubmittedAt          time.Time
	RequesterID          int64
	RequesterHandle      string
	RequesterDisplayName string
	Fields               map[Field]string
}

// Value returns the collected value for field, or "" when it was not collected.
func (r CompletedRequest) Value(field Field) string {
	return r.Fields[field]
}

// DispatchResult reports the outcome of routing a completed request to its destination.
type DispatchResult struct {
	RequestID   string
	Flow        FlowKind
	Destination string
	Delivered   bool
	Journaled   bool
	Err         error
}
