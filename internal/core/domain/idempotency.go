package domain

import "time"

// HandlerStatus is the execution state of a processed-event record.
type HandlerStatus string

const (
	HandlerPending HandlerStatus = "PENDING"
	HandlerSuccess HandlerStatus = "SUCCESS"
	HandlerError   HandlerStatus = "ERROR"
)

// ProcessedEvent is the durable idempotency record keyed by
// (EventID, HandlerName). Its uniqueness constraint is what guarantees
// at-most-once handling; handlers carry no dedup logic of their own.
type ProcessedEvent struct {
	EventID     string        `json:"eventID"`
	HandlerName string        `json:"handlerName"`
	Status      HandlerStatus `json:"status"`
	RetryCount  int           `json:"retryCount"`
	LastError   string        `json:"lastError,omitempty"`
	ProcessedAt time.Time     `json:"processedAt"`
}
