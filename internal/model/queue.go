package model

import "time"

// QueueState is the lifecycle state of a queued notification.
type QueueState string

const (
	QueueScheduled  QueueState = "scheduled"
	QueuePending    QueueState = "pending"
	QueueProcessing QueueState = "processing"
	QueueSent       QueueState = "sent"
	QueueError      QueueState = "error"
	QueueCancelled  QueueState = "cancelled"
)

// DefaultMaxRetries is the retry budget for a queued notification.
const DefaultMaxRetries = 3

// SendLogEntry records one delivery attempt outcome per recipient.
type SendLogEntry struct {
	Email     string    `json:"email"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// QueuedNotification is a durable, retryable unit of outbound message
// work. Created by rule evaluation; consumed and mutated only by the
// delivery queue.
type QueuedNotification struct {
	// ID is the unique identifier for this queue row.
	ID string `json:"id"`

	// TaskID links the notification to the originating task, if any.
	TaskID *string `json:"task_id,omitempty"`

	// To and Cc are the resolved recipient addresses. They are always
	// disjoint: an address in To never repeats in Cc.
	To []string `json:"to"`
	Cc []string `json:"cc,omitempty"`

	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`

	// State follows pending -> processing -> sent | error, with retry
	// reverting processing -> pending and cancel only from pending.
	State QueueState `json:"state"`

	// RetryCount is the number of failed delivery attempts so far.
	RetryCount int `json:"retry_count"`

	// MaxRetries caps delivery attempts before terminal error.
	MaxRetries int `json:"max_retries"`

	// NextRetryAt delays the next pickup after a failure. Nil means
	// eligible immediately.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	// SendAt holds the configured send time for scheduled rows.
	SendAt *time.Time `json:"send_at,omitempty"`

	// Priority orders drain pickup; lower values send first.
	Priority int `json:"priority"`

	// LastError is the most recent delivery failure message.
	LastError string `json:"last_error,omitempty"`

	// SendLog accumulates per-recipient attempt outcomes.
	SendLog []SendLogEntry `json:"send_log,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}
