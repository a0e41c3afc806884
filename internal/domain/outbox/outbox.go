package outbox

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	// StatusFailed marks messages that can never be published, e.g. an unreadable payload.
	StatusFailed     Status = "failed"
)

// ErrEmpty means no message is ready to be relayed.
var ErrEmpty = errors.New("no outbox message ready")

var ErrNotFound = errors.New("outbox message not found")

// Message is an event recorded in the same transaction as the state change
// that produced it, waiting to be handed to the broker.
type Message struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	Status    Status          `json:"status"`
	Attempts  int             `json:"attempts"`
	RunAt     time.Time       `json:"runAt"`
	LockedAt  *time.Time      `json:"lockedAt,omitempty"`
	LockedBy  *string         `json:"lockedBy,omitempty"`
	LastError *string         `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	SentAt    *time.Time      `json:"sentAt,omitempty"`
}

type CreateRequest struct {
	Topic   string
	Key     string
	Payload json.RawMessage
}

func New(req CreateRequest) Message {
	now := time.Now().UTC()

	return Message{
		ID:        uuid.NewString(),
		Topic:     req.Topic,
		Key:       req.Key,
		Payload:   req.Payload,
		Status:    StatusPending,
		RunAt:     now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
