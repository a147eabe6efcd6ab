package amqp

import (
	"encoding/json"
	"time"
)

const (
	EventCreated = "transaction.created"
	EventUpdated = "transaction.updated"
	EventDeleted = "transaction.deleted"
)

// TransactionEvent announces a committed change to one transaction.
// Consumers fetch the record itself if they need more than the id.
type TransactionEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTransactionEvent(eventType, id, userID string) *TransactionEvent {
	return &TransactionEvent{
		Type:      eventType,
		ID:        id,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
