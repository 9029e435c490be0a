package model

import (
	"encoding/json"
	"time"
)

// Event is a persisted event record, mirroring what is published to NATS.
// Ref is the address of the record the event is about.
type Event struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	Ref       string          `json:"ref"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
