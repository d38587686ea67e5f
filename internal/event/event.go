package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserCreated  Type = "user.created"
	TypeUserUpdated  Type = "user.updated"
	TypeUserDeleted  Type = "user.deleted"
	TypeLoginSuccess Type = "auth.login_succeeded"
	TypeLoginFailure Type = "auth.login_failed"
)

// Event describes something that happened to a user record. Payloads never
// carry password material.
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Subject   string            `json:"subject,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func New(typ Type, subject string, payload map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Subject:   subject,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(e Event)
}

type Bus interface {
	Publisher
	Subscribe() (<-chan Event, func())
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
