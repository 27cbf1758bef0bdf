package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Aiden-ho/twitter-server/internal/media/domain"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
}

type VideoStatusChanged struct {
	eventID    uuid.UUID
	name       string
	from       domain.Status
	to         domain.Status
	message    string
	occurredAt time.Time
}

// NewVideoStatusChanged builds the event for a job moving from one state to
// another. from is empty when the job record was just created.
func NewVideoStatusChanged(name string, from, to domain.Status, message string, at time.Time) *VideoStatusChanged {
	return &VideoStatusChanged{
		eventID:    uuid.New(),
		name:       name,
		from:       from,
		to:         to,
		message:    message,
		occurredAt: at,
	}
}

func (e *VideoStatusChanged) EventID() uuid.UUID    { return e.eventID }
func (e *VideoStatusChanged) EventType() string     { return "VideoStatusChanged" }
func (e *VideoStatusChanged) AggregateID() string   { return e.name }
func (e *VideoStatusChanged) OccurredAt() time.Time { return e.occurredAt }

func (e *VideoStatusChanged) From() domain.Status { return e.from }
func (e *VideoStatusChanged) To() domain.Status   { return e.to }
func (e *VideoStatusChanged) Message() string     { return e.message }

func (e *VideoStatusChanged) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID     `json:"event_id"`
		Name       string        `json:"name"`
		From       domain.Status `json:"from,omitempty"`
		To         domain.Status `json:"to"`
		Message    string        `json:"message,omitempty"`
		OccurredAt time.Time     `json:"occurred_at"`
	}{
		EventID:    e.eventID,
		Name:       e.name,
		From:       e.from,
		To:         e.to,
		Message:    e.message,
		OccurredAt: e.occurredAt,
	})
}
