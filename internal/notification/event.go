package notification

import (
	"time"

	"github.com/google/uuid"
)

// Event is a reminder attached to a contact. Events are owned by exactly one contact and are
// displayed in insertion order.
type Event struct {
	ID         uuid.UUID
	Date       time.Time
	Reason     string
	RepeatTime string
}

// RepeatNone is the recurrence descriptor of a one-off reminder.
const RepeatNone = "none"

// NewEvent creates an event with a freshly generated id. An empty repeat descriptor is stored as
// RepeatNone.
func NewEvent(date time.Time, reason string, repeatTime string) Event {
	if repeatTime == "" {
		repeatTime = RepeatNone
	}
	return Event{
		ID:         uuid.New(),
		Date:       date,
		Reason:     reason,
		RepeatTime: repeatTime,
	}
}
