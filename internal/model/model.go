package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/keepintouch/internal/notification"
)

const (
	// DefaultDaysToReminder is the reminder interval of a contact that never had one set.
	DefaultDaysToReminder = 30

	// DefaultAreaCode is prefixed to formatted phone numbers when a contact has no area code.
	DefaultAreaCode = "+1"

	// phoneNone is the sentinel the legacy importer stored for contacts without a phone number.
	phoneNone = "None"
)

// Coordinate is a position on the earth in decimal degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Contact is the data structure for a professional contact that we want to keep in touch with.
// Two contacts are the same contact if and only if their ids are equal.
type Contact struct {
	ID          string
	Name        string
	Affiliation string
	Phone       string // 10 digit US number
	AreaCode    string
	Email       string
	Location    string
	Coordinates *Coordinate
	Notes       string

	LastContacted     string
	IsFavorite        bool
	Birthday          string
	BirthdayVerified  bool
	DaysUntilReminder int
	PinnedContact     bool

	PictureName string
	HasPicture  bool
	ImageData   string

	Notifications []notification.Event
}

// New returns a contact with a generated id, the default area code and the default reminder
// interval.
func New(name string) Contact {
	return Contact{
		ID:                uuid.NewString(),
		Name:              name,
		AreaCode:          DefaultAreaCode,
		DaysUntilReminder: DefaultDaysToReminder,
		Notifications:     []notification.Event{},
	}
}

// SameAs reports whether both records describe the same contact.
func (c Contact) SameAs(other Contact) bool {
	return c.ID == other.ID
}

// Clone returns a deep copy that shares no memory with c.
func (c Contact) Clone() Contact {
	clone := c
	if c.Coordinates != nil {
		coords := *c.Coordinates
		clone.Coordinates = &coords
	}
	clone.Notifications = slices.Clone(c.Notifications)
	if clone.Notifications == nil {
		clone.Notifications = []notification.Event{}
	}
	return clone
}

// FormattedPhone returns the phone number as "(XXX) XXX-XXXX", optionally prefixed with the area
// code. It returns false if the contact has no phone number.
//
// The number is sliced by position only. Numbers that are not exactly 10 digits long produce
// malformed output instead of an error, which is what stored legacy data has always shown.
func (c Contact) FormattedPhone(includeAreaCode bool) (string, bool) {
	if c.Phone == "" || c.Phone == phoneNone {
		return "", false
	}
	digits := []rune(c.Phone)
	n := len(digits)
	exchange := string(digits[:min(3, n)])
	prefix := string(digits[min(3, n):min(6, n)])
	suffix := string(digits[max(0, n-4):])

	formatted := "(" + exchange + ") " + prefix + "-" + suffix
	if includeAreaCode {
		areaCode := c.AreaCode
		if areaCode == "" {
			areaCode = DefaultAreaCode
		}
		formatted = areaCode + " " + formatted
	}
	return formatted, true
}

// NotificationSummary returns the reminders in their persisted text form.
func (c Contact) NotificationSummary() string {
	return notification.Encode(c.Notifications)
}

// AddNotification appends a new reminder and returns it.
func (c *Contact) AddNotification(date time.Time, reason string, repeatTime string) notification.Event {
	event := notification.NewEvent(date, reason, repeatTime)
	c.Notifications = append(c.Notifications, event)
	return event
}

// ClearNotification removes every reminder with the given id. It returns false if there was none.
func (c *Contact) ClearNotification(id uuid.UUID) bool {
	before := len(c.Notifications)
	c.Notifications = slices.DeleteFunc(c.Notifications, func(e notification.Event) bool {
		return e.ID == id
	})
	return len(c.Notifications) != before
}
