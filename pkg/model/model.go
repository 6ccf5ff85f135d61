package model

import "time"

// Contact is the JSON representation of a professional contact in the REST API. All fields with
// the exception of the ID field are optional. In update requests, only the fields that are present
// are changed.
type Contact struct {
	ID                string      `json:"id"`
	Name              *string     `json:"name,omitempty"`
	Affiliation       *string     `json:"affiliation,omitempty"`
	Phone             *string     `json:"phone,omitempty"`
	AreaCode          *string     `json:"areaCode,omitempty"`
	Email             *string     `json:"email,omitempty"`
	Location          *string     `json:"location,omitempty"`
	Coordinates       *Coordinate `json:"coordinates,omitempty"`
	Notes             *string     `json:"notes,omitempty"`
	LastContacted     *string     `json:"lastContacted,omitempty"`
	IsFavorite        *bool       `json:"isFavorite,omitempty"`
	Birthday          *string     `json:"birthday,omitempty"`
	BirthdayVerified  *bool       `json:"birthdayVerified,omitempty"`
	DaysUntilReminder *int        `json:"daysUntilReminder,omitempty"`
	PinnedContact     *bool       `json:"pinnedContact,omitempty"`
	PictureName       *string     `json:"pictureName,omitempty"`
	HasPicture        *bool       `json:"hasPicture,omitempty"`
	ImageData         *string     `json:"imageData,omitempty"`

	// Read-only fields, filled in responses and ignored in requests.
	FormattedPhone string         `json:"formattedPhone,omitempty"`
	OverdueDays    *int           `json:"overdueDays,omitempty"`
	Notifications  []Notification `json:"notifications,omitempty"`
}

// Coordinate is a position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Notification is a reminder attached to a contact.
type Notification struct {
	ID         string    `json:"id,omitempty"`
	Date       time.Time `json:"date"`
	Reason     string    `json:"reason"`
	RepeatTime string    `json:"repeatTime,omitempty"`
}

// Location is the body of a request that sets the free text location of a contact.
type Location struct {
	Label string `json:"label"`
}

// LogEntry is the body of a request that records an outreach to a contact. CurrentDate uses the
// layout "01/02/06, 03:04:05 PM MST" and defaults to the time of the request.
type LogEntry struct {
	ContactID   string  `json:"contactId"`
	CurrentDate *string `json:"currentDate,omitempty"`
	Birthday    *string `json:"birthday,omitempty"`
}

// LogResult is the response to a LogEntry.
type LogResult struct {
	Message       string `json:"message"`
	LastContact   string `json:"lastContact"`
	AlreadyLogged bool   `json:"alreadyLogged"`
}
