package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"gitlab.com/dirk.krummacker/keepintouch/internal/notification"
)

// Keys of the persisted field dictionary. The spelling of "affiliaton" and the
// "monthsUntilReminder" key (which holds days) are kept for compatibility with stored data.
const (
	KeyID                     = "id"
	KeyName                   = "name"
	KeyAffiliation            = "affiliaton"
	KeyPhone                  = "phone"
	KeyAreaCode               = "areaCode"
	KeyEmail                  = "email"
	KeyLocation               = "location"
	KeyLocationCoords         = "locationCoords"
	KeyLastContacted          = "lastContacted"
	KeyNotes                  = "notes"
	KeyPictureName            = "picture_name"
	KeyHasPicture             = "hasPicture"
	KeyImageData              = "imageData"
	KeyIsFavorite             = "isFavorite"
	KeyBirthday               = "birthday"
	KeyBirthdayVerified       = "birthdayVerified"
	KeyDaysUntilReminder      = "monthsUntilReminder"
	KeyPinnedContact          = "pinnedContact"
	KeyNotificationListString = "notificationListString"
)

// Records converts contacts to and from the stored dictionaries. Reminder dates are written and
// read with Reminders; the zero value uses the local time zone.
type Records struct {
	Reminders notification.Codec
}

// ToRecord flattens a contact with the local time zone.
func ToRecord(c Contact) map[string]string {
	return Records{}.ToRecord(c)
}

// FromRecord rebuilds a contact with the local time zone.
func FromRecord(id string, record map[string]string) Contact {
	return Records{}.FromRecord(id, record)
}

// ToRecord flattens a contact into the string dictionary stored by the persistence backend.
// Booleans and integers are string encoded.
func (r Records) ToRecord(c Contact) map[string]string {
	record := map[string]string{
		KeyID:                     c.ID,
		KeyName:                   c.Name,
		KeyAffiliation:            c.Affiliation,
		KeyPhone:                  c.Phone,
		KeyAreaCode:               c.AreaCode,
		KeyEmail:                  c.Email,
		KeyLocation:               c.Location,
		KeyLastContacted:          c.LastContacted,
		KeyNotes:                  c.Notes,
		KeyPictureName:            c.PictureName,
		KeyHasPicture:             strconv.FormatBool(c.HasPicture),
		KeyImageData:              c.ImageData,
		KeyIsFavorite:             strconv.FormatBool(c.IsFavorite),
		KeyBirthday:               c.Birthday,
		KeyBirthdayVerified:       strconv.FormatBool(c.BirthdayVerified),
		KeyDaysUntilReminder:      strconv.Itoa(c.DaysUntilReminder),
		KeyPinnedContact:          strconv.FormatBool(c.PinnedContact),
		KeyNotificationListString: r.Reminders.Encode(c.Notifications),
	}
	if c.Coordinates != nil {
		record[KeyLocationCoords] = FormatCoordinate(*c.Coordinates)
	}
	return record
}

// FromRecord rebuilds a contact from its stored dictionary. Missing or malformed values fall back
// to their defaults; decoding never fails. The id is taken from the key the record was stored
// under, not from the dictionary.
func (r Records) FromRecord(id string, record map[string]string) Contact {
	c := Contact{
		ID:                id,
		Name:              record[KeyName],
		Affiliation:       record[KeyAffiliation],
		Phone:             record[KeyPhone],
		AreaCode:          stringOr(record, KeyAreaCode, DefaultAreaCode),
		Email:             record[KeyEmail],
		Location:          record[KeyLocation],
		LastContacted:     record[KeyLastContacted],
		Notes:             record[KeyNotes],
		PictureName:       record[KeyPictureName],
		HasPicture:        boolOr(record, KeyHasPicture, false),
		ImageData:         record[KeyImageData],
		IsFavorite:        boolOr(record, KeyIsFavorite, false),
		Birthday:          record[KeyBirthday],
		BirthdayVerified:  boolOr(record, KeyBirthdayVerified, false),
		DaysUntilReminder: intOr(record, KeyDaysUntilReminder, DefaultDaysToReminder),
		PinnedContact:     boolOr(record, KeyPinnedContact, false),
		Notifications:     r.Reminders.Decode(record[KeyNotificationListString]),
	}
	if coords, err := ParseCoordinate(record[KeyLocationCoords]); err == nil {
		c.Coordinates = &coords
	}
	return c
}

// FormatCoordinate renders a coordinate as "latitude,longitude".
func FormatCoordinate(c Coordinate) string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// ParseCoordinate reads a "latitude,longitude" pair. Whitespace around either number is ignored.
func ParseCoordinate(s string) (Coordinate, error) {
	lat, lon, found := strings.Cut(s, ",")
	if !found {
		return Coordinate{}, fmt.Errorf("invalid coordinate %q", s)
	}
	latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	longitude, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	c := Coordinate{Latitude: latitude, Longitude: longitude}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks that the coordinate lies within the valid latitude and longitude ranges.
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("coordinate %s out of range", FormatCoordinate(c))
	}
	return nil
}

func stringOr(record map[string]string, key string, fallback string) string {
	if v, ok := record[key]; ok && v != "" {
		return v
	}
	return fallback
}

func boolOr(record map[string]string, key string, fallback bool) bool {
	v := strings.TrimSpace(record[key])
	if v == "" {
		return fallback
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return fallback
	}
	return b
}

func intOr(record map[string]string, key string, fallback int) int {
	v := strings.TrimSpace(record[key])
	if v == "" {
		return fallback
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return fallback
	}
	return i
}
