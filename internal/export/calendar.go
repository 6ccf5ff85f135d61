package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
)

// ProductID identifies the generator in exported calendars.
const ProductID = "-//KeepInTouch//Reminders//EN"

// ErrNoEvents is returned by Calendar for a contact without reminders. An iCalendar object needs
// at least one component.
var ErrNoEvents = errors.New("contact has no reminders")

// recurrenceRules maps reminder repeat descriptors to RRULE values.
var recurrenceRules = map[string]string{
	"daily":   "FREQ=DAILY",
	"weekly":  "FREQ=WEEKLY",
	"monthly": "FREQ=MONTHLY",
	"yearly":  "FREQ=YEARLY",
}

// Calendar writes the reminders of c as an iCalendar with one event per reminder. now is used as
// the time stamp of the events.
func Calendar(w io.Writer, c model.Contact, now time.Time) error {
	if len(c.Notifications) == 0 {
		return ErrNoEvents
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	stamp := ical.NewProp(ical.PropDateTimeStamp)
	stamp.SetDateTime(now.UTC())

	for _, n := range c.Notifications {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, n.ID.String())
		event.Props.Set(stamp)

		start := ical.NewProp(ical.PropDateTimeStart)
		start.SetDateTime(n.Date.UTC())
		event.Props.Set(start)

		event.Props.SetText(ical.PropSummary, n.Reason)
		if c.Name != "" {
			event.Props.SetText(ical.PropDescription, "Keep in touch with "+c.Name)
		}
		if rule, ok := recurrenceRules[strings.ToLower(strings.TrimSpace(n.RepeatTime))]; ok {
			// Set the value directly to avoid a VALUE=TEXT parameter.
			rrule := ical.NewProp(ical.PropRecurrenceRule)
			rrule.Value = rule
			event.Props.Set(rrule)
		}
		cal.Children = append(cal.Children, event.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar of %q: %w", c.ID, err)
	}
	return nil
}
