package notification

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the medium date plus short time style used inside an encoded line.
const DateLayout = "Jan 2, 2006, 3:04 PM"

// linePattern matches a single encoded event. The reason is matched non-greedily so that the
// trailing "(Repeats: ...)" group always binds to the end of the line.
var linePattern = regexp.MustCompile(`^(\S+): (.*?): (.*?) \(Repeats: (.*?)\)$`)

// Codec flattens a list of events into the single string field used by the persisted contact
// record, and inflates it again. Dates are written and read in Location.
type Codec struct {
	Location *time.Location
}

// defaultCodec writes dates in the local time zone of the machine.
var defaultCodec = Codec{Location: time.Local}

// Encode flattens the events with the local time zone.
func Encode(events []Event) string {
	return defaultCodec.Encode(events)
}

// Decode inflates an encoded string with the local time zone.
func Decode(s string) []Event {
	return defaultCodec.Decode(s)
}

// Encode returns one line per event, joined by newlines. An empty list encodes to "".
func (c Codec) Encode(events []Event) string {
	if len(events) == 0 {
		return ""
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("%s: %s: %s (Repeats: %s)",
			e.ID.String(), e.Date.In(c.location()).Format(DateLayout), e.Reason, e.RepeatTime))
	}
	return strings.Join(lines, "\n")
}

// Decode parses the output of Encode. Lines that do not match the line pattern, carry an id that
// is not a UUID, or carry an unparseable date are dropped without an error.
func (c Codec) Decode(s string) []Event {
	events := []Event{}
	if s == "" {
		return events
	}
	for _, line := range strings.Split(s, "\n") {
		match := linePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		id, err := uuid.Parse(match[1])
		if err != nil {
			continue
		}
		date, err := time.ParseInLocation(DateLayout, match[2], c.location())
		if err != nil {
			continue
		}
		events = append(events, Event{
			ID:         id,
			Date:       date,
			Reason:     match[3],
			RepeatTime: match[4],
		})
	}
	return events
}

func (c Codec) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}
