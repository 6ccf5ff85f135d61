package ranking

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"gitlab.com/dirk.krummacker/keepintouch/internal/clock"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
)

// DefaultLimit is the number of contacts in the "contact soon" list.
const DefaultLimit = 10

// LastContactedLayout is the layout written when a contact is logged as contacted.
const LastContactedLayout = "01/02/06, 03:04:05 PM MST"

// lastContactedLayouts are tried in order when reading a stored last-contacted value.
var lastContactedLayouts = []string{
	LastContactedLayout,
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"Jan 2, 2006",
}

// Ranker orders contacts by how overdue they are for outreach.
type Ranker struct {
	Clock clock.Clock
	Limit int
}

// New returns a ranker producing DefaultLimit entries.
func New(c clock.Clock) Ranker {
	return Ranker{Clock: c, Limit: DefaultLimit}
}

// Overdue returns the number of days the contact is past its reminder interval. Negative values
// mean the contact is not due yet. The second result is true if the contact has no usable
// last-contacted date, in which case the contact counts as maximally overdue.
func (r Ranker) Overdue(c model.Contact) (int, bool) {
	last, ok := ParseDate(c.LastContacted)
	if !ok {
		return 0, true
	}
	return ElapsedDays(last, r.now()) - c.DaysUntilReminder, false
}

// Rank returns at most Limit contacts, most overdue first. Contacts with equal scores keep their
// order from the input, so repeated calls on the same input give the same result.
func (r Ranker) Rank(contacts []model.Contact) []model.Contact {
	type scored struct {
		contact model.Contact
		score   int
	}
	list := make([]scored, 0, len(contacts))
	for _, c := range contacts {
		days, never := r.Overdue(c)
		if never {
			days = math.MaxInt
		}
		list = append(list, scored{contact: c, score: days})
	}
	slices.SortStableFunc(list, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	limit := r.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	ranked := make([]model.Contact, 0, min(limit, len(list)))
	for _, s := range list[:min(limit, len(list))] {
		ranked = append(ranked, s.contact)
	}
	return ranked
}

func (r Ranker) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

// ParseDate reads a last-contacted value in any of the accepted layouts. It returns false for
// empty or unreadable values.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range lastContactedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ElapsedDays counts the calendar days from the date of from to the date of to. Each date is
// taken in its own location, so the result does not depend on the time of day.
func ElapsedDays(from time.Time, to time.Time) int {
	fromDate := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toDate := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDate.Sub(fromDate).Hours() / 24)
}
