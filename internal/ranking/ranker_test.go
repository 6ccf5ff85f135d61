package ranking

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gitlab.com/dirk.krummacker/keepintouch/internal/clock"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
)

// today is the fixed "now" of all ranking tests.
var today = time.Date(2024, time.November, 29, 14, 0, 0, 0, time.UTC)

// contact builds a contact with the given id, last-contacted value and reminder interval.
func contact(id string, lastContacted string, days int) model.Contact {
	return model.Contact{ID: id, LastContacted: lastContacted, DaysUntilReminder: days}
}

// ids extracts the ids of the ranked contacts.
func ids(contacts []model.Contact) []string {
	result := make([]string, 0, len(contacts))
	for _, c := range contacts {
		result = append(result, c.ID)
	}
	return result
}

// TestNeverContactedFirst ranks a never contacted contact and one contacted today. It expects
// the never contacted one first.
func TestNeverContactedFirst(t *testing.T) {
	r := New(clock.Fixed(today))
	ranked := r.Rank([]model.Contact{
		contact("2", today.Format("2006-01-02"), 30),
		contact("1", "", 30),
	})
	assert.Equal(t, []string{"1", "2"}, ids(ranked))
}

// TestScenarioFromAddOrder adds A (never contacted) before B (contacted today). It expects A
// before B.
func TestScenarioFromAddOrder(t *testing.T) {
	r := New(clock.Fixed(today))
	ranked := r.Rank([]model.Contact{
		contact("1", "", 30),
		contact("2", today.Format(LastContactedLayout), 30),
	})
	assert.Equal(t, []string{"1", "2"}, ids(ranked))
}

// TestOrderByOverdueMagnitude mixes overdue and not yet due contacts.
func TestOrderByOverdueMagnitude(t *testing.T) {
	r := New(clock.Fixed(today))
	ranked := r.Rank([]model.Contact{
		contact("due-in-20", "2024-11-19", 30),   // -20
		contact("overdue-10", "2024-10-20", 30),  // 10
		contact("overdue-100", "2024-08-21", 0),  // 100
		contact("due-today", "2024-11-22", 7),    // 0
		contact("unparseable", "sometime", 1000), // never
	})
	assert.Equal(t, []string{"unparseable", "overdue-100", "overdue-10", "due-today", "due-in-20"}, ids(ranked))
}

// TestStableTies expects that equal scores keep the input order, on repeated calls too.
func TestStableTies(t *testing.T) {
	r := New(clock.Fixed(today))
	input := []model.Contact{
		contact("a", "", 30),
		contact("b", "2024-11-01", 10),
		contact("c", "", 5),
		contact("d", "2024-10-22", 20),
	}
	first := ids(r.Rank(input))
	assert.Equal(t, []string{"a", "c", "b", "d"}, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ids(r.Rank(input)))
	}
}

// TestLimit ranks more contacts than fit. It expects exactly ten entries.
func TestLimit(t *testing.T) {
	r := New(clock.Fixed(today))
	var input []model.Contact
	for i := 0; i < 25; i++ {
		input = append(input, contact(strconv.Itoa(i), today.AddDate(0, 0, -i).Format("2006-01-02"), 0))
	}
	ranked := r.Rank(input)
	assert.Len(t, ranked, DefaultLimit)
	assert.Equal(t, "24", ranked[0].ID)

	assert.Empty(t, r.Rank(nil))
	assert.Len(t, r.Rank(input[:3]), 3)
}

// TestOverdue checks the measure for a single contact.
func TestOverdue(t *testing.T) {
	r := New(clock.Fixed(today))
	days, never := r.Overdue(contact("x", "11/01/24, 09:15:00 AM UTC", 7))
	assert.False(t, never)
	assert.Equal(t, 21, days)

	_, never = r.Overdue(contact("y", "", 7))
	assert.True(t, never)
}

// TestElapsedDaysIgnoresTimeOfDay expects calendar day differences.
func TestElapsedDaysIgnoresTimeOfDay(t *testing.T) {
	from := time.Date(2024, time.February, 28, 23, 59, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 1, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 2, ElapsedDays(from, to))
	assert.Equal(t, 0, ElapsedDays(to, to))
}
