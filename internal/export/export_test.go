package export

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"gitlab.com/dirk.krummacker/keepintouch/internal/notification"
)

func decodeCards(t *testing.T, r io.Reader) []vcard.Card {
	t.Helper()
	dec := vcard.NewDecoder(r)
	var cards []vcard.Card
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return cards
		}
		require.NoError(t, err)
		cards = append(cards, card)
	}
}

// TestVCard exports a fully populated contact and reads it back.
func TestVCard(t *testing.T) {
	c := model.Contact{
		ID:          "42",
		Name:        "Erika Mustermann",
		Affiliation: "ACME",
		Phone:       "5551234567",
		Email:       "erika@example.com",
		Notes:       "Met at the trade fair",
		Birthday:    "1980-06-15",
		Location:    "Berlin",
		Coordinates: &model.Coordinate{Latitude: 52.52, Longitude: 13.405},
	}
	var buf bytes.Buffer
	require.NoError(t, VCard(&buf, c))

	cards := decodeCards(t, &buf)
	require.Len(t, cards, 1)
	card := cards[0]
	assert.Equal(t, "4.0", card.Value(vcard.FieldVersion))
	assert.Equal(t, "Erika Mustermann", card.Value(vcard.FieldFormattedName))
	assert.Equal(t, "42", card.Value(vcard.FieldUID))
	assert.Equal(t, "ACME", card.Value(vcard.FieldOrganization))
	assert.Equal(t, "+1 (555) 123-4567", card.Value(vcard.FieldTelephone))
	assert.Equal(t, "erika@example.com", card.Value(vcard.FieldEmail))
	assert.Equal(t, "Met at the trade fair", card.Value(vcard.FieldNote))
	assert.Equal(t, "19800615", card.Value(vcard.FieldBirthday))
	assert.Equal(t, "geo:52.52,13.405", card.Value(vcard.FieldGeolocation))
	assert.Equal(t, "Berlin", card.Get(vcard.FieldAddress).Params.Get("LABEL"))
}

// TestVCardSparse exports a contact with a name only. It expects optional fields to be absent.
func TestVCardSparse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, VCard(&buf, model.Contact{ID: "1", Name: "Max", Phone: "None", Birthday: "sometime in June"},
		model.Contact{ID: "2", Name: "Erika"}))

	cards := decodeCards(t, &buf)
	require.Len(t, cards, 2)
	assert.Nil(t, cards[0].Get(vcard.FieldTelephone))
	assert.Nil(t, cards[0].Get(vcard.FieldOrganization))
	assert.Nil(t, cards[0].Get(vcard.FieldGeolocation))
	assert.Equal(t, "sometime in June", cards[0].Value(vcard.FieldBirthday))
	assert.Equal(t, "Erika", cards[1].Value(vcard.FieldFormattedName))
}

// TestCalendar exports two reminders and reads them back.
func TestCalendar(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	call := notification.Event{
		ID:         uuid.MustParse("0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11"),
		Date:       time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC),
		Reason:     "Call about the offer",
		RepeatTime: "none",
	}
	birthday := notification.Event{
		ID:         uuid.MustParse("1c6f8d2f-4b63-4e8f-8b66-1f7f6f2e3b22"),
		Date:       time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC),
		Reason:     "Birthday",
		RepeatTime: "Yearly",
	}
	c := model.Contact{ID: "42", Name: "Erika", Notifications: []notification.Event{call, birthday}}

	var buf bytes.Buffer
	require.NoError(t, Calendar(&buf, c, now))

	cal, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)
	prodID, err := cal.Props.Text(ical.PropProductID)
	require.NoError(t, err)
	assert.Equal(t, ProductID, prodID)

	events := cal.Events()
	require.Len(t, events, 2)

	uid, err := events[0].Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, call.ID.String(), uid)
	summary, err := events[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Call about the offer", summary)
	start, err := events[0].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, call.Date.Equal(start))
	assert.Nil(t, events[0].Props.Get(ical.PropRecurrenceRule))

	rrule := events[1].Props.Get(ical.PropRecurrenceRule)
	require.NotNil(t, rrule)
	assert.Equal(t, "FREQ=YEARLY", rrule.Value)
}

// TestCalendarWithoutReminders expects ErrNoEvents.
func TestCalendarWithoutReminders(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Calendar(&buf, model.Contact{ID: "1"}, time.Now()), ErrNoEvents)
	assert.Zero(t, buf.Len())
}
