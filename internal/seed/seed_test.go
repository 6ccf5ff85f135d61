package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/keepintouch/internal/kv"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"gitlab.com/dirk.krummacker/keepintouch/internal/store"
	"go.uber.org/zap/zaptest"
)

const sample = `
- id: "1"
  name: Erika Mustermann
  affiliation: ACME
  phone: "5551234567"
  latitude: 52.52
  longitude: 13.405
  daysUntilReminder: 14
  pinned: true
  reminders:
    - date: 2024-06-15T09:00:00Z
      reason: Birthday
      repeat: yearly
- id: "2"
  name: Max Mustermann
`

// TestParse reads the sample file. It expects all fields and defaults to be set.
func TestParse(t *testing.T) {
	contacts, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	erika := contacts[0]
	assert.Equal(t, "1", erika.ID)
	assert.Equal(t, "ACME", erika.Affiliation)
	assert.Equal(t, 14, erika.DaysUntilReminder)
	assert.True(t, erika.PinnedContact)
	assert.Equal(t, &model.Coordinate{Latitude: 52.52, Longitude: 13.405}, erika.Coordinates)
	require.Len(t, erika.Notifications, 1)
	assert.Equal(t, "Birthday", erika.Notifications[0].Reason)
	assert.Equal(t, "yearly", erika.Notifications[0].RepeatTime)
	assert.True(t, time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC).Equal(erika.Notifications[0].Date))

	assert.Equal(t, model.DefaultDaysToReminder, contacts[1].DaysUntilReminder)
	assert.Nil(t, contacts[1].Coordinates)
}

// TestParseRejectsNamelessEntry expects an error naming the entry.
func TestParseRejectsNamelessEntry(t *testing.T) {
	_, err := Parse([]byte("- id: \"1\"\n"))
	assert.ErrorContains(t, err, "seed entry 1")
}

// TestParseRejectsInvalidCoordinates expects an error naming the entry.
func TestParseRejectsInvalidCoordinates(t *testing.T) {
	_, err := Parse([]byte("- name: Erika\n  latitude: 500\n  longitude: -999\n"))
	assert.ErrorContains(t, err, "seed entry 1")
	assert.ErrorContains(t, err, "out of range")
}

// TestParseInvalidYAML expects a parse error.
func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("name: [unterminated"))
	assert.Error(t, err)
}

// TestPopulateIdempotent seeds a store twice from a file.
func TestPopulateIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	s, err := store.New(kv.NewMemory(), store.Options{})
	require.NoError(t, err)
	defer s.Close()

	contacts, err := Load(path)
	require.NoError(t, err)
	added, err := Populate(ctx, s, contacts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = Populate(ctx, s, contacts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Len(t, s.Contacts(), 2)
	assert.Len(t, s.PinnedContacts(), 1)
}

// TestLoadMissingFile expects an error.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
