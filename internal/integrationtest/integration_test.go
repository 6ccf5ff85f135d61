package integrationtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/keepintouch/internal/clock"
	"gitlab.com/dirk.krummacker/keepintouch/internal/geo"
	"gitlab.com/dirk.krummacker/keepintouch/internal/kv"
	"gitlab.com/dirk.krummacker/keepintouch/internal/seed"
	"gitlab.com/dirk.krummacker/keepintouch/internal/service"
	"gitlab.com/dirk.krummacker/keepintouch/internal/store"
	api "gitlab.com/dirk.krummacker/keepintouch/pkg/model"
	"go.uber.org/zap/zaptest"
)

var now = time.Date(2024, time.November, 29, 15, 30, 0, 0, time.UTC)

// openDatabase creates a SQLite database file in a temporary directory with the kv_records table.
func openDatabase(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := kv.Open(kv.DriverSQLite, filepath.Join(t.TempDir(), "keepintouch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, kv.Migrate(context.Background(), sqlDB, kv.DriverSQLite))
	return sqlDB
}

// startService loads the store from the database and returns the router serving it. Every call
// reads the persisted state anew, like a restart of the service.
func startService(t *testing.T, sqlDB *sql.DB) *gin.Engine {
	t.Helper()
	backend, err := kv.NewSQL(sqlDB, kv.DriverSQLite)
	require.NoError(t, err)

	device := geo.NewDeviceLocation()
	st, err := store.New(backend, store.Options{
		Clock:    clock.Fixed(now),
		Location: device,
		Geocoder: geo.LiteralGeocoder{},
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.Load(context.Background()))

	gin.SetMode(gin.ReleaseMode)
	svc := service.New(st, zaptest.NewLogger(t), clock.Fixed(now),
		service.WithDeviceLocation(device), service.WithRequestLogging(false))
	return svc.SetupHttpRouter()
}

func serve(router *gin.Engine, method string, url string, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest(method, url, strings.NewReader(body))
	router.ServeHTTP(recorder, request)
	return recorder
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &v), recorder.Body.String())
	return v
}

func namesOf(contacts []api.Contact) []string {
	names := make([]string, 0, len(contacts))
	for _, c := range contacts {
		names = append(names, *c.Name)
	}
	return names
}

// TestContactHappyPath tests a POST, GET, PUT, and DELETE with valid data.
func TestContactHappyPath(t *testing.T) {
	router := startService(t, openDatabase(t))

	// test the endpoint for creating a contact
	postRecorder := serve(router, "POST", "/contacts", `
		{
			"name": "Erika Mustermann",
			"affiliation": "ACME",
			"phone": "5551234567",
			"birthday": "1969-03-02"
		}
	`)
	assert.Equal(t, http.StatusCreated, postRecorder.Code)
	posted := decode[api.Contact](t, postRecorder)
	assert.Equal(t, "Erika Mustermann", *posted.Name)
	assert.Equal(t, "+1 (555) 123-4567", posted.FormattedPhone)
	id := posted.ID
	require.NotEmpty(t, id)

	// test the endpoint for finding a contact
	getRecorder := serve(router, "GET", "/contacts/"+id, "")
	assert.Equal(t, http.StatusOK, getRecorder.Code)
	got := decode[api.Contact](t, getRecorder)
	assert.Equal(t, "ACME", *got.Affiliation)
	assert.Equal(t, "1969-03-02", *got.Birthday)

	// test the endpoint for updating a contact
	putRecorder := serve(router, "PUT", "/contacts/"+id, `{"name": "Rudi Völler", "isFavorite": true}`)
	assert.Equal(t, http.StatusOK, putRecorder.Code)
	put := decode[api.Contact](t, putRecorder)
	assert.Equal(t, "Rudi Völler", *put.Name)
	assert.True(t, *put.IsFavorite)
	assert.Equal(t, "5551234567", *put.Phone)

	// test if a subsequent lookup of the contact returns the updated values
	getAgain := decode[api.Contact](t, serve(router, "GET", "/contacts/"+id, ""))
	assert.Equal(t, "Rudi Völler", *getAgain.Name)

	// test the endpoint for deleting a contact
	deleteRecorder := serve(router, "DELETE", "/contacts/"+id, "")
	assert.Equal(t, http.StatusOK, deleteRecorder.Code)

	// test if a final lookup of the contact will correctly not find it
	assert.Equal(t, http.StatusNotFound, serve(router, "GET", "/contacts/"+id, "").Code)
}

// TestCreateContactInvalidBody tests a POST with different forms of invalid request body data.
func TestCreateContactInvalidBody(t *testing.T) {
	invalidRequestBodies := []string{
		"",
		"not JSON",
		`{
			"name": "Erika"
			"phone": "5551234567"
		}`, // commas missing
	}

	router := startService(t, openDatabase(t))
	for _, body := range invalidRequestBodies {
		recorder := serve(router, "POST", "/contacts", body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "request body: "+body)
	}
}

// TestStateSurvivesRestart changes contacts and lists, then starts a second service on the same
// database. It expects the second service to show the same state.
func TestStateSurvivesRestart(t *testing.T) {
	sqlDB := openDatabase(t)
	router := startService(t, sqlDB)

	var ids []string
	for _, body := range []string{
		`{"name": "Ada", "lastContacted": "2024-01-01"}`,
		`{"name": "Bert", "pinnedContact": true, "lastContacted": "2024-11-20"}`,
		`{"name": "Cleo", "coordinates": {"latitude": 40.7306, "longitude": -73.9866}}`,
	} {
		recorder := serve(router, "POST", "/contacts", body)
		require.Equal(t, http.StatusCreated, recorder.Code)
		ids = append(ids, decode[api.Contact](t, recorder).ID)
	}
	require.Equal(t, http.StatusOK, serve(router, "POST", "/recents/"+ids[0], "").Code)
	require.Equal(t, http.StatusOK, serve(router, "POST", "/contactsoons/rank", "").Code)
	require.Equal(t, http.StatusCreated, serve(router, "POST", "/contacts/"+ids[1]+"/notifications",
		`{"date": "2024-12-24T18:00:00Z", "reason": "Call", "repeatTime": "yearly"}`).Code)

	restarted := startService(t, sqlDB)

	assert.Equal(t, []string{"Ada", "Bert", "Cleo"},
		namesOf(decode[[]api.Contact](t, serve(restarted, "GET", "/contacts", ""))))
	assert.Equal(t, []string{"Ada", "Cleo", "Bert"},
		namesOf(decode[[]api.Contact](t, serve(restarted, "GET", "/recents", ""))))
	assert.Equal(t, []string{"Cleo", "Ada", "Bert"},
		namesOf(decode[[]api.Contact](t, serve(restarted, "GET", "/contactsoons", ""))))
	assert.Equal(t, []string{"Bert"},
		namesOf(decode[[]api.Contact](t, serve(restarted, "GET", "/pinned", ""))))

	bert := decode[api.Contact](t, serve(restarted, "GET", "/contacts/"+ids[1], ""))
	require.Len(t, bert.Notifications, 1)
	assert.Equal(t, "yearly", bert.Notifications[0].RepeatTime)
	cleo := decode[api.Contact](t, serve(restarted, "GET", "/contacts/"+ids[2], ""))
	assert.Equal(t, &api.Coordinate{Latitude: 40.7306, Longitude: -73.9866}, cleo.Coordinates)

	// the device location is not persisted, but nearby works once it is set again
	require.Equal(t, http.StatusOK, serve(restarted, "PUT", "/device/location",
		`{"latitude": 40.7128, "longitude": -74.0060}`).Code)
	nearby := serve(restarted, "POST", "/nearby/refresh", "")
	assert.Equal(t, http.StatusOK, nearby.Code)
	assert.Equal(t, []string{"Cleo"}, namesOf(decode[[]api.Contact](t, nearby)))
}

// TestDeleteSurvivesRestart expects that a deleted contact is gone from all lists after a restart.
func TestDeleteSurvivesRestart(t *testing.T) {
	sqlDB := openDatabase(t)
	router := startService(t, sqlDB)

	recorder := serve(router, "POST", "/contacts", `{"name": "Ada", "pinnedContact": true}`)
	require.Equal(t, http.StatusCreated, recorder.Code)
	id := decode[api.Contact](t, recorder).ID
	require.Equal(t, http.StatusOK, serve(router, "POST", "/contactsoons/rank", "").Code)
	require.Equal(t, http.StatusOK, serve(router, "DELETE", "/contacts/"+id, "").Code)

	restarted := startService(t, sqlDB)
	assert.Equal(t, http.StatusNotFound, serve(restarted, "GET", "/contacts", "").Code)
	assert.Empty(t, decode[[]api.Contact](t, serve(restarted, "GET", "/recents", "")))
	assert.Empty(t, decode[[]api.Contact](t, serve(restarted, "GET", "/contactsoons", "")))
	assert.Empty(t, decode[[]api.Contact](t, serve(restarted, "GET", "/pinned", "")))
}

// TestLogContactOncePerDay logs the same contact twice on one day.
func TestLogContactOncePerDay(t *testing.T) {
	sqlDB := openDatabase(t)
	router := startService(t, sqlDB)

	recorder := serve(router, "POST", "/contacts", `{"name": "Ada"}`)
	require.Equal(t, http.StatusCreated, recorder.Code)
	id := decode[api.Contact](t, recorder).ID

	first := decode[api.LogResult](t, serve(router, "POST", "/log", `{"contactId": "`+id+`"}`))
	assert.False(t, first.AlreadyLogged)
	assert.Equal(t, "11/29/24, 03:30:00 PM UTC", first.LastContact)

	// the dedup survives a restart because it is based on the stored date
	restarted := startService(t, sqlDB)
	second := decode[api.LogResult](t, serve(restarted, "POST", "/log",
		`{"contactId": "`+id+`", "currentDate": "11/29/24, 11:00:00 PM UTC"}`))
	assert.True(t, second.AlreadyLogged)
	assert.Equal(t, first.LastContact, second.LastContact)
}

// TestSeedFile populates the database from a YAML seed file and runs the seeding a second time.
func TestSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: ada
  name: Ada Lovelace
  affiliation: Analytical Engines
  phone: "5551234567"
  pinned: true
- id: bert
  name: Bert
  location: "40.7306,-73.9866"
`), 0o600))
	contacts, err := seed.Load(path)
	require.NoError(t, err)

	sqlDB := openDatabase(t)
	for range 2 {
		backend, err := kv.NewSQL(sqlDB, kv.DriverSQLite)
		require.NoError(t, err)
		st, err := store.New(backend, store.Options{Logger: zaptest.NewLogger(t)})
		require.NoError(t, err)
		require.NoError(t, st.Load(context.Background()))
		_, err = seed.Populate(context.Background(), st, contacts, zaptest.NewLogger(t))
		require.NoError(t, err)
		st.Close()
	}

	router := startService(t, sqlDB)
	all := decode[[]api.Contact](t, serve(router, "GET", "/contacts", ""))
	assert.Equal(t, []string{"Ada Lovelace", "Bert"}, namesOf(all))
	assert.Equal(t, []string{"Ada Lovelace"},
		namesOf(decode[[]api.Contact](t, serve(router, "GET", "/pinned", ""))))
}
