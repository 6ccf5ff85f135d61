package service

import (
	"bytes"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/keepintouch/internal/export"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"gitlab.com/dirk.krummacker/keepintouch/internal/ranking"
	api "gitlab.com/dirk.krummacker/keepintouch/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// allowedOrderby are the allowed values for the 'orderby' URL parameter.
var allowedOrderby = []string{"id", "name", "affiliation", "lastContacted"}

// allowedAscending are the allowed values for the 'ascending' URL parameter.
var allowedAscending = []string{"true", "false"}

// findContacts responds with a list of contacts as JSON.
//
// The URL parameters 'name' and 'affiliation' are interpreted as the beginning of the name or the
// affiliation of the contact. Upper and lower case are not distinguished.
//
// The URL parameter 'limit' specifies how many contacts matching the search criteria are returned.
// The URL parameter 'offset' specifies how many items from the sorted list of results are skipped
// in the beginning. Together with the 'limit' parameter, one can implement search result paging.
//
// The URL parameter 'orderby' specifies the contact property by which the results shall be sorted.
// Valid values are 'id', 'name', 'affiliation', and 'lastContacted'. If this URL parameter is not
// specified, the contacts keep the order in which they were added. Names and affiliations are
// compared the way a dictionary sorts them, not by byte value.
//
// If the URL parameter 'ascending' is set to 'false' then the sort order is reversed, starting
// with the 'highest' value. If it is set to 'true', or if this URL parameter is omitted, the
// result starts with the lowest value.
//
// REST API calls:
//
//	> curl "http://localhost:8080/contacts"
//	> curl "http://localhost:8080/contacts?name=Eri"
//	> curl "http://localhost:8080/contacts?affiliation=ACM"
//	> curl "http://localhost:8080/contacts?limit=20&offset=60"
//	> curl "http://localhost:8080/contacts?orderby=lastContacted&ascending=false"
func (s *Service) findContacts(c *gin.Context) {
	limit, offset, successLimitAndOffset := parseLimitAndOffset(c)
	if !successLimitAndOffset {
		return
	}
	orderby, ascending, successOrderbyAndAscending := parseOrderbyAndAscending(c)
	if !successOrderbyAndAscending {
		return
	}
	name := strings.ToLower(c.Query("name"))
	affiliation := strings.ToLower(c.Query("affiliation"))

	contacts := slices.DeleteFunc(s.store.Contacts(), func(contact model.Contact) bool {
		return !strings.HasPrefix(strings.ToLower(contact.Name), name) ||
			!strings.HasPrefix(strings.ToLower(contact.Affiliation), affiliation)
	})
	if orderby != "" {
		sortContacts(contacts, orderby, ascending)
	}
	if offset >= len(contacts) {
		contacts = nil
	} else {
		contacts = contacts[offset:min(len(contacts), offset+min(limit, len(contacts)))]
	}
	if len(contacts) == 0 {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	} else {
		c.IndentedJSON(http.StatusOK, s.toAPIList(contacts))
	}
}

// parseOrderbyAndAscending inspects the URL parameters and determines values for the orderby and
// ascending values of the result set.
func parseOrderbyAndAscending(c *gin.Context) (orderby string, ascending bool, success bool) {
	orderby = c.Query("orderby")
	if orderby != "" && !slices.Contains(allowedOrderby, orderby) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid orderby parameter"})
		return "", false, false
	}
	ascendingAsString := c.Query("ascending")
	if ascendingAsString == "" {
		ascendingAsString = "true"
	}
	if !slices.Contains(allowedAscending, ascendingAsString) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid ascending parameter"})
		return orderby, false, false
	}
	return orderby, ascendingAsString == "true", true
}

// sortContacts sorts contacts in place by the given property. Contacts with equal values keep
// their order.
func sortContacts(contacts []model.Contact, orderby string, ascending bool) {
	// A collator is not safe for concurrent use, so every request gets its own.
	col := collate.New(language.English, collate.IgnoreCase)
	var compare func(a, b model.Contact) int
	switch orderby {
	case "name":
		compare = func(a, b model.Contact) int { return col.CompareString(a.Name, b.Name) }
	case "affiliation":
		compare = func(a, b model.Contact) int { return col.CompareString(a.Affiliation, b.Affiliation) }
	case "lastContacted":
		compare = func(a, b model.Contact) int {
			ta, _ := ranking.ParseDate(a.LastContacted)
			tb, _ := ranking.ParseDate(b.LastContacted)
			return ta.Compare(tb)
		}
	default:
		compare = func(a, b model.Contact) int { return strings.Compare(a.ID, b.ID) }
	}
	slices.SortStableFunc(contacts, func(a, b model.Contact) int {
		if ascending {
			return compare(a, b)
		}
		return compare(b, a)
	})
}

// createContact adds the contact specified in the request's JSON to the store. It responds with
// the full contact data including the newly assigned id. The new contact becomes the most recent
// one.
//
// Limitations:
// - If the id is not specified then a new UUID is assigned.
// - If daysUntilReminder is not specified then 30 days are stored.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Content-Type: application/json" --data '{"name": "Erika Mustermann", "affiliation": "ACME", "phone": "5551234567"}'
func (s *Service) createContact(c *gin.Context) {
	var submitted api.Contact
	if err := c.BindJSON(&submitted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	if err := validateCoordinates(submitted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid coordinates"})
		return
	}
	added, err := s.store.Add(c.Request.Context(), fromAPI(submitted))
	if err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, s.toAPI(added))
}

// findContactByID locates the contact whose ID value matches the id parameter of the request URL,
// then returns that contact as a response.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11
func (s *Service) findContactByID(c *gin.Context) {
	contact, ok := s.store.Contact(c.Param("id"))
	if !ok {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, s.toAPI(contact))
}

// updateContactByID updates the contact whose ID value matches the id parameter of the request
// URL, updates the values specified in the JSON (and only those), and finally responds with the
// new version of the contact.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/contacts/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11 --request "PUT" --include --header "Content-Type: application/json" --data '{"phone": "5559876543"}'
//	> curl http://localhost:8080/contacts/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11 --request "PUT" --include --header "Content-Type: application/json" --data '{"pinnedContact": true}'
func (s *Service) updateContactByID(c *gin.Context) {
	contact, ok := s.store.Contact(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}

	var submitted api.Contact
	if errBind := c.BindJSON(&submitted); errBind != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	if err := validateCoordinates(submitted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid coordinates"})
		return
	}

	// It only makes sense to continue if we have at least one value to update.
	if applyAPI(&contact, submitted) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "no values to be updated"})
		return
	}
	if err := s.store.Update(c.Request.Context(), contact); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, s.toAPI(contact))
}

// deleteContactByID deletes the contact whose ID value matches the id parameter of the request URL
// from the store and from all lists.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11 --request "DELETE"
func (s *Service) deleteContactByID(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.store.Contact(id); !ok {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	if err := s.store.Remove(c.Request.Context(), id); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contact deleted"})
}

// setLocation stores the free text location of a contact. The coordinates are looked up in the
// background, so the response is sent before they are known.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11/location --request "PUT" --header "Content-Type: application/json" --data '{"label": "40.7306,-73.9866"}'
func (s *Service) setLocation(c *gin.Context) {
	var submitted api.Location
	if err := c.BindJSON(&submitted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	id := c.Param("id")
	if err := s.store.SetLocation(c.Request.Context(), id, strings.TrimSpace(submitted.Label)); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	contact, _ := s.store.Contact(id)
	c.IndentedJSON(http.StatusAccepted, s.toAPI(contact))
}

// addNotification attaches a reminder to a contact and responds with the reminder including its
// new id.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11/notifications --request "POST" --header "Content-Type: application/json" --data '{"date": "2024-11-29T15:30:00Z", "reason": "Call", "repeatTime": "weekly"}'
func (s *Service) addNotification(c *gin.Context) {
	var submitted api.Notification
	if err := c.BindJSON(&submitted); err != nil || submitted.Date.IsZero() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	contact, ok := s.store.Contact(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	event := contact.AddNotification(submitted.Date, submitted.Reason, submitted.RepeatTime)
	if err := s.store.Update(c.Request.Context(), contact); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, api.Notification{
		ID:         event.ID.String(),
		Date:       event.Date,
		Reason:     event.Reason,
		RepeatTime: event.RepeatTime,
	})
}

// clearNotification removes a reminder from a contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11/notifications/1c6f8d2f-4b63-4e8f-8b66-1f7f6f2e3b22 --request "DELETE"
func (s *Service) clearNotification(c *gin.Context) {
	nid, err := uuid.Parse(c.Param("nid"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid notification id parameter"})
		return
	}
	contact, ok := s.store.Contact(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	if !contact.ClearNotification(nid) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "notification not found"})
		return
	}
	if err := s.store.Update(c.Request.Context(), contact); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "notification cleared"})
}

// exportCalendar responds with the reminders of a contact as an iCalendar file.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11/notifications.ics
func (s *Service) exportCalendar(c *gin.Context) {
	contact, ok := s.store.Contact(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	var buf bytes.Buffer
	err := export.Calendar(&buf, contact, s.clock.Now())
	if errors.Is(err, export.ErrNoEvents) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "no notifications"})
		return
	}
	if err != nil {
		s.logger.Error("Calendar export failed", zap.String("id", contact.ID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "export failed"})
		return
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

// exportVCard responds with a contact as a vCard file.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11/vcard
func (s *Service) exportVCard(c *gin.Context) {
	contact, ok := s.store.Contact(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	s.writeVCards(c, contact)
}

// exportAllVCards responds with all contacts as one vCard file.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts.vcf
func (s *Service) exportAllVCards(c *gin.Context) {
	s.writeVCards(c, s.store.Contacts()...)
}

func (s *Service) writeVCards(c *gin.Context, contacts ...model.Contact) {
	var buf bytes.Buffer
	if err := export.VCard(&buf, contacts...); err != nil {
		s.logger.Error("vCard export failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "export failed"})
		return
	}
	c.Data(http.StatusOK, "text/vcard; charset=utf-8", buf.Bytes())
}
