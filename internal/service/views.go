package service

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"gitlab.com/dirk.krummacker/keepintouch/internal/ranking"
	api "gitlab.com/dirk.krummacker/keepintouch/pkg/model"
)

// findRecents responds with the most recently used contacts, most recent first.
//
// Example REST API call:
//
//	> curl http://localhost:8080/recents
func (s *Service) findRecents(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.toAPIList(s.store.Recents()))
}

// addRecent marks a contact as most recently used.
//
// Example REST API call:
//
//	> curl http://localhost:8080/recents/0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11 --request "POST"
func (s *Service) addRecent(c *gin.Context) {
	if err := s.store.AddRecent(c.Request.Context(), c.Param("id")); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, s.toAPIList(s.store.Recents()))
}

// clearRecents empties the list of recently used contacts.
//
// Example REST API call:
//
//	> curl http://localhost:8080/recents --request "DELETE"
func (s *Service) clearRecents(c *gin.Context) {
	if err := s.store.ClearRecents(c.Request.Context()); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "recents cleared"})
}

// findContactSoons responds with the contacts that are most overdue for outreach, as of the last
// ranking.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contactsoons
func (s *Service) findContactSoons(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.toAPIList(s.store.ContactSoons()))
}

// rankContactSoons recomputes the list of overdue contacts and responds with it.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contactsoons/rank --request "POST"
func (s *Service) rankContactSoons(c *gin.Context) {
	if err := s.store.RankContactSoons(c.Request.Context()); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, s.toAPIList(s.store.ContactSoons()))
}

// clearContactSoons empties the list of overdue contacts.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contactsoons --request "DELETE"
func (s *Service) clearContactSoons(c *gin.Context) {
	if err := s.store.ClearContactSoons(c.Request.Context()); err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contact soons cleared"})
}

// findPinned responds with the pinned contacts in the order they were pinned.
//
// Example REST API call:
//
//	> curl http://localhost:8080/pinned
func (s *Service) findPinned(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.toAPIList(s.store.PinnedContacts()))
}

// findNearby responds with the contacts near the device, as of the last completed computation.
//
// Example REST API call:
//
//	> curl http://localhost:8080/nearby
func (s *Service) findNearby(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.toAPIList(s.store.NearbyContacts()))
}

// refreshNearby recomputes the contacts near the device and waits for the result. It responds
// with 503 if the device location is not known.
//
// Example REST API call:
//
//	> curl http://localhost:8080/nearby/refresh --request "POST"
func (s *Service) refreshNearby(c *gin.Context) {
	result, err := s.store.RefreshNearby().Wait(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{"message": "nearby computation aborted"})
		return
	}
	if result.Err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": result.Err.Error()})
		return
	}
	c.IndentedJSON(http.StatusOK, s.toAPIList(s.store.NearbyContacts()))
}

// setDeviceLocation stores the position of the device and recomputes the nearby contacts in the
// background.
//
// Example REST API call:
//
//	> curl http://localhost:8080/device/location --request "PUT" --header "Content-Type: application/json" --data '{"latitude": 40.7128, "longitude": -74.0060}'
func (s *Service) setDeviceLocation(c *gin.Context) {
	if s.device == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"message": "device location is not configurable"})
		return
	}
	var submitted api.Coordinate
	if err := c.BindJSON(&submitted); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	coords := model.Coordinate(submitted)
	if err := coords.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid coordinates"})
		return
	}
	s.device.Set(coords)
	s.store.RefreshNearby()
	c.IndentedJSON(http.StatusOK, gin.H{"message": "device location set"})
}

// clearDeviceLocation forgets the position of the device.
//
// Example REST API call:
//
//	> curl http://localhost:8080/device/location --request "DELETE"
func (s *Service) clearDeviceLocation(c *gin.Context) {
	if s.device == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"message": "device location is not configurable"})
		return
	}
	s.device.Clear()
	s.store.RefreshNearby()
	c.IndentedJSON(http.StatusOK, gin.H{"message": "device location cleared"})
}

// logContact records that a contact was reached. A contact is logged at most once per day; later
// calls on the same day are acknowledged without changing anything. If the request carries a
// birthday, it is stored as well.
//
// Example REST API call:
//
//	> curl http://localhost:8080/log --request "POST" --header "Content-Type: application/json" --data '{"contactId": "0b5f7c1e-3a52-4d7e-9a55-0f6f5f1d2a11", "currentDate": "11/29/24, 03:30:00 PM UTC"}'
func (s *Service) logContact(c *gin.Context) {
	var entry api.LogEntry
	if err := c.BindJSON(&entry); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "no data received"})
		return
	}
	if strings.TrimSpace(entry.ContactID) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "data received in wrong format"})
		return
	}
	at := s.clock.Now()
	if s.location != nil {
		at = at.In(s.location)
	}
	if entry.CurrentDate != nil {
		parsed, err := time.Parse(ranking.LastContactedLayout, strings.TrimSpace(*entry.CurrentDate))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid currentDate"})
			return
		}
		at = parsed
	}

	ctx := c.Request.Context()
	result, err := s.store.LogContact(ctx, entry.ContactID, at)
	if err != nil {
		s.abortWithStoreError(c, err)
		return
	}
	if entry.Birthday != nil {
		if contact, ok := s.store.Contact(entry.ContactID); ok && contact.Birthday != *entry.Birthday {
			contact.Birthday = *entry.Birthday
			if err := s.store.Update(ctx, contact); err != nil {
				s.abortWithStoreError(c, err)
				return
			}
		}
	}
	c.IndentedJSON(http.StatusOK, api.LogResult{
		Message:       fmt.Sprintf("Contact %q received successfully", entry.ContactID),
		LastContact:   result.LastContacted,
		AlreadyLogged: result.AlreadyLogged,
	})
}
