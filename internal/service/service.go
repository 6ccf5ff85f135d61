package service

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/keepintouch/internal/clock"
	"gitlab.com/dirk.krummacker/keepintouch/internal/geo"
	"gitlab.com/dirk.krummacker/keepintouch/internal/ranking"
	"gitlab.com/dirk.krummacker/keepintouch/internal/store"
	"go.uber.org/zap"
)

// maxInt is the largest possible int value
const maxInt = int(^uint(0) >> 1)

// Service serves the contact store over HTTP.
type Service struct {
	store          *store.Store
	device         *geo.DeviceLocation
	logger         *zap.Logger
	clock          clock.Clock
	ranker         ranking.Ranker
	location       *time.Location
	requestLogging bool
}

// Option configures a Service.
type Option func(*Service)

// WithDeviceLocation lets clients push the device position through PUT /device/location. The
// provider should be the one the store uses for its nearby view.
func WithDeviceLocation(device *geo.DeviceLocation) Option {
	return func(s *Service) {
		s.device = device
	}
}

// WithRequestLogging turns gin's request logging on or off. It is on by default.
func WithRequestLogging(enabled bool) Option {
	return func(s *Service) {
		s.requestLogging = enabled
	}
}

// WithLocation sets the time zone in which contacts are logged when the client sends no date.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		s.location = loc
	}
}

// New returns a service for the given store.
func New(st *store.Store, logger *zap.Logger, clk clock.Clock, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	s := &Service{
		store:          st,
		logger:         logger.With(zap.String("component", "service")),
		clock:          clk,
		ranker:         ranking.New(clk),
		requestLogging: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func (s *Service) SetupHttpRouter() *gin.Engine {
	var router *gin.Engine
	if !s.requestLogging {
		s.logger.Info("Turning off HTTP request logging.")
		router = gin.New()
	} else {
		router = gin.Default()
	}
	router.GET("/contacts", s.findContacts)
	router.POST("/contacts", s.createContact)
	router.GET("/contacts.vcf", s.exportAllVCards)
	router.GET("/contacts/:id", s.findContactByID)
	router.PUT("/contacts/:id", s.updateContactByID)
	router.DELETE("/contacts/:id", s.deleteContactByID)
	router.GET("/contacts/:id/vcard", s.exportVCard)
	router.PUT("/contacts/:id/location", s.setLocation)
	router.POST("/contacts/:id/notifications", s.addNotification)
	router.DELETE("/contacts/:id/notifications/:nid", s.clearNotification)
	router.GET("/contacts/:id/notifications.ics", s.exportCalendar)

	router.GET("/recents", s.findRecents)
	router.POST("/recents/:id", s.addRecent)
	router.DELETE("/recents", s.clearRecents)
	router.GET("/contactsoons", s.findContactSoons)
	router.POST("/contactsoons/rank", s.rankContactSoons)
	router.DELETE("/contactsoons", s.clearContactSoons)
	router.GET("/pinned", s.findPinned)
	router.GET("/nearby", s.findNearby)
	router.POST("/nearby/refresh", s.refreshNearby)
	router.PUT("/device/location", s.setDeviceLocation)
	router.DELETE("/device/location", s.clearDeviceLocation)

	router.POST("/log", s.logContact)
	return router
}

// abortWithStoreError translates an error of the contact store into an HTTP response.
func (s *Service) abortWithStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	case errors.Is(err, store.ErrDuplicateID):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "contact already exists"})
	default:
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "could not store contact"})
	}
}

// parseLimitAndOffset inspects the URL parameters and determines values for limit and offset of
// the result set.
func parseLimitAndOffset(c *gin.Context) (limit int, offset int, success bool) {
	limit = maxInt
	if value := c.Query("limit"); value != "" {
		limitAsInt, errConv := strconv.Atoi(value)
		if errConv != nil || limitAsInt < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid limit parameter"})
			return 0, 0, false
		}
		limit = limitAsInt
	}
	if value := c.Query("offset"); value != "" {
		offsetAsInt, errConv := strconv.Atoi(value)
		if errConv != nil || offsetAsInt < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid offset parameter"})
			return 0, 0, false
		}
		offset = offsetAsInt
	}
	return limit, offset, true
}
