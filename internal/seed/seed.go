// Package seed populates an empty installation with contacts from a YAML file.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"gitlab.com/dirk.krummacker/keepintouch/internal/store"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Entry is one contact of a seed file.
type Entry struct {
	ID                string     `yaml:"id"`
	Name              string     `yaml:"name"`
	Affiliation       string     `yaml:"affiliation"`
	Phone             string     `yaml:"phone"`
	AreaCode          string     `yaml:"areaCode"`
	Email             string     `yaml:"email"`
	Location          string     `yaml:"location"`
	Latitude          *float64   `yaml:"latitude"`
	Longitude         *float64   `yaml:"longitude"`
	Notes             string     `yaml:"notes"`
	LastContacted     string     `yaml:"lastContacted"`
	Birthday          string     `yaml:"birthday"`
	DaysUntilReminder *int       `yaml:"daysUntilReminder"`
	Favorite          bool       `yaml:"favorite"`
	Pinned            bool       `yaml:"pinned"`
	Reminders         []Reminder `yaml:"reminders"`
}

// Reminder is one notification of a seed entry.
type Reminder struct {
	Date   time.Time `yaml:"date"`
	Reason string    `yaml:"reason"`
	Repeat string    `yaml:"repeat"`
}

// Load reads the contacts of a seed file.
func Load(path string) ([]model.Contact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML list of entries into contacts. Entries without a name are rejected.
func Parse(data []byte) ([]model.Contact, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	contacts := make([]model.Contact, 0, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("seed entry %d: name is required", i+1)
		}
		c := e.contact()
		if c.Coordinates != nil {
			if err := c.Coordinates.Validate(); err != nil {
				return nil, fmt.Errorf("seed entry %d: %w", i+1, err)
			}
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func (e Entry) contact() model.Contact {
	c := model.New(e.Name)
	if e.ID != "" {
		c.ID = e.ID
	}
	c.Affiliation = e.Affiliation
	c.Phone = e.Phone
	if e.AreaCode != "" {
		c.AreaCode = e.AreaCode
	}
	c.Email = e.Email
	c.Location = e.Location
	if e.Latitude != nil && e.Longitude != nil {
		c.Coordinates = &model.Coordinate{Latitude: *e.Latitude, Longitude: *e.Longitude}
	}
	c.Notes = e.Notes
	c.LastContacted = e.LastContacted
	c.Birthday = e.Birthday
	if e.DaysUntilReminder != nil {
		c.DaysUntilReminder = *e.DaysUntilReminder
	}
	c.IsFavorite = e.Favorite
	c.PinnedContact = e.Pinned
	for _, r := range e.Reminders {
		c.AddNotification(r.Date, r.Reason, r.Repeat)
	}
	return c
}

// Populate adds every contact whose id is not yet in the store. Running it twice with the same
// contacts adds nothing the second time. It returns the number of added contacts.
func Populate(ctx context.Context, s *store.Store, contacts []model.Contact, logger *zap.Logger) (int, error) {
	added := 0
	for _, c := range contacts {
		if _, ok := s.Contact(c.ID); ok {
			continue
		}
		if _, err := s.Add(ctx, c); err != nil {
			return added, fmt.Errorf("seed contact %q: %w", c.Name, err)
		}
		added++
	}
	logger.Info("Seeded contacts", zap.Int("added", added), zap.Int("skipped", len(contacts)-added))
	return added, nil
}
