package service

import (
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	api "gitlab.com/dirk.krummacker/keepintouch/pkg/model"
)

func ptr[T any](v T) *T {
	return &v
}

// toAPI converts a stored contact into its JSON representation.
func (s *Service) toAPI(c model.Contact) api.Contact {
	out := api.Contact{
		ID:                c.ID,
		Name:              ptr(c.Name),
		Affiliation:       ptr(c.Affiliation),
		Phone:             ptr(c.Phone),
		AreaCode:          ptr(c.AreaCode),
		Email:             ptr(c.Email),
		Location:          ptr(c.Location),
		Notes:             ptr(c.Notes),
		LastContacted:     ptr(c.LastContacted),
		IsFavorite:        ptr(c.IsFavorite),
		Birthday:          ptr(c.Birthday),
		BirthdayVerified:  ptr(c.BirthdayVerified),
		DaysUntilReminder: ptr(c.DaysUntilReminder),
		PinnedContact:     ptr(c.PinnedContact),
		PictureName:       ptr(c.PictureName),
		HasPicture:        ptr(c.HasPicture),
		ImageData:         ptr(c.ImageData),
	}
	if c.Coordinates != nil {
		out.Coordinates = &api.Coordinate{Latitude: c.Coordinates.Latitude, Longitude: c.Coordinates.Longitude}
	}
	if phone, ok := c.FormattedPhone(true); ok {
		out.FormattedPhone = phone
	}
	if days, never := s.ranker.Overdue(c); !never {
		out.OverdueDays = ptr(days)
	}
	for _, n := range c.Notifications {
		out.Notifications = append(out.Notifications, api.Notification{
			ID:         n.ID.String(),
			Date:       n.Date,
			Reason:     n.Reason,
			RepeatTime: n.RepeatTime,
		})
	}
	return out
}

func (s *Service) toAPIList(contacts []model.Contact) []api.Contact {
	list := make([]api.Contact, 0, len(contacts))
	for _, c := range contacts {
		list = append(list, s.toAPI(c))
	}
	return list
}

// fromAPI builds a new contact from a create request. Absent fields get their defaults.
func fromAPI(in api.Contact) model.Contact {
	c := model.New("")
	c.ID = in.ID
	applyAPI(&c, in)
	for _, n := range in.Notifications {
		c.AddNotification(n.Date, n.Reason, n.RepeatTime)
	}
	return c
}

// validateCoordinates rejects submitted coordinates outside the valid ranges. Such values could
// be stored but not loaded again.
func validateCoordinates(in api.Contact) error {
	if in.Coordinates == nil {
		return nil
	}
	return model.Coordinate(*in.Coordinates).Validate()
}

// applyAPI copies the fields present in the request onto c. It returns the number of copied
// fields. Read-only fields and notifications are ignored.
func applyAPI(c *model.Contact, in api.Contact) int {
	n := 0
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
			n++
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
			n++
		}
	}
	set(&c.Name, in.Name)
	set(&c.Affiliation, in.Affiliation)
	set(&c.Phone, in.Phone)
	set(&c.AreaCode, in.AreaCode)
	set(&c.Email, in.Email)
	set(&c.Location, in.Location)
	set(&c.Notes, in.Notes)
	set(&c.LastContacted, in.LastContacted)
	set(&c.Birthday, in.Birthday)
	set(&c.PictureName, in.PictureName)
	set(&c.ImageData, in.ImageData)
	setBool(&c.IsFavorite, in.IsFavorite)
	setBool(&c.BirthdayVerified, in.BirthdayVerified)
	setBool(&c.PinnedContact, in.PinnedContact)
	setBool(&c.HasPicture, in.HasPicture)
	if in.DaysUntilReminder != nil {
		c.DaysUntilReminder = *in.DaysUntilReminder
		n++
	}
	if in.Coordinates != nil {
		c.Coordinates = &model.Coordinate{Latitude: in.Coordinates.Latitude, Longitude: in.Coordinates.Longitude}
		n++
	}
	return n
}
