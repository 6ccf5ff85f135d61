// Package export renders contacts in interchange formats understood by address book and calendar
// applications.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
)

// birthdayLayouts are the free text birthday formats that can be converted to a vCard date.
var birthdayLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// VCard writes one vCard 4.0 per contact to w.
func VCard(w io.Writer, contacts ...model.Contact) error {
	enc := vcard.NewEncoder(w)
	for _, c := range contacts {
		if err := enc.Encode(Card(c)); err != nil {
			return fmt.Errorf("encode vcard of %q: %w", c.ID, err)
		}
	}
	return nil
}

// Card converts a contact into a vCard. Empty fields are left out.
func Card(c model.Contact) vcard.Card {
	card := vcard.Card{}
	card.SetValue(vcard.FieldFormattedName, c.Name)
	card.SetValue(vcard.FieldUID, c.ID)
	if c.Affiliation != "" {
		card.SetValue(vcard.FieldOrganization, c.Affiliation)
	}
	if phone, ok := c.FormattedPhone(true); ok {
		card.Add(vcard.FieldTelephone, &vcard.Field{
			Value:  phone,
			Params: vcard.Params{vcard.ParamType: {vcard.TypeCell}},
		})
	}
	if c.Email != "" {
		card.SetValue(vcard.FieldEmail, c.Email)
	}
	if c.Notes != "" {
		card.SetValue(vcard.FieldNote, c.Notes)
	}
	if c.Birthday != "" {
		card.Add(vcard.FieldBirthday, birthdayField(c.Birthday))
	}
	if c.Location != "" {
		card.Add(vcard.FieldAddress, &vcard.Field{
			Value:  ";;" + strings.NewReplacer(";", ",").Replace(c.Location) + ";;;;",
			Params: vcard.Params{"LABEL": {c.Location}},
		})
	}
	if c.Coordinates != nil {
		card.SetValue(vcard.FieldGeolocation, "geo:"+model.FormatCoordinate(*c.Coordinates))
	}
	vcard.ToV4(card)
	return card
}

// birthdayField writes known date formats as a vCard date and anything else as text.
func birthdayField(birthday string) *vcard.Field {
	for _, layout := range birthdayLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(birthday)); err == nil {
			return &vcard.Field{Value: t.Format("20060102")}
		}
	}
	return &vcard.Field{Value: birthday, Params: vcard.Params{"VALUE": {"text"}}}
}
