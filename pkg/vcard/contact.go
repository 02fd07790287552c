package vcard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedContacts is returned when contact data is neither a list of records
// nor an object holding one under "contacts".
var ErrMalformedContacts = errors.New("malformed contact data")

// Text is a record field. Any JSON scalar is accepted: strings are taken as is,
// numbers and booleans keep their JSON spelling and null is empty.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[':
		return fmt.Errorf("expected a scalar, got %.20s", b)
	default:
		*t = Text(b)
	}
	return nil
}

// Contact is one record of the contact data resource.
type Contact struct {
	ID           Text `json:"id"`
	FirstName    Text `json:"firstName"`
	LastName     Text `json:"lastName"`
	Organization Text `json:"org"`
	Title        Text `json:"title"`
	Phone        Text `json:"tel"`
	Email        Text `json:"email"`
	Street       Text `json:"street"`
	City         Text `json:"city"`
	PostalCode   Text `json:"postalCode"`
	Country      Text `json:"country"`
	URL          Text `json:"url"`
}

// UnmarshalJSON also accepts "organization" and "phone" for org and tel.
func (c *Contact) UnmarshalJSON(b []byte) error {
	type record Contact
	var aux struct {
		record
		Organization Text `json:"organization"`
		Phone        Text `json:"phone"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = Contact(aux.record)
	if c.Organization == "" {
		c.Organization = aux.Organization
	}
	if c.Phone == "" {
		c.Phone = aux.Phone
	}
	return nil
}

// ParseContacts decodes a contact list. The document is either a bare array of
// records or an object with the array in its "contacts" field; a missing field
// means no contacts.
func ParseContacts(b []byte) ([]Contact, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedContacts)
	}
	switch b[0] {
	case '[':
		var list []Contact
		if err := json.Unmarshal(b, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedContacts, err)
		}
		return list, nil
	case '{':
		var doc struct {
			Contacts []Contact `json:"contacts"`
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedContacts, err)
		}
		return doc.Contacts, nil
	default:
		return nil, fmt.Errorf("%w: unexpected document %.20q", ErrMalformedContacts, b)
	}
}

// Find returns the first contact whose id equals id exactly.
func Find(contacts []Contact, id string) (Contact, bool) {
	for _, c := range contacts {
		if string(c.ID) == id {
			return c, true
		}
	}
	return Contact{}, false
}
