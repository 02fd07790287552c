package vcard

import (
	"errors"
	"testing"
)

func TestParseContactsBareList(t *testing.T) {
	contacts, err := ParseContacts([]byte(`[{"id":"oriane","firstName":"Oriane","lastName":"Dupont"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 || contacts[0].FirstName != "Oriane" {
		t.Fatalf("Contacts are %+v", contacts)
	}
}

func TestParseContactsWrapped(t *testing.T) {
	contacts, err := ParseContacts([]byte(` {"contacts": [{"id":"a"},{"id":"b"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 2 || contacts[1].ID != "b" {
		t.Fatalf("Contacts are %+v", contacts)
	}
}

func TestParseContactsMissingField(t *testing.T) {
	contacts, err := ParseContacts([]byte(`{"people": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 0 {
		t.Fatalf("Contacts are %+v", contacts)
	}
}

func TestParseContactsMalformed(t *testing.T) {
	for _, doc := range []string{"", "null", `"contacts"`, `[{"id":"a"`, `[{"id":{"nested":1}}]`} {
		if _, err := ParseContacts([]byte(doc)); !errors.Is(err, ErrMalformedContacts) {
			t.Fatalf("Document %q gave error %v", doc, err)
		}
	}
}

func TestParseContactsScalars(t *testing.T) {
	contacts, err := ParseContacts([]byte(`[{"id":42,"postalCode":69003,"title":null,"organization":"Acme","phone":"0600"}]`))
	if err != nil {
		t.Fatal(err)
	}
	c := contacts[0]
	if c.ID != "42" || c.PostalCode != "69003" || c.Title != "" {
		t.Fatalf("Contact is %+v", c)
	}
	if c.Organization != "Acme" || c.Phone != "0600" {
		t.Fatalf("Aliases not applied: %+v", c)
	}
}

func TestFindExactMatch(t *testing.T) {
	contacts := []Contact{{ID: "Oriane"}, {ID: "oriane", FirstName: "second"}}
	if c, ok := Find(contacts, "oriane"); !ok || c.FirstName != "second" {
		t.Fatalf("Found %+v, %v", c, ok)
	}
	if _, ok := Find(contacts, "ORIANE"); ok {
		t.Fatal("Lookup is not case-sensitive")
	}
}
