// Package vcard renders contact records as vCard 3.0 text.
package vcard

import "strings"

const (
	lineBreak = "\r\n"
	beginLine = "BEGIN:VCARD"
	version   = "VERSION:3.0"
	endLine   = "END:VCARD"

	// ContentType is the media type of a rendered card.
	ContentType = "text/vcard; charset=utf-8"
)

// comma and semicolon delimit structured values
var escaper = strings.NewReplacer(",", `\,`, ";", `\;`)

func escape(s string) string {
	return escaper.Replace(s)
}

// Format renders the contact as a vCard.
// Every line, including the last one, ends with CRLF. Joining the lines with CRLF
// would leave END:VCARD unterminated; the trailing pair is kept on purpose.
// Absent fields produce no line, except the name lines which are always present.
func Format(c Contact) string {
	lines := []string{
		beginLine,
		version,
		"N:" + escape(string(c.LastName)) + ";" + escape(string(c.FirstName)) + ";;;",
		"FN:" + escape(joinNonEmpty(" ", string(c.FirstName), string(c.LastName))),
		optional("ORG:", c.Organization),
		optional("TITLE:", c.Title),
		optional("TEL;TYPE=CELL:", c.Phone),
		optional("EMAIL;TYPE=INTERNET:", c.Email),
		address(c),
		optional("URL:", c.URL),
		endLine,
	}

	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString(lineBreak)
	}
	return b.String()
}

// Filename returns the suggested attachment name for the contact's card.
// Empty name parts are kept, so a missing first name yields "_Last.vcf".
func Filename(c Contact) string {
	return string(c.FirstName) + "_" + string(c.LastName) + ".vcf"
}

func optional(prefix string, value Text) string {
	if value == "" {
		return ""
	}
	return prefix + escape(string(value))
}

// address renders the ADR line; post office box, extended address and region stay empty.
func address(c Contact) string {
	if c.Street == "" && c.City == "" && c.PostalCode == "" && c.Country == "" {
		return ""
	}
	parts := []string{
		"", "",
		escape(string(c.Street)),
		escape(string(c.City)),
		"",
		escape(string(c.PostalCode)),
		escape(string(c.Country)),
	}
	return "ADR;TYPE=WORK:" + strings.Join(parts, ";")
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
