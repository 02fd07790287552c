package cardcache

import (
	"context"
	"fmt"
	"mime"
	"net/http"

	serializer "github.com/always-cache/card-cache/pkg/response-serializer"
	"github.com/always-cache/card-cache/pkg/vcard"
	"github.com/always-cache/card-cache/rfc9211"
)

const (
	bodyNetworkError   = "Network error"
	bodyNotFound       = "Contact not found"
	bodyGenerateFailed = "Error generating VCF"
)

// networkError is sent when the origin cannot be reached and nothing is stored.
func networkError() *serializer.Snapshot {
	return serializer.New(http.StatusBadGateway, bodyNetworkError)
}

// lookup searches the stores. Storage errors are logged and treated as a miss.
// HEAD requests are answered with the stored GET response.
func (a *CardCache) lookup(r *http.Request) (*serializer.Snapshot, bool) {
	if r.Method == http.MethodHead {
		r = r.Clone(r.Context())
		r.Method = http.MethodGet
	}
	snap, ok, err := a.stores.Lookup(r)
	if err != nil {
		a.requestLogger(r).Error().Err(err).Str("url", r.URL.String()).Msg("Could not look up stored response")
		return nil, false
	}
	return snap, ok
}

// cacheFirst serves the stored response if there is one.
// Otherwise the network response is returned without storing it.
func (a *CardCache) cacheFirst(r *http.Request) (*serializer.Snapshot, rfc9211.CacheStatus) {
	var cacheStatus rfc9211.CacheStatus
	if snap, ok := a.lookup(r); ok {
		cacheStatus.Hit()
		return snap, cacheStatus
	}
	snap, err := a.network.fetch(r.Context(), r, false)
	if err != nil {
		a.requestLogger(r).Warn().Err(err).Msg("Network fetch failed")
		cacheStatus.Forward(rfc9211.FwdReasonMiss)
		cacheStatus.Detail = "network-error"
		return networkError(), cacheStatus
	}
	cacheStatus.Forward(rfc9211.FwdReasonUriMiss)
	return snap, cacheStatus
}

// synthesize generates the vCard for the contact identified by id.
func (a *CardCache) synthesize(r *http.Request, id string) (*serializer.Snapshot, rfc9211.CacheStatus) {
	log := a.requestLogger(r)
	var cacheStatus rfc9211.CacheStatus
	cacheStatus.Detail = "generated"

	contacts, stored, err := a.loadContacts(r.Context())
	if stored {
		cacheStatus.Hit()
	} else {
		cacheStatus.Forward(rfc9211.FwdReasonUriMiss)
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Could not generate vCard")
		return serializer.New(http.StatusInternalServerError, bodyGenerateFailed), cacheStatus
	}
	contact, ok := vcard.Find(contacts, id)
	if !ok {
		log.Warn().Str("id", id).Msg("Contact not found")
		return serializer.New(http.StatusNotFound, bodyNotFound), cacheStatus
	}

	card := vcard.Format(contact)
	log.Debug().Str("id", id).Int("length", len(card)).Msg("vCard generated")
	res := serializer.New(http.StatusOK, card)
	res.Header.Set("Content-Type", vcard.ContentType)
	res.Header.Set("Content-Disposition", contentDisposition(vcard.Filename(contact)))
	return res, cacheStatus
}

// contentDisposition quotes the filename. Names that cannot be sent as a quoted
// ASCII string are RFC 2231 encoded instead.
func contentDisposition(filename string) string {
	quotable := true
	for _, c := range filename {
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			quotable = false
			break
		}
	}
	if quotable {
		return `attachment; filename="` + filename + `"`
	}
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// loadContacts reads the contact data from the stores, or from the network if none is stored.
// The boolean reports whether the data came from a store.
func (a *CardCache) loadContacts(ctx context.Context) ([]vcard.Contact, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.contactsURL.String(), nil)
	if err != nil {
		return nil, false, err
	}
	snap, stored := a.lookup(req)
	if !stored {
		a.requestLogger(req).Debug().Str("url", req.URL.String()).Msg("Contacts not stored, fetching from network")
		if snap, err = a.network.fetch(ctx, req, true); err != nil {
			return nil, false, err
		}
		if !snap.OK() {
			return nil, false, fmt.Errorf("fetch %s: unexpected status %d", req.URL, snap.StatusCode)
		}
	}
	contacts, err := vcard.ParseContacts(snap.Body)
	return contacts, stored, err
}
