package cachekey

import (
	"net/http"
	"net/url"
	"testing"
)

func testKeyer() CacheKeyer {
	origin, _ := url.Parse("http://origin.localhost:8080")
	return NewCacheKeyer(*origin)
}

func TestRelativeRequestResolvedAgainstOrigin(t *testing.T) {
	r, _ := http.NewRequest("GET", "/card/style.css", nil)
	if key := testKeyer().GetKey(r); key != "GET http://origin.localhost:8080/card/style.css" {
		t.Fatalf("Key is %s", key)
	}
}

func TestKeyIsQuerySensitive(t *testing.T) {
	keyer := testKeyer()
	a, _ := http.NewRequest("GET", "/index.html?id=oriane", nil)
	b, _ := http.NewRequest("GET", "/index.html?id=other", nil)
	if keyer.GetKey(a) == keyer.GetKey(b) {
		t.Fatalf("Keys are equal: %s", keyer.GetKey(a))
	}
}

func TestKeyIgnoresFragment(t *testing.T) {
	keyer := testKeyer()
	a, _ := http.NewRequest("GET", "/index.html#top", nil)
	b, _ := http.NewRequest("GET", "/index.html", nil)
	if keyer.GetKey(a) != keyer.GetKey(b) {
		t.Fatalf("Keys differ: %s, %s", keyer.GetKey(a), keyer.GetKey(b))
	}
}

func TestKeyIncludesMethod(t *testing.T) {
	keyer := testKeyer()
	get, _ := http.NewRequest("GET", "/", nil)
	head, _ := http.NewRequest("HEAD", "/", nil)
	if keyer.GetKey(get) == keyer.GetKey(head) {
		t.Fatal("GET and HEAD have the same key")
	}
}
