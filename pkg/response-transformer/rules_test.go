package responsetransformer

import (
	"net/http"
	"testing"
)

func TestRuleFinder(t *testing.T) {
	makeReq := func(method, path string) *http.Request {
		req, _ := http.NewRequest(method, path, nil)
		return req
	}

	rules := Rules{
		Rule{Prefix: "/icons/", Headers: map[string]string{"X-Rule": "icons"}},
		Rule{Path: "/", Query: map[string]string{"id": ""}, Headers: map[string]string{"X-Rule": "card"}},
		Rule{Headers: map[string]string{"X-Rule": "default"}},
	}

	if rule := rules.find(makeReq("GET", "/style.css")); rule == nil || rule.Headers["X-Rule"] != "default" {
		t.Fatal("Incorrect rule")
	}
	if rule := rules.find(makeReq("GET", "/icons/icon-192.png")); rule == nil || rule.Headers["X-Rule"] != "icons" {
		t.Fatal("Incorrect rule")
	}
	if rule := rules.find(makeReq("GET", "/?id=oriane")); rule == nil || rule.Headers["X-Rule"] != "card" {
		t.Fatal("Incorrect rule")
	}
	if rule := rules.find(makeReq("POST", "/icons/icon-192.png")); rule != nil {
		t.Fatal("Incorrect rule")
	}
}

func TestApply(t *testing.T) {
	req, _ := http.NewRequest("GET", "/manifest.webmanifest", nil)
	res := &http.Response{StatusCode: http.StatusOK, Header: make(http.Header), Request: req}
	rules := Rules{Rule{
		Defaults: map[string]string{"Content-Type": "application/manifest+json"},
		Headers:  map[string]string{"Cache-Control": "no-cache"},
	}}

	rules.Apply(res)
	if ct := res.Header.Get("Content-Type"); ct != "application/manifest+json" {
		t.Fatalf("Content-Type header wrong, is '%s'", ct)
	}
	if cc := res.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}

	// defaults do not replace what the origin sent
	res.Header.Set("Content-Type", "text/plain")
	res.Header.Set("Cache-Control", "max-age=60")
	rules.Apply(res)
	if ct := res.Header.Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("Content-Type header wrong, is '%s'", ct)
	}
	if cc := res.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}
}

func TestApplyOnlyToSuccess(t *testing.T) {
	req, _ := http.NewRequest("GET", "/", nil)
	res := &http.Response{StatusCode: http.StatusNotFound, Header: make(http.Header), Request: req}
	Rules{Rule{Headers: map[string]string{"X-Rule": "set"}}}.Apply(res)
	if res.Header.Get("X-Rule") != "" {
		t.Fatal("Rule applied to an error response")
	}
}
