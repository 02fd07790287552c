package serializer

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFromResponseBodyIntact(t *testing.T) {
	response := "HTTP/1.1 200 OK\r\nServer: Test\r\nContent-Length: 16\r\n\r\nThis is the body"

	res, err := http.ReadResponse(bufio.NewReader(strings.NewReader(response)), nil)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := FromResponse(res)
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if string(snap.Body) != "This is the body" || snap.Header.Get("Server") != "Test" {
		t.Fatalf("Snapshot: %+v", snap)
	}
}

func TestSnapshotBytes(t *testing.T) {
	snap := New(http.StatusNotFound, "Contact not found")
	snap.Header.Add("Test", "-ing")

	bts, err := snap.Bytes()
	if err != nil {
		t.Fatalf("Error creating bytes: %+v", err)
	}
	parsed, err := Parse(bts)
	if err != nil {
		t.Fatalf("Error creating snapshot: %+v", err)
	}
	if parsed.StatusCode != http.StatusNotFound {
		t.Fatalf("Status is %d", parsed.StatusCode)
	}
	if parsed.Header.Get("Test") != "-ing" || parsed.Header.Get("Content-Type") != "text/plain; charset=utf-8" {
		t.Fatalf("Headers wrong %+v", parsed.Header)
	}
	if string(parsed.Body) != "Contact not found" {
		t.Fatalf("Body is %s", parsed.Body)
	}
}

func TestSend(t *testing.T) {
	snap := New(http.StatusOK, "hello")
	rr := httptest.NewRecorder()
	if err := snap.Send(rr); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || rr.Body.String() != "hello" {
		t.Fatalf("Sent %d %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("Content-Type is %s", ct)
	}
}

func TestOK(t *testing.T) {
	for status, ok := range map[int]bool{200: true, 204: true, 299: true, 301: false, 404: false, 500: false} {
		if (&Snapshot{StatusCode: status}).OK() != ok {
			t.Fatalf("OK for %d is not %v", status, ok)
		}
	}
}
