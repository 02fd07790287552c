package rfc9211

import "testing"

func TestCacheStatusString(t *testing.T) {
	var cs CacheStatus
	cs.Hit()
	if s := cs.String(); s != "card-cache; hit" {
		t.Fatalf("Status is %s", s)
	}

	cs.Forward(FwdReasonUriMiss)
	cs.Stored = true
	if s := cs.String(); s != "card-cache; fwd=uri-miss; stored" {
		t.Fatalf("Status is %s", s)
	}

	cs = CacheStatus{}
	cs.Forward(FwdReasonMiss)
	cs.Detail = "generated"
	if s := cs.String(); s != "card-cache; fwd=miss; detail=generated" {
		t.Fatalf("Status is %s", s)
	}
	if cs.IsHit() {
		t.Fatal("Forwarded status is a hit")
	}
}
