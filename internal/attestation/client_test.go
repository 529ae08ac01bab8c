package attestation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetAttestation_NotFoundIsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	res := c.GetAttestation(context.Background(), 3, "0xabc")
	if res.Outcome != OutcomePending {
		t.Fatalf("expected pending, got %v", res.Outcome)
	}
}

func TestGetAttestation_Throttled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	res := c.GetAttestation(context.Background(), 3, "0xabc")
	if res.Outcome != OutcomeThrottled {
		t.Fatalf("expected throttled, got %v", res.Outcome)
	}
}

func TestGetAttestation_CompleteWithAttestation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"message":"0xdead","attestation":"0xbeef","eventNonce":"1","status":"complete"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	res := c.GetAttestation(context.Background(), 3, "0xabc")
	if res.Outcome != OutcomeAttested {
		t.Fatalf("expected attested, got %v", res.Outcome)
	}
	if res.Message.Message != "0xdead" {
		t.Errorf("got message %q", res.Message.Message)
	}
}

func TestGetAttestation_CompleteButAttestationPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages":[{"message":"0xdead","attestation":"PENDING","eventNonce":"1","status":"complete"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	res := c.GetAttestation(context.Background(), 3, "0xabc")
	if res.Outcome != OutcomePending {
		t.Fatalf("expected pending (attestation still PENDING), got %v", res.Outcome)
	}
}

func TestGetAttestation_OnlyFirstMessageConsidered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages":[
			{"message":"0xfirst","attestation":"0xbeef","eventNonce":"1","status":"complete"},
			{"message":"0xsecond","attestation":"0xcafe","eventNonce":"2","status":"complete"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	res := c.GetAttestation(context.Background(), 3, "0xabc")
	if res.Outcome != OutcomeAttested || res.Message.Message != "0xfirst" {
		t.Fatalf("expected first message only, got %+v", res)
	}
}

func TestGetAttestation_OtherNonSuccessIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	res := c.GetAttestation(context.Background(), 3, "0xabc")
	if res.Outcome != OutcomeUnavailable {
		t.Fatalf("expected unavailable, got %v", res.Outcome)
	}
	if res.Err == nil {
		t.Error("expected non-nil error")
	}
}
