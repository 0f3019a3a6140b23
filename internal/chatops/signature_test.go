package chatops

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func strconvNow() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

func signedRequest(t *testing.T, secret, path, contentType string, body []byte) *http.Request {
	t.Helper()
	ts := strconvNow()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", Sign(secret, ts, body))
	return req
}

func TestVerifyValid(t *testing.T) {
	v := NewVerifier("secret")
	ts := strconvNow()
	body := []byte("payload=%7B%7D")
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", ts)
	header.Set("X-Slack-Signature", Sign("secret", ts, body))
	if !v.Verify(header, body) {
		t.Fatalf("expected valid signature")
	}
}

func TestVerifyEmptySecret(t *testing.T) {
	v := NewVerifier("")
	ts := strconvNow()
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", ts)
	header.Set("X-Slack-Signature", Sign("", ts, []byte("body")))
	if v.Verify(header, []byte("body")) {
		t.Fatalf("expected false without secret")
	}
	var nilVerifier *Verifier
	if nilVerifier.Verify(header, []byte("body")) {
		t.Fatalf("expected false for nil verifier")
	}
}

func TestVerifyMissingHeaders(t *testing.T) {
	v := NewVerifier("secret")
	if v.Verify(http.Header{}, []byte("body")) {
		t.Fatalf("expected false")
	}
}

func TestVerifyBadTimestamp(t *testing.T) {
	v := NewVerifier("secret")
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", "bad")
	header.Set("X-Slack-Signature", "v0=bad")
	if v.Verify(header, []byte("body")) {
		t.Fatalf("expected false")
	}
}

func TestVerifyClockSkew(t *testing.T) {
	v := NewVerifier("secret")
	v.Clock = func() time.Time { return time.Unix(10_000, 0) }
	body := []byte("body")
	for _, ts := range []string{"9699", "10301"} {
		header := http.Header{}
		header.Set("X-Slack-Request-Timestamp", ts)
		header.Set("X-Slack-Signature", Sign("secret", ts, body))
		if v.Verify(header, body) {
			t.Fatalf("ts %s: expected skew rejection", ts)
		}
	}
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", "9700")
	header.Set("X-Slack-Signature", Sign("secret", "9700", body))
	if !v.Verify(header, body) {
		t.Fatalf("expected 5 minute boundary to pass")
	}
}

func TestVerifyTamperedBody(t *testing.T) {
	v := NewVerifier("secret")
	ts := strconvNow()
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", ts)
	header.Set("X-Slack-Signature", Sign("secret", ts, []byte("a")))
	if v.Verify(header, []byte("b")) {
		t.Fatalf("expected mismatch")
	}
}

func TestVerifyClockNil(t *testing.T) {
	v := &Verifier{SigningSecret: "secret"}
	ts := strconvNow()
	header := http.Header{}
	header.Set("X-Slack-Request-Timestamp", ts)
	header.Set("X-Slack-Signature", Sign("secret", ts, []byte("x")))
	if !v.Verify(header, []byte("x")) {
		t.Fatalf("expected true")
	}
}

func TestMiddlewareRestoresBody(t *testing.T) {
	v := NewVerifier("secret")
	var seen string
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		seen = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	req := signedRequest(t, "secret", "/slack/events", "application/json", []byte(`{"type":"x"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || seen != `{"type":"x"}` {
		t.Fatalf("status=%d body=%q", w.Code, seen)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	v := NewVerifier("secret")
	called := false
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	req := signedRequest(t, "other", "/slack/events", "application/json", []byte(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || called {
		t.Fatalf("status=%d called=%v", w.Code, called)
	}
}

func TestMiddlewareReadError(t *testing.T) {
	old := readAll
	readAll = func(r io.Reader) ([]byte, error) { return nil, errors.New("read error") }
	defer func() { readAll = old }()

	h := NewVerifier("secret").Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := signedRequest(t, "secret", "/slack/events", "application/json", []byte(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}
