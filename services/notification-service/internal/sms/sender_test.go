package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSenderPostsMessage(t *testing.T) {
	var got webhookMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "secret")
	if err := s.Send(context.Background(), "+923001234567", "Your appointment is confirmed."); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.To != "+923001234567" {
		t.Fatalf("unexpected recipient %q", got.To)
	}
	if got.Message != "Your appointment is confirmed." {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if got.Source != "clinicbook" {
		t.Fatalf("unexpected source %q", got.Source)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected authorization header %q", auth)
	}
}

func TestWebhookSenderRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "")
	if err := s.Send(context.Background(), "+923001234567", "hello"); err == nil {
		t.Fatal("a 502 from the gateway must fail the delivery")
	}
}

func TestWebhookSenderRequiresURL(t *testing.T) {
	s := NewWebhookSender("", "")
	if err := s.Send(context.Background(), "+923001234567", "hello"); err == nil {
		t.Fatal("missing gateway url must fail")
	}
}
