package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestWebhookPublish(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"url":"https://example.com/best-grinder"}`))
	}))
	defer srv.Close()

	p := NewWebhook(testLogger(t), WebhookConfig{Secret: "s3cret", Timeout: time.Second})
	url, err := p.Publish(context.Background(), Request{ArticleID: 7, Title: "Best grinder", Slug: "best-grinder", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if url != "https://example.com/best-grinder" {
		t.Fatalf("url = %q", url)
	}
	if got.ArticleID != 7 || got.Slug != "best-grinder" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"url":"https://example.com/a"}`))
	}))
	defer srv.Close()

	p := NewWebhook(testLogger(t), WebhookConfig{Timeout: time.Second, MaxRetries: 2})
	if _, err := p.Publish(context.Background(), Request{Endpoint: srv.URL}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestWebhookErrors(t *testing.T) {
	p := NewWebhook(testLogger(t), WebhookConfig{Timeout: time.Second})

	_, err := p.Publish(context.Background(), Request{})
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("missing endpoint: want ValidationError, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	_, err = p.Publish(context.Background(), Request{Endpoint: srv.URL})
	var pe *apperr.ExternalProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusForbidden {
		t.Fatalf("want ExternalProviderError 403, got %v", err)
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer empty.Close()
	if _, err := p.Publish(context.Background(), Request{Endpoint: empty.URL}); !errors.As(err, &pe) {
		t.Fatalf("empty url: want ExternalProviderError, got %v", err)
	}
}
