package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/qfrontier/qfrontier/internal/crawler"
)

func TestNewChromedpSlotValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	fetcher, err := NewChromedp(Config{MaxParallel: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cap(fetcher.slots) != 2 {
		t.Fatalf("expected slot capacity 2, got %d", cap(fetcher.slots))
	}
	fetcher.Close()

	fetcher, err = NewChromedp(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.slots != nil {
		t.Fatal("expected unlimited fetcher to have no slot channel")
	}
	fetcher.Close()
}

func TestFetcherNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{}
	if got := fetcher.navTimeout(); got != 45*time.Second {
		t.Fatalf("expected default nav timeout, got %v", got)
	}
	fetcher.cfg.NavigationTimeout = time.Second
	if got := fetcher.navTimeout(); got != time.Second {
		t.Fatalf("expected override to be used, got %v", got)
	}
}

func TestDocumentMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newDocumentMeta()
	meta.capture(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  204,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"content-type": "text/html; charset=utf-8"},
		},
	})
	status, contentType, url := meta.snapshotWithFallbacks("https://req", "")
	if status != 204 || contentType != "text/html; charset=utf-8" || url != "https://example.com/rendered" {
		t.Fatalf("unexpected snapshot values: status=%d type=%q url=%s", status, contentType, url)
	}

	meta = newDocumentMeta()
	status, contentType, url = meta.snapshotWithFallbacks("https://req", "https://final")
	if status != http.StatusOK || url != "https://final" {
		t.Fatalf("expected fallback values, got status=%d url=%s", status, url)
	}
	if contentType != "text/html" {
		t.Fatalf("expected html fallback content type, got %q", contentType)
	}

	meta = newDocumentMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "")
	if status != http.StatusOK || url != "https://req" {
		t.Fatalf("expected request url fallback, got status=%d url=%s", status, url)
	}
}

func TestDocumentMetaIgnoresSubresources(t *testing.T) {
	t.Parallel()

	meta := newDocumentMeta()
	meta.capture(&network.EventResponseReceived{
		Type: network.ResourceTypeScript,
		Response: &network.Response{
			Status: 500,
			URL:    "https://cdn.example.com/app.js",
		},
	})
	status, _, _ := meta.snapshot()
	if status != 0 {
		t.Fatalf("expected script responses to be ignored, got status %d", status)
	}
}

func TestNoopFetcherError(t *testing.T) {
	t.Parallel()

	fetcher := NewNoop()
	if _, err := fetcher.Fetch(context.Background(), crawler.FetchRequest{}); err == nil {
		t.Fatal("expected error from noop fetcher")
	}
}
