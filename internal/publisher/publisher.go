// Package publisher pushes finished articles to the site's CMS.
package publisher

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
	"github.com/yungbote/seoflow-backend/internal/platform/httpx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

type Request struct {
	SiteID          uint   `json:"site_id"`
	ArticleID       uint   `json:"article_id"`
	Title           string `json:"title"`
	Slug            string `json:"slug"`
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	Content         string `json:"content"`
	Endpoint        string `json:"-"`
}

// RequestFor builds the publish request of an article on its site.
func RequestFor(site *domain.Site, a *domain.Article) Request {
	return Request{
		SiteID:          a.SiteID,
		ArticleID:       a.ID,
		Title:           a.Title,
		Slug:            a.Slug,
		MetaTitle:       a.MetaTitle,
		MetaDescription: a.MetaDescription,
		Content:         a.Content,
		Endpoint:        site.PublishWebhookURL,
	}
}

type Publisher interface {
	// Publish returns the public URL of the published article.
	Publish(ctx context.Context, req Request) (string, error)
}

type WebhookConfig struct {
	Secret     string
	Timeout    time.Duration
	MaxRetries int
}

func WebhookConfigFromEnv() WebhookConfig {
	return WebhookConfig{
		Secret:     envutil.String("PUBLISH_WEBHOOK_SECRET", ""),
		Timeout:    envutil.Seconds("PUBLISH_TIMEOUT_SECONDS", 30*time.Second),
		MaxRetries: envutil.Int("PUBLISH_MAX_RETRIES", 2),
	}
}

// Webhook posts the article as JSON to the site's webhook and expects
// {"url": "..."} back.
type Webhook struct {
	log    *logger.Logger
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhook(baseLog *logger.Logger, cfg WebhookConfig) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Webhook{
		log:    baseLog.With("component", "WebhookPublisher"),
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (w *Webhook) Publish(ctx context.Context, req Request) (string, error) {
	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		return "", apperr.Validation("publish_webhook_url", "site has no publish webhook configured")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "", apperr.Validation("publish_webhook_url", "must be an http(s) url")
	}
	header := http.Header{}
	if w.cfg.Secret != "" {
		header.Set("Authorization", "Bearer "+w.cfg.Secret)
	}
	var out struct {
		URL string `json:"url"`
	}
	err := httpx.Retry(ctx, w.cfg.MaxRetries, time.Second, 10*time.Second,
		func(attempt int, sleep time.Duration, err error) {
			w.log.Warn("Publish retrying", "article_id", req.ArticleID, "attempt", attempt, "sleep", sleep.String(), "error", err)
		},
		func() error { return httpx.DoJSON(ctx, w.client, http.MethodPost, endpoint, header, req, &out) },
	)
	if err != nil {
		status := 0
		var se *httpx.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return "", &apperr.ExternalProviderError{Provider: "publish_webhook", StatusCode: status, Err: err}
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", apperr.Provider("publish_webhook", errMissingURL)
	}
	w.log.Info("Article published", "article_id", req.ArticleID, "url", out.URL)
	return out.URL, nil
}
