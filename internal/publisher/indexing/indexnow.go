// Package indexing notifies search engines about new or changed URLs.
package indexing

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
	"github.com/yungbote/seoflow-backend/internal/platform/httpx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

// ErrDisabled means no indexing key is configured. Callers skip, they do not fail.
var ErrDisabled = errors.New("indexing disabled")

type Indexer interface {
	Submit(ctx context.Context, urls []string) error
}

type Config struct {
	Endpoint   string
	Key        string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv() Config {
	return Config{
		Endpoint:   envutil.String("INDEXNOW_ENDPOINT", "https://api.indexnow.org/indexnow"),
		Key:        envutil.String("INDEXNOW_KEY", ""),
		Timeout:    envutil.Seconds("INDEXNOW_TIMEOUT_SECONDS", 15*time.Second),
		MaxRetries: envutil.Int("INDEXNOW_MAX_RETRIES", 2),
	}
}

type IndexNow struct {
	log    *logger.Logger
	cfg    Config
	client *http.Client
}

func NewIndexNow(baseLog *logger.Logger, cfg Config) *IndexNow {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &IndexNow{
		log:    baseLog.With("component", "IndexNow"),
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type submission struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation,omitempty"`
	URLList     []string `json:"urlList"`
}

// Submit pings IndexNow once per host. All urls of one call are expected to
// belong to the same site.
func (x *IndexNow) Submit(ctx context.Context, urls []string) error {
	if strings.TrimSpace(x.cfg.Key) == "" {
		return ErrDisabled
	}
	byHost := map[string][]string{}
	var hosts []string
	for _, raw := range urls {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Host == "" {
			return apperr.Validation("url", "not an absolute url: "+raw)
		}
		if _, ok := byHost[u.Host]; !ok {
			hosts = append(hosts, u.Host)
		}
		byHost[u.Host] = append(byHost[u.Host], u.String())
	}
	for _, host := range hosts {
		body := submission{
			Host:        host,
			Key:         x.cfg.Key,
			KeyLocation: "https://" + host + "/" + x.cfg.Key + ".txt",
			URLList:     byHost[host],
		}
		err := httpx.Retry(ctx, x.cfg.MaxRetries, time.Second, 10*time.Second, nil, func() error {
			return httpx.DoJSON(ctx, x.client, http.MethodPost, x.cfg.Endpoint, nil, body, nil)
		})
		if err != nil {
			status := 0
			var se *httpx.StatusError
			if errors.As(err, &se) {
				status = se.StatusCode
			}
			return &apperr.ExternalProviderError{Provider: "indexnow", StatusCode: status, Err: err}
		}
		x.log.Debug("URLs submitted", "host", host, "count", len(byHost[host]))
	}
	return nil
}
