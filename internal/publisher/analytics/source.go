// Package analytics reads search positions for a site's keywords.
package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/seoflow-backend/internal/domain"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
	"github.com/yungbote/seoflow-backend/internal/platform/httpx"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

// Position is one keyword's average ranking over the reporting window.
type Position struct {
	Keyword     string  `json:"keyword"`
	Position    float64 `json:"position"`
	Impressions int     `json:"impressions"`
	Clicks      int     `json:"clicks"`
}

type Source interface {
	Positions(ctx context.Context, site *domain.Site) ([]Position, error)
}

type HTTPConfig struct {
	Endpoint   string
	APIKey     string
	Days       int
	Timeout    time.Duration
	MaxRetries int
}

func HTTPConfigFromEnv() HTTPConfig {
	return HTTPConfig{
		Endpoint:   envutil.String("ANALYTICS_ENDPOINT", ""),
		APIKey:     envutil.String("ANALYTICS_API_KEY", ""),
		Days:       envutil.Int("ANALYTICS_WINDOW_DAYS", 28),
		Timeout:    envutil.Seconds("ANALYTICS_TIMEOUT_SECONDS", 30*time.Second),
		MaxRetries: envutil.Int("ANALYTICS_MAX_RETRIES", 2),
	}
}

/*
HTTPSource reads positions from a search-analytics gateway:

	GET <endpoint>?site=<domain>&days=<n>  ->  {"rows": [{"keyword", "position", ...}]}

The gateway owns the OAuth dance with the search console; this service only
holds a bearer key for it.
*/
type HTTPSource struct {
	log    *logger.Logger
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPSource(baseLog *logger.Logger, cfg HTTPConfig) (*HTTPSource, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("missing ANALYTICS_ENDPOINT")
	}
	if cfg.Days <= 0 {
		cfg.Days = 28
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPSource{
		log:    baseLog.With("component", "AnalyticsSource"),
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *HTTPSource) Positions(ctx context.Context, site *domain.Site) ([]Position, error) {
	if site == nil || strings.TrimSpace(site.Domain) == "" {
		return nil, apperr.Validation("site", "missing domain")
	}
	q := url.Values{}
	q.Set("site", site.Domain)
	q.Set("days", strconv.Itoa(s.cfg.Days))
	header := http.Header{}
	if s.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	var out struct {
		Rows []Position `json:"rows"`
	}
	err := httpx.Retry(ctx, s.cfg.MaxRetries, time.Second, 10*time.Second, nil, func() error {
		return httpx.DoJSON(ctx, s.client, http.MethodGet, s.cfg.Endpoint+"?"+q.Encode(), header, nil, &out)
	})
	if err != nil {
		status := 0
		var se *httpx.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return nil, &apperr.ExternalProviderError{Provider: "analytics", StatusCode: status, Err: err}
	}
	s.log.Debug("Positions fetched", "site_id", site.ID, "rows", len(out.Rows))
	return out.Rows, nil
}

// Static serves fixed positions per site id.
type Static struct {
	mu   sync.Mutex
	rows map[uint][]Position
}

func NewStatic() *Static { return &Static{rows: map[uint][]Position{}} }

func (s *Static) Set(siteID uint, rows []Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[siteID] = rows
}

func (s *Static) Positions(_ context.Context, site *domain.Site) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Position(nil), s.rows[site.ID]...), nil
}
