package agents

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/httpx"
)

const (
	DefaultScanConcurrency = 3
	maxScanPages           = 10
	maxPageBytes           = 2 << 20
	maxHeadings            = 30
)

type Page struct {
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Headings  []string `json:"headings"`
	WordCount int      `json:"word_count"`
	Error     string   `json:"error,omitempty"`
}

type ScanOutput struct {
	Pages   []Page `json:"pages"`
	Fetched int    `json:"fetched"`
}

type Scanner struct {
	client    *http.Client
	limit     int
	userAgent string
}

func NewScanner(client *http.Client, limit int) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if limit <= 0 {
		limit = DefaultScanConcurrency
	}
	return &Scanner{client: client, limit: limit, userAgent: "seoflow-scanner/1.0"}
}

// Scan fetches the pages with at most limit requests in flight. A page that
// cannot be fetched is reported with its error; the scan fails only when no
// page could be read.
func (s *Scanner) Scan(ctx context.Context, run *events.Run, urls []string) (*ScanOutput, error) {
	urls = uniqueURLs(urls)
	if len(urls) == 0 {
		return nil, apperr.Validation("urls", "no valid http(s) url")
	}
	pages := make([]Page, len(urls))
	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, u := range urls {
		g.Go(func() error {
			p := s.fetch(gctx, u)
			pages[i] = p
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			msg := "Scanned " + u
			if p.Error != "" {
				msg = "Could not scan " + u
			}
			_ = run.Progress(ctx, msg, n, len(urls))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &ScanOutput{Pages: pages}
	for _, p := range pages {
		if p.Error == "" {
			out.Fetched++
		}
	}
	if out.Fetched == 0 {
		return nil, apperr.Provider("competitor_scan", fmt.Errorf("none of %d pages could be fetched", len(pages)))
	}
	return out, nil
}

func (s *Scanner) fetch(ctx context.Context, u string) Page {
	p := Page{URL: u}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html")
	resp, err := s.client.Do(req)
	if err != nil {
		p.Error = err.Error()
		return p
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.Error = (&httpx.StatusError{StatusCode: resp.StatusCode}).Error()
		return p
	}
	p.Title, p.Headings, p.WordCount = ExtractPage(io.LimitReader(resp.Body, maxPageBytes))
	return p
}

// ExtractPage reads an HTML document and returns its title, h1-h3 headings and
// the number of visible words. Script, style and noscript text is skipped.
func ExtractPage(r io.Reader) (title string, headings []string, words int) {
	z := html.NewTokenizer(r)
	var (
		skip    int
		inTitle bool
		heading *strings.Builder
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(title), headings, words
		case html.StartTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				skip++
			case atom.Title:
				inTitle = true
			case atom.H1, atom.H2, atom.H3:
				heading = &strings.Builder{}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				if skip > 0 {
					skip--
				}
			case atom.Title:
				inTitle = false
			case atom.H1, atom.H2, atom.H3:
				if heading != nil {
					if h := strings.Join(strings.Fields(heading.String()), " "); h != "" && len(headings) < maxHeadings {
						headings = append(headings, h)
					}
					heading = nil
				}
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if inTitle {
				title += text
				continue
			}
			if heading != nil {
				heading.WriteString(text)
				heading.WriteByte(' ')
			}
			words += len(strings.Fields(text))
		}
	}
}

func uniqueURLs(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, raw := range in {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		u.Fragment = ""
		s := u.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == maxScanPages {
			break
		}
	}
	return out
}
