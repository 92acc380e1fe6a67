package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/llm"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/seo/linking"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func eventTypes(evs []events.AgentEvent) []events.EventType {
	out := make([]events.EventType, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.EventType)
	}
	return out
}

func TestSessionSuccessWritesResultAfterEvents(t *testing.T) {
	rec := &events.Recorder{}
	var stdout, pipe bytes.Buffer
	s := NewSession(testLogger(t), SessionConfig{Emitter: rec, Stdout: &stdout, Result: &pipe}, "research", 42)

	err := s.Execute(context.Background(), "Starting", func(ctx context.Context) (any, error) {
		_ = s.Run.Progress(ctx, "half", 1, 2)
		return map[string]any{"ok": true}, nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := eventTypes(rec.Events())
	want := []events.EventType{events.Started, events.Progress, events.Completed}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if strings.TrimSpace(pipe.String()) != `{"ok":true}` {
		t.Fatalf("pipe = %q", pipe.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if lines[len(lines)-1] != `{"ok":true}` {
		t.Fatalf("last stdout line = %q", lines[len(lines)-1])
	}
}

func TestSessionFailureEmitsErrorAndNoResult(t *testing.T) {
	rec := &events.Recorder{}
	var stdout bytes.Buffer
	s := NewSession(testLogger(t), SessionConfig{Emitter: rec, Stdout: &stdout}, "fact_check", 42)

	boom := errors.New("boom")
	err := s.Execute(context.Background(), "Starting", func(context.Context) (any, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	evs := rec.Events()
	if len(evs) != 2 || evs[1].EventType != events.Error || evs[1].Message != "boom" {
		t.Fatalf("events = %+v", evs)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout = %q, want empty", stdout.String())
	}
}

func TestExtractPage(t *testing.T) {
	doc := `<html><head><title> Best Grinders </title><style>.a{}</style></head>
<body><h1>Top <em>grinders</em></h1><script>var x = "not words";</script>
<p>one two three</p><h2>Burr vs blade</h2><h4>ignored heading level</h4></body></html>`
	title, headings, words := ExtractPage(strings.NewReader(doc))
	if title != "Best Grinders" {
		t.Fatalf("title = %q", title)
	}
	if fmt.Sprint(headings) != "[Top grinders Burr vs blade]" {
		t.Fatalf("headings = %q", headings)
	}
	// Top grinders + one two three + Burr vs blade + ignored heading level
	if words != 11 {
		t.Fatalf("words = %d, want 11", words)
	}
}

func TestScannerBoundsConcurrencyAndKeepsFailures(t *testing.T) {
	var (
		mu       sync.Mutex
		inflight int
		peak     int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			inflight--
			mu.Unlock()
		}()
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("<title>" + r.URL.Path + "</title><p>alpha beta</p>"))
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/missing", srv.URL + "/c", srv.URL + "/d", srv.URL + "/a", "ftp://nope"}
	rec := &events.Recorder{}
	run := events.NewRun(rec, 1, "competitor_scan")
	out, err := NewScanner(srv.Client(), 2).Scan(context.Background(), run, urls)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out.Pages) != 5 || out.Fetched != 4 {
		t.Fatalf("pages=%d fetched=%d", len(out.Pages), out.Fetched)
	}
	if out.Pages[2].Error == "" || out.Pages[0].Title != "/a" || out.Pages[0].WordCount != 2 {
		t.Fatalf("pages = %+v", out.Pages)
	}
	if peak > 2 {
		t.Fatalf("peak concurrency %d exceeds limit", peak)
	}
	if len(rec.Events()) != 5 {
		t.Fatalf("progress events = %d, want 5", len(rec.Events()))
	}
}

func TestScannerAllFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	_, err := NewScanner(srv.Client(), 0).Scan(context.Background(), events.NewRun(nil, 1, "competitor_scan"), []string{srv.URL})
	var pe *apperr.ExternalProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("want provider error, got %v", err)
	}
	var ve *apperr.ValidationError
	if _, err := NewScanner(nil, 0).Scan(context.Background(), events.NewRun(nil, 1, "x"), []string{"not a url"}); !errors.As(err, &ve) {
		t.Fatalf("want validation error, got %v", err)
	}
}

type claimProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *claimProvider) Name() string { return "fake" }

func (p *claimProvider) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	c := &llm.Completion{Provider: "fake", Model: "m1", InputTokens: 1, OutputTokens: 1, Cost: 0.01}
	switch {
	case strings.Contains(req.Prompt, "List up to"):
		c.Content = `{"claims":["Water boils at 90C at sea level","Espresso uses 9 bar","espresso uses 9 bar","Grinders cost money"]}`
	case strings.Contains(req.Prompt, "90C"):
		c.Content = `{"verdict":"incorrect","note":"100C at sea level","suggestion":"Water boils at 100C at sea level"}`
	case strings.Contains(req.Prompt, "9 bar"):
		c.Content = `{"verdict":"Supported"}`
	default:
		return nil, errors.New("provider down")
	}
	return c, nil
}

func TestFactCheckerCheck(t *testing.T) {
	p := &claimProvider{}
	rec := &events.Recorder{}
	out, err := NewFactChecker(p, testLogger(t)).Check(context.Background(), events.NewRun(rec, 5, "fact_check"), "espresso", "<p>article</p>")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if out.Claims != 3 || len(out.Checks) != 3 {
		t.Fatalf("claims = %d checks = %d", out.Claims, len(out.Checks))
	}
	if out.Checks[0].Verdict != VerdictIncorrect || out.Checks[1].Verdict != VerdictSupported || out.Checks[2].Verdict != VerdictUnverifiable {
		t.Fatalf("checks = %+v", out.Checks)
	}
	if len(out.Issues) != 1 || out.Issues[0].Suggestion == "" {
		t.Fatalf("issues = %+v", out.Issues)
	}
	// extract + two answered verifications
	if out.Cost < 0.0299 || out.Cost > 0.0301 {
		t.Fatalf("cost = %v", out.Cost)
	}
	if fmt.Sprint(out.Models) != "[fake/m1]" {
		t.Fatalf("models = %v", out.Models)
	}
	raw, _ := json.Marshal(out)
	if !strings.Contains(string(raw), `"issues":[`) {
		t.Fatalf("encoded = %s", raw)
	}
}

func TestInsertLinks(t *testing.T) {
	body := "<p>" + strings.Repeat("word ", 120) + "pick a burr grinder for espresso today.</p>"
	out, err := InsertLinks(context.Background(), events.NewRun(nil, 1, "link_insert"), LinkInput{
		Content:     body,
		Targets:     []linking.Target{{URL: "https://example.com/espresso-grinder", Keyword: "espresso grinder"}},
		Suggestions: []linking.Suggestion{{Anchor: "burr grinder for espresso", Topic: "espresso grinder", Relevance: 0.9}},
		Options:     linking.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("InsertLinks: %v", err)
	}
	if len(out.Placed) != 1 || out.Placed[0].Anchor != "burr grinder for espresso" {
		t.Fatalf("placed = %+v", out.Placed)
	}
	if !strings.Contains(out.Content, `<a href="https://example.com/espresso-grinder">burr grinder for espresso</a>`) {
		t.Fatalf("content = %s", out.Content)
	}
	if out.Candidates != 2 || len(out.Rejected) != 1 {
		t.Fatalf("candidates=%d rejected=%+v", out.Candidates, out.Rejected)
	}

	var ve *apperr.ValidationError
	if _, err := InsertLinks(context.Background(), events.NewRun(nil, 1, "link_insert"), LinkInput{}); !errors.As(err, &ve) {
		t.Fatalf("want validation error, got %v", err)
	}
}
