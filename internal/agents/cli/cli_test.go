package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLinkInsertCommandPrintsResult(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SEOFLOW_REDIS_ADDR", "")
	dir := t.TempDir()
	article := filepath.Join(dir, "article.txt")
	targets := filepath.Join(dir, "targets.txt")
	body := "<p>" + strings.Repeat("word ", 130) + "a good milk frother matters.</p>"
	if err := os.WriteFile(article, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(targets, []byte(`[{"url":"https://example.com/frothers","keyword":"milk frother"}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"link_insert", "--log-mode=test", "--article=" + article, "--targets=" + targets})
	if err := Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	var res struct {
		Content string `json:"content"`
		Placed  []struct {
			Anchor string `json:"anchor"`
		} `json:"placed"`
	}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &res); err != nil {
		t.Fatalf("last line is not the result: %v\n%s", err, out.String())
	}
	if len(res.Placed) != 1 || res.Placed[0].Anchor != "milk frother" {
		t.Fatalf("placed = %+v", res.Placed)
	}
	if !strings.Contains(res.Content, `<a href="https://example.com/frothers">milk frother</a>`) {
		t.Fatalf("content = %s", res.Content)
	}
}
