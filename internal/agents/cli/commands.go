package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/seoflow-backend/internal/agentbridge"
	"github.com/yungbote/seoflow-backend/internal/agents"
	"github.com/yungbote/seoflow-backend/internal/generation"
	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
	"github.com/yungbote/seoflow-backend/internal/platform/llm"
	"github.com/yungbote/seoflow-backend/internal/seo/linking"
)

var (
	researchCmd = &cobra.Command{
		Use:   agentbridge.AgentResearch,
		Short: "Write a research brief for a keyword",
		Args:  cobra.NoArgs,
		RunE:  runResearch,
	}
	competitorCmd = &cobra.Command{
		Use:   agentbridge.AgentCompetitorScan,
		Short: "Fetch competitor pages and summarise their structure",
		Args:  cobra.NoArgs,
		RunE:  runCompetitorScan,
	}
	factCheckCmd = &cobra.Command{
		Use:   agentbridge.AgentFactCheck,
		Short: "Verify the factual claims of an article",
		Args:  cobra.NoArgs,
		RunE:  runFactCheck,
	}
	linkInsertCmd = &cobra.Command{
		Use:   agentbridge.AgentLinkInsert,
		Short: "Place internal links into an article",
		Args:  cobra.NoArgs,
		RunE:  runLinkInsert,
	}
)

var (
	keyword        string
	niche          string
	language       string
	competitorFile string
	urlsJSON       string
	concurrency    int
	articleFile    string
	targetsFile    string
	suggestFile    string
	optionsJSON    string
)

func init() {
	researchCmd.Flags().StringVar(&keyword, "keyword", "", "target keyword")
	researchCmd.Flags().StringVar(&niche, "niche", "", "site niche")
	researchCmd.Flags().StringVar(&language, "language", "en", "article language code")
	researchCmd.Flags().StringVar(&competitorFile, "competitors", "", "path to a competitor digest")

	competitorCmd.Flags().StringVar(&urlsJSON, "urls", "[]", "JSON array of page urls")
	competitorCmd.Flags().IntVar(&concurrency, "concurrency", agents.DefaultScanConcurrency, "pages fetched at once")

	factCheckCmd.Flags().StringVar(&keyword, "keyword", "", "article keyword")
	factCheckCmd.Flags().StringVar(&articleFile, "article", "", "path to the article HTML")

	linkInsertCmd.Flags().StringVar(&articleFile, "article", "", "path to the article HTML")
	linkInsertCmd.Flags().StringVar(&targetsFile, "targets", "", "path to a JSON array of link targets")
	linkInsertCmd.Flags().StringVar(&suggestFile, "suggestions", "", "path to a JSON array of anchor suggestions")
	linkInsertCmd.Flags().StringVar(&optionsJSON, "options", "", "JSON placement options")

	rootCmd.AddCommand(researchCmd, competitorCmd, factCheckCmd, linkInsertCmd)
}

func runResearch(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd, agentbridge.AgentResearch)
	if err != nil {
		return err
	}
	defer e.close()
	return e.session.Execute(cmd.Context(), fmt.Sprintf("Researching %q", keyword), func(ctx context.Context) (any, error) {
		competitors, err := readFile(competitorFile)
		if err != nil {
			return nil, apperr.Validation("competitors", err.Error())
		}
		provider, err := llm.FromEnv(e.log)
		if err != nil {
			return nil, err
		}
		return agents.Research(ctx, generation.NewWriter(provider, e.log), e.session.Run, agents.ResearchInput{
			Keyword:     keyword,
			Niche:       niche,
			Language:    language,
			Competitors: competitors,
		})
	})
}

func runCompetitorScan(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd, agentbridge.AgentCompetitorScan)
	if err != nil {
		return err
	}
	defer e.close()
	return e.session.Execute(cmd.Context(), "Scanning competitor pages", func(ctx context.Context) (any, error) {
		var urls []string
		if err := json.Unmarshal([]byte(urlsJSON), &urls); err != nil {
			return nil, apperr.Validation("urls", err.Error())
		}
		scanner := agents.NewScanner(&http.Client{Timeout: 20 * time.Second}, concurrency)
		return scanner.Scan(ctx, e.session.Run, urls)
	})
}

func runFactCheck(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd, agentbridge.AgentFactCheck)
	if err != nil {
		return err
	}
	defer e.close()
	return e.session.Execute(cmd.Context(), "Fact checking article", func(ctx context.Context) (any, error) {
		content, err := readFile(articleFile)
		if err != nil {
			return nil, apperr.Validation("article", err.Error())
		}
		provider, err := llm.FromEnv(e.log)
		if err != nil {
			return nil, err
		}
		return agents.NewFactChecker(provider, e.log).Check(ctx, e.session.Run, keyword, content)
	})
}

func runLinkInsert(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd, agentbridge.AgentLinkInsert)
	if err != nil {
		return err
	}
	defer e.close()
	return e.session.Execute(cmd.Context(), "Placing internal links", func(ctx context.Context) (any, error) {
		in := agents.LinkInput{Options: linking.DefaultOptions()}
		var err error
		if in.Content, err = readFile(articleFile); err != nil {
			return nil, apperr.Validation("article", err.Error())
		}
		if err := readJSONFile(targetsFile, &in.Targets); err != nil {
			return nil, apperr.Validation("targets", err.Error())
		}
		if err := readJSONFile(suggestFile, &in.Suggestions); err != nil {
			return nil, apperr.Validation("suggestions", err.Error())
		}
		if optionsJSON != "" {
			if err := json.Unmarshal([]byte(optionsJSON), &in.Options); err != nil {
				return nil, apperr.Validation("options", err.Error())
			}
		}
		return agents.InsertLinks(ctx, e.session.Run, in)
	})
}

func readJSONFile(path string, out any) error {
	raw, err := readFile(path)
	if err != nil || raw == "" {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}
