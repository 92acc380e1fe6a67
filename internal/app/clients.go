package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/seoflow-backend/internal/agentbridge"
	"github.com/yungbote/seoflow-backend/internal/platform/llm"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/publisher"
	"github.com/yungbote/seoflow-backend/internal/publisher/analytics"
	"github.com/yungbote/seoflow-backend/internal/publisher/indexing"
	"github.com/yungbote/seoflow-backend/internal/temporalx"
)

// Clients holds the connections to everything outside the process. Optional
// collaborators stay nil interfaces when they are not configured.
type Clients struct {
	Redis     *goredis.Client
	Temporal  temporalsdkclient.Client
	LLM       llm.Provider
	Agents    agentbridge.AgentRunner
	Publisher publisher.Publisher
	Indexer   indexing.Indexer
	Analytics analytics.Source
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Redis
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		c.Redis = rdb
	} else {
		log.Warn("REDIS_ADDR not set; agent events are stored in-process and subprocess progress is dropped")
	}

	// LLM
	provider, err := llm.FromEnv(log)
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init llm provider: %w", err)
	}
	c.LLM = provider

	// Agent subprocesses
	agentCfg, err := agentbridge.ConfigFromEnv()
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init agent bridge: %w", err)
	}
	c.Agents = agentbridge.NewRunner(log, agentCfg)

	// Publishing
	c.Publisher = publisher.NewWebhook(log, publisher.WebhookConfigFromEnv())
	if icfg := indexing.ConfigFromEnv(); icfg.Key != "" {
		c.Indexer = indexing.NewIndexNow(log, icfg)
	} else {
		log.Info("INDEXNOW_KEY not set; index pings are skipped")
	}
	if acfg := analytics.HTTPConfigFromEnv(); acfg.Endpoint != "" {
		src, err := analytics.NewHTTPSource(log, acfg)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init analytics source: %w", err)
		}
		c.Analytics = src
	}

	// Temporal
	switch cfg.JobDispatch {
	case DispatchQueue:
		log.Info("JOB_DISPATCH=queue; Temporal disabled")
	case DispatchTemporal, "":
		tc, err := temporalx.NewClient(log)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		if tc == nil && cfg.JobDispatch == DispatchTemporal {
			c.Close()
			return Clients{}, fmt.Errorf("JOB_DISPATCH=temporal requires TEMPORAL_ADDRESS")
		}
		c.Temporal = tc
	default:
		c.Close()
		return Clients{}, fmt.Errorf("unknown JOB_DISPATCH %q", cfg.JobDispatch)
	}

	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
