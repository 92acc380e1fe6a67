package app

import (
	"strings"
	"time"

	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
)

/*
Config selects which roles this process plays. One binary serves every role;
deployments split them by turning roles off.
  - RunWorker: the job worker pool, or the Temporal worker when jobs dispatch to Temporal.
  - RunScheduler: the cron sweeps. Run it in one process only.
  - RunDrainer: the agent event drainer. Only used with Redis.
*/
const (
	DispatchQueue    = "queue"
	DispatchTemporal = "temporal"
)

type Config struct {
	LogMode       string
	Port          string
	ServiceName   string
	CORSOrigins   string
	ShutdownGrace time.Duration
	EventBuffer   int

	RunWorker    bool
	RunScheduler bool
	RunDrainer   bool

	// JobDispatch is queue, temporal, or empty for Temporal whenever
	// TEMPORAL_ADDRESS is set.
	JobDispatch string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func LoadConfig() Config {
	return Config{
		LogMode:       envutil.String("LOG_MODE", "development"),
		Port:          envutil.String("PORT", "8080"),
		ServiceName:   envutil.String("OTEL_SERVICE_NAME", "seoflow"),
		CORSOrigins:   envutil.String("CORS_ALLOWED_ORIGINS", ""),
		ShutdownGrace: envutil.Seconds("SHUTDOWN_GRACE_SECONDS", 15*time.Second),
		EventBuffer:   envutil.Int("EVENT_BUFFER_SIZE", 256),

		RunWorker:    envutil.Bool("RUN_WORKER", true),
		RunScheduler: envutil.Bool("RUN_SCHEDULER", true),
		RunDrainer:   envutil.Bool("RUN_DRAINER", true),

		JobDispatch: strings.ToLower(envutil.String("JOB_DISPATCH", "")),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
	}
}
