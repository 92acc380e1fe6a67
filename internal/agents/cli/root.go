// Package cli is the command line of the agent process. The parent passes
// inputs as flags; large bodies arrive as file paths.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/seoflow-backend/internal/agents"
	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:   "seoflow-agent",
	Short: "Runs one content pipeline agent and prints its JSON result",
	Long: `seoflow-agent runs a single agent for one article.

Progress events are published to Redis when REDIS_ADDR is set. Logs go to
stderr. The JSON result is written to the descriptor named by
SEOFLOW_RESULT_FD, when set, and printed as the last line of stdout.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command line with args from os.Args.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.Uint("article-id", 0, "article the progress events belong to")
	pf.String("log-mode", "development", "log mode: production, development or test")
	_ = viper.BindPFlag("article_id", pf.Lookup("article-id"))
	_ = viper.BindPFlag("log_mode", pf.Lookup("log-mode"))
}

func initConfig() {
	viper.SetEnvPrefix("SEOFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Shared with the server process, so the unprefixed names work too.
	_ = viper.BindEnv("redis_addr", "SEOFLOW_REDIS_ADDR", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "SEOFLOW_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis_db", "SEOFLOW_REDIS_DB", "REDIS_DB")
	_ = viper.BindEnv("log_mode", "SEOFLOW_LOG_MODE", "LOG_MODE")

	viper.SetDefault("result_fd", 0)
	viper.SetDefault("redis_db", 0)
}

/*
env is what every agent command needs:
	- a stderr logger
	- the event emitter (Redis, or nothing when unconfigured)
	- the result channel
close releases the Redis connection and the result descriptor.
*/
type env struct {
	log     *logger.Logger
	session *agents.Session
	closers []io.Closer
}

func openEnv(cmd *cobra.Command, agentType string) (*env, error) {
	log, err := logger.New(viper.GetString("log_mode"))
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if td := ctxutil.FromEnv(os.Getenv); td != nil {
		log = log.With(td.Fields()...)
	}
	e := &env{log: log}

	var emitter events.Emitter
	if addr := viper.GetString("redis_addr"); addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: viper.GetString("redis_password"),
			DB:       viper.GetInt("redis_db"),
		})
		e.closers = append(e.closers, rdb)
		emitter = events.NewRedisEmitter(rdb, log)
	} else {
		log.Debug("REDIS_ADDR not set, progress events are dropped")
	}

	var result io.Writer
	if fd := viper.GetInt("result_fd"); fd > 2 {
		f := os.NewFile(uintptr(fd), "result")
		if f != nil {
			e.closers = append(e.closers, f)
			result = f
		}
	}

	e.session = agents.NewSession(log, agents.SessionConfig{
		Emitter: emitter,
		Stdout:  cmd.OutOrStdout(),
		Result:  result,
	}, agentType, viper.GetUint("article_id"))
	return e, nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
	e.log.Sync()
}

func readFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}
