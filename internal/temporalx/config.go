package temporalx

import (
	"strings"

	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
)

// Config selects the Temporal cluster. An empty Address disables Temporal and
// jobs run on the database queue worker instead.
type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	// WorkerConcurrency bounds concurrent activities and workflow tasks.
	WorkerConcurrency int

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string
}

func LoadConfig() Config {
	cfg := Config{
		Address:           strings.TrimSpace(envutil.String("TEMPORAL_ADDRESS", "")),
		Namespace:         envutil.String("TEMPORAL_NAMESPACE", "seoflow"),
		TaskQueue:         envutil.String("TEMPORAL_TASK_QUEUE", "seoflow-jobs"),
		WorkerConcurrency: envutil.Int("WORKER_CONCURRENCY", 4),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	return cfg
}

func (c Config) Enabled() bool { return c.Address != "" }

// TLS reports whether a client certificate pair is configured.
func (c Config) TLS() bool { return c.ClientCertPath != "" && c.ClientKeyPath != "" }
