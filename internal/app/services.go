package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/seoflow-backend/internal/agents"
	"github.com/yungbote/seoflow-backend/internal/data/repos"
	"github.com/yungbote/seoflow-backend/internal/events"
	"github.com/yungbote/seoflow-backend/internal/generation"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/analytics_sync"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/article_fact_check"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/article_generate"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/article_index"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/article_link_insert"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/article_publish"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/content_plan_build"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/keyword_clustering"
	"github.com/yungbote/seoflow-backend/internal/jobs/pipeline/keyword_discovery"
	jobrt "github.com/yungbote/seoflow-backend/internal/jobs/runtime"
	"github.com/yungbote/seoflow-backend/internal/jobs/worker"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
	"github.com/yungbote/seoflow-backend/internal/realtime"
	"github.com/yungbote/seoflow-backend/internal/realtime/bus"
	"github.com/yungbote/seoflow-backend/internal/scheduler"
	"github.com/yungbote/seoflow-backend/internal/seo/discovery"
	"github.com/yungbote/seoflow-backend/internal/seo/schedule"
	"github.com/yungbote/seoflow-backend/internal/temporalx"
	"github.com/yungbote/seoflow-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Bus     bus.Bus
	Emitter *events.BufferedEmitter
	Drainer *events.Drainer

	Registry  *jobrt.Registry
	Enqueuer  *jobrt.QueueEnqueuer
	Executor  *jobrt.Executor
	JobWorker *worker.Worker
	Temporal  *temporalworker.Runner
	Scheduler *scheduler.Scheduler
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, set *repos.Set, clients Clients, hub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")
	var s Services

	// Agent events
	var sink events.Emitter
	if clients.Redis != nil {
		b, err := bus.NewRedisBus(log, clients.Redis)
		if err != nil {
			return Services{}, fmt.Errorf("init sse bus: %w", err)
		}
		s.Bus = b
		sink = events.NewRedisEmitter(clients.Redis, log)
		if cfg.RunDrainer {
			s.Drainer = events.NewDrainer(log, events.NewRedisQueue(clients.Redis), set.AgentEvents, s.Bus, events.DrainerConfigFromEnv())
		}
	} else {
		s.Bus = bus.Local{Hub: hub}
		sink = events.NewDirect(set.AgentEvents, s.Bus)
	}
	s.Emitter = events.NewBufferedEmitter(sink, cfg.EventBuffer, log)

	// Jobs
	s.Registry = jobrt.NewRegistry()
	s.Enqueuer = jobrt.NewEnqueuer(log, set.JobRuns, s.Registry)
	s.Executor = jobrt.NewExecutor(log, set.JobRuns, s.Registry, s.Enqueuer)

	writer := generation.NewWriter(clients.LLM, log)
	generator := generation.NewGenerator(log, set, writer, clients.Agents, s.Emitter)
	pipelines := []jobrt.Handler{
		keyword_discovery.New(log, set, discovery.NewDiscoverer(clients.LLM, log)),
		keyword_clustering.New(db, log, set),
		content_plan_build.New(log, schedule.NewPlanner(db, log, set)),
		article_generate.New(log, generator),
		article_fact_check.New(log, set, clients.Agents, agents.NewFactChecker(clients.LLM, log), s.Emitter),
		article_link_insert.New(log, set, clients.Agents, s.Emitter),
		article_publish.New(log, set, clients.Publisher),
		article_index.New(log, set, clients.Indexer),
		analytics_sync.New(log, set, clients.Analytics),
	}
	for _, p := range pipelines {
		if err := s.Registry.Register(p); err != nil {
			return Services{}, fmt.Errorf("register %s: %w", p.Type(), err)
		}
	}

	if cfg.RunWorker {
		s.JobWorker = worker.NewWorker(log, set.JobRuns, s.Executor, worker.ConfigFromEnv())
	}
	if clients.Temporal != nil {
		s.Enqueuer.SetDispatcher(temporalx.NewDispatcher(clients.Temporal, temporalx.LoadConfig()))
		if cfg.RunWorker {
			runner, err := temporalworker.NewRunner(log, clients.Temporal, set.JobRuns, s.Executor)
			if err != nil {
				return Services{}, fmt.Errorf("init temporal worker: %w", err)
			}
			s.Temporal = runner
		}
	}
	if cfg.RunScheduler {
		s.Scheduler = scheduler.New(log, set, s.Enqueuer, scheduler.ConfigFromEnv())
	}
	return s, nil
}
