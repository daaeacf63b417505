package agent

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/mohitkumar/automate/analytics"
	"github.com/mohitkumar/automate/cache"
	"github.com/mohitkumar/automate/config"
	"github.com/mohitkumar/automate/engine"
	"github.com/mohitkumar/automate/logger"
	"github.com/mohitkumar/automate/metadata"
	"github.com/mohitkumar/automate/persistence"
	"github.com/mohitkumar/automate/persistence/memory"
	"github.com/mohitkumar/automate/persistence/redis"
	"github.com/mohitkumar/automate/persistence/sqlite"
	"github.com/mohitkumar/automate/rest"
	"github.com/mohitkumar/automate/runner/core"
	"github.com/mohitkumar/automate/runner/fetch"
	"github.com/mohitkumar/automate/runner/script"
	"go.uber.org/zap"
)

type Agent struct {
	Config       config.Config
	registry     *metadata.Registry
	storage      persistence.Storage
	states       *cache.RunStateCache
	metrics      *analytics.PrometheusDataCollector
	recorder     *analytics.Recorder
	engine       *engine.Engine
	httpServer   *rest.Server
	shutdown     bool
	shutdowns    chan struct{}
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupLogger,
		a.setupStorage,
		a.setupAnalytics,
		a.setupRegistry,
		a.setupEngine,
		a.setupCatalog,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupLogger() error {
	return logger.Init(a.Config.LogLevel, a.Config.Development)
}

func (a *Agent) setupStorage() error {
	var err error
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.storage, err = redis.NewRedisFlowStorage(redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
			PoolSize:  a.Config.RedisConfig.PoolSize,
			Password:  a.Config.RedisConfig.Password,
		})
	case config.STORAGE_TYPE_SQLITE:
		a.storage, err = sqlite.NewSqliteStorage(a.Config.SqliteConfig.Path)
	default:
		a.storage = memory.NewMemoryStorage()
	}
	if err != nil {
		return err
	}
	logger.Info("storage ready", zap.String("type", string(a.Config.StorageType)))
	return nil
}

func (a *Agent) setupAnalytics() error {
	a.states = cache.NewRunStateCache(a.Config.RunStateTTL)
	a.metrics = analytics.NewPrometheusDataCollector(nil)
	collectors := []analytics.WorkflowDataCollector{a.metrics}
	if a.Config.AnalyticsConfig.CollectorType == analytics.LOG_FILE_DATA_COLLECTOR {
		c, err := analytics.NewDataCollector(a.Config.AnalyticsConfig)
		if err != nil {
			return err
		}
		collectors = append(collectors, c)
	}
	a.recorder = analytics.NewRecorder(a.Config.AnalyticsConfig.QueueSize, collectors...)
	a.recorder.Start()
	return nil
}

func (a *Agent) setupRegistry() error {
	a.registry = metadata.NewRegistry()
	client := &http.Client{Timeout: a.Config.FetchTimeout}
	a.registry.RegisterRunner(fetch.NewRunner(client))
	return a.registry.RegisterService(script.NewService(script.NewRunner()))
}

func (a *Agent) setupEngine() error {
	a.engine = engine.New(a.registry, a.storage,
		engine.WithObserver(a.states),
		engine.WithObserver(a.recorder),
	)
	// the core methods publish through the engine, so they are registered once it exists
	if err := a.registry.RegisterService(core.NewService(core.NewRunner(a.engine))); err != nil {
		return err
	}
	return nil
}

func (a *Agent) setupCatalog() error {
	if len(a.Config.CatalogPath) != 0 {
		if err := metadata.LoadCatalog(a.Config.CatalogPath, a.registry); err != nil {
			return fmt.Errorf("loading catalog %s: %w", a.Config.CatalogPath, err)
		}
	}
	return a.engine.Initialize()
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.engine, a.states, a.metrics.Registry())
	return err
}

func (a *Agent) Engine() *engine.Engine {
	return a.engine
}

func (a *Agent) Start() error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			go a.Shutdown()
		}
	}()
	return a.engine.Start()
}

// Done is closed once Shutdown has begun.
func (a *Agent) Done() <-chan struct{} {
	return a.shutdowns
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		a.engine.Stop,
		a.recorder.Stop,
		a.storage.Close,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	_ = logger.Sync()
	return nil
}
