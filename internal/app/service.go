// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/gradebook/internal/adapters/idempotency"
	eventqueue "github.com/okian/gradebook/internal/adapters/mq/queue"
	workerpool "github.com/okian/gradebook/internal/adapters/mq/worker"
	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/okian/gradebook/internal/config"
	"github.com/okian/gradebook/internal/domain/dedupe"
	"github.com/okian/gradebook/internal/domain/scoring"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the gradebook.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	summarizer *scoring.GradeSummarizer
	workerPool *workerpool.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	dedupeTTL       time.Duration
	storeBackend    string
	databaseURL     string
	seedFile        string
	demoSeed        bool
	demoOpts        []repository.DemoOption
	idemBackend     string
	redisAddr       string
	scale           float64
	passRatio       float64
	ownsStore       bool
	ownsDeduper     bool
	injectedStore   repository.Store
	injectedDeduper dedupe.Deduper

	// Evaluations whose statistics event could not be queued.
	stale sync.Map

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of statistics workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the statistics queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the in-memory idempotency key set.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupeTTL bounds how long an idempotency key is remembered.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPostgres selects the gorm/postgres store.
func WithPostgres(dsn string) Option {
	return func(s *Service) {
		s.storeBackend = config.StorePostgres
		s.databaseURL = dsn
	}
}

// WithSeedFile loads a YAML dataset at start.
func WithSeedFile(path string) Option {
	return func(s *Service) {
		s.seedFile = path
	}
}

// WithDemoSeed fills an empty store with generated data at start.
func WithDemoSeed(enabled bool, opts ...repository.DemoOption) Option {
	return func(s *Service) {
		s.demoSeed = enabled
		s.demoOpts = opts
	}
}

// WithRedisIdempotency tracks idempotency keys in redis.
func WithRedisIdempotency(addr string) Option {
	return func(s *Service) {
		s.idemBackend = config.IdempotencyRedis
		s.redisAddr = addr
	}
}

// WithGrading sets the averaging scale and pass ratio.
func WithGrading(scale, passRatio float64) Option {
	return func(s *Service) {
		if scale > 0 {
			s.scale = scale
		}
		if passRatio >= 0 && passRatio <= 1 {
			s.passRatio = passRatio
		}
	}
}

// WithStore uses an already built store. The caller keeps ownership.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.injectedStore = store
	}
}

// WithDeduper uses an already built deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		s.injectedDeduper = d
	}
}

// WithConfig maps a loaded configuration onto options.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		opts := []Option{
			WithWorkerCount(cfg.WorkerCount),
			WithQueueSize(cfg.QueueSize),
			WithDedupeSize(cfg.IdempotencySize),
			WithDedupeTTL(cfg.IdempotencyTTL()),
			WithSeedFile(cfg.SeedFile),
			WithDemoSeed(cfg.DemoSeed),
			WithGrading(cfg.GradeScale, cfg.PassRatio),
		}
		if cfg.Store == config.StorePostgres {
			opts = append(opts, WithPostgres(cfg.DatabaseURL))
		}
		if cfg.IdempotencyBackend == config.IdempotencyRedis {
			opts = append(opts, WithRedisIdempotency(cfg.RedisAddr))
		}
		for _, opt := range opts {
			opt(s)
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		queueSize:    10_000,
		dedupeSize:   100_000,
		dedupeTTL:    24 * time.Hour,
		storeBackend: config.StoreMemory,
		idemBackend:  config.IdempotencyMemory,
		scale:        20,
		passRatio:    0.5,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.OrNop().Named("service")
	}

	s.logger.Info(ctx, "starting gradebook service...")

	store, err := s.openStore(ctx)
	if err != nil {
		return err
	}
	if err := s.seed(ctx, store); err != nil {
		s.closeStore(store)
		return err
	}

	deduper, err := s.openDeduper(ctx)
	if err != nil {
		s.closeStore(store)
		return err
	}

	s.store = store
	s.deduper = deduper
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.summarizer = scoring.NewSummarizer(
		scoring.WithScale(s.scale),
		scoring.WithPassRatio(s.passRatio),
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.store, s.summarizer,
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "gradebook service started",
		logger.String("store", s.storeBackend),
		logger.String("idempotency", s.idemBackend),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("evaluations", s.store.Count(ctx)),
	)

	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	if s.injectedStore != nil {
		s.ownsStore = false
		return s.injectedStore, nil
	}
	s.ownsStore = true
	if s.storeBackend == config.StorePostgres {
		store, err := repository.NewGormStore(ctx, s.databaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		s.logger.Info(ctx, "using postgres store")
		return store, nil
	}
	s.logger.Info(ctx, "using in-memory store")
	return repository.NewMemStore(), nil
}

func (s *Service) seed(ctx context.Context, store repository.Store) error {
	if s.seedFile != "" {
		ds, err := repository.LoadSeed(ctx, s.seedFile)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		if err := store.Load(ctx, ds); err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		s.logger.Info(ctx, "seed file loaded",
			logger.String("path", s.seedFile),
			logger.Int("evaluations", len(ds.Evaluations)),
		)
		return nil
	}
	if s.demoSeed && store.Count(ctx) == 0 {
		ds := repository.GenerateDemo(s.demoOpts...)
		if err := store.Load(ctx, ds); err != nil {
			return fmt.Errorf("load demo data: %w", err)
		}
		s.logger.Info(ctx, "demo data generated",
			logger.Int("evaluations", len(ds.Evaluations)),
			logger.Int("students", len(ds.Students)),
		)
	}
	return nil
}

func (s *Service) openDeduper(ctx context.Context) (dedupe.Deduper, error) {
	if s.injectedDeduper != nil {
		s.ownsDeduper = false
		return s.injectedDeduper, nil
	}
	s.ownsDeduper = true
	if s.idemBackend == config.IdempotencyRedis {
		d, err := idempotency.NewRedisDeduper(ctx, s.redisAddr, idempotency.WithTTL(s.dedupeTTL))
		if err != nil {
			return nil, fmt.Errorf("open redis deduper: %w", err)
		}
		return d, nil
	}
	return dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithTTL(s.dedupeTTL),
	), nil
}

func (s *Service) closeStore(store repository.Store) {
	if !s.ownsStore {
		return
	}
	if err := store.Close(); err != nil {
		s.logger.Warn(context.Background(), "close store failed", logger.Error(err))
	}
}

// Stop drains pending statistics work and releases the store and deduper.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping gradebook service...")

	// Closing the queue lets workers drain what is left.
	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}

	if closer, ok := s.deduper.(interface{ Close() error }); ok && s.ownsDeduper {
		if err := closer.Close(); err != nil {
			s.logger.Warn(ctx, "close deduper failed", logger.Error(err))
		}
	}
	s.closeStore(s.store)

	s.started = false
	s.logger.Info(ctx, "gradebook service stopped")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":            s.started,
		"store":              s.storeBackend,
		"idempotencyBackend": s.idemBackend,
		"workerCount":        s.workerCount,
		"queueSize":          s.queueSize,
		"dedupeSize":         s.dedupeSize,
	}
	if s.injectedStore != nil {
		stats["store"] = "external"
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.eventQueue.Len(ctx)
		evaluations := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["evaluations"] = evaluations
		stats["idempotencyKeys"] = s.deduper.Size()
		stats["recomputed"] = s.workerPool.Processed()

		// Update metrics
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateEvaluationsTracked(evaluations)
		metrics.UpdateWorkerCount(s.workerPool.Size())
	}

	return stats
}
