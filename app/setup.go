package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/sahilchouksey/ktu-notes-scraper/api"
	"github.com/sahilchouksey/ktu-notes-scraper/config"
	"github.com/sahilchouksey/ktu-notes-scraper/database"
	"github.com/sahilchouksey/ktu-notes-scraper/handlers"
	"github.com/sahilchouksey/ktu-notes-scraper/model"
	"github.com/sahilchouksey/ktu-notes-scraper/router"
	"github.com/sahilchouksey/ktu-notes-scraper/services"
	"github.com/sahilchouksey/ktu-notes-scraper/services/crawler"
	"github.com/sahilchouksey/ktu-notes-scraper/services/cron"
	"github.com/sahilchouksey/ktu-notes-scraper/services/fetcher"
	"github.com/sahilchouksey/ktu-notes-scraper/services/notify"
	"github.com/sahilchouksey/ktu-notes-scraper/services/storage"
	"github.com/sahilchouksey/ktu-notes-scraper/utils"
	"github.com/sahilchouksey/ktu-notes-scraper/utils/cache"
)

// lockGrace is added to RUN_TIMEOUT for the run lock TTL
const lockGrace = 5 * time.Minute

// Options are the command-line overrides
type Options struct {
	DryRun      bool
	SourcesFile string
	Schedule    string
}

// App holds the wired components of one process
type App struct {
	env      *config.EnviornmentVariable
	sources  []model.Source
	dryRun   bool
	records  database.RecordStore
	content  storage.ContentStore
	registry *crawler.Registry
	notifier notify.Notifier
	locker   cache.Locker
	pipeline *services.IngestionPipeline

	closers []io.Closer
}

// Setup loads configuration and wires every component. Only configuration
// errors and unreachable configured stores are returned.
func Setup(ctx context.Context, opts Options) (*App, error) {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return nil, err
	}

	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}
	if opts.SourcesFile != "" {
		getEnv.SOURCES_FILE = opts.SourcesFile
	}
	if opts.Schedule != "" {
		getEnv.SCHEDULE = opts.Schedule
	}

	logCloser, err := utils.SetupLogger(getEnv.LOG_LEVEL, getEnv.LOG_FILE)
	if err != nil {
		return nil, err
	}

	a := &App{env: getEnv, closers: []io.Closer{logCloser}}

	a.sources, err = config.LoadSources(getEnv.SOURCES_FILE)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.dryRun = opts.DryRun
	if reason := getEnv.DryRunReason(); reason != "" && !a.dryRun {
		log.Warnw("credentials missing, running in dry-run mode", "reason", reason)
		a.dryRun = true
	}

	if err := a.setupStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.setupLocker()
	a.setupNotifier()

	f := fetcher.New(fetcher.Config{Interval: getEnv.REQUEST_DELAY}, nil)
	a.registry = crawler.NewDefaultRegistry(f, crawler.CrawlerConfig{
		MaxPagesPerBucket: getEnv.MAX_PAGES_PER_BUCKET,
		DenyHosts:         getEnv.DENY_HOSTS,
	})

	dedup := services.NewDeduplicator(a.records, a.content)
	uploader := services.NewUploader(f, a.content, dedup)
	if a.dryRun {
		uploader = services.NewDryRunUploader(a.content, dedup)
	}
	a.pipeline = services.NewIngestionPipeline(a.registry, a.records, dedup, uploader, a.notifier)

	return a, nil
}

func (a *App) setupStores(ctx context.Context) error {
	if a.dryRun {
		log.Info("[DRY-RUN] No data will be written")
		a.records = database.NewDryRunStore()
		a.content = storage.NewDryRunStore(a.env.PublicBaseURL())
		return nil
	}

	switch a.env.RECORD_STORE {
	case config.RecordStoreSQLite:
		store, err := database.StartSQLite(ctx, a.env.SQLITE_PATH)
		if err != nil {
			return err
		}
		a.records = store
	default:
		store, err := database.StartGORM(a.env.PostgresDSN(), a.env.GO_ENV)
		if err != nil {
			print("Check whether the Postgres is running or not\n")
			return err
		}
		if err := store.Init(); err != nil {
			store.Close()
			return err
		}
		a.records = store
	}
	a.closers = append(a.closers, a.records)

	switch a.env.CONTENT_STORE {
	case config.ContentStoreGCS:
		store, err := storage.NewGCSStore(ctx, a.env.GCS_BUCKET, a.env.GCS_PUBLIC_BASE_URL)
		if err != nil {
			return err
		}
		a.content = store
		a.closers = append(a.closers, store)
	default:
		store, err := storage.NewSpacesStore(storage.SpacesConfig{
			AccessKey: a.env.DO_SPACES_ACCESS_KEY,
			SecretKey: a.env.DO_SPACES_SECRET_KEY,
			Bucket:    a.env.DO_SPACES_BUCKET,
			Region:    a.env.DO_SPACES_REGION,
			Endpoint:  a.env.DO_SPACES_ENDPOINT,
			CDNURL:    a.env.DO_SPACES_CDN_ENDPOINT,
		})
		if err != nil {
			return err
		}
		a.content = store
	}
	return nil
}

func (a *App) setupLocker() {
	a.locker = cache.NewLocalLocker()
	if a.env.REDIS_URL == "" {
		return
	}

	redisCache, err := cache.NewRedisCache(a.env.REDIS_URL)
	if err != nil {
		log.Warnw("failed to connect to Redis, using an in-process run lock", "error", err)
		return
	}
	a.locker = redisCache
	a.closers = append(a.closers, redisCache)
}

func (a *App) setupNotifier() {
	a.notifier = notify.NopNotifier{}
	if a.env.NATS_URL == "" {
		return
	}

	n, err := notify.NewNATSNotifier(a.env.NATS_URL, a.env.NATS_SUBJECT)
	if err != nil {
		log.Warnw("failed to connect to NATS, events disabled", "error", err)
		return
	}
	a.notifier = n
	a.closers = append(a.closers, n)
}

// RunOnce performs one scrape under the run lock and the run deadline.
// A run already in progress elsewhere is not an error.
func (a *App) RunOnce(ctx context.Context) (services.RunSummary, error) {
	release, err := a.locker.Acquire(ctx, cache.DefaultRunLockKey, a.env.RUN_TIMEOUT+lockGrace)
	if errors.Is(err, cache.ErrLocked) {
		log.Warn("another scraping run is in progress, skipping")
		return services.RunSummary{}, nil
	}
	if err != nil {
		return services.RunSummary{}, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer release()

	if a.env.RUN_TIMEOUT > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.env.RUN_TIMEOUT)
		defer cancel()
	}

	log.Infow("starting scraper", "sources", len(a.sources), "dry_run", a.dryRun)
	return a.pipeline.Run(ctx, a.sources), nil
}

// Serve runs the scheduler and the status server until ctx is cancelled
func (a *App) Serve(ctx context.Context) error {
	cronManager := cron.NewCronManager(a.env.SCHEDULE, func(ctx context.Context) error {
		_, err := a.RunOnce(ctx)
		return err
	})

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", a.env.PORT))
	engine := server.GetEngine()

	// Attach Middleware
	engine.Use(logger.New())
	engine.Use(recover.New())

	status := handlers.NewStatusHandler(a.records, a.registry, a.sources, a.dryRun, cronManager.Next)
	router.SetupRoutes(engine, status)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := cronManager.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		cronManager.Stop()
		return nil
	})

	g.Go(func() error {
		return server.Run(gctx)
	})

	return g.Wait()
}

// Close releases every connection the app opened, newest first
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warnw("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
