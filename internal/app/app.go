package app

import (
	"context"
	"errors"
	"fmt"
	"learner_insight/internal/config"
	"learner_insight/internal/controller"
	"learner_insight/internal/insight"
	"learner_insight/internal/middleware"
	"learner_insight/internal/model"
	"learner_insight/internal/repository"
	"learner_insight/internal/service"
	"learner_insight/pkg/configwatcher"
	"learner_insight/pkg/database"
	"learner_insight/pkg/logger"
	"learner_insight/pkg/monitoring"
	"learner_insight/pkg/security"
	"learner_insight/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
	Tuning *insight.TuningStore

	ctx             context.Context
	cancel          context.CancelFunc
	shutdownTracer  tracing.ShutdownFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	profile    *repository.ProfileRepository
	activity   *repository.ActivityRepository
	content    *repository.ContentRepository
	analytics  *repository.AnalyticsRepository
	session    *repository.SessionRepository
	experience *repository.ExperienceRepository
}

type services struct {
	resolver        *service.ProfileResolver
	personalization *service.PersonalizationService
	activity        *service.ActivityService
	aggregator      *service.AnalyticsAggregator
	experience      *service.ExperienceService
	catalog         *service.CatalogService
}

type controllers struct {
	personalization *controller.PersonalizationController
	analytics       *controller.AnalyticsController
	activity        *controller.ActivityController
	experience      *controller.ExperienceController
	catalog         *controller.CatalogController
	health          *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) onConfigReload(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(cfg *config.Config) *repositories {
	return &repositories{
		profile:    repository.NewProfileRepository(a.DB, a.Redis, cfg.Personalization.ProfileCacheTTL, cfg.Personalization.HistoryLimit),
		activity:   repository.NewActivityRepository(a.DB),
		content:    repository.NewContentRepository(a.DB),
		analytics:  repository.NewAnalyticsRepository(a.DB, cfg.Analytics.ClassTrendGranularity, cfg.Analytics.ExperienceGranularity),
		session:    repository.NewSessionRepository(a.DB),
		experience: repository.NewExperienceRepository(a.DB),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	log := logger.Log
	guard := insight.NewGuard(
		cfg.Personalization.InvariantMode == config.InvariantModeStrict,
		log.Named("insight"),
		monitoring.InvariantViolations,
	)

	s := &services{}
	s.resolver = service.NewProfileResolver(repos.profile, log.Named("profile"), monitoring.ProfileResolutions)
	s.personalization = service.NewPersonalizationService(s.resolver, repos.content, a.Tuning, guard, log.Named("personalization"))
	s.activity = service.NewActivityService(repos.activity, s.resolver, repos.profile, a.Tuning, log.Named("activity"))

	summary := service.NewCachedSummarySource(repos.analytics, a.Redis, cfg.Analytics.SummaryCacheTTL, log.Named("analytics"))
	s.aggregator = service.NewAnalyticsAggregator(
		service.AnalyticsSources{
			Summary:     summary,
			Timeline:    repos.analytics,
			Classes:     repos.analytics,
			Experiences: repos.analytics,
			Activity:    repos.analytics,
		},
		service.AggregatorOptions{
			SourceTimeout:    cfg.Analytics.SourceTimeout,
			FailureThreshold: cfg.Analytics.BreakerFailures,
			BreakerOpenFor:   cfg.Analytics.BreakerOpenFor,
			MaxRange:         cfg.Analytics.MaxRange(),
			SourceFloors: []model.Granularity{
				cfg.Analytics.ClassTrendGranularity,
				cfg.Analytics.ExperienceGranularity,
			},
		},
		service.AggregatorMetrics{
			Failures: monitoring.AnalyticsSourceFailures,
			Duration: monitoring.AnalyticsSourceDuration,
		},
		guard,
		log.Named("analytics"),
	)

	s.experience = service.NewExperienceService(repos.session)
	s.catalog = service.NewCatalogService(repos.content, repos.experience)
	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		personalization: controller.NewPersonalizationController(s.personalization),
		analytics:       controller.NewAnalyticsController(s.aggregator),
		activity:        controller.NewActivityController(s.activity),
		experience:      controller.NewExperienceController(s.experience),
		catalog:         controller.NewCatalogController(s.catalog),
		health:          controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger.Log.Named("http")))
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(a.ctx, cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// openStores connects the database and, when enabled, redis. A redis outage
// only disables caching.
func openStores(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}

	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode || cfg.Database.Driver == config.DBDriverSQLite {
		if err := database.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	if cfg.Database.Seed {
		if err := database.Seed(db); err != nil {
			return nil, nil, fmt.Errorf("seed database: %w", err)
		}
	}

	if !cfg.Redis.Enabled {
		return db, nil, nil
	}
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, caching disabled", zap.Error(err))
		return db, nil, nil
	}
	return db, rdb, nil
}

// Migrate runs migrations (and the seed when configured) and returns.
func Migrate(cfg *config.Config) error {
	cfg.ForceMigrate = true
	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	if cfg.Database.Seed {
		return database.Seed(db)
	}
	return nil
}

func NewApp(cfg *config.Config) (*App, error) {
	db, rdb, err := openStores(cfg)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, db, rdb)
}

func newApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Tuning: insight.NewTuningStore(cfg.Personalization.Tuning),
		ctx:    ctx,
		cancel: cancel,
	}

	shutdown, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}
	app.shutdownTracer = shutdown

	// 监控初始化
	monitoring.Init()

	repos := app.initRepositories(cfg)
	svcs := app.initServices(repos, cfg)
	ctrls := app.initControllers(svcs)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		app.Tuning.Store(newCfg.Personalization.Tuning)
		logger.Log.Info("Personalization tuning reloaded",
			zap.Float64("decay_factor", newCfg.Personalization.DecayFactor),
			zap.Float64("gap_threshold", newCfg.Personalization.GapThreshold),
			zap.Int("max_recommendations", newCfg.Personalization.MaxRecommendations),
		)
	})

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	app.Router = router
	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)

	return app, nil
}

func (a *App) startConfigWatcher() {
	if a.Config.Source == "" {
		return
	}
	w, err := configwatcher.New(a.Config.Source, a.onConfigReload, logger.Log.Named("config"))
	if err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		return
	}
	go w.Run(a.ctx)
}

// Close releases background workers and connections.
func (a *App) Close() {
	a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func (a *App) Run() error {
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.startConfigWatcher()

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Log.Info("Shutting down server...")

	timeout := a.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("Server exiting")
	return nil
}
