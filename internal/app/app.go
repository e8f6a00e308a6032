package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/casaflora/tienda-core/internal/config"
	"github.com/casaflora/tienda-core/internal/database"
	"github.com/casaflora/tienda-core/internal/middleware"
	"github.com/casaflora/tienda-core/internal/modules/backup"
	pkgcron "github.com/casaflora/tienda-core/internal/pkg/cron"
	pkgjwt "github.com/casaflora/tienda-core/internal/pkg/jwt"
	pkgredis "github.com/casaflora/tienda-core/internal/pkg/redis"
	"github.com/casaflora/tienda-core/internal/pkg/taskqueue"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	rc     *pkgredis.Client
	tasks  *taskqueue.Service
	sched  *pkgcron.Scheduler
	logger *zap.Logger
	cancel context.CancelFunc

	backupSvc *backup.Service
}

// New initializes the application: config, DB, Redis, routes, background
// workers.
func New(logger *zap.Logger, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.JWTSecret != "" {
		pkgjwt.SetSecret(cfg.JWTSecret)
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	ctx, cancel := context.WithCancel(context.Background())

	tasks := taskqueue.NewService(rc, logger.Named("taskqueue"))
	sched := pkgcron.New()

	app := &App{
		cfg:    cfg,
		router: router,
		db:     db,
		rc:     rc,
		tasks:  tasks,
		sched:  sched,
		logger: logger,
		cancel: cancel,
	}
	app.registerRoutes()

	go tasks.Start(ctx)
	app.registerCronJobs()
	go sched.Start(ctx)

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines.
func (a *App) Shutdown() { a.cancel() }
