package app

import (
	"net/http"

	"github.com/casaflora/tienda-core/internal/config"
	"github.com/casaflora/tienda-core/internal/dispatcher"
	"github.com/casaflora/tienda-core/internal/middleware"
	"github.com/casaflora/tienda-core/internal/modules/backup"
	"github.com/casaflora/tienda-core/internal/modules/health"
	"github.com/casaflora/tienda-core/internal/modules/newsletter"
	"github.com/casaflora/tienda-core/internal/modules/orders"
	"github.com/casaflora/tienda-core/internal/modules/settings"
	"github.com/casaflora/tienda-core/internal/pkg/alert"
	"github.com/casaflora/tienda-core/internal/pkg/response"
	"github.com/casaflora/tienda-core/internal/registry"
	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes() {
	r := a.router
	authMW := middleware.Auth(a.cfg.AdminToken)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	settingsSvc := settings.NewService(a.db)
	settingsFn := func() (*config.StoreConfig, error) { return settingsSvc.Get() }

	alerts := alert.New(func() (string, string, string) {
		cfg, err := settingsSvc.Get()
		if err != nil || !cfg.Alerts.Enable {
			return "", "", ""
		}
		return cfg.Alerts.Key, cfg.Alerts.ServerURL, cfg.Store.Name
	})

	disp := dispatcher.New(settingsFn, a.logger.Named("dispatcher"), dispatcher.WithAlerts(alerts))
	reg := registry.New(a.cfg.SubscribersPath())

	newsSvc := newsletter.NewService(reg, disp, a.tasks, a.db, a.logger.Named("newsletter"))
	newsSvc.RegisterTasks()
	ordersSvc := orders.NewService(disp, reg, a.db, a.logger.Named("orders"))
	backupSvc := backup.NewService(a.cfg.SubscribersPath(), a.cfg.BackupDir(), settingsFn, a.logger.Named("backup"))

	a.backupSvc = backupSvc

	root := r.Group("")
	root.Use(middleware.RateLimit(a.rc.Raw(), alerts))
	root.Use(middleware.Idempotence(a.rc.Raw()))

	health.RegisterRoutes(root, a.db, a.rc, a.sched)
	newsletter.NewHandler(newsSvc, a.logger.Named("newsletter")).RegisterRoutes(root, authMW)
	orders.NewHandler(ordersSvc, a.logger.Named("orders")).RegisterRoutes(root, authMW)
	settings.NewHandler(settingsSvc).RegisterRoutes(root, authMW)
	backup.NewHandler(backupSvc).RegisterRoutes(root, authMW)

	cronGroup := root.Group("/admin/cron", authMW)
	cronGroup.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"jobs": a.sched.List()})
	})
	cronGroup.GET("/:name", func(c *gin.Context) {
		state, err := a.sched.GetJob(c.Param("name"))
		if err != nil {
			response.NotFoundMsg(c, "Tarea programada no encontrada")
			return
		}
		c.JSON(http.StatusOK, state)
	})
	cronGroup.POST("/:name/run", func(c *gin.Context) {
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, "Tarea programada no encontrada")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true})
	})
}
