package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/relaycrm/crm-api/api/swagger"
	"github.com/relaycrm/crm-api/internal/handler"
	"github.com/relaycrm/crm-api/internal/middleware"
	"github.com/relaycrm/crm-api/internal/models"
	"github.com/relaycrm/crm-api/internal/repository"
	"github.com/relaycrm/crm-api/internal/service"
	"github.com/relaycrm/crm-api/pkg/cache"
	"github.com/relaycrm/crm-api/pkg/config"
	"github.com/relaycrm/crm-api/pkg/database"
	"github.com/relaycrm/crm-api/pkg/jobs"
	"github.com/relaycrm/crm-api/pkg/logger"
	corsmiddleware "github.com/relaycrm/crm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/relaycrm/crm-api/pkg/middleware/requestid"
)

// @title Relay CRM API
// @version 1.0.0
// @description Multi-user CRM backend: accounts, contacts, leads, opportunities, and tasks with per-record sharing.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	filterStateRepo := repository.NewFilterStateRepository(redisClient, cfg.Session.TTL)
	opportunityRepo := repository.NewOpportunityRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	contactRepo := repository.NewContactRepository(db)

	// Background share-notification fanout
	notifyQueue := jobs.NewQueue("share-notifications", func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(service.ShareNotification)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.ID)
		}
		logr.Sugar().Infow("share notification",
			"record_type", payload.RecordType,
			"record_id", payload.RecordID,
			"added", payload.Added,
			"removed", payload.Removed,
		)
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Sharing.NotifyWorkers,
		MaxRetries: cfg.Sharing.NotifyRetries,
		Logger:     logr,
	})

	queueCtx, queueCancel := context.WithCancel(context.Background())
	defer queueCancel()
	notifyQueue.Start(queueCtx)
	defer notifyQueue.Stop()

	// Services
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "relay-crm",
	})
	permissionService := service.NewPermissionService(permissionRepo, logr)
	listingService := service.NewListingService(filterStateRepo, cfg.Lists.PerPage, metricsService, logr)
	notifier := service.NewShareNotifier(notifyQueue, metricsService, logr)

	opportunityService := service.NewOpportunityService(db, opportunityRepo, permissionService, listingService, notifier,
		categoryList(cfg.Lists.Opportunities), cfg.Lists.Opportunities.DefaultFilter, validate, logr)
	leadService := service.NewLeadService(db, leadRepo, permissionService, listingService, notifier,
		categoryList(cfg.Lists.Leads), cfg.Lists.Leads.DefaultFilter, validate, logr)
	taskService := service.NewTaskService(db, taskRepo, permissionService, listingService, notifier,
		categoryList(cfg.Lists.Tasks), cfg.Lists.Tasks.DefaultFilter, validate, logr)
	accountService := service.NewAccountService(db, accountRepo, permissionService, listingService, notifier, validate, logr)
	contactService := service.NewContactService(db, contactRepo, permissionService, listingService, notifier, validate, logr)

	exportService := service.NewExportService(map[string]service.FilteredLister{
		service.ViewOpportunities: opportunityService,
		service.ViewLeads:         leadService,
		service.ViewTasks:         taskService,
		service.ViewAccounts:      accountService,
		service.ViewContacts:      contactService,
	}, nil, nil, metricsService, logr)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	opportunityHandler := handler.NewOpportunityHandler(opportunityService)
	leadHandler := handler.NewLeadHandler(leadService)
	taskHandler := handler.NewTaskHandler(taskService)
	accountHandler := handler.NewAccountHandler(accountService)
	contactHandler := handler.NewContactHandler(contactService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/snapshot", metricsHandler.Snapshot)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))
	{
		opportunities := protected.Group("/opportunities")
		{
			opportunities.GET("", opportunityHandler.List)
			opportunities.POST("", opportunityHandler.Create)
			opportunities.POST("/filter", opportunityHandler.ToggleFilter)
			opportunities.GET("/:id", opportunityHandler.Get)
			opportunities.PUT("/:id", opportunityHandler.Update)
			opportunities.DELETE("/:id", opportunityHandler.Delete)
		}

		leads := protected.Group("/leads")
		{
			leads.GET("", leadHandler.List)
			leads.POST("", leadHandler.Create)
			leads.POST("/filter", leadHandler.ToggleFilter)
			leads.GET("/:id", leadHandler.Get)
			leads.PUT("/:id", leadHandler.Update)
			leads.DELETE("/:id", leadHandler.Delete)
		}

		tasks := protected.Group("/tasks")
		{
			tasks.GET("", taskHandler.List)
			tasks.POST("", taskHandler.Create)
			tasks.POST("/filter", taskHandler.ToggleFilter)
			tasks.GET("/:id", taskHandler.Get)
			tasks.PUT("/:id", taskHandler.Update)
			tasks.POST("/:id/complete", taskHandler.Complete)
			tasks.DELETE("/:id", taskHandler.Delete)
		}

		accounts := protected.Group("/accounts")
		{
			accounts.GET("", accountHandler.List)
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:id", accountHandler.Get)
			accounts.PUT("/:id", accountHandler.Update)
			accounts.DELETE("/:id", accountHandler.Delete)
		}

		contacts := protected.Group("/contacts")
		{
			contacts.GET("", contactHandler.List)
			contacts.POST("", contactHandler.Create)
			contacts.GET("/:id", contactHandler.Get)
			contacts.PUT("/:id", contactHandler.Update)
			contacts.DELETE("/:id", contactHandler.Delete)
		}

		if cfg.Exports.Enabled {
			protected.GET("/exports/:view", exportHandler.Download)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func categoryList(view config.ViewConfig) models.CategoryList {
	list := make(models.CategoryList, len(view.Categories))
	for i, cat := range view.Categories {
		list[i] = models.CategoryDefinition{Key: cat.Key, Label: cat.Label}
	}
	return list
}
