package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/atlasops/atlas-itsm/internal/config"
	"github.com/atlasops/atlas-itsm/internal/itsm/entity"
	"github.com/atlasops/atlas-itsm/internal/itsm/handler"
	"github.com/atlasops/atlas-itsm/internal/itsm/repository"
	"github.com/atlasops/atlas-itsm/internal/itsm/service"
	"github.com/atlasops/atlas-itsm/internal/middleware"
	"github.com/atlasops/atlas-itsm/internal/storage"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// .env仅用于本地开发，缺失时忽略
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting atlas-itsm service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := autoMigrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化对象存储（未配置endpoint时跳过，单据上传接口将拒绝）
	var store *storage.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		store, err = storage.New(context.Background(), cfg.MinIO)
		if err != nil {
			zapLogger.Fatal("Failed to init object storage", zap.Error(err))
		}
	} else {
		zapLogger.Warn("Object storage not configured, document upload disabled")
	}

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, rdb, store, cfg)
	handlers := handler.NewHandlers(services, repos, cfg)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, db, rdb, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Asset{},
		&entity.AssetRelationship{},
		&entity.AssetRequest{},
		&entity.PurchaseOrder{},
		&entity.PurchaseInvoice{},
		&entity.Ticket{},
		&entity.AuditLog{},
	)
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, db *gorm.DB, rdb *redis.Client, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 当前用户
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 资产管理
			assets := authorized.Group("/assets")
			{
				assets.GET("", h.Asset.List)
				assets.GET("/:id", h.Asset.Get)
				assets.POST("", middleware.RequireRole(entity.RoleAssetManager, entity.RoleInventoryManager, entity.RoleITManagement), h.Asset.Create)
				assets.PUT("/:id", middleware.RequireRole(entity.RoleAssetManager, entity.RoleInventoryManager, entity.RoleITManagement), h.Asset.Update)
				assets.POST("/:id/assign", middleware.RequireRole(entity.RoleAssetManager, entity.RoleInventoryManager, entity.RoleITManagement), h.Asset.Assign)
				assets.POST("/:id/unassign", middleware.RequireRole(entity.RoleAssetManager, entity.RoleInventoryManager, entity.RoleITManagement), h.Asset.Unassign)
				assets.DELETE("/:id", middleware.RequireRole(entity.RoleAssetManager, entity.RoleInventoryManager), h.Asset.Delete)
				assets.POST("/:id/disposal", middleware.RequireRole(entity.RoleAssetManager, entity.RoleInventoryManager), h.Asset.RequestDisposal)
				assets.POST("/:id/disposal/approve", middleware.RequireRole(entity.RoleAssetManager), h.Asset.ApproveDisposal)
				assets.GET("/:id/events", h.Asset.Events)

				// CMDB关系
				assets.GET("/:id/relationships", h.Relationship.List)
				assets.POST("/:id/relationships", middleware.RequireRole(entity.RoleAssetManager, entity.RoleInventoryManager, entity.RoleITManagement), h.Relationship.Create)
				assets.DELETE("/:id/relationships/:rel_id", middleware.RequireRole(entity.RoleAssetManager, entity.RoleInventoryManager, entity.RoleITManagement), h.Relationship.Delete)
			}

			// 我的资产
			authorized.GET("/my/assets", h.Asset.MyAssets)

			// 资产申请工作流
			requests := authorized.Group("/requests")
			{
				requests.GET("", h.Request.List)
				requests.POST("", h.Request.Create)
				requests.GET("/:id", h.Request.Get)
				requests.POST("/:id/approve", middleware.RequireRole(entity.RoleITManagement), h.Request.Approve)
				requests.POST("/:id/reject", middleware.RequireRole(entity.RoleITManagement), h.Request.Reject)
				requests.POST("/:id/procurement", middleware.RequireRole(entity.RoleITManagement, entity.RoleProcurementFinance), h.Request.RequireProcurement)
				requests.POST("/:id/fulfill", middleware.RequireRole(entity.RoleITManagement, entity.RoleAssetManager, entity.RoleInventoryManager), h.Request.Fulfill)

				// 采购单据
				requests.POST("/:id/purchase-orders", middleware.RequireRole(entity.RoleProcurementFinance), h.Procurement.UploadPO)
				requests.POST("/:id/invoices", middleware.RequireRole(entity.RoleProcurementFinance), h.Procurement.UploadInvoice)
				requests.POST("/:id/procurement/complete", middleware.RequireRole(entity.RoleProcurementFinance, entity.RoleFinance), h.Procurement.Complete)
			}

			// 采购订单
			pos := authorized.Group("/purchase-orders")
			pos.Use(middleware.RequireRole(entity.RoleProcurementFinance, entity.RoleFinance, entity.RoleITManagement))
			{
				pos.GET("", h.Procurement.ListPOs)
				pos.GET("/:id", h.Procurement.GetPO)
				pos.GET("/:id/document-url", h.Procurement.DocumentURL)
			}

			// 报表
			reports := authorized.Group("/reports")
			reports.Use(middleware.RequireRole(entity.RoleFinance, entity.RoleProcurementFinance, entity.RoleAssetManager, entity.RoleITManagement))
			{
				reports.GET("/financial-summary", h.Report.FinancialSummary)
				reports.GET("/cost-by-type", h.Report.CostByType)
				reports.GET("/monthly-spend", h.Report.MonthlySpend)
				reports.GET("/depreciation", h.Report.Depreciation)
				reports.GET("/renewals", h.Report.Renewals)
				reports.GET("/assets/export", h.Report.ExportAssets)
			}

			// 工单
			tickets := authorized.Group("/tickets")
			{
				tickets.GET("", h.Ticket.List)
				tickets.POST("", h.Ticket.Create)
				tickets.GET("/:id", h.Ticket.Get)
				tickets.PUT("/:id/status", middleware.RequireRole(entity.RoleITManagement, entity.RoleAssetManager), h.Ticket.UpdateStatus)
			}

			// 参考数据
			reference := authorized.Group("/reference")
			{
				reference.GET("/enums", h.Reference.Enums)
				reference.GET("/departments", h.Reference.Departments)
				reference.GET("/locations", h.Reference.Locations)
			}

			// 用户管理（管理员）
			users := authorized.Group("/users")
			users.Use(middleware.RequireRole(entity.RoleAdmin, entity.RoleSystemAdmin))
			{
				users.GET("", h.User.List)
				users.POST("", h.User.Create)
				users.GET("/:id", h.User.Get)
				users.PUT("/:id", h.User.Update)
				users.DELETE("/:id", h.User.Deactivate)
				users.POST("/:id/activate", h.User.Activate)
			}

			// 审计日志（管理员）
			audit := authorized.Group("/audit-logs")
			audit.Use(middleware.RequireRole(entity.RoleAdmin, entity.RoleSystemAdmin))
			{
				audit.GET("/recent", h.Audit.Recent)
				audit.GET("", h.Audit.ByEntity)
			}
		}
	}
}
