package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/clearvault/clearvault/internal/access"
	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/apiserver/handler"
	"github.com/clearvault/clearvault/internal/apiserver/middleware"
	"github.com/clearvault/clearvault/internal/audit"
	"github.com/clearvault/clearvault/internal/auth/jwt"
	"github.com/clearvault/clearvault/internal/common/config"
	"github.com/clearvault/clearvault/internal/quota"
	"github.com/clearvault/clearvault/internal/recyclebin"
	"github.com/clearvault/clearvault/internal/tenantctx"
	"github.com/clearvault/clearvault/pkg/logger"
	"github.com/clearvault/clearvault/pkg/metrics"
	"github.com/clearvault/clearvault/pkg/version"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of apiserver",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("apiserver version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "apiserver",
		Short: "ClearVault API Server",
		Long:  `ClearVault API Server provides the access-control API for virtual data rooms`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "configs/apiserver.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig[config.APIServerConfig](configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", cfgPath, err)
	}

	zapLogger, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("Starting apiserver",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	selections, err := tenantctx.NewSelectionStore(zapLogger, &cfg.Session)
	if err != nil {
		zapLogger.Fatal("Failed to initialize session store", zap.Error(err))
	}
	defer func() {
		_ = selections.Close()
	}()

	jwtService, err := jwt.NewService(jwt.Config{
		SecretKey: cfg.JWT.SecretKey,
		Duration:  cfg.JWT.Duration,
	})
	if err != nil {
		zapLogger.Fatal("Failed to initialize JWT service", zap.Error(err))
	}

	m := metrics.New(cfg.Metrics)

	evaluator := access.NewEvaluator(db, zapLogger)
	tracker := quota.NewTracker(db, zapLogger)
	resolver := tenantctx.NewResolver(db, selections, tracker, zapLogger)
	recycle := recyclebin.NewService(db, evaluator, zapLogger)

	recorder := audit.NewRecorder(db, zapLogger, cfg.Audit.QueueSize)
	recorder.OnDrop(m.ObserveAuditDrop)
	defer recorder.Close()

	if err := bootstrapSuperAdmin(context.Background(), db, &cfg.SuperAdmin, zapLogger); err != nil {
		zapLogger.Fatal("Failed to bootstrap super admin", zap.Error(err))
	}

	h := handler.New(db, jwtService, evaluator, tracker, resolver, recycle, recorder, m, zapLogger)

	router := gin.New()
	router.Use(gin.Recovery(), m.GinMiddleware())
	registerRoutes(router, h, jwtService, m)

	port := cfg.Port
	if port == 0 {
		port = 5234
	}
	zapLogger.Info("Server listening", zap.Int("port", port))
	if err := router.Run(fmt.Sprintf(":%d", port)); err != nil {
		zapLogger.Fatal("Server stopped", zap.Error(err))
	}
}

func registerRoutes(router *gin.Engine, h *handler.Handler, jwtService *jwt.Service, m *metrics.Metrics) {
	router.GET("/metrics", m.Handler())
	router.POST("/api/auth/login", h.Login)

	api := router.Group("/api", middleware.JWTAuthMiddleware(jwtService))

	api.POST("/auth/verify-2fa", h.VerifyTwoFactor)

	api.GET("/tenants", h.ListMyTenants)
	api.POST("/tenants", h.CreateTenant)
	api.GET("/tenants/slug/:slug", h.GetTenantInfo)
	api.PUT("/tenants/:id", h.UpdateTenant)
	api.DELETE("/tenants/:id", h.DeleteTenant)
	api.PUT("/tenants/:id/switch", h.SwitchTenant)
	api.GET("/tenants/:id/usage", h.GetTenantUsage)
	api.GET("/tenants/:id/members", h.ListTenantMembers)
	api.POST("/tenants/:id/members", h.AddTenantMember)
	api.DELETE("/tenants/:id/members/:userId", h.RemoveTenantMember)
	api.GET("/tenants/:id/data-rooms", h.ListDataRooms)
	api.GET("/tenant-context", h.GetTenantContext)

	api.POST("/data-rooms", h.CreateDataRoom)
	api.GET("/data-rooms/:id/groups", h.ListGroups)
	api.POST("/data-rooms/:id/groups", h.CreateGroup)
	api.POST("/data-rooms/:id/folders", h.CreateFolder)
	api.POST("/data-rooms/:id/documents", h.CreateDocument)
	api.GET("/data-rooms/:id/recycle-bin", h.ListRecycleBin)
	api.GET("/data-rooms/:id/activity", h.GetDataRoomActivity)

	api.PUT("/groups/:groupId", h.UpdateGroup)
	api.DELETE("/groups/:groupId", h.DeleteGroup)
	api.GET("/groups/:groupId/members", h.ListGroupMembers)
	api.POST("/groups/:groupId/members", h.AddGroupMember)
	api.DELETE("/groups/:groupId/members/:userId", h.RemoveGroupMember)

	api.GET("/documents/:id", h.GetDocument)
	api.DELETE("/documents/:id", h.DeleteDocument)
	api.PUT("/documents/:id/permissions", h.SetDocumentPermission)
	api.DELETE("/documents/:id/permissions/:groupId", h.DeleteDocumentPermission)
	api.PUT("/documents/:id/restore", h.RestoreDocument)
	api.DELETE("/documents/:id/purge", h.PurgeDocument)

	api.DELETE("/folders/:id", h.DeleteFolder)
	api.PUT("/folders/:id/permissions", h.SetFolderPermission)
	api.DELETE("/folders/:id/permissions/:groupId", h.DeleteFolderPermission)
	api.PUT("/folders/:id/restore", h.RestoreFolder)
	api.DELETE("/folders/:id/purge", h.PurgeFolder)

	api.POST("/access/check", h.CheckAccess)
}

// bootstrapSuperAdmin ensures the configured super admin account exists.
// An existing account is left untouched, so password changes go through the
// normal credential flow.
func bootstrapSuperAdmin(ctx context.Context, db database.Database, cfg *config.SuperAdminConfig, zapLogger *zap.Logger) error {
	if cfg.Username == "" || cfg.Password == "" {
		zapLogger.Warn("Super admin bootstrap skipped: no credentials configured")
		return nil
	}

	_, err := db.GetUserByUsername(ctx, cfg.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	hash, err := handler.HashPassword(cfg.Password)
	if err != nil {
		return err
	}
	user := &database.User{
		Username:   cfg.Username,
		Password:   hash,
		Role:       database.PlatformAdmin,
		Status:     database.UserActive,
		AccessType: database.AccessUnlimited,
	}
	if err := db.CreateUser(ctx, user); err != nil {
		return err
	}
	zapLogger.Info("Super admin account created", zap.String("username", cfg.Username))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
