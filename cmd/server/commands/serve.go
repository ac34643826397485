package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/OpenNSW/taskrunner/internal/config"
	"github.com/OpenNSW/taskrunner/internal/database"
	"github.com/OpenNSW/taskrunner/internal/logarchive"
	"github.com/OpenNSW/taskrunner/internal/middleware"
	"github.com/OpenNSW/taskrunner/internal/task"
	"github.com/OpenNSW/taskrunner/internal/task/policy"
	"github.com/OpenNSW/taskrunner/internal/task/runner/k8s"
)

func (c *CLI) newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Migrate the database schema before serving")
	return cmd
}

func serve(cmd *cobra.Command, migrate bool) error {
	ctx := cmd.Context()

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	slog.Info("configuration loaded successfully",
		"db_driver", cfg.Database.Driver,
		"db_host", cfg.Database.Host,
		"db_name", cfg.Database.Name,
		"k8s_namespace", cfg.Kubernetes.Namespace,
		"k8s_image", cfg.Kubernetes.Image,
		"execution_timeout", cfg.Kubernetes.ExecutionTimeout,
		"storage_type", cfg.Storage.Type,
	)

	db, err := openDatabase(cfg, migrate)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	env, err := k8s.NewFromConfig(cfg.Kubernetes)
	if err != nil {
		return err
	}

	p, err := policy.Load(cfg.Policy.File)
	if err != nil {
		return err
	}

	driver, err := logarchive.NewStorageFromConfig(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize log archive: %w", err)
	}

	tm, err := task.NewManager(task.Dependencies{
		DB:          db,
		Environment: env,
		Policy:      p,
		Archive:     logarchive.New(driver),
		Kubernetes:  cfg.Kubernetes,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: NewHandler(cfg, db, tm, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		slog.Info("server gracefully stopped")
		return nil
	})

	return g.Wait()
}

// NewHandler builds the full HTTP handler: routes, request logging and CORS.
func NewHandler(cfg *config.Config, db *gorm.DB, tm *task.Manager, logger *slog.Logger) http.Handler {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestLogger(logger))

	engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	tm.Router.Register(engine)

	return middleware.CORS(&cfg.CORS)(engine)
}
