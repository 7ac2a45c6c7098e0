package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-gateway/internal/app"
	"github.com/sirosfoundation/go-chat-gateway/internal/server"
	"github.com/sirosfoundation/go-chat-gateway/internal/shutdown"
	"github.com/sirosfoundation/go-chat-gateway/pkg/config"
	"github.com/sirosfoundation/go-chat-gateway/pkg/logging"
)

var configFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway and serve until SIGINT or SIGTERM.

On a termination signal the listener is closed and in-flight requests are
allowed to finish (bounded by shutdown_timeout when set).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadDotEnv(".env"); err != nil {
			return err
		}
		return runGateway(cmd.Context(), configFile)
	},
}

func init() {
	runCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to configuration file")
}

// loadDotEnv exports the variables in path unless already set. A missing
// file is ignored.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// runGateway serves until the shutdown coordinator has drained the server
func runGateway(ctx context.Context, configFile string, opts ...shutdown.Option) error {
	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	// Initialize logger
	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.LogLevel(),
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting chat gateway",
		zap.String("version", version),
		zap.String("build_time", buildTime),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Bool("auth", cfg.APIKey != ""),
		zap.Bool("tls", cfg.TLSEnabled()),
	)

	// Set Gin mode
	if cfg.LogLevel() == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	gw := app.New(cfg, logger)

	srv, err := server.New(app.ServerConfig(cfg), gw.Router, logger)
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return err
	}

	ln, err := srv.Listen(ctx)
	if err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		return err
	}

	opts = append([]shutdown.Option{shutdown.WithTimeout(cfg.ShutdownTimeoutDuration())}, opts...)
	coord := shutdown.New(logger, opts...)

	return srv.Run(ctx, ln, coord)
}
