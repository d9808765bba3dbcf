package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/logging"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/mqtt"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/player"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/render"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "medusa-player",
	Short:         "Medusa display player",
	Long:          "medusa-player runs on a signage display: it resolves the active schedule, walks playlists and serves the current content to the renderer.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the playback loop and the renderer API",
	RunE:  runPlayer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the player version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.AddCommand(runCmd, resolveCmd, migrateCmd, hashPasswordCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logging.Setup(cfg.Environment)
	return nil
}

func runPlayer(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("version", version).Str("display_id", cfg.DisplayID).Str("source", cfg.Source).Msg("medusa-player starting")

	deps, err := buildProviders(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	orch := player.New(player.Config{
		DisplayID:      cfg.DisplayID,
		PollInterval:   cfg.PollInterval,
		ReconnectDelay: cfg.ReconnectDelay,
		FetchTimeout:   cfg.FetchTimeout,
	}, deps.schedules, deps.content)
	if deps.positions != nil {
		orch.SetPositionStore(deps.positions)
	}

	if cfg.MQTTBrokerURL != "" {
		channel := mqtt.NewClient(cfg.MQTTBrokerURL, cfg.MQTTUsername, cfg.MQTTPassword)
		defer channel.Close()
		orch.SetChannel(channel)
		orch.SetStatusPublisher(channel)
	} else {
		logger.Warn().Msg("MQTT_BROKER_URL not set, relying on polling only")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	RegisterRoutes(r, cfg, orch)

	httpServer := &http.Server{Addr: cfg.ServerAddress, Handler: r}
	go func() {
		logger.Info().Str("addr", cfg.ServerAddress).Msg("renderer API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	if cfg.Headless {
		driver := render.NewDriver(orch, 0)
		go func() { _ = driver.Run(ctx) }()
		logger.Info().Msg("headless completion driver enabled")
	}

	err = orch.Run(ctx)

	logger.Info().Msg("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("graceful shutdown failed")
	}

	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("medusa-player stopped")
		return nil
	}
	return err
}
