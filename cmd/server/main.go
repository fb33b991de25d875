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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/Babel/internal/adapters/http"
	"github.com/dkeye/Babel/internal/app"
	"github.com/dkeye/Babel/internal/app/orch"
	"github.com/dkeye/Babel/internal/config"
	"github.com/dkeye/Babel/internal/translate"
)

var (
	flagEnv  string
	flagPort int
)

var rootCmd = &cobra.Command{
	Use:           "babel",
	Short:         "Live translation relay",
	Long:          "Runs the room relay: every utterance is fanned out to the other members of the room, translated into each member's language.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "config environment (config/config.<env>.yaml), defaults to $CONFIG_ENV")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "override the listen port")
	rootCmd.AddCommand(translateCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("babel failed")
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	setupLogger(cfg)
	return cfg, nil
}

// setupLogger keeps the console writer for debug mode and switches to
// plain JSON lines otherwise.
func setupLogger(cfg *config.Config) {
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func serve(ctx context.Context, cfg *config.Config) error {
	chain, err := translate.BuildChain(ctx, cfg.Translation, &http.Client{})
	if err != nil {
		return fmt.Errorf("build provider chain: %w", err)
	}
	cache := translate.NewCache(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	go cache.Run(ctx, cfg.Cache.SweepInterval)

	o := &orch.Orchestrator{
		Registry:   app.NewRegistry(),
		Rooms:      app.NewRoomManager(),
		Policy:     app.PolicyByName(cfg.Backpressure),
		Cache:      cache,
		Translator: chain,
	}

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Babel server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
