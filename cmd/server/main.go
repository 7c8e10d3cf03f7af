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

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/tahcohcat/meechain/config"
	"github.com/tahcohcat/meechain/internal/achievements"
	"github.com/tahcohcat/meechain/internal/api"
	"github.com/tahcohcat/meechain/internal/auth"
	"github.com/tahcohcat/meechain/internal/governance"
	"github.com/tahcohcat/meechain/internal/llm"
	"github.com/tahcohcat/meechain/internal/logger"
	"github.com/tahcohcat/meechain/internal/mining"
	"github.com/tahcohcat/meechain/internal/progress"
	"github.com/tahcohcat/meechain/internal/services"
	"github.com/tahcohcat/meechain/internal/storage"
	"github.com/tahcohcat/meechain/internal/tts"
	"github.com/tahcohcat/meechain/internal/websocket"
	"golang.org/x/sync/errgroup"
)

func main() {
	root := &cobra.Command{
		Use:           "meechain",
		Short:         "MeeChain progress and achievement engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "catalog",
		Short: "Print the badge catalog in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(cmd.OutOrStdout(), achievements.Default)
		},
	})

	var sim simulateFlags
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a sequence of actions against an in-memory player",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), sim)
		},
	}
	f := simulateCmd.Flags()
	f.IntVar(&sim.personas, "personas", 0, "Personas to create first")
	f.IntVar(&sim.proposals, "proposals", 0, "Proposals to analyze next")
	f.IntVar(&sim.mints, "mints", 1, "MeeBots to mint last")
	f.IntVar(&sim.miningLevel, "mining-level", 0, "Mining level to report at the end")
	root.AddCommand(simulateCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(logger.LogLevel(cfg.Log.Level), cfg.Log.Env)
	defer logger.Sync()
	log := logger.New()

	insecure, err := cfg.CheckSecrets()
	if err != nil {
		return err
	}
	if insecure {
		log.Warn("using the default session secret; sessions can be forged. Set MEECHAIN_AUTH_SESSION_SECRET before deploying")
	}

	config.Watch(func(c *config.Config) {
		logger.SetLevel(logger.LogLevel(c.Log.Level))
		log.With("level", c.Log.Level).Info("config reloaded")
	})

	model, err := llm.NewLLMClient(cfg)
	switch {
	case errors.Is(err, llm.ErrDisabled):
		log.Info("no LLM provider configured, proposal analysis disabled")
	case err != nil:
		return fmt.Errorf("failed to create LLM client: %w", err)
	default:
		if err := model.IsModelAvailable(ctx); err != nil {
			log.WithError(err).Warn("configured model is not available yet")
		}
	}

	repo, err := storage.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	registry := progress.NewRegistry(repo, progress.Options{
		ConfirmDelay: cfg.Timeline.ConfirmDelay,
		ChainTag:     cfg.Timeline.ChainTag,
	})

	voice, err := tts.New(ctx, cfg.Tts)
	if err != nil {
		log.WithError(err).Warn("tts unavailable, falling back to silent notifications")
		voice = tts.NewDummyTts()
	}

	svc := services.NewProgressService(registry, governance.NewAnalyzer(model), mining.NewSimulator(cfg.Mining, nil), voice)

	hub := websocket.NewHub(func(ctx context.Context, playerID string) (progress.Update, error) {
		st, err := svc.Store(ctx, playerID)
		if err != nil {
			return progress.Update{}, err
		}
		u := progress.Update{State: st.State()}
		if n, ok := st.Notification(); ok {
			u.Notification = &n
		}
		return u, nil
	})
	svc.Subscribe(hub)

	authn := auth.New(cfg.Auth)
	authn.OnConnect = func(ctx context.Context, playerID string) error {
		_, err := svc.Store(ctx, playerID)
		return err
	}

	limiter := api.NewKeyedRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	r := mux.NewRouter()
	api.NewHandler(api.Deps{
		Progress:     svc,
		Achievements: services.NewAchievementService(achievements.Default),
		Auth:         authn,
		Limiter:      limiter,
		WebSocket:    hub,
	}).RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.With("port", cfg.Server.Port).With("storage", cfg.Database.Driver).Info("MeeChain server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if cerr := svc.Close(shutdownCtx); cerr != nil {
			log.WithError(cerr).Error("failed to flush player state")
		}
		log.Info("server stopped")
		return err
	})

	return g.Wait()
}
