package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/4ndr3jS/TravelStory/internal/api"
	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/db/maintenance"
	"github.com/4ndr3jS/TravelStory/pkg/logging"
	"github.com/4ndr3jS/TravelStory/pkg/probe"
	"github.com/4ndr3jS/TravelStory/pkg/request"
	"github.com/4ndr3jS/TravelStory/pkg/routing"
	"github.com/4ndr3jS/TravelStory/pkg/session"
	"github.com/4ndr3jS/TravelStory/pkg/story"
	"github.com/4ndr3jS/TravelStory/pkg/telemetry"
	"github.com/4ndr3jS/TravelStory/pkg/tracker"
	"github.com/4ndr3jS/TravelStory/pkg/tts"
	"github.com/4ndr3jS/TravelStory/pkg/version"
)

var (
	configPath = flag.String("config", "configs/travelstory.yaml", "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to read .env: %v\n", err)
	}

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()
	tts.SetLogPath(appCfg.Log.TTS.Path)

	slog.Info("TravelStory Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	maintenance.Run(ctx, st, dbConn, appCfg.DB, appCfg.Story.AudioDir)

	tr := tracker.New()
	reqClient := request.New(st, tr, appCfg.Request)
	cfgProv := config.NewProvider(appCfg, st)

	// Story generation
	llmProv, llmNames, err := initLLM(appCfg, reqClient, tr)
	if err != nil {
		return err
	}
	gen, err := initGenerator(llmProv, cfgProv)
	if err != nil {
		return err
	}
	ctrl := story.NewController(gen, gen, story.Config{
		OutlineTimeout: appCfg.Story.OutlineTimeout.Std(),
		SegmentTimeout: appCfg.Story.SegmentTimeout.Std(),
		BatchSize:      appCfg.Story.BatchSize,
	})

	// Observers (registered before the controller starts)
	ttsEngine := initTTS(appCfg, tr)
	renderer := initRenderer(appCfg, ttsEngine)
	ctrl.AddObserver(renderer)

	persister := session.NewPersister(ctrl, st)
	ctrl.AddObserver(persister)
	ctrl.AddObserver(story.EventLog())

	tel, err := telemetry.Setup(ctx, appCfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
		defer c()
		_ = tel.Shutdown(shutdownCtx)
	}()
	metrics, err := telemetry.NewStoryMetrics(tel.Meter(), ctrl)
	if err != nil {
		return fmt.Errorf("failed to register story metrics: %w", err)
	}
	ctrl.AddObserver(metrics)
	if err := telemetry.RegisterRenderMetrics(tel.Meter(), renderer); err != nil {
		return fmt.Errorf("failed to register render metrics: %w", err)
	}

	hub := api.NewHub(ctrl)
	ctrl.AddObserver(hub)
	renderer.OnRendered(hub.OnClip)

	publisher, eventsErr := initEvents(appCfg.Events)
	if publisher != nil {
		defer publisher.Close()
		ctrl.AddObserver(publisher)
	}

	// Start workers
	ctrl.Start(ctx)
	defer ctrl.Stop()
	go renderer.Run(ctx)
	go hub.Run(ctx)
	go persister.Run(ctx, appCfg.Story.PersistInterval.Std())
	if publisher != nil {
		go publisher.Run(ctx)
		if states, err := publisher.AppStates(ctx); err != nil {
			slog.Warn("Events: app state subscription failed", "error", err)
		} else {
			go ctrl.WatchAppState(ctx, states)
		}
	}

	if _, err := session.TryRestore(ctx, st, ctrl, persister); err != nil {
		slog.Error("Session restore failed", "error", err)
	}

	// Startup Probes
	probes := []probe.Probe{
		{Name: "Database", Check: dbConn.PingContext, Critical: true},
		{Name: "LLM Providers", Check: llmProv.HealthCheck, Critical: true},
	}
	if appCfg.Events.Enabled {
		probes = append(probes, probe.Probe{
			Name:  "NATS",
			Check: func(context.Context) error { return eventsErr },
		})
	}
	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	// Server
	router := routing.NewService(reqClient, appCfg.Routing)
	var eventStats api.EventStats
	if publisher != nil {
		eventStats = publisher
	}
	statsH := api.NewStatsHandler(tr, renderer, eventStats, llmNames)
	statsH.SetProbeResults(results)
	handlers := api.Handlers{
		Story:       api.NewStoryHandler(ctrl, router, renderer, cfgProv),
		Routes:      api.NewRouteHandler(router, router, cfgProv),
		History:     api.NewHistoryHandler(st, ctrl, func() string { return ctrl.Snapshot().StoryID() }),
		Preferences: api.NewPreferencesHandler(st, cfgProv),
		Stats:       statsH,
		Hub:         hub,
		Metrics:     tel.Handler(),
	}
	if ttsEngine != nil {
		handlers.Voices = api.NewVoicesHandler(ttsEngine)
	}

	return runServer(ctx, appCfg, handlers, persister)
}

func runServer(ctx context.Context, cfg *config.Config, h api.Handlers, persister *session.Persister) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address, h, shutdownFunc)
	srv.Handler = loggingMiddleware(srv.Handler)

	err := runServerLifecycle(ctx, srv, quit, cfg.Server.ShutdownTimeout.Std())

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := persister.Flush(flushCtx); ferr != nil {
		slog.Error("Final story save failed", "error", ferr)
	}
	return err
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal, timeout time.Duration) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger := logging.RequestLogger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
