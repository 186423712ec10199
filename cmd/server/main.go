package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/stand-status/internal/api"
	"github.com/yegors/stand-status/internal/app"
	"github.com/yegors/stand-status/internal/config"
	"github.com/yegors/stand-status/internal/monitor"
	"github.com/yegors/stand-status/internal/websocket"
	"github.com/yegors/stand-status/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting stand status server",
		logger.String("version", Version),
		logger.String("airport", cfg.Station.AirportCode),
		logger.String("config_path", *configPath),
	)

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}

	log.Info("Server fully stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := app.OpenStorage(cfg, log)
	if err != nil {
		return err
	}
	var history monitor.Storage
	if storage != nil {
		defer storage.Close()
		history = storage
	}

	source, err := app.NewStandSource(cfg, storage, log)
	if err != nil {
		return fmt.Errorf("failed to create stand source: %w", err)
	}

	aircraftFeed, err := app.NewFeed(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create aircraft feed: %w", err)
	}

	status, err := app.NewStatus(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create stand registry: %w", err)
	}

	wsServer := websocket.NewServer(log)
	go wsServer.Run(ctx)

	service := monitor.NewService(status, source, aircraftFeed, history, wsServer, monitor.Config{
		Airport:          cfg.Station.AirportCode,
		FetchInterval:    cfg.FetchInterval(),
		HistoryRetention: cfg.HistoryRetention(),
	}, log)
	wsServer.SetMessageHandler(service)

	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stand monitor: %w", err)
	}
	defer service.Stop()

	router := api.NewRouter(service, api.AirportInfo{
		ICAO:          cfg.Station.AirportCode,
		Latitude:      cfg.Station.Latitude,
		Longitude:     cfg.Station.Longitude,
		ElevationFeet: float64(cfg.Station.ElevationFeet),
	}, wsServer, cfg.Server.StaticFilesDir, log)
	handler := router.Routes()

	allPorts := append([]int{cfg.Server.Port}, cfg.Server.AdditionalPorts...)
	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	g, gctx := errgroup.WithContext(ctx)
	for _, port := range allPorts {
		server := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, port),
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}

		g.Go(func() error {
			log.Info("Starting HTTP server", logger.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server on %s: %w", server.Addr, err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			log.Info("Shutting down HTTP server", logger.String("addr", server.Addr))
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", server.Addr), logger.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}
