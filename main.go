package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/b0bbywan/go-odio-powerd/api"
	"github.com/b0bbywan/go-odio-powerd/backend"
	"github.com/b0bbywan/go-odio-powerd/config"
	"github.com/b0bbywan/go-odio-powerd/logger"
	"github.com/b0bbywan/go-odio-powerd/shutdown"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		logger.Fatal("[%s] %v", config.AppName, err)
	}
	if v, _ := flags.GetBool("version"); v {
		fmt.Println(config.AppName, config.AppVersion)
		return
	}

	cfg, err := config.New(flags)
	if err != nil {
		logger.Fatal("[%s] Failed to load config: %v", config.AppName, err)
	}

	logger.SetLevel(cfg.LogLevel)
	logger.SetPackageLevels(cfg.LogLevels)

	// Global context, cancelled on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	b, err := backend.New(ctx, cfg)
	if err != nil {
		logger.Fatal("[%s] Backend initialization failed: %v", config.AppName, err)
	}
	defer b.Close()

	if err := b.Start(); err != nil {
		logger.Fatal("[%s] Backend start failed: %v", config.AppName, err)
	}

	coordinator := shutdown.NewCoordinator(
		b.Collaborators(),
		backend.Timings(cfg.Shutdown),
		shutdown.WithObserver(b.Observer()),
	)

	var confirmer *api.PendingConfirmer
	if cfg.Api.Enabled {
		confirmer = api.NewPendingConfirmer(cfg.Api.ConfirmTimeout, b.Broadcaster)
		coordinator.SetConfirmer(confirmer)
	}

	if bus := api.NewBusService(b.Bus, coordinator); bus != nil {
		if err := bus.Start(); err != nil {
			logger.Error("[%s] D-Bus service unavailable: %v", config.AppName, err)
		} else {
			defer bus.Close()
		}
	}

	go func() {
		<-coordinator.Done()
		if err := coordinator.Err(); err != nil {
			logger.Error("[%s] shutdown did not halt the system: %v", config.AppName, err)
		}
	}()

	logger.Info("[%s] started", config.AppName)
	if server := api.NewServer(cfg.Api, b, coordinator, confirmer); server != nil {
		if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[%s] http server error: %v", config.AppName, err)
		}
	}

	awaitExit(ctx, coordinator)
	logger.Info("[%s] stopping...", config.AppName)
}

type pipeline interface {
	Claimed() bool
	Done() <-chan struct{}
}

// awaitExit blocks until ctx is cancelled. A claimed pipeline cannot be
// interrupted, so the backends stay open until it has run to its end.
func awaitExit(ctx context.Context, p pipeline) {
	<-ctx.Done()
	logger.Info("[%s] Shutdown signal received", config.AppName)
	if !p.Claimed() {
		return
	}
	logger.Warn("[%s] shutdown sequence running, waiting for it to finish", config.AppName)
	<-p.Done()
}
