package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"bizarre-tabletop/server/internal/accounts"
	"bizarre-tabletop/server/internal/hub"
	tcpserver "bizarre-tabletop/server/internal/net/tcp"
	wsbridge "bizarre-tabletop/server/internal/net/ws"
	"bizarre-tabletop/server/internal/world"
	"bizarre-tabletop/server/logging"
	loggingSinks "bizarre-tabletop/server/logging/sinks"
)

// Run assembles the session server and blocks until ctx is cancelled or the
// listener fails.
func Run(ctx context.Context) error {
	logger := log.Default()

	cfg, err := LoadConfig(os.Getenv("TABLETOP_CONFIG"))
	if err != nil {
		return err
	}

	logConfig := logging.DefaultConfig()
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout)},
	}
	var jsonFile *os.File
	if cfg.LogJSONPath != "" {
		jsonFile, err = os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open event log %s: %w", cfg.LogJSONPath, err)
		}
		defer jsonFile.Close()
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(jsonFile, logConfig.JSON.FlushInterval),
		})
	}

	router, err := logging.NewRouter(nil, logConfig, namedSinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	store := accounts.Open(cfg.AccountsPath, logger)
	if cfg.WatchAccounts {
		go func() {
			if err := store.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("accounts watcher stopped: %v", err)
			}
		}()
	}

	table := hub.New(hub.Config{
		World:            world.New(),
		Store:            store,
		Logger:           logger,
		Events:           router,
		QueueSize:        cfg.BroadcastQueue,
		SubscriberBuffer: cfg.SubscriberBuffer,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		table.Run(runCtx)
	}()

	if cfg.WSAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", wsbridge.NewHandler(table, logger))
		wsSrv := &http.Server{Addr: cfg.WSAddr, Handler: mux}
		go func() {
			<-runCtx.Done()
			wsSrv.Close()
		}()
		go func() {
			logger.Printf("websocket bridge listening on %s", cfg.WSAddr)
			if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("websocket bridge failed: %v", err)
			}
		}()
	}

	srv := tcpserver.NewServer(cfg.Addr, table, logger)
	err = srv.ListenAndServe(runCtx)

	cancel()
	<-dispatcherDone
	table.Wait()

	if err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
