package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"alloyforge.ai/internal/persistence/displaycache"
	persistlog "alloyforge.ai/internal/persistence/log"
	"alloyforge.ai/internal/transport/ws"
	"alloyforge.ai/internal/tuning"
)

func main() {
	var (
		configPath   = flag.String("config", "", "path to forge.yaml (optional)")
		addr         = flag.String("addr", "", "http listen address (overrides forge.yaml)")
		configDir    = flag.String("configs", "", "config directory (overrides forge.yaml)")
		disableCache = flag.Bool("disable_cache", false, "disable the sqlite display cache")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[forged] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*configPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if v := strings.TrimSpace(*addr); v != "" {
		tune.Server.Addr = v
	}
	if v := strings.TrimSpace(*configDir); v != "" {
		tune.ConfigDir = v
	}
	if *disableCache {
		tune.DisplayCache.Disabled = true
	}

	s := &server{tune: tune, logger: logger}
	if !tune.DisplayCache.Disabled {
		store, err := displaycache.Open(tune.DisplayCache.Path)
		if err != nil {
			logger.Fatalf("open display cache: %v", err)
		}
		defer store.Close()
		s.cache = store
	} else {
		logger.Printf("display cache disabled")
	}

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := s.reload(ctx); err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	st := s.state()
	logger.Printf("loaded %d alloy recipes, %d smelting recipes, %d items (digest=%s)",
		len(st.cats.Alloys.ByID), len(st.cats.Smelting.ByID), len(st.cats.Registry.Palette), st.digest)

	syncLogger := log.New(os.Stdout, "[sync] ", log.LstdFlags|log.Lmicroseconds)
	audit := persistlog.NewSyncLogger(tune.DataDir)
	defer audit.Close()
	syncSrv := ws.NewServer(s, syncLogger, ws.Options{
		WriteTimeout: tune.WriteTimeout(),
		MaxRecipes:   tune.Sync.MaxRecipes,
		Recorder:     audit,
	})

	srv := &http.Server{
		Addr:              tune.Server.Addr,
		Handler:           s.routes(syncSrv),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", tune.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
