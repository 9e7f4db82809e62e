package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newslens/internal/extract"
	"newslens/internal/history"
	"newslens/internal/server"
)

func serveCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.Int("port", 0, "listen port (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Port = *port
	}
	rs, err := loadRules(cfg)
	if err != nil {
		return err
	}

	x := extract.New(extract.Config{
		Rules:         rs,
		Recognizer:    buildRecognizer(cfg),
		ContextWindow: cfg.ContextWindow,
		CacheTTL:      time.Duration(cfg.CacheTTLSeconds) * time.Second,
		CacheSize:     cfg.CacheSize,
	})

	hist, err := history.Open(context.Background(), cfg.HistoryPath)
	if err != nil {
		// The service is still useful without persistence.
		log.Printf("[newslens] history disabled: %v", err)
		hist = nil
	} else {
		defer hist.Close()
	}

	srv := server.New(cfg, x, hist)
	fmt.Printf("NewsLens listening on http://localhost:%d\n", cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("[newslens] received signal %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
