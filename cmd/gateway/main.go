// Command gateway hosts the VLESS-over-WebSocket proxy core as a minimal,
// standalone HTTP server exposing the /vless upgrade route — the
// front-end the rest of this repo treats as an external collaborator.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/vlessgate/gateway/internal/config"
	"github.com/vlessgate/gateway/internal/doh"
	"github.com/vlessgate/gateway/internal/gateway"
	"github.com/vlessgate/gateway/internal/wsconn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}

	dispatcher := gateway.NewDispatcher(cfg)
	dohAdapter := doh.NewAdapter(cfg.DoHURL)

	mux := http.NewServeMux()
	mux.HandleFunc("/vless", func(w http.ResponseWriter, r *http.Request) {
		protocol := r.Header.Get("Sec-WebSocket-Protocol")
		conn, err := wsconn.Upgrade(w, r, protocol)
		if err != nil {
			slog.Warn("upgrade failed", "err", err, "remote", r.RemoteAddr)
			return
		}
		gateway.Serve(r.Context(), conn, protocol, cfg, dispatcher, dohAdapter)
	})

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		slog.Info("gateway listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway server failed: %+v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
