package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/antibyte/workbench/pkg/adventure"
	"github.com/antibyte/workbench/pkg/auth"
	"github.com/antibyte/workbench/pkg/configuration"
	"github.com/antibyte/workbench/pkg/logger"
	"github.com/antibyte/workbench/pkg/resources"
	"github.com/antibyte/workbench/pkg/store"
	"github.com/antibyte/workbench/pkg/terminal"
	tlsmanager "github.com/antibyte/workbench/pkg/tls"
)

func main() {
	// Konfiguration vor allem anderen laden
	configPath := "settings.cfg"
	if err := configuration.Initialize(configPath); err != nil {
		fmt.Printf("Error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.ConfigInfo("System started - Configuration loaded from: %s", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.OpenFromConfig(ctx)
	if err != nil {
		logger.Fatal(logger.AreaDatabase, "Database initialization failed: %v", err)
	}
	defer db.Close()
	if stats, err := db.Stats(ctx); err == nil {
		logger.DatabaseInfo("database ready (%s): %s", db.Driver(), stats)
	}

	roomDir := configuration.GetString("Adventure", "room_dir", "public/game")
	gameFile := configuration.GetString("Adventure", "game_file", filepath.Join(roomDir, "game.json"))
	if configuration.GetBool("Adventure", "build_manifest", true) {
		if err := adventure.RebuildManifest(roomDir, gameFile); err != nil {
			logger.AdventureError("failed to build game manifest: %v", err)
		}
	}

	rm := resources.NewSessionResourceManager()
	rm.StartPeriodicCleanup(ctx, time.Minute)
	go purgeStoredSessions(ctx, db)

	handler := terminal.NewTerminalHandler(db, rm, adventure.FileSource(gameFile))

	staticDir := configuration.GetString("Server", "static_dir", "public")
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	mux.HandleFunc("/api/session", auth.HandleSession)
	mux.Handle("/game/", http.StripPrefix("/game/", http.FileServer(http.Dir(roomDir))))
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))

	tlsManager, err := tlsmanager.NewTLSManager()
	if err != nil {
		logger.Fatal(logger.AreaSecurity, "TLS manager initialization failed: %v", err)
	}

	servers := startServers(tlsManager, mux)

	<-ctx.Done()
	logger.Info(logger.AreaGeneral, "Shutting down (%d client(s) connected)", handler.ClientCount())
	handler.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(logger.AreaGeneral, "server %s shutdown: %v", srv.Addr, err)
		}
	}
}

// startServers startet HTTP oder HTTPS (plus HTTP für ACME/Redirects) und
// liefert die laufenden Server für den Shutdown.
func startServers(tlsManager *tlsmanager.TLSManager, mux http.Handler) []*http.Server {
	if !tlsManager.IsEnabled() {
		port := configuration.GetString("Server", "http_port", tlsManager.GetHTTPPort())
		srv := &http.Server{Addr: ":" + port, Handler: mux}
		logger.Info(logger.AreaGeneral, "Starting HTTP server on port %s", port)
		go serve(srv, func() error { return srv.ListenAndServe() })
		return []*http.Server{srv}
	}

	var servers []*http.Server
	if tlsManager.NeedsHTTPServer() {
		if httpHandler := tlsManager.GetHTTPHandler(); httpHandler != nil {
			httpSrv := &http.Server{Addr: ":" + tlsManager.GetHTTPPort(), Handler: httpHandler}
			logger.Info(logger.AreaSecurity, "Starting HTTP server for Let's Encrypt challenges/redirects on port %s", tlsManager.GetHTTPPort())
			go serve(httpSrv, func() error { return httpSrv.ListenAndServe() })
			servers = append(servers, httpSrv)
		}
	}

	httpsSrv := &http.Server{
		Addr:      ":" + tlsManager.GetHTTPSPort(),
		Handler:   mux,
		TLSConfig: tlsManager.GetTLSConfig(),
	}
	logger.Info(logger.AreaSecurity, "Starting HTTPS server on port %s", tlsManager.GetHTTPSPort())
	// Zertifikate kommen aus TLSConfig (autocert oder geladenes Schlüsselpaar)
	go serve(httpsSrv, func() error { return httpsSrv.ListenAndServeTLS("", "") })
	return append(servers, httpsSrv)
}

func serve(srv *http.Server, listen func() error) {
	if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(logger.AreaGeneral, "server %s failed: %v", srv.Addr, err)
		log.Fatalf("Error starting server on %s: %v", srv.Addr, err)
	}
}

// purgeStoredSessions entfernt gespeicherte Sessions, deren Token
// abgelaufen sein muss.
func purgeStoredSessions(ctx context.Context, db *store.Store) {
	retention := configuration.GetDuration("JWT", "token_expiration", 24*time.Hour)
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := db.PurgeSessions(ctx, time.Now().Add(-retention)); err != nil {
				logger.DatabaseError("session purge failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
