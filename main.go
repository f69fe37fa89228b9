package main

import (
	"context"
	"docsync-server/config"
	"docsync-server/credentials"
	"docsync-server/handlers/api/rooms"
	"docsync-server/handlers/websocket"
	authMiddleware "docsync-server/middleware"
	"docsync-server/render"
	"docsync-server/session"
	"docsync-server/stores"
	"docsync-server/telemetry"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const shutdownTimeout = 30 * time.Second

func setupRouter(manager *session.Manager, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/healthz", rooms.HandleHealth(manager.Cache()))

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT([]byte(cfg.JWTSecret)))
		r.Get("/api/rooms", rooms.HandleListRooms(manager.Registry()))
	})

	return r
}

func waitForShutdown(srv *http.Server, ioo *socketio.Server, manager *session.Manager, shutdownTracer func(context.Context) error) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	ioo.Close(nil)
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	// Connections are gone; anything still dirty in the cache is written now.
	if err := manager.Checkpoint(ctx); err != nil {
		logrus.WithError(err).WithField("alert", "data_loss_risk").Error("Final checkpoint failed")
	}

	if shutdownTracer != nil {
		if err := shutdownTracer(ctx); err != nil {
			logrus.WithError(err).Warn("Failed to flush traces")
		}
	}
}

func main() {
	cfg := config.Load()

	listenAddress := flag.String("listen", cfg.ListenAddr, "The address to listen on.")
	logLevel := flag.String("loglevel", cfg.LogLevel, "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	var shutdownTracer func(context.Context) error
	if cfg.JaegerEndpoint != "" {
		shutdownTracer, err = telemetry.InitJaeger(cfg.JaegerEndpoint)
		if err != nil {
			logrus.WithError(err).Warn("Tracing disabled")
		}
	}

	blobs := stores.GetBlobStore(cfg)
	creds := stores.GetCredentialStore(cfg)

	gateway := credentials.NewGateway(creds, cfg.AuthTimeout)
	coordinator := session.NewCoordinator(blobs, render.NewHTML(), cfg.StorageTimeout)
	manager := session.NewManager(gateway, creds, coordinator, cfg.StorageTimeout)

	r := setupRouter(manager, cfg)
	ioo := websocket.SetupSocketIO(manager, cfg)
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	srv := &http.Server{Addr: *listenAddress, Handler: r}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, ioo, manager, shutdownTracer)
}
