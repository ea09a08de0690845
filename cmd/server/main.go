// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/quizwire/quizwire/internal/auth"
	"github.com/quizwire/quizwire/internal/catalog"
	"github.com/quizwire/quizwire/internal/channel"
	"github.com/quizwire/quizwire/internal/database"
	"github.com/quizwire/quizwire/internal/game"
	"github.com/quizwire/quizwire/internal/handlers"
	"github.com/quizwire/quizwire/internal/middleware"
	"github.com/quizwire/quizwire/internal/store"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	st, err := store.Connect()
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rooms := channel.NewRoomManager()
	// Schedulers are bound to the process lifetime, not to the request that
	// started them.
	registry := game.NewRegistry(ctx, st, rooms, logger)
	questions := catalog.NewPostgres(database.DB)
	service := game.NewService(st, questions, registry, rooms, logger)
	rooms.OnEmpty = service.HandleRoomEmpty

	srv := handlers.NewServer(st, service, rooms, logger)

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)

	// game REST endpoints
	mux.Handle("/games/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		srv.GamesHandler,
	)))

	// realtime channel
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.WSHandler(logger, srv),
	)))

	mux.HandleFunc("/healthz", handlers.HealthzHandler)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Infof("Running on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	// Stop every running game loop before the listener so no timers are
	// orphaned mid-tick.
	registry.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown error: %v", err)
	}
}
