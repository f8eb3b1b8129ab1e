package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chatoverlay/admin"
	"chatoverlay/chat"
	"chatoverlay/config"
	"chatoverlay/db"
	"chatoverlay/middleware"
	"chatoverlay/router"
	"chatoverlay/webhooks"
	"chatoverlay/websocket"
)

func Limits(cfg *config.Config) chat.Limits {
	return chat.Limits{
		PageSize:          cfg.Chat.PageSize,
		MaxMessageLength:  cfg.Chat.MaxMessageLength,
		MaxUsernameLength: cfg.Chat.MaxUsernameLength,
		DefaultUsername:   cfg.Chat.DefaultUsername,
	}
}

// NewRouter mounts the chat API under cfg.Server.BasePath.
func NewRouter(cfg *config.Config, pool *db.DBPool, hub *websocket.Hub) *router.Router {
	limits := Limits(cfg)

	mainMux := router.NewRouter(cfg.Server.Name)
	mainMux.Use(middleware.Logger(mainMux.Logger))
	mainMux.Use(middleware.CORS(cfg.Server.CORSOrigin))

	webhookHandler := webhooks.NewWebhookHandler(cfg.Webhooks.Secret, cfg.Webhooks.Username, limits, hub)

	apiMux := router.NewRouter("API")
	apiMux.Pool = pool

	apiMux.Handle("GET /health", chat.HealthHandler)
	apiMux.Handle("GET /rooms", chat.RoomsHandler)
	apiMux.Handle("GET /messages", chat.GetMessagesHandler(limits))
	apiMux.Handle("POST /messages", chat.SendMessageHandler(hub, limits))
	apiMux.Handle("GET /ws", websocket.WebSocketHandler(hub, cfg.Server.CORSOrigin))
	apiMux.Handle("POST /webhooks/messages", webhookHandler.MessageWebhook)
	apiMux.Handle("GET /admin/metrics", admin.MetricsHandler(hub, time.Now()))

	mainMux.Include(apiMux, cfg.Server.BasePath)
	return mainMux
}

// Run serves until ctx is cancelled, then shuts down gracefully. The pool
// is closed on every return path.
func Run(ctx context.Context, pool *db.DBPool, router *router.Router, port string, name string) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		router.Logger.Printf("Shutting down '%s' ...", name)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			router.Logger.Printf("Server shutdown error: %v", err)
		}
		pool.Close()

		router.Logger.Println("Graceful shutdown completed")
	}()

	for _, route := range router.Routes() {
		router.Logger.Printf("Registered %s", route)
	}
	router.Logger.Printf("%s is running on port %s\n", name, port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		<-shutdownDone
		return err
	}

	<-shutdownDone
	router.Logger.Println("Server stopped.")
	return nil
}
