package admin

import (
	"net/http"
	"time"

	"chatoverlay/appcontext"
	"chatoverlay/chat"
)

// SubscriberCounter reports live push subscribers per room.
type SubscriberCounter interface {
	Subscribers() map[string]int
}

func MetricsHandler(subs SubscriberCounter, started time.Time) func(*appcontext.AppContext) {
	return func(ctx *appcontext.AppContext) {
		store, err := chat.NewStore(ctx.Pool)
		if err != nil {
			ctx.Logger.Printf("Failed to open store: %v", err)
			http.Error(ctx.Writer, "Database not available", http.StatusInternalServerError)
			return
		}

		stats, err := store.Stats(ctx.Context)
		if err != nil {
			ctx.Logger.Printf("Failed to collect chat stats: %v", err)
			http.Error(ctx.Writer, "Failed to collect chat stats", http.StatusInternalServerError)
			return
		}

		dbHealth, err := CollectDatabaseHealth(ctx.Pool, ctx.Context)
		if err != nil {
			ctx.Logger.Printf("Failed to collect database metrics: %v", err)
			http.Error(ctx.Writer, "Failed to collect database metrics", http.StatusInternalServerError)
			return
		}

		subscribers := map[string]int{}
		if subs != nil {
			subscribers = subs.Subscribers()
		}

		ctx.JSON(http.StatusOK, MetricsResponse{
			Timestamp:   time.Now(),
			Chat:        stats,
			Database:    dbHealth,
			System:      CollectSystemHealth(started, subscribers),
			Subscribers: subscribers,
		})
	}
}
