package appcontext

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"chatoverlay/db"
)

// AppContext holds request-scoped data and dependencies.
// Pool is optional and can be nil if not needed.
type AppContext struct {
	context.Context
	Writer  http.ResponseWriter
	Request *http.Request
	Logger  *log.Logger
	Pool    *db.DBPool
}

var appContextPool = sync.Pool{
	New: func() any {
		return new(AppContext)
	},
}

// CleanPut resets AppContext fields and puts it back to the pool
func CleanPut(ctx *AppContext) {
	ctx.Context = nil
	ctx.Writer = nil
	ctx.Request = nil
	ctx.Logger = nil
	ctx.Pool = nil
	appContextPool.Put(ctx)
}

func GetAppContext() *AppContext {
	return appContextPool.Get().(*AppContext)
}

// JSON writes v with the given status code.
func (ctx *AppContext) JSON(status int, v any) {
	ctx.Writer.Header().Set("Content-Type", "application/json")
	ctx.Writer.WriteHeader(status)
	if err := json.NewEncoder(ctx.Writer).Encode(v); err != nil && ctx.Logger != nil {
		ctx.Logger.Printf("Failed to encode response: %v", err)
	}
}
