package admin

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"chatoverlay/db"

	"github.com/dustin/go-humanize"
)

func CollectDatabaseHealth(pool *db.DBPool, ctx context.Context) (DatabaseHealth, error) {
	var (
		health DatabaseHealth
		err    error
	)
	switch pool.Type {
	case db.TypePostgres:
		health, err = collectDatabaseHealthPostgres(pool, ctx)
	case db.TypeSQLite:
		health, err = collectDatabaseHealthSQLite(pool, ctx)
	default:
		return DatabaseHealth{}, fmt.Errorf("unsupported database type: %s", pool.Type)
	}
	if err != nil {
		return DatabaseHealth{}, err
	}
	health.Type = pool.Type
	health.Size = humanize.Bytes(uint64(max(health.SizeBytes, 0)))
	return health, nil
}

func CollectSystemHealth(started time.Time, subscribers map[string]int) SystemHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	connections := 0
	for _, n := range subscribers {
		connections += n
	}

	uptime := time.Since(started)
	return SystemHealth{
		MemoryUsage:          humanize.Bytes(m.Alloc),
		HeapSize:             humanize.Bytes(m.HeapAlloc),
		GoroutineCount:       runtime.NumGoroutine(),
		WebSocketConnections: connections,
		Uptime:               strings.TrimSpace(humanize.RelTime(started, started.Add(uptime), "", "")),
		UptimeSeconds:        int64(uptime.Seconds()),
	}
}
