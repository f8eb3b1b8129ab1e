package admin

import (
	"time"

	"chatoverlay/chat"
)

type MetricsResponse struct {
	Timestamp   time.Time      `json:"timestamp"`
	Chat        chat.Stats     `json:"chat"`
	Database    DatabaseHealth `json:"database"`
	System      SystemHealth   `json:"system"`
	Subscribers map[string]int `json:"subscribers"` // room id -> live websocket subscribers
}

type DatabaseHealth struct {
	Type              string `json:"type"`
	ActiveConnections int    `json:"active_connections"`
	SizeBytes         int64  `json:"size_bytes"`
	Size              string `json:"size"`
}

type SystemHealth struct {
	MemoryUsage          string `json:"memory_usage"`
	HeapSize             string `json:"heap_size"`
	GoroutineCount       int    `json:"goroutine_count"`
	WebSocketConnections int    `json:"websocket_connections"`
	Uptime               string `json:"uptime"`
	UptimeSeconds        int64  `json:"uptime_seconds"`
}
