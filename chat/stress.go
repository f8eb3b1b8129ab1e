package chat

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// SendFunc posts one message as username.
type SendFunc func(ctx context.Context, username, body string) error

type StressResult struct {
	Total          int           `json:"total_messages"`
	Success        int64         `json:"success_count"`
	Failed         int64         `json:"fail_count"`
	Duration       time.Duration `json:"duration"`
	MessagesPerSec float64       `json:"messages_per_sec"`
}

// StressChat has numUsers concurrent senders post messagesPerUser messages each.
func StressChat(ctx context.Context, send SendFunc, numUsers, messagesPerUser int) StressResult {
	var success, failed atomic.Int64

	start := time.Now()
	p := pool.New().WithMaxGoroutines(max(numUsers, 1))
	for i := 0; i < numUsers; i++ {
		username := fmt.Sprintf("stress-%d", i)
		p.Go(func() {
			for j := 0; j < messagesPerUser; j++ {
				if ctx.Err() != nil {
					failed.Add(1)
					continue
				}
				body := fmt.Sprintf("Stress test message %d from %s", j, username)
				if err := send(ctx, username, body); err != nil {
					failed.Add(1)
				} else {
					success.Add(1)
				}
			}
		})
	}
	p.Wait()

	duration := time.Since(start)
	result := StressResult{
		Total:    numUsers * messagesPerUser,
		Success:  success.Load(),
		Failed:   failed.Load(),
		Duration: duration,
	}
	if secs := duration.Seconds(); secs > 0 {
		result.MessagesPerSec = float64(result.Success) / secs
	}
	return result
}
