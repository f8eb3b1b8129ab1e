package admin

import (
	"context"

	"chatoverlay/db"
)

func collectDatabaseHealthPostgres(pool *db.DBPool, ctx context.Context) (DatabaseHealth, error) {
	var health DatabaseHealth
	err := pool.PgxPool.QueryRow(ctx, `
        SELECT numbackends, pg_database_size(current_database())
        FROM pg_stat_database
        WHERE datname = current_database()`).
		Scan(&health.ActiveConnections, &health.SizeBytes)
	if err != nil {
		return DatabaseHealth{}, err
	}
	return health, nil
}
