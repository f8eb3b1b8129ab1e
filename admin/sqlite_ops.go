package admin

import (
	"context"

	"chatoverlay/db"
)

func collectDatabaseHealthSQLite(pool *db.DBPool, ctx context.Context) (DatabaseHealth, error) {
	rdb, err := pool.GetReadTx(ctx)
	if err != nil {
		return DatabaseHealth{}, err
	}
	defer rdb.Rollback()

	var pageCount, pageSize int64
	if err := rdb.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return DatabaseHealth{}, err
	}
	if err := rdb.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return DatabaseHealth{}, err
	}

	return DatabaseHealth{
		ActiveConnections: pool.ReadDB.Stats().OpenConnections + pool.WriteDB.Stats().OpenConnections,
		SizeBytes:         pageCount * pageSize,
	}, nil
}
