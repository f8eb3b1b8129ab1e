package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
)

const (
	TypeSQLite   = "sqlite3"
	TypePostgres = "postgres"
)

//go:embed migrations
var migrationsFS embed.FS

type DatabaseConfig struct {
	Type     string
	Database string // file path for sqlite3, database name for postgres
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// DBPool is either a pair of SQLite pools (one writer, many readers) or a
// pgx pool, depending on Type.
type DBPool struct {
	Type    string
	ReadDB  *sql.DB
	WriteDB *sql.DB
	PgxPool *pgxpool.Pool
	Path    string
}

type RequestDB struct {
	*sql.Tx
	conn *sql.DB
}

const (
	busyTimeout = "5000"      // 5 seconds
	cacheSize   = "-20000"    // 20MB
	mmapSize    = "268435456" // 256MB
	journalMode = "WAL"
	synchronous = "NORMAL"
	tempStore   = "MEMORY"
	foreignKeys = "true"
)

func InitDB(ctx context.Context, cfg DatabaseConfig) (*DBPool, error) {
	switch cfg.Type {
	case TypeSQLite, "sqlite", "":
		return initSQLite(cfg.Database)
	case TypePostgres:
		return initPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func initSQLite(database string) (*DBPool, error) {
	writeDB, err := openConnection(database, false)
	if err != nil {
		return nil, fmt.Errorf("write pool init failed: %w", err)
	}

	if err := runSQLiteMigrations(writeDB); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	readDB, err := openConnection(database, true)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("read pool init failed: %w", err)
	}

	return &DBPool{
		Type:    TypeSQLite,
		ReadDB:  readDB,
		WriteDB: writeDB,
		Path:    database,
	}, nil
}

func runSQLiteMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		return err
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, TypeSQLite, driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func openConnection(database string, readonly bool) (*sql.DB, error) {
	params := make(url.Values)
	params.Add("_journal_mode", journalMode)
	params.Add("_busy_timeout", busyTimeout)
	params.Add("_synchronous", synchronous)
	params.Add("_cache_size", cacheSize)
	params.Add("_foreign_keys", foreignKeys)
	params.Add("_temp_store", tempStore)

	if readonly {
		params.Add("mode", "ro")
	} else {
		params.Add("mode", "rwc")
		params.Add("_txlock", "immediate")
	}

	connStr := fmt.Sprintf("file:%s?%s", database, params.Encode())
	db, err := sql.Open(TypeSQLite, connStr)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(fmt.Sprintf("PRAGMA mmap_size=%s;", mmapSize))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mmap_size pragma failed: %w", err)
	}

	if readonly {
		db.SetMaxOpenConns(max(2, runtime.NumCPU()))
		db.SetMaxIdleConns(2)
	} else {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection ping failed: %w", err)
	}

	return db, nil
}

func initPostgres(ctx context.Context, cfg DatabaseConfig) (*DBPool, error) {
	dsn := postgresURL("postgres", cfg)

	src, err := iofs.New(migrationsFS, "migrations/postgres")
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, postgresURL("pgx5", cfg))
	if err != nil {
		return nil, fmt.Errorf("migration setup failed: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		m.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	m.Close()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgx pool init failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connection ping failed: %w", err)
	}

	return &DBPool{Type: TypePostgres, PgxPool: pool}, nil
}

func postgresURL(scheme string, cfg DatabaseConfig) string {
	u := url.URL{
		Scheme: scheme,
		Host:   cfg.Host,
		Path:   "/" + cfg.Database,
	}
	if cfg.Port > 0 {
		u.Host = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (pool *DBPool) GetReadTx(ctx context.Context) (*RequestDB, error) {
	tx, err := pool.ReadDB.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, err
	}
	return &RequestDB{Tx: tx, conn: pool.ReadDB}, nil
}

func (pool *DBPool) GetWriteTx(ctx context.Context) (*RequestDB, error) {
	tx, err := pool.WriteDB.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return nil, err
	}
	return &RequestDB{Tx: tx, conn: pool.WriteDB}, nil
}

func (rdb *RequestDB) Commit() error {
	return rdb.Tx.Commit()
}

func (rdb *RequestDB) Rollback() error {
	return rdb.Tx.Rollback()
}

func (pool *DBPool) Close() {
	if pool.ReadDB != nil {
		pool.ReadDB.Close()
	}
	if pool.WriteDB != nil {
		pool.WriteDB.Close()
	}
	if pool.PgxPool != nil {
		pool.PgxPool.Close()
	}
}
