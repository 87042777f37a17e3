package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budget/internal/core"

	_ "modernc.org/sqlite"
)

const defaultLockTimeout = 5 * time.Second

// SQLiteRepository owns the database handle and the row locks that serialize
// writers touching the same account, template, debt or investment.
type SQLiteRepository struct {
	db          *sql.DB
	queries     *Queries
	locks       *RowLocks
	lockTimeout time.Duration
}

type Option func(*SQLiteRepository)

// WithLockTimeout bounds how long a write waits for its row locks.
func WithLockTimeout(d time.Duration) Option {
	return func(r *SQLiteRepository) {
		if d > 0 {
			r.lockTimeout = d
		}
	}
}

func NewSQLiteRepository(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:          db,
		queries:     New(db),
		locks:       NewRowLocks(),
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(repo)
	}

	if err := repo.seedCategories(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed categories: %w", err)
	}

	slog.Info("SQLite repository ready", "path", dbPath, "lock_timeout", repo.lockTimeout)
	return repo, nil
}

// dsn enables foreign keys, WAL and a busy timeout on every pooled
// connection, and makes BEGIN take the write lock up front.
func dsn(path string) string {
	return path + "?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Queries runs statements outside any transaction. Use it for reads.
func (r *SQLiteRepository) Queries() *Queries {
	return r.queries
}

// WithinTx acquires the row locks for keys, then runs fn in a database
// transaction. fn's error rolls the transaction back and is returned as is;
// SQLite lock contention comes back as a retryable core.ErrBusy.
func (r *SQLiteRepository) WithinTx(ctx context.Context, keys []LockKey, fn func(*Queries) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	unlock, err := r.locks.Acquire(lockCtx, keys...)
	cancel()
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return busy(fmt.Errorf("begin transaction: %w", err))
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return busy(err)
	}
	if err := tx.Commit(); err != nil {
		return busy(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func busy(err error) error {
	var domain *core.Error
	if errors.As(err, &domain) {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return &core.Error{Kind: core.KindBusy, Msg: "database is busy, retry later", Err: err}
	}
	return err
}
