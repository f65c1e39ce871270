package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AkatukiSora/mapassist/internal/game"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// WAL keeps the poll loop's reads from waiting on the prefetch worker's writes.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}
	repo := &SQLiteRepository{db: db}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepository) GetArea(ctx context.Context, key AreaKey) (*game.AreaData, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM areas
		WHERE difficulty = ? AND map_seed = ? AND area = ?`,
		int(key.Difficulty), int64(key.MapSeed), int64(key.Area)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get area %s: %w", key, err)
	}
	data, err := decodeArea(payload)
	if err != nil {
		return nil, fmt.Errorf("get area %s: %w", key, err)
	}
	return data, nil
}

func (r *SQLiteRepository) SaveArea(ctx context.Context, key AreaKey, data *game.AreaData) error {
	payload, err := encodeArea(data)
	if err != nil {
		return err
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO areas(difficulty, map_seed, area, payload, saved_at)
			VALUES(?, ?, ?, ?, ?)
			ON CONFLICT(difficulty, map_seed, area) DO UPDATE SET
				payload=excluded.payload,
				saved_at=excluded.saved_at`,
			int(key.Difficulty), int64(key.MapSeed), int64(key.Area), payload,
			time.Now().UnixNano()); err != nil {
			return fmt.Errorf("save area %s: %w", key, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) PurgeBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM areas WHERE saved_at < ?`, t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge areas: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge areas: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
