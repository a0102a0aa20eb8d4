package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "regionsched/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	at      INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	op      TEXT    NOT NULL,
	mode    TEXT,
	entity  TEXT,
	took_ms INTEGER NOT NULL DEFAULT 0,
	err     TEXT
);
CREATE INDEX IF NOT EXISTS history_at ON history(at);
CREATE INDEX IF NOT EXISTS history_kind ON history(kind);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite serializes writers anyway and ":memory:" is
	// per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	log.Debug("history store opened", logx.String("driver", "sqlite"), logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Append(ctx context.Context, r Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history(at, kind, op, mode, entity, took_ms, err) VALUES(?,?,?,?,?,?,?)`,
		r.At.UnixMilli(), r.Kind, r.Op, nullStr(r.Mode), nullStr(r.Entity), r.TookMS, nullStr(r.Error),
	)
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, kind, op, mode, entity, took_ms, err FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			at                 int64
			r                  Record
			mode, entity, errS sql.NullString
		)
		if err := rows.Scan(&at, &r.Kind, &r.Op, &mode, &entity, &r.TookMS, &errS); err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(at)
		r.Mode, r.Entity, r.Error = mode.String, entity.String, errS.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Summary(ctx context.Context) (Summary, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM history GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := Summary{}
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

func (s *sqliteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE at < ?`, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
