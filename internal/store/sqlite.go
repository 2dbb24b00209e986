package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the SQLite database at dsn, tunes the pool and migrates the schema.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) InsertClick(ctx context.Context, c Click) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs(link_id, click_time, month_key, ip_address, user_agent) VALUES(?, ?, ?, ?, ?)`,
		c.LinkID, c.Time, c.MonthKey, c.IP, c.UserAgent)
	return err
}

const counterColumns = `id, name, type, total_clicks, year_clicks, month_clicks, day_clicks, last_year, last_month, last_day, last_time`

type scanner interface {
	Scan(dest ...any) error
}

func scanCounter(row scanner) (Counter, error) {
	var c Counter
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.TotalClicks, &c.YearClicks, &c.MonthClicks,
		&c.DayClicks, &c.LastYear, &c.LastMonth, &c.LastDay, &c.LastTime)
	return c, err
}

// UpsertCounter runs the read-modify-write on a dedicated connection inside
// BEGIN IMMEDIATE, so the write lock is held from the first read whatever the
// DSN's _txlock setting.
func (s *SQLite) UpsertCounter(ctx context.Context, id string, fn CounterFunc) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire counter conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return fmt.Errorf("begin counter tx: %w", err)
	}
	defer func() {
		if err != nil {
			conn.ExecContext(context.WithoutCancel(ctx), `ROLLBACK`)
		}
	}()

	var prev *Counter
	c, err := scanCounter(conn.QueryRowContext(ctx, `SELECT `+counterColumns+` FROM stats WHERE id = ?`, id))
	switch {
	case err == nil:
		prev = &c
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	default:
		return fmt.Errorf("load counter: %w", err)
	}

	next := fn(prev)
	next.ID = id
	_, err = conn.ExecContext(ctx, `INSERT INTO stats(`+counterColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, type=excluded.type,
			total_clicks=excluded.total_clicks, year_clicks=excluded.year_clicks,
			month_clicks=excluded.month_clicks, day_clicks=excluded.day_clicks,
			last_year=excluded.last_year, last_month=excluded.last_month,
			last_day=excluded.last_day, last_time=excluded.last_time`,
		next.ID, next.Name, next.Type, next.TotalClicks, next.YearClicks, next.MonthClicks,
		next.DayClicks, next.LastYear, next.LastMonth, next.LastDay, next.LastTime)
	if err != nil {
		return fmt.Errorf("write counter: %w", err)
	}
	if _, err = conn.ExecContext(ctx, `COMMIT`); err != nil {
		return fmt.Errorf("commit counter: %w", err)
	}
	return nil
}

func (s *SQLite) Counter(ctx context.Context, id string) (Counter, error) {
	c, err := scanCounter(s.db.QueryRowContext(ctx, `SELECT `+counterColumns+` FROM stats WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Counter{}, ErrNotFound
	}
	return c, err
}

func (s *SQLite) Counters(ctx context.Context) ([]Counter, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+counterColumns+` FROM stats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Counter
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// escapeLike makes a literal prefix safe for LIKE ... ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *SQLite) CountByPrefix(ctx context.Context, prefix string) (map[string]int64, error) {
	return s.countGrouped(ctx,
		`SELECT link_id, COUNT(*) FROM logs WHERE click_time LIKE ? || '%' ESCAPE '\' GROUP BY link_id`,
		escapeLike(prefix))
}

func (s *SQLite) CountByMonthKey(ctx context.Context, monthKey string) (map[string]int64, error) {
	return s.countGrouped(ctx, `SELECT link_id, COUNT(*) FROM logs WHERE month_key = ? GROUP BY link_id`, monthKey)
}

func (s *SQLite) countGrouped(ctx context.Context, query string, arg string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		res[id] = n
	}
	return res, rows.Err()
}

func (s *SQLite) MonthTotal(ctx context.Context, monthKey string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs WHERE month_key = ?`, monthKey).Scan(&n)
	return n, err
}

func (s *SQLite) RecentClicks(ctx context.Context, id, prefix string, limit int) ([]Click, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT link_id, click_time, month_key, ip_address, user_agent FROM logs
		WHERE link_id = ? AND click_time LIKE ? || '%' ESCAPE '\'
		ORDER BY click_time DESC, id DESC LIMIT ?`, id, escapeLike(prefix), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Click{}
	for rows.Next() {
		var c Click
		if err := rows.Scan(&c.LinkID, &c.Time, &c.MonthKey, &c.IP, &c.UserAgent); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate ensures schema exists
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			link_id TEXT NOT NULL,
			click_time TEXT NOT NULL,
			month_key TEXT NOT NULL,
			ip_address TEXT NOT NULL DEFAULT 'unknown',
			user_agent TEXT NOT NULL DEFAULT 'unknown'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_logs_link_time ON logs(link_id, click_time);`,
		`CREATE INDEX IF NOT EXISTS idx_logs_month_key ON logs(month_key);`,
		`CREATE TABLE IF NOT EXISTS stats (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			total_clicks INTEGER NOT NULL DEFAULT 0,
			year_clicks INTEGER NOT NULL DEFAULT 0,
			month_clicks INTEGER NOT NULL DEFAULT 0,
			day_clicks INTEGER NOT NULL DEFAULT 0,
			last_year TEXT NOT NULL DEFAULT '',
			last_month TEXT NOT NULL DEFAULT '',
			last_day TEXT NOT NULL DEFAULT '',
			last_time TEXT NOT NULL DEFAULT ''
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
