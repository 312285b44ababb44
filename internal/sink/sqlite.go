package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gnsslog/internal/nmea"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS fixes (
	session     TEXT    NOT NULL,
	seq         INTEGER NOT NULL,
	lat         REAL    NOT NULL,
	lon         REAL    NOT NULL,
	recorded_at TEXT    NOT NULL,
	PRIMARY KEY (session, seq)
);
CREATE INDEX IF NOT EXISTS fixes_recorded_at ON fixes (recorded_at);
`

// SQLite appends coordinates to a fixes table. Every opened sink is a new
// recording session identified by a random UUID; seq preserves arrival
// order inside a session.
type SQLite struct {
	db      *sql.DB
	insert  *sql.Stmt
	session string
	seq     int64
	now     func() time.Time
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: open %s: %w", path, err)
	}
	// One writer; keeps the single-file database free of lock contention.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite sink: %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite sink: schema: %w", err)
	}

	stmt, err := db.Prepare(`INSERT INTO fixes (session, seq, lat, lon, recorded_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite sink: prepare: %w", err)
	}
	return &SQLite{db: db, insert: stmt, session: uuid.NewString(), now: time.Now}, nil
}

// Session is the identifier stamped on every row written by this sink.
func (s *SQLite) Session() string { return s.session }

func (s *SQLite) Accept(c nmea.Coordinate) error {
	s.seq++
	_, err := s.insert.Exec(s.session, s.seq, c.Lat, c.Lon, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite sink: insert: %w", err)
	}
	return nil
}

// Track returns a session's coordinates in arrival order.
func (s *SQLite) Track(ctx context.Context, session string) ([]nmea.Coordinate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lat, lon FROM fixes WHERE session = ? ORDER BY seq`, session)
	if err != nil {
		return nil, fmt.Errorf("sqlite sink: query: %w", err)
	}
	defer rows.Close()

	var out []nmea.Coordinate
	for rows.Next() {
		var c nmea.Coordinate
		if err := rows.Scan(&c.Lat, &c.Lon); err != nil {
			return nil, fmt.Errorf("sqlite sink: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	_ = s.insert.Close()
	err := s.db.Close()
	s.db = nil
	return err
}
