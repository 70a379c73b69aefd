package archive

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/tsdf.cache/internal/geom"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a sqlite-backed Archive. Each Store instance owns one
// reconstruction session; points from earlier sessions in the same
// database are kept but never returned by QueryRegion.
type Store struct {
	db        *sql.DB
	sessionID string
}

// NewStore opens (or creates) the database at path, applies pending
// schema migrations and begins a new session. label is free-form
// operator context recorded on the session row.
func NewStore(path, label string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	sessionID := uuid.New().String()
	_, err = db.Exec(
		`INSERT INTO archive_sessions (session_id, label, created_at_ns) VALUES (?, ?, ?)`,
		sessionID, label, time.Now().UnixNano(),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive session: %w", err)
	}

	return &Store{db: db, sessionID: sessionID}, nil
}

// OpenSession attaches to an existing session in the database at path.
// Used by read-side tools.
func OpenSession(path, sessionID string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	var found string
	err = db.QueryRow(
		`SELECT session_id FROM archive_sessions WHERE session_id = ?`, sessionID,
	).Scan(&found)
	if err == sql.ErrNoRows {
		db.Close()
		return nil, fmt.Errorf("archive session not found: %s", sessionID)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lookup archive session: %w", err)
	}
	return &Store{db: db, sessionID: sessionID}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Note: m is not closed here because that would close the underlying
	// DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SessionID returns the session this store writes into.
func (s *Store) SessionID() string {
	return s.sessionID
}

// InsertBulk stores a batch of points in a single transaction.
func (s *Store) InsertBulk(points []Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin point insert: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO world_points (session_id, x, y, z, intensity) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare point insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(s.sessionID, p.Position.X, p.Position.Y, p.Position.Z, p.Intensity); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert point: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit point insert: %w", err)
	}
	return nil
}

// QueryRegion returns every point of this session inside the half-open
// box.
func (s *Store) QueryRegion(box geom.AABB) ([]Point, error) {
	rows, err := s.db.Query(
		`SELECT x, y, z, intensity FROM world_points
		 WHERE session_id = ?
		   AND x >= ? AND x < ?
		   AND y >= ? AND y < ?
		   AND z >= ? AND z < ?`,
		s.sessionID,
		box.Min.X, box.Max.X,
		box.Min.Y, box.Max.Y,
		box.Min.Z, box.Max.Z,
	)
	if err != nil {
		return nil, fmt.Errorf("query region: %w", err)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var p Point
		var intensity float64
		if err := rows.Scan(&p.Position.X, &p.Position.Y, &p.Position.Z, &intensity); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Intensity = float32(intensity)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points: %w", err)
	}
	return out, nil
}

// Count returns the number of points in this session.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM world_points WHERE session_id = ?`, s.sessionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return n, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
