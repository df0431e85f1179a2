// Package trackstore is an optional SQLite sink for emitted track
// observations: useful for offline evaluation of a run (replaying a
// sequence and inspecting the track history afterward) but never on the
// tracker's own hot path.
package trackstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/ridgeline-vision/bytetrack/internal/track"
)

//go:embed migrations
var migrationsFS embed.FS

// Store persists per-frame track observations to a SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or migrates the database at path and returns a ready Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("trackstore: open %s: %w", path, err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("trackstore: iofs source: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("trackstore: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("trackstore: migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, fmt.Errorf("trackstore: migrate up: %w", err)
	}

	return &Store{db: db}, nil
}

// Append writes one row per active track for the frame they were emitted
// on, tagged with the request's correlation id.
func (s *Store) Append(correlationID string, tracks []*track.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("trackstore: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO track_observations
			(correlation_id, frame_id, track_id, x, y, w, h, score, class_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("trackstore: prepare: %w", err)
	}
	defer stmt.Close()

	for _, tr := range tracks {
		if _, err := stmt.Exec(
			correlationID, tr.FrameID, tr.TrackID,
			tr.TLWH[0], tr.TLWH[1], tr.TLWH[2], tr.TLWH[3],
			tr.Score, tr.ClassName,
		); err != nil {
			return fmt.Errorf("trackstore: insert track %d: %w", tr.TrackID, err)
		}
	}

	return tx.Commit()
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[trackstore migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}
