package library

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"rubato/pkg/models"
)

// Cache persists probe results in SQLite so rescans of a large library do
// not re-read every file. Entries are keyed by path and invalidated when
// the file's mtime or size changes. Only scan metadata is stored here;
// playback state is never persisted.
type Cache struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for better performance
	lookupStmt *sql.Stmt
	storeStmt  *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewCache opens (or creates) a SQLite cache at the provided path and
// ensures the schema exists. Caller should Close() it when finished.
func NewCache(dbPath string, logger *logrus.Logger) (*Cache, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite works better with fewer connections
	conn.SetMaxOpenConns(2)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	c := &Cache{conn: conn, logger: logger}

	if err := c.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create cache tables: %w", err)
	}
	if err := c.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare cache statements: %w", err)
	}

	return c, nil
}

func (c *Cache) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tracks (
		path      TEXT PRIMARY KEY,
		mtime     INTEGER NOT NULL,
		size      INTEGER NOT NULL,
		title     TEXT NOT NULL,
		artist    TEXT NOT NULL,
		duration  INTEGER NOT NULL,
		unreadable INTEGER NOT NULL DEFAULT 0
	);`
	_, err := c.conn.Exec(schema)
	return err
}

func (c *Cache) prepareStatements() error {
	var err error

	c.lookupStmt, err = c.conn.Prepare(
		`SELECT mtime, size, title, artist, duration, unreadable FROM tracks WHERE path = ?`)
	if err != nil {
		return err
	}

	c.storeStmt, err = c.conn.Prepare(
		`INSERT OR REPLACE INTO tracks (path, mtime, size, title, artist, duration, unreadable)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	c.deleteStmt, err = c.conn.Prepare(`DELETE FROM tracks WHERE path = ?`)
	return err
}

// Lookup returns a cached track for path if the entry matches the file's
// current mtime and size.
func (c *Cache) Lookup(path string, modTime time.Time, size int64) (models.Track, bool, error) {
	var (
		mtime      int64
		cachedSize int64
		track      models.Track
		unreadable int
	)
	err := c.lookupStmt.QueryRow(path).Scan(
		&mtime, &cachedSize, &track.Title, &track.Artist, &track.Duration, &unreadable)
	if err == sql.ErrNoRows {
		return models.Track{}, false, nil
	}
	if err != nil {
		return models.Track{}, false, err
	}

	if mtime != modTime.Unix() || cachedSize != size {
		// Stale entry; the caller will re-probe and overwrite it.
		return models.Track{}, false, nil
	}

	track.Path = path
	track.FileSize = size
	track.ModTime = modTime
	track.Unreadable = unreadable != 0
	return track, true, nil
}

// Store inserts or replaces the cache entry for a probed track.
func (c *Cache) Store(track models.Track) error {
	unreadable := 0
	if track.Unreadable {
		unreadable = 1
	}
	_, err := c.storeStmt.Exec(
		track.Path, track.ModTime.Unix(), track.FileSize,
		track.Title, track.Artist, track.Duration, unreadable)
	return err
}

// Prune removes cache rows for files no longer present in the library.
func (c *Cache) Prune(existing map[string]int) error {
	rows, err := c.conn.Query(`SELECT path FROM tracks`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return err
		}
		if _, ok := existing[path]; !ok {
			stale = append(stale, path)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, path := range stale {
		if _, err := c.deleteStmt.Exec(path); err != nil {
			return err
		}
		c.logger.WithField("file_path", path).Debug("Pruned cache entry")
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	if c.lookupStmt != nil {
		c.lookupStmt.Close()
	}
	if c.storeStmt != nil {
		c.storeStmt.Close()
	}
	if c.deleteStmt != nil {
		c.deleteStmt.Close()
	}
	return c.conn.Close()
}
