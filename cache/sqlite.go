package cache

import (
	"database/sql"
	"errors"
	"log/slog"
	"time"
)

// SQLiteStore keeps entries in one table of a SQLite database.
type SQLiteStore struct {
	db      *sql.DB
	getStmt *sql.Stmt
	putStmt *sql.Stmt
	logger  *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at filePath.
//
// The returned store must be closed after use to release database resources.
func NewSQLiteStore(filePath string, opts ...Option) (*SQLiteStore, error) {
	config := newConfig(opts)

	var err error
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS responses (
			key TEXT PRIMARY KEY,
			data BLOB,
			created_at INTEGER
		);
	`)
	if err != nil {
		return nil, err
	}

	getStmt, err := db.Prepare("SELECT data FROM responses WHERE key = ?")
	if err != nil {
		return nil, err
	}

	putStmt, err := db.Prepare("INSERT OR REPLACE INTO responses (key, data, created_at) VALUES (?, ?, ?)")
	if err != nil {
		getStmt.Close()
		return nil, err
	}

	config.Logger.Debug("tileview: opened sqlite cache", "path", filePath)
	return &SQLiteStore{db: db, getStmt: getStmt, putStmt: putStmt, logger: config.Logger}, nil
}

func (s *SQLiteStore) Close() error {
	return errors.Join(s.getStmt.Close(), s.putStmt.Close(), s.db.Close())
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var data []byte
	if err := s.getStmt.QueryRow(key).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if data == nil {
		data = make([]byte, 0)
	}
	return data, true, nil
}

func (s *SQLiteStore) Put(key string, data []byte) error {
	_, err := s.putStmt.Exec(key, data, time.Now().Unix())
	return err
}

// Len returns the number of stored entries.
func (s *SQLiteStore) Len() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM responses").Scan(&n)
	return n, err
}
