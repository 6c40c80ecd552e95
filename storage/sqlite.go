package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/yarnvm/pkg/value"
	"github.com/chazu/yarnvm/vm"
)

var _ vm.VariableStorage = (*SQLiteStorage)(nil)

var log = commonlog.GetLogger("yarn.storage")

const schema = `CREATE TABLE IF NOT EXISTS variables (
	name TEXT PRIMARY KEY,
	kind INTEGER NOT NULL,
	num  REAL,
	txt  TEXT
)`

// SQLiteStorage persists variables in a SQLite database. Reads are served
// from an in-memory copy loaded at open; every write goes through to the
// database. The VariableStorage contract has no error returns, so database
// failures are logged and the first one is kept for Err.
type SQLiteStorage struct {
	db    *sql.DB
	path  string
	cache map[string]value.Value

	mu  sync.Mutex
	err error
}

// OpenSQLite opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and writes ordered.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	s := &SQLiteStorage{db: db, path: path, cache: make(map[string]value.Value)}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("opened %s with %d variables", path, len(s.cache))
	return s, nil
}

func (s *SQLiteStorage) load() error {
	rows, err := s.db.Query("SELECT name, kind, num, txt FROM variables")
	if err != nil {
		return fmt.Errorf("loading variables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			kind int
			num  sql.NullFloat64
			txt  sql.NullString
		)
		if err := rows.Scan(&name, &kind, &num, &txt); err != nil {
			return fmt.Errorf("loading variables: %w", err)
		}
		v, err := decodeRow(value.Kind(kind), num.Float64, txt.String)
		if err != nil {
			return fmt.Errorf("loading variable %q: %w", name, err)
		}
		s.cache[name] = v
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading variables: %w", err)
	}
	return nil
}

func decodeRow(kind value.Kind, num float64, txt string) (value.Value, error) {
	switch kind {
	case value.KindAbsent:
		return value.Absent, nil
	case value.KindNumber:
		return value.Number(num), nil
	case value.KindText:
		return value.Text(txt), nil
	case value.KindBool:
		return value.Bool(num != 0), nil
	}
	return value.Absent, fmt.Errorf("unknown kind %d", kind)
}

func encodeRow(v value.Value) (kind int, num any, txt any) {
	switch v.Kind() {
	case value.KindNumber:
		return int(value.KindNumber), v.Float(), nil
	case value.KindText:
		return int(value.KindText), nil, v.Str()
	case value.KindBool:
		if v.Boolean() {
			return int(value.KindBool), 1.0, nil
		}
		return int(value.KindBool), 0.0, nil
	}
	return int(value.KindAbsent), nil, nil
}

// Get returns the value of name, or value.Absent if unset.
func (s *SQLiteStorage) Get(name string) value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[name]
}

// Set stores v under name.
func (s *SQLiteStorage) Set(name string, v value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[name] = v

	kind, num, txt := encodeRow(v)
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO variables (name, kind, num, txt) VALUES (?, ?, ?, ?)",
		name, kind, num, txt,
	)
	if err != nil {
		s.record(fmt.Errorf("saving variable %q: %w", name, err))
	}
}

// Clear removes every variable.
func (s *SQLiteStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
	if _, err := s.db.Exec("DELETE FROM variables"); err != nil {
		s.record(fmt.Errorf("clearing variables: %w", err))
	}
}

// Snapshot returns a copy of every variable.
func (s *SQLiteStorage) Snapshot() map[string]value.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]value.Value, len(s.cache))
	for k, v := range s.cache {
		out[k] = v
	}
	return out
}

func (s *SQLiteStorage) record(err error) {
	log.Errorf("%s: %s", s.path, err)
	if s.err == nil {
		s.err = err
	}
}

// Err returns the first database error seen since open, if any.
func (s *SQLiteStorage) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the database. Later writes only update the in-memory copy
// and record an error.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
