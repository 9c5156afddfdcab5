// Package sqlite is a reference implementation of the persistence
// adapter contract (Load/Save), keyed by opaque actor ID. It satisfies
// tollywood.PersistenceAdapter structurally — this package never
// imports the core module, keeping the dependency direction strictly
// one-way (executor -> interface only).
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lguibr/tollywood/persistence"
)

// Store is a SQLite-backed actor state store.
type Store struct {
	db         *sql.DB
	serializer persistence.Serializer
}

// Open opens (creating if needed) a SQLite database at path and applies
// its schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, serializer: persistence.JSONSerializer{}}, nil
}

// Load returns the last saved state for id, or (nil, nil) if none was
// ever saved.
func (s *Store) Load(id string) (interface{}, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT state FROM actor_state WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load actor %s: %w", id, err)
	}
	var out interface{}
	if err := s.serializer.Deserialize(data, &out); err != nil {
		return nil, fmt.Errorf("decode actor %s: %w", id, err)
	}
	return out, nil
}

// Save upserts the state for id.
func (s *Store) Save(id string, state interface{}) error {
	data, err := s.serializer.Serialize(state)
	if err != nil {
		return fmt.Errorf("encode actor %s: %w", id, err)
	}
	_, err = s.db.Exec(`INSERT INTO actor_state(id, state) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state`, id, data)
	if err != nil {
		return fmt.Errorf("save actor %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
