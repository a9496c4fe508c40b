package store

import (
	"errors"
	"fmt"
	"time"
)

// CurrentSchemaVersion is the record layout this build reads and writes.
//
//	1: settings, activity map, important set and candidate batch records
const CurrentSchemaVersion = 1

// keySchema is kept apart from the record keys so IsEmpty ignores it.
const keySchema = "m:__schema__"

// ErrSchemaTooNew is returned when the database was written by a newer daemon.
var ErrSchemaTooNew = errors.New("store schema is newer than this build")

// Schema is the version stamp written on first open.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetSchema returns the stamped schema, or nil for an unstamped or
// unreadable database.
func (s *Store) GetSchema() *Schema {
	var schema Schema
	found, err := s.Get(keySchema, &schema)
	if err != nil || !found {
		return nil
	}
	return &schema
}

// SetSchema overwrites the schema stamp.
func (s *Store) SetSchema(schema *Schema) error {
	return s.Put(keySchema, schema)
}

func (s *Store) ensureSchema() error {
	switch schema := s.GetSchema(); {
	case schema == nil:
		return s.SetSchema(&Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now().UTC()})
	case schema.Version > CurrentSchemaVersion:
		return fmt.Errorf("%w: found %d, want <= %d", ErrSchemaTooNew, schema.Version, CurrentSchemaVersion)
	default:
		return nil
	}
}
